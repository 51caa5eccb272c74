package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/chart"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/export"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies for query, load and export calls.
const maxBodyBytes = 10 << 20

type queryRequest struct {
	SQL string `json:"sql"`
}

type tableResponse struct {
	Name    string              `json:"name"`
	Columns []engine.ColumnInfo `json:"columns"`
}

type loadResponse struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

type engineResponse struct {
	Name      string        `json:"name"`
	Selection app.Selection `json:"selection"`
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.svc.AllTableNames(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cols, err := s.svc.LoadColumns(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if cols == nil {
		cols = []engine.ColumnInfo{}
	}
	s.writeJSON(w, http.StatusOK, tableResponse{Name: name, Columns: cols})
}

func (s *Server) handleLoadTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	rows, err := app.ParseJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.LoadData(r.Context(), rows, name); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, loadResponse{Table: name, Rows: len(rows)})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "sql is required")
		return
	}
	res, err := s.svc.ExecuteQuery(r.Context(), req.SQL)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Metrics(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"history": s.svc.History()})
}

func (s *Server) handleEngine(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, engineResponse{Name: s.svc.EngineName(), Selection: s.svc.Selection()})
}

// handleExport renders a chart config posted as JSON. PNG size comes from
// the width and height query parameters.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	width, height, err := dimensions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cfg chart.Config
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cfg.Type == "" {
		cfg.Type = chart.Bar
	}

	data, err := export.Chart(r.Context(), cfg, f, width, height)
	if err != nil {
		err = &app.ErrExport{Format: string(f), Cause: err}
		s.logger.Warn("chart export failed", zap.String("format", string(f)), zap.Error(err))
		s.writeServiceError(w, err)
		return
	}

	filename := export.Filename("dataprism_chart", f, time.Now())
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func dimensions(r *http.Request) (int, int, error) {
	parse := func(key string) (int, error) {
		v := r.URL.Query().Get(key)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > export.MaxDimension {
			return 0, fmt.Errorf("%s must be between 0 and %d", key, export.MaxDimension)
		}
		return n, nil
	}
	width, err := parse("width")
	if err != nil {
		return 0, 0, err
	}
	height, err := parse("height")
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeServiceError maps service errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrTableNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chart.ErrInvalidConfig), errors.Is(err, export.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON encodes v before writing the header; an encoding failure is
// answered with a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", zap.Int("status", status), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encode response: "+err.Error())
		return
	}
	writeBody(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
