package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/logging"
	"go.uber.org/zap"
)

// maxHistory bounds the query history kept in memory.
const maxHistory = 50

// Catalog is the table hierarchy shown by the data explorer.
type Catalog struct {
	Engine string
	Tables []TableNode
}

// TableNode holds a table name and its columns.
type TableNode struct {
	Name    string
	Columns []engine.ColumnInfo
}

// HistoryEntry records one executed query.
type HistoryEntry struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	RowCount      int       `json:"rowCount"`
	ExecutionTime float64   `json:"executionTime"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// Service coordinates application-level operations between the UIs and the engine.
type Service struct {
	engine engine.Engine
	sel    Selection
	logger *zap.Logger

	mu      sync.Mutex
	history []HistoryEntry
}

// NewService creates a new application service.
func NewService(eng engine.Engine, sel Selection, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: eng, sel: sel, logger: logger}
}

// Engine returns the underlying engine.
func (s *Service) Engine() engine.Engine { return s.engine }

// Selection reports how the engine was chosen.
func (s *Service) Selection() Selection { return s.sel }

// EngineName returns the active engine's name.
func (s *Service) EngineName() string { return s.engine.Name() }

// Close releases the engine.
func (s *Service) Close() error {
	return s.engine.Close()
}

// LoadCatalog fetches every table and its columns.
func (s *Service) LoadCatalog(ctx context.Context) (*Catalog, error) {
	tables, err := s.engine.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{Engine: s.engine.Name()}
	for _, t := range tables {
		cols, err := s.engine.GetTableInfo(ctx, t)
		if err != nil {
			return nil, &ErrTableInfo{Table: t, Cause: err}
		}
		cat.Tables = append(cat.Tables, TableNode{Name: t, Columns: cols})
	}
	return cat, nil
}

// AllTableNames returns every loaded table name.
func (s *Service) AllTableNames(ctx context.Context) ([]string, error) {
	return s.engine.ListTables(ctx)
}

// LoadColumns fetches column metadata for a specific table.
func (s *Service) LoadColumns(ctx context.Context, table string) ([]engine.ColumnInfo, error) {
	cols, err := s.engine.GetTableInfo(ctx, table)
	if err != nil {
		return nil, &ErrTableInfo{Table: table, Cause: err}
	}
	return cols, nil
}

// ExecuteQuery runs a SQL query, records it in the history and returns the results.
func (s *Service) ExecuteQuery(ctx context.Context, query string) (*engine.QueryResult, error) {
	entry := HistoryEntry{ID: uuid.NewString(), Query: query, At: time.Now()}

	result, err := s.engine.Query(ctx, query)
	if err != nil {
		entry.Error = err.Error()
		s.record(entry)
		s.logger.Warn("query failed",
			zap.String("query_id", entry.ID),
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Error(err))
		return nil, &ErrQuery{Query: query, Cause: err}
	}

	entry.RowCount = result.RowCount
	entry.ExecutionTime = result.ExecutionTime
	s.record(entry)
	s.logger.Debug("query executed",
		zap.String("query_id", entry.ID),
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Int("rows", result.RowCount),
		zap.Float64("execution_ms", result.ExecutionTime))
	return result, nil
}

// History returns executed queries, newest first.
func (s *Service) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	for i, h := range s.history {
		out[len(s.history)-1-i] = h
	}
	return out
}

func (s *Service) record(e HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// LoadData stores rows under table, replacing any existing table of that name.
func (s *Service) LoadData(ctx context.Context, rows []engine.Row, table string) error {
	if err := s.engine.LoadData(ctx, rows, table); err != nil {
		return &ErrLoad{Table: table, Cause: err}
	}
	s.logger.Info("table loaded", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// Metrics returns the engine's metrics snapshot.
func (s *Service) Metrics(ctx context.Context) (engine.MetricsSnapshot, error) {
	return s.engine.GetMetrics(ctx)
}
