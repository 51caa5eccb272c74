package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joacominatel/dataprism-demo/internal/engine"
)

// ResultCSV writes a query result with a header row. NULL values become empty fields.
func ResultCSV(w io.Writer, res *engine.QueryResult) error {
	cols := resultColumns(res)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, row := range res.Data {
		for i, c := range cols {
			record[i] = cell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ResultJSON writes a query result as an array of objects, one per line,
// keeping the result's column order.
func ResultJSON(w io.Writer, res *engine.QueryResult) error {
	cols := resultColumns(res)
	var b strings.Builder
	b.WriteString("[\n")
	for i, row := range res.Data {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		obj, err := RowJSON(cols, row)
		if err != nil {
			return err
		}
		b.WriteString(obj)
	}
	b.WriteString("\n]")
	_, err := io.WriteString(w, b.String())
	return err
}

// RowJSON renders a row as a JSON object with keys in column order,
// which map marshaling would not preserve.
func RowJSON(columns []string, row engine.Row) (string, error) {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key, err := json.Marshal(col)
		if err != nil {
			return "", err
		}
		val, err := json.Marshal(row[col])
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col, err)
		}
		b.Write(key)
		b.WriteString(": ")
		b.Write(val)
	}
	b.WriteString("}")
	return b.String(), nil
}

// RowCSV renders the header and a single row as CSV.
func RowCSV(columns []string, row engine.Row) (string, error) {
	var buf bytes.Buffer
	err := ResultCSV(&buf, &engine.QueryResult{Data: []engine.Row{row}, Columns: columns})
	return buf.String(), err
}

// Filename builds a unique export file name.
func Filename(prefix string, f Format, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, now.Format("20060102_150405"), uuid.NewString()[:8], f)
}

// WriteResultFile exports a query result into dir as CSV or JSON and returns the path.
func WriteResultFile(dir string, res *engine.QueryResult, f Format) (string, error) {
	if res == nil {
		return "", fmt.Errorf("no result to export")
	}

	var buf bytes.Buffer
	var err error
	switch f {
	case FormatCSV:
		err = ResultCSV(&buf, res)
	case FormatJSON:
		err = ResultJSON(&buf, res)
	default:
		return "", fmt.Errorf("%w: %q for query results", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, Filename("dataprism_export", f, time.Now()))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

func resultColumns(res *engine.QueryResult) []string {
	if len(res.Columns) > 0 {
		return res.Columns
	}
	return engine.ResultColumns(res.Data)
}
