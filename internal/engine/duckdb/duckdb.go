// Package duckdb implements the engine contract on an embedded DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/joacominatel/dataprism-demo/internal/engine"
)

// ErrNotInitialized is returned when the engine is used before Initialize.
var ErrNotInitialized = errors.New("duckdb engine not initialized")

// Engine implements engine.Engine on DuckDB.
type Engine struct {
	path          string
	extensionRepo string

	mu    sync.RWMutex
	db    *sql.DB
	stats engine.Stats
}

// Option configures the engine.
type Option func(*Engine)

// WithExtensionRepository points DuckDB extension installs at the given URL.
func WithExtensionRepository(url string) Option {
	return func(e *Engine) {
		e.extensionRepo = url
	}
}

// New creates a DuckDB engine. An empty path opens an in-memory database.
func New(path string, opts ...Option) *Engine {
	e := &Engine{path: path}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns "duckdb".
func (e *Engine) Name() string { return "duckdb" }

// Initialize opens the database and verifies it responds.
func (e *Engine) Initialize(ctx context.Context) error {
	db, err := sql.Open("duckdb", e.path)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping duckdb: %w", err)
	}
	if e.extensionRepo != "" {
		stmt := fmt.Sprintf("SET custom_extension_repository = %s", quoteLiteral(e.extensionRepo))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("set extension repository: %w", err)
		}
	}

	e.mu.Lock()
	e.db = db
	e.mu.Unlock()
	return nil
}

// Close closes the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

func (e *Engine) conn() (*sql.DB, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return nil, ErrNotInitialized
	}
	return e.db, nil
}

// LoadData replaces tableName with rows. Column types come from the first row.
func (e *Engine) LoadData(ctx context.Context, rows []engine.Row, tableName string) error {
	db, err := e.conn()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("load %q: no rows to infer columns from", tableName)
	}

	columns := rows[0].Columns()
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " " + sqlType(rows[0][c])
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	create := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", quoteIdent(tableName), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(tableName), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			args[i] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Query executes sql and returns all result rows.
func (e *Engine) Query(ctx context.Context, query string) (*engine.QueryResult, error) {
	db, err := e.conn()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	columns, data, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.stats.Record(elapsed)

	return &engine.QueryResult{
		Data:          data,
		RowCount:      len(data),
		ExecutionTime: engine.Millis(elapsed),
		Columns:       columns,
	}, nil
}

// GetTableInfo reads column metadata from information_schema.
func (e *Engine) GetTableInfo(ctx context.Context, tableName string) ([]engine.ColumnInfo, error) {
	db, err := e.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, queryTableColumns, tableName)
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	defer rows.Close()

	var columns []engine.ColumnInfo
	for rows.Next() {
		var col engine.ColumnInfo
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	// DuckDB tables always have at least one column.
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q: %w", tableName, engine.ErrTableNotFound)
	}
	return columns, nil
}

// ListTables returns base tables in the main schema, ordered by name.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	db, err := e.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, queryListTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetMetrics reports measured query counters and DuckDB memory usage.
func (e *Engine) GetMetrics(ctx context.Context) (engine.MetricsSnapshot, error) {
	db, err := e.conn()
	if err != nil {
		return engine.MetricsSnapshot{}, err
	}

	tables, err := e.ListTables(ctx)
	if err != nil {
		return engine.MetricsSnapshot{}, err
	}

	var memory sql.NullInt64
	// duckdb_memory() is absent on old releases; report zero instead of failing.
	_ = db.QueryRowContext(ctx, queryMemoryUsage).Scan(&memory)

	return engine.MetricsSnapshot{
		QueriesExecuted:  e.stats.Queries(),
		AverageQueryTime: e.stats.AverageMillis(),
		MemoryUsage:      memory.Int64,
		TablesLoaded:     len(tables),
	}, nil
}

func scanRows(rows *sql.Rows) ([]string, []engine.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns: %w", err)
	}

	data := []engine.Row{}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		row := make(engine.Row, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows: %w", err)
	}
	return columns, data, nil
}

func sqlType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return "BIGINT"
	case uint64:
		return "UBIGINT"
	case float32, float64:
		return "DOUBLE"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
