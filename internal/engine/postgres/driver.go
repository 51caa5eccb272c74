// Package postgres implements the engine contract on a PostgreSQL database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/dataprism-demo/internal/engine"
)

const defaultSchema = "public"

// Engine implements engine.Engine for PostgreSQL.
type Engine struct {
	dsn    string
	schema string

	mu     sync.RWMutex
	pool   *pgxpool.Pool
	dbName string
	stats  engine.Stats
}

// New creates a PostgreSQL engine whose tables live in the public schema.
func New(dsn string) *Engine {
	return &Engine{dsn: dsn, schema: defaultSchema}
}

// Name returns "postgres".
func (e *Engine) Name() string { return "postgres" }

// Initialize establishes a connection pool to PostgreSQL.
func (e *Engine) Initialize(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(e.dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	e.mu.Lock()
	e.pool = pool
	e.dbName = cfg.ConnConfig.Database
	e.mu.Unlock()
	return nil
}

// Close closes the connection pool.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	return nil
}

// DatabaseName returns the name of the connected database.
func (e *Engine) DatabaseName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dbName
}

func (e *Engine) conn() (*pgxpool.Pool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return nil, errors.New("not connected")
	}
	return e.pool, nil
}

// LoadData drops and recreates tableName, then bulk-copies rows into it.
func (e *Engine) LoadData(ctx context.Context, rows []engine.Row, tableName string) error {
	pool, err := e.conn()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("load %q: no rows to infer columns from", tableName)
	}

	columns := rows[0].Columns()
	ident := pgx.Identifier{e.schema, tableName}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(ident, columns, rows[0])); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		record := make([]any, len(columns))
		for j, c := range columns {
			record[j] = row[c]
		}
		values[i] = record
	}

	if _, err := tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(values)); err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}

	return tx.Commit(ctx)
}

// Query runs a SQL query and returns the results.
func (e *Engine) Query(ctx context.Context, query string) (*engine.QueryResult, error) {
	pool, err := e.conn()
	if err != nil {
		return nil, err
	}

	start := time.Now()

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	data := []engine.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(engine.Row, len(values))
		for i, v := range values {
			row[columns[i]] = v
		}
		data = append(data, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
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

// GetTableInfo returns column metadata for a table.
func (e *Engine) GetTableInfo(ctx context.Context, tableName string) ([]engine.ColumnInfo, error) {
	pool, err := e.conn()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, queryGetColumns, e.schema, tableName)
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
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q: %w", tableName, engine.ErrTableNotFound)
	}
	return columns, nil
}

// ListTables returns all base table names in the engine's schema.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	pool, err := e.conn()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, queryListTables, e.schema)
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

// GetMetrics reports measured query counters and the database size.
func (e *Engine) GetMetrics(ctx context.Context) (engine.MetricsSnapshot, error) {
	pool, err := e.conn()
	if err != nil {
		return engine.MetricsSnapshot{}, err
	}

	tables, err := e.ListTables(ctx)
	if err != nil {
		return engine.MetricsSnapshot{}, err
	}

	var size int64
	if err := pool.QueryRow(ctx, queryDatabaseSize).Scan(&size); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return engine.MetricsSnapshot{}, fmt.Errorf("database size: %w", err)
		}
	}

	var hitRate float64
	if err := pool.QueryRow(ctx, queryCacheHitRate).Scan(&hitRate); err != nil {
		hitRate = 0
	}

	return engine.MetricsSnapshot{
		QueriesExecuted:  e.stats.Queries(),
		AverageQueryTime: e.stats.AverageMillis(),
		CacheHitRate:     hitRate,
		MemoryUsage:      size,
		TablesLoaded:     len(tables),
	}, nil
}

func createTableSQL(ident pgx.Identifier, columns []string, first engine.Row) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " " + pgType(first[c])
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))
}

func pgType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return "BIGINT"
	case uint64:
		return "NUMERIC"
	case float32, float64:
		return "DOUBLE PRECISION"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}
