package engine

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned by GetTableInfo when the table does not exist.
var ErrTableNotFound = errors.New("table not found")

// Engine defines the analytics engine contract consumed by the dashboard pages.
// All implementations must be safe for concurrent use.
type Engine interface {
	// Initialize prepares the engine for use.
	Initialize(ctx context.Context) error

	// Query runs a SQL-shaped query and returns results.
	Query(ctx context.Context, sql string) (*QueryResult, error)

	// LoadData stores rows under tableName, replacing any existing table of that name.
	LoadData(ctx context.Context, rows []Row, tableName string) error

	// GetTableInfo returns column metadata for a table.
	GetTableInfo(ctx context.Context, tableName string) ([]ColumnInfo, error)

	// ListTables returns all table names.
	ListTables(ctx context.Context) ([]string, error)

	// GetMetrics returns a snapshot of engine counters.
	GetMetrics(ctx context.Context) (MetricsSnapshot, error)

	// Name identifies the implementation ("mock", "duckdb", "postgres").
	Name() string

	// Close releases engine resources.
	Close() error
}
