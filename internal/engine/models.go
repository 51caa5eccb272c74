package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Row is a single record: column name to scalar value.
type Row map[string]any

// Column data types reported by column inference.
const (
	TypeInteger = "INTEGER"
	TypeVarchar = "VARCHAR"
)

// QueryResult holds the result of a query execution.
type QueryResult struct {
	Data          []Row    `json:"data"`
	RowCount      int      `json:"rowCount"`
	ExecutionTime float64  `json:"executionTime"` // milliseconds
	Columns       []string `json:"columns,omitempty"`
}

// ColumnInfo describes a table column.
type ColumnInfo struct {
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
	IsNullable string `json:"is_nullable"`
}

// MetricsSnapshot is a point-in-time view of engine counters.
type MetricsSnapshot struct {
	QueriesExecuted  int     `json:"queriesExecuted"`
	AverageQueryTime float64 `json:"averageQueryTime"` // milliseconds
	CacheHitRate     float64 `json:"cacheHitRate"`
	MemoryUsage      int64   `json:"memoryUsage"` // bytes
	TablesLoaded     int     `json:"tablesLoaded"`
}

// Columns returns the column names of a row in lexicographic order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// String returns the display form of a column value. Missing and nil values render as "NULL".
func (r Row) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// InferType maps a runtime value to a declared column type.
func InferType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return TypeInteger
	default:
		return TypeVarchar
	}
}

// InferColumns derives column metadata from the first row only.
// Later rows are not inspected; heterogeneous rows are not reconciled.
func InferColumns(rows []Row) []ColumnInfo {
	if len(rows) == 0 {
		return []ColumnInfo{}
	}
	first := rows[0]
	cols := first.Columns()
	info := make([]ColumnInfo, 0, len(cols))
	for _, c := range cols {
		info = append(info, ColumnInfo{
			ColumnName: c,
			DataType:   InferType(first[c]),
			IsNullable: "YES",
		})
	}
	return info
}

// ResultColumns returns the column order for a set of rows, taken from the first row.
func ResultColumns(rows []Row) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0].Columns()
}
