package duckdb

// SQL queries for DuckDB catalog introspection.
const (
	queryListTables = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	queryTableColumns = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'main'
		  AND table_name = ?
		ORDER BY ordinal_position`

	queryMemoryUsage = `SELECT SUM(memory_usage_bytes)::BIGINT FROM duckdb_memory()`
)
