package postgres

// SQL queries for PostgreSQL metadata introspection.
const (
	queryListTables = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	queryGetColumns = `
		SELECT
			c.column_name,
			UPPER(c.data_type),
			c.is_nullable
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		  AND c.table_name = $2
		ORDER BY c.ordinal_position`

	queryDatabaseSize = `SELECT pg_database_size(current_database())`

	queryCacheHitRate = `
		SELECT COALESCE(
			SUM(blks_hit)::float8 / NULLIF(SUM(blks_hit) + SUM(blks_read), 0),
			0)
		FROM pg_stat_database
		WHERE datname = current_database()`
)
