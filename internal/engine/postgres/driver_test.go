package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/stretchr/testify/assert"
)

func TestCreateTableSQL(t *testing.T) {
	row := engine.Row{"id": 1, "name": "Ada", "score": 9.5, "active": true}
	got := createTableSQL(pgx.Identifier{"public", "people"}, row.Columns(), row)
	assert.Equal(t,
		`CREATE TABLE "public"."people" ("active" BOOLEAN, "id" BIGINT, "name" TEXT, "score" DOUBLE PRECISION)`,
		got)
}

func TestCreateTableSQL_QuotesNames(t *testing.T) {
	row := engine.Row{`we"ird`: "x"}
	got := createTableSQL(pgx.Identifier{"public", `t"1`}, row.Columns(), row)
	assert.Equal(t, `CREATE TABLE "public"."t""1" ("we""ird" TEXT)`, got)
}

func TestEngine_NotConnected(t *testing.T) {
	e := New("postgresql://localhost/db")
	_, err := e.Query(context.Background(), "SELECT 1")
	assert.EqualError(t, err, "not connected")

	_, err = e.ListTables(context.Background())
	assert.Error(t, err)
	assert.NoError(t, e.Close())
}

func TestEngine_InitializeBadDSN(t *testing.T) {
	e := New("::not a dsn::")
	err := e.Initialize(context.Background())
	assert.ErrorContains(t, err, "parse dsn")
}
