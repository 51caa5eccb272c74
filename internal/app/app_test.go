package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joacominatel/dataprism-demo/internal/cdn"
	"github.com/joacominatel/dataprism-demo/internal/config"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.MockInitDelay = 0
	cfg.Engine.MockLoadDelay = 0
	cfg.CDN.RetryAttempts = 1
	cfg.CDN.RetryDelay = time.Millisecond
	cfg.CDN.Timeout = time.Second
	return cfg
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	eng := engine.NewMock(engine.WithDelays(0, 0), engine.WithSeed(1))
	require.NoError(t, eng.Initialize(context.Background()))
	return NewService(eng, Selection{Driver: config.DriverMock}, zaptest.NewLogger(t))
}

func TestProvide_Mock(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Driver = config.DriverMock

	eng, sel, err := Provide(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "mock", eng.Name())
	assert.Equal(t, config.DriverMock, sel.Driver)
	assert.False(t, sel.Fallback)
}

func TestProvide_AutoFallsBackWhenCDNDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.CDN.BaseURL = srv.URL

	eng, sel, err := Provide(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "mock", eng.Name())
	assert.True(t, sel.Fallback)
	assert.Contains(t, sel.Reason, "cdn unavailable")
	assert.Nil(t, sel.Manifest)

	mock, ok := eng.(*engine.MockEngine)
	require.True(t, ok)
	assert.True(t, mock.Initialized())
}

func TestProvide_AutoFallsBackOnVersionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"9.9.9"}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.CDN.BaseURL = srv.URL
	cfg.CDN.Version = "1.0.0"

	eng, sel, err := Provide(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "mock", eng.Name())
	assert.True(t, sel.Fallback)
	assert.Contains(t, sel.Reason, cdn.ErrVersionMismatch.Error())
}

func TestProvide_AutoCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.CDN.BaseURL = "http://127.0.0.1:1"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Provide(ctx, cfg, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvide_PostgresWithoutDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Driver = config.DriverPostgres

	_, _, err := Provide(context.Background(), cfg, zaptest.NewLogger(t))
	var cfgErr *ErrConfig
	assert.ErrorAs(t, err, &cfgErr)
}

func TestProvide_PostgresUnknownConnection(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Driver = config.DriverPostgres
	cfg.Engine.Connection = "missing"

	_, _, err := Provide(context.Background(), cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, `connection "missing" not found`)
}

func TestProvide_PostgresBadDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Driver = config.DriverPostgres
	cfg.Engine.DSN = "postgres://user@localhost:notaport/db"

	_, _, err := Provide(context.Background(), cfg, zaptest.NewLogger(t))
	var engErr *ErrEngine
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, config.DriverPostgres, engErr.Driver)
}

func TestProvide_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Driver = "oracle"

	_, _, err := Provide(context.Background(), cfg, zaptest.NewLogger(t))
	var cfgErr *ErrConfig
	assert.ErrorAs(t, err, &cfgErr)
}

func TestService_LoadSamplesAndCatalog(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.LoadSamples(ctx))

	names, err := svc.AllTableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "customers"}, names)

	cat, err := svc.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock", cat.Engine)
	require.Len(t, cat.Tables, 2)
	assert.Equal(t, "sales", cat.Tables[0].Name)
	assert.NotEmpty(t, cat.Tables[0].Columns)
}

func TestService_LoadColumnsUnknownTable(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.LoadColumns(context.Background(), "nope")
	var infoErr *ErrTableInfo
	require.ErrorAs(t, err, &infoErr)
	assert.Equal(t, "nope", infoErr.Table)
	assert.ErrorIs(t, err, engine.ErrTableNotFound)
}

func TestService_ExecuteQueryRecordsHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.LoadSamples(ctx))

	res, err := svc.ExecuteQuery(ctx, "SELECT * FROM sales")
	require.NoError(t, err)
	assert.Equal(t, 10, res.RowCount)

	_, err = svc.ExecuteQuery(ctx, "SHOW TABLES")
	require.NoError(t, err)

	h := svc.History()
	require.Len(t, h, 2)
	assert.Equal(t, "SHOW TABLES", h[0].Query)
	assert.Equal(t, 2, h[0].RowCount)
	assert.NotEqual(t, h[0].ID, h[1].ID)
}

func TestService_ExecuteQueryError(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ExecuteQuery(ctx, "SELECT 1")
	var qErr *ErrQuery
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "SELECT 1", qErr.Query)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotEmpty(t, svc.History()[0].Error)
}

func TestService_HistoryIsBounded(t *testing.T) {
	svc := newTestService(t)
	for i := 0; i < maxHistory+5; i++ {
		_, err := svc.ExecuteQuery(context.Background(), "SHOW TABLES")
		require.NoError(t, err)
	}
	assert.Len(t, svc.History(), maxHistory)
}

func TestService_LoadFile(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "Q1 Orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,item,price\n1,apple,1.5\n2,\"pear, green\",\n"), 0o644))

	name, err := svc.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "q1_orders", name)

	cols, err := svc.LoadColumns(context.Background(), name)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].ColumnName)
	assert.Equal(t, engine.TypeInteger, cols[0].DataType)
	assert.Equal(t, engine.TypeVarchar, cols[1].DataType)

	_, err = svc.LoadFile(context.Background(), filepath.Join(dir, "missing.csv"))
	var loadErr *ErrLoad
	assert.ErrorAs(t, err, &loadErr)
}

func TestParseCSV(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("a,b,c\n1,2.5,x\n,y,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["a"])
	assert.Equal(t, 2.5, rows[0]["b"])
	assert.Equal(t, "x", rows[0]["c"])
	assert.Nil(t, rows[1]["a"])

	_, err = ParseCSV(strings.NewReader(""))
	assert.ErrorContains(t, err, "no header")
}

func TestParseCSV_NonFiniteStaysText(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("name,score\nbad,NaN\nworse,Inf\nworst,-Infinity\nok,1e3\n"))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "NaN", rows[0]["score"])
	assert.Equal(t, "Inf", rows[1]["score"])
	assert.Equal(t, "-Infinity", rows[2]["score"])
	assert.Equal(t, 1000.0, rows[3]["score"])

	_, err = json.Marshal(rows)
	assert.NoError(t, err)
}

func TestParseJSON(t *testing.T) {
	rows, err := ParseJSON([]byte(`[{"n": 3, "f": 1.25, "s": "x", "b": true}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0]["n"])
	assert.Equal(t, 1.25, rows[0]["f"])
	assert.Equal(t, "x", rows[0]["s"])
	assert.Equal(t, true, rows[0]["b"])

	_, err = ParseJSON([]byte(`{"not":"array"}`))
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "sales_2024", TableName("/tmp/Sales-2024.csv"))
	assert.Equal(t, "data", TableName("/tmp/---.json"))
}

func TestSampleDatasets(t *testing.T) {
	ds := SampleDatasets()
	require.Len(t, ds, 2)
	assert.Equal(t, "sales", ds[0].Name)
	assert.Len(t, ds[0].Rows, 16)
	assert.Equal(t, "customers", ds[1].Name)
	assert.Len(t, ds[1].Rows, 12)
}
