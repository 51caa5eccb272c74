package web

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"image/png"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/config"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.RateLimitRPS = 0
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	eng := engine.NewMock(engine.WithDelays(0, 0), engine.WithSeed(1))
	require.NoError(t, eng.Initialize(context.Background()))
	svc := app.NewService(eng, app.Selection{Driver: config.DriverMock}, zaptest.NewLogger(t))
	require.NoError(t, svc.LoadSamples(context.Background()))
	return New(svc, cfg, zaptest.NewLogger(t))
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_ListTables(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodGet, "/api/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	got := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"sales", "customers"}, got["tables"])
}

func TestAPI_GetTable(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodGet, "/api/tables/sales", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[tableResponse](t, rec)
	assert.Equal(t, "sales", got.Name)
	require.NotEmpty(t, got.Columns)
	assert.Equal(t, "id", got.Columns[0].ColumnName)
	assert.Equal(t, engine.TypeInteger, got.Columns[0].DataType)
}

func TestAPI_GetTableNotFound(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodGet, "/api/tables/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "table not found")
}

func TestAPI_LoadTable(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodPost, "/api/tables/people", `[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, loadResponse{Table: "people", Rows: 2}, decode[loadResponse](t, rec))

	rec = do(t, h, http.MethodGet, "/api/tables", "")
	assert.Equal(t, []string{"sales", "customers", "people"}, decode[map[string][]string](t, rec)["tables"])

	rec = do(t, h, http.MethodGet, "/api/tables/people", "")
	got := decode[tableResponse](t, rec)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, engine.TypeInteger, got.Columns[0].DataType)
	assert.Equal(t, engine.TypeVarchar, got.Columns[1].DataType)
}

func TestAPI_LoadTableInvalidBody(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodPost, "/api/tables/people", `{"not":"an array"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Query(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodPost, "/api/query", `{"sql":"SHOW TABLES"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res engine.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, "sales", res.Data[0]["name"])
	assert.Greater(t, res.ExecutionTime, 0.0)

	rec = do(t, h, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SHOW TABLES")
}

func TestAPI_QueryValidation(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/query", `{"sql":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/query", `not json`).Code)
}

func TestAPI_MetricsAndEngine(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[engine.MetricsSnapshot](t, rec).TablesLoaded)

	rec = do(t, h, http.MethodGet, "/api/engine", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[engineResponse](t, rec)
	assert.Equal(t, "mock", got.Name)
	assert.Equal(t, config.DriverMock, got.Selection.Driver)
}

func TestAPI_UnknownEndpoint(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

const exportBody = `{"type":"bar","data":[{"x":"A","y":5},{"x":"B, C","y":7}],"xAxis":"x","yAxis":"y"}`

func TestAPI_ExportCSV(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodPost, "/api/export/csv", exportBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="dataprism_chart_`)
	assert.Equal(t, "x,y\nA,5\n\"B, C\",7", rec.Body.String())
}

func TestAPI_ExportPNG(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodPost, "/api/export/png?width=300&height=200", exportBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestAPI_ExportYAMLAlias(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodPost, "/api/export/yml", exportBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "xAxis: x")
}

func TestAPI_ExportErrors(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"unknown format", "/api/export/svg", exportBody},
		{"oversized", "/api/export/png?width=99999", exportBody},
		{"missing axis", "/api/export/png", `{"type":"bar","xAxis":"x"}`},
		{"unknown type", "/api/export/png", `{"type":"radar","xAxis":"x","yAxis":"y"}`},
		{"bad json", "/api/export/json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestPages(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	tests := []struct {
		target string
		want   []string
	}{
		{"/", []string{"<!doctype html>", "<title>Home | DataPrism Demo Analytics</title>", "sales", "customers"}},
		{"/data-explorer", []string{"Data Explorer", `href="/data-explorer?table=sales"`}},
		{"/data-explorer?table=sales", []string{"revenue", "INTEGER", "Preview"}},
		{"/data-explorer?table=nope", []string{"table not found"}},
		{"/query-lab", []string{"Query Lab", "No queries yet"}},
		{"/query-lab?sql=SHOW+TABLES", []string{"2 row(s)", "SHOW TABLES"}},
		{"/visualization", []string{"data:image/png;base64,", "<select name=\"type\""}},
		{"/visualization?type=pie&x=region&y=revenue", []string{"Sum of revenue by region", "North"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			for _, w := range tt.want {
				assert.Contains(t, rec.Body.String(), w)
			}
		})
	}
}

func TestPages_VisualizationWithoutTables(t *testing.T) {
	eng := engine.NewMock(engine.WithDelays(0, 0))
	require.NoError(t, eng.Initialize(context.Background()))
	svc := app.NewService(eng, app.Selection{Driver: config.DriverMock}, zaptest.NewLogger(t))
	h := New(svc, testConfig(), zaptest.NewLogger(t)).Handler()

	rec := do(t, h, http.MethodGet, "/visualization", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Load a table to build a chart")
}

func TestPages_FallbackBadge(t *testing.T) {
	eng := engine.NewMock(engine.WithDelays(0, 0))
	require.NoError(t, eng.Initialize(context.Background()))
	sel := app.Selection{Driver: config.DriverMock, Fallback: true, Reason: "manifest unavailable"}
	h := New(app.NewService(eng, sel, zaptest.NewLogger(t)), testConfig(), zaptest.NewLogger(t)).Handler()

	body := do(t, h, http.MethodGet, "/", "").Body.String()
	assert.Contains(t, body, "mock (fallback)")
	assert.Contains(t, body, "manifest unavailable")
}

var hrefPattern = regexp.MustCompile(`href="(/[^"]*)"`)

// links returns the site-relative hrefs rendered in body.
func links(body string) []string {
	var out []string
	for _, m := range hrefPattern.FindAllStringSubmatch(body, -1) {
		out = append(out, html.UnescapeString(m[1]))
	}
	return out
}

func TestPages_ResolvedBasename(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodGet, "/my-repo/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Home")
	assert.Contains(t, body, `href="/my-repo/data-explorer"`)

	hrefs := links(body)
	require.NotEmpty(t, hrefs)
	for _, href := range hrefs {
		rec := do(t, h, http.MethodGet, href, "")
		assert.Equal(t, http.StatusOK, rec.Code, href)
		assert.Contains(t, rec.Body.String(), `href="/my-repo/query-lab"`, href)
	}

	for _, route := range []string{"/my-repo/data-explorer", "/my-repo/query-lab/", "/my-repo/visualization"} {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, route, "").Code, route)
	}
}

func TestPages_RootLinksResolve(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodGet, "/data-explorer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, href := range links(rec.Body.String()) {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, href, "").Code, href)
	}
}

func TestPages_UnknownPathsNotFound(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	for _, target := range []string{
		"/typo",
		"/favicon.ico",
		"/my-repo",
		"/my-repo/unknown/page",
		"/a/b/data-explorer",
		"/my-repo/data-explorer/extra",
	} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Not Found", target)
	}
}

func TestPages_ConfiguredBasename(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Basename = "/demo/"
	h := newTestServer(t, cfg).Handler()

	rec := do(t, h, http.MethodGet, "/demo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/demo/visualization"`)

	rec = do(t, h, http.MethodGet, "/demo/query-lab", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Query Lab")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/query-lab", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/demo/nope", "").Code)

	rec = do(t, h, http.MethodGet, "/demo/api/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sales", "customers"}, decode[map[string][]string](t, rec)["tables"])
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimitRPS = 0.5
	cfg.Server.RateLimitBurst = 1
	h := newTestServer(t, cfg).Handler()

	rec := do(t, h, http.MethodGet, "/api/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = do(t, h, http.MethodGet, "/api/tables", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decode[map[string]string](t, rec)["error"])

	// pages are not limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/", "").Code)
}

func TestRateLimiterSweep(t *testing.T) {
	rl := newRateLimiter(1, 1)
	now := time.Now()
	rl.get("10.0.0.1", now.Add(-time.Hour))
	rl.get("10.0.0.2", now)

	assert.Equal(t, 1, rl.sweep(now, limiterIdleTTL))
	assert.Len(t, rl.clients, 1)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(req))
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORSOrigins = []string{"https://dashboards.example.com"}
	h := newTestServer(t, cfg).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/tables", nil)
	req.Header.Set("Origin", "https://dashboards.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://dashboards.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/tables", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, testConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/tables")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestAPI_QueryUnencodableValue(t *testing.T) {
	rows := []engine.Row{{"name": "bad", "score": math.NaN()}, {"name": "worse", "score": math.Inf(1)}}

	// the mock answers any SELECT from the first table, so load scores alone
	eng := engine.NewMock(engine.WithDelays(0, 0))
	require.NoError(t, eng.Initialize(context.Background()))
	require.NoError(t, eng.LoadData(context.Background(), rows, "scores"))
	svc := app.NewService(eng, app.Selection{Driver: config.DriverMock}, zaptest.NewLogger(t))
	h := New(svc, testConfig(), zaptest.NewLogger(t)).Handler()

	rec := do(t, h, http.MethodPost, "/api/query", `{"sql":"SELECT * FROM scores"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "encode response")
}

func TestWriteJSON(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	srv.writeJSON(rec, http.StatusCreated, map[string]int{"rows": 2})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"rows":2}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.writeJSON(rec, http.StatusOK, map[string]float64{"v": math.Inf(-1)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
}

func TestAPI_ExportErrorNamesFormat(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := do(t, h, http.MethodPost, "/api/export/png", `{"type":"bar","xAxis":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, rec)["error"], "export png: "))
}
