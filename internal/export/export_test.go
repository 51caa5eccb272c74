package export

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joacominatel/dataprism-demo/internal/chart"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func commaConfig() chart.Config {
	return chart.Config{
		Type:  chart.Bar,
		Data:  []engine.Row{{"x": "A", "y": 5}, {"x": "B, C", "y": 7}},
		XAxis: "x",
		YAxis: "y",
	}
}

func TestChartCSV_QuotesEmbeddedComma(t *testing.T) {
	out, err := ChartCSV(commaConfig())
	require.NoError(t, err)
	assert.Equal(t, "x,y\nA,5\n\"B, C\",7", string(out))
}

func TestChartCSV_QuotesQuotesAndNewlines(t *testing.T) {
	cfg := chart.Config{
		Type:  chart.Bar,
		Data:  []engine.Row{{"x": `say "hi"`, "y": 1}, {"x": "two\nlines", "y": nil}},
		XAxis: "x",
		YAxis: "y",
	}
	out, err := ChartCSV(cfg)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n\"say \"\"hi\"\"\",1\n\"two\nlines\",", string(out))
}

func TestChartCSV_RequiresAxes(t *testing.T) {
	_, err := ChartCSV(chart.Config{Type: chart.Bar})
	assert.ErrorIs(t, err, chart.ErrInvalidConfig)
}

func TestChartJSON(t *testing.T) {
	out, err := ChartJSON(commaConfig())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "bar", decoded["type"])
	assert.Equal(t, "x", decoded["xAxis"])
	assert.Len(t, decoded["data"], 2)
	assert.Contains(t, string(out), "\n  \"type\"")
}

func TestChartYAML(t *testing.T) {
	out, err := ChartYAML(commaConfig())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "bar", decoded["type"])
	assert.Equal(t, "y", decoded["yAxis"])
	assert.NotContains(t, decoded, "groupBy")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PNG ")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)

	f, err = ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("svg")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}

func TestPNG_AllChartTypes(t *testing.T) {
	rows := []engine.Row{
		{"region": "North", "amount": 10},
		{"region": "South", "amount": 4},
		{"region": "East", "amount": 7},
	}
	for _, typ := range chart.Types {
		t.Run(string(typ), func(t *testing.T) {
			c, err := chart.Build(chart.Config{Type: typ, Data: rows, XAxis: "region", YAxis: "amount"})
			require.NoError(t, err)

			out, err := PNG(context.Background(), c, 320, 240)
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, 320, img.Bounds().Dx())
			assert.Equal(t, 240, img.Bounds().Dy())
		})
	}
}

func TestPNG_DefaultsAndLimits(t *testing.T) {
	c, err := chart.Build(chart.Config{Type: chart.Bar, XAxis: "x", YAxis: "y"})
	require.NoError(t, err)

	out, err := PNG(context.Background(), c, 0, 0)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, cfg.Width)
	assert.Equal(t, DefaultHeight, cfg.Height)

	_, err = PNG(context.Background(), c, MaxDimension+1, 10)
	assert.Error(t, err)
}

func TestPNG_Cancelled(t *testing.T) {
	c, err := chart.Build(commaConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = PNG(ctx, c, 100, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChart_DispatchesByFormat(t *testing.T) {
	for _, f := range []Format{FormatPNG, FormatCSV, FormatJSON, FormatYAML} {
		out, err := Chart(context.Background(), commaConfig(), f, 200, 150)
		require.NoError(t, err, f)
		assert.NotEmpty(t, out)
	}

	_, err := Chart(context.Background(), commaConfig(), "svg", 0, 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func sampleResult() *engine.QueryResult {
	return &engine.QueryResult{
		Data: []engine.Row{
			{"id": 1, "name": "Alice, Jr.", "email": nil},
			{"id": 2, "name": "Bob", "email": "bob@example.com"},
		},
		RowCount: 2,
		Columns:  []string{"id", "name", "email"},
	}
}

func TestResultCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ResultCSV(&buf, sampleResult()))
	assert.Equal(t, "id,name,email\n1,\"Alice, Jr.\",\n2,Bob,bob@example.com\n", buf.String())
}

func TestResultJSON_KeepsColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ResultJSON(&buf, sampleResult()))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `  {"id": 1, "name": "Alice, Jr.", "email": null},`, lines[1])

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestRowCSV(t *testing.T) {
	out, err := RowCSV([]string{"a", "b"}, engine.Row{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,x\n", out)
}

func TestWriteResultFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteResultFile(dir, sampleResult(), FormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".csv"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,name,email\n"))

	_, err = WriteResultFile(dir, sampleResult(), FormatPNG)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	a := Filename("dataprism_export", FormatJSON, now)
	b := Filename("dataprism_export", FormatJSON, now)
	assert.True(t, strings.HasPrefix(a, "dataprism_export_20240301_123000_"))
	assert.True(t, strings.HasSuffix(a, ".json"))
	assert.NotEqual(t, a, b)
}
