// Package export serializes charts and query results to downloadable formats.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joacominatel/dataprism-demo/internal/chart"
	"gopkg.in/yaml.v3"
)

// Format is an export target.
type Format string

const (
	FormatPNG  Format = "png"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat normalizes a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type served for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// Chart produces the export bytes of a chart config in the given format.
// Width and height only apply to PNG.
func Chart(ctx context.Context, cfg chart.Config, f Format, width, height int) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ChartCSV(cfg)
	case FormatJSON:
		return ChartJSON(cfg)
	case FormatYAML:
		return ChartYAML(cfg)
	case FormatPNG:
		c, err := chart.Build(cfg)
		if err != nil {
			return nil, err
		}
		return PNG(ctx, c, width, height)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// ChartCSV writes the x and y columns of the chart data. Fields are quoted
// per RFC 4180, records are separated by "\n" and there is no trailing newline.
func ChartCSV(cfg chart.Config) ([]byte, error) {
	if cfg.XAxis == "" || cfg.YAxis == "" {
		return nil, fmt.Errorf("%w: xAxis and yAxis are required", chart.ErrInvalidConfig)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{cfg.XAxis, cfg.YAxis}); err != nil {
		return nil, err
	}
	for _, row := range cfg.Data {
		if err := w.Write([]string{cell(row[cfg.XAxis]), cell(row[cfg.YAxis])}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ChartJSON writes the full chart config as indented JSON.
func ChartJSON(cfg chart.Config) ([]byte, error) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

// ChartYAML writes the full chart config as YAML.
func ChartYAML(cfg chart.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
