// Package chart turns query rows into plottable series.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joacominatel/dataprism-demo/internal/engine"
)

// Type is a chart kind.
type Type string

const (
	Bar  Type = "bar"
	Line Type = "line"
	Pie  Type = "pie"
)

// Types lists the selectable chart kinds in selector order.
var Types = []Type{Bar, Line, Pie}

// Next returns the following chart type in selector order, wrapping around.
func (t Type) Next() Type {
	for i, c := range Types {
		if c == t {
			return Types[(i+1)%len(Types)]
		}
	}
	return Bar
}

// Valid reports whether t is a known chart type.
func (t Type) Valid() bool {
	for _, c := range Types {
		if c == t {
			return true
		}
	}
	return false
}

// Aggregation combines the y values that share an x label.
type Aggregation string

const (
	Sum   Aggregation = "sum"
	Avg   Aggregation = "avg"
	Count Aggregation = "count"
	Min   Aggregation = "min"
	Max   Aggregation = "max"
)

// Aggregations lists the supported aggregations.
var Aggregations = []Aggregation{Sum, Avg, Count, Min, Max}

// Next returns the following aggregation, wrapping around.
func (a Aggregation) Next() Aggregation {
	for i, c := range Aggregations {
		if c == a {
			return Aggregations[(i+1)%len(Aggregations)]
		}
	}
	return Sum
}

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Color returns the i-th color of the default palette, wrapping around.
func Color(i int) string {
	return defaultColors[i%len(defaultColors)]
}

// ErrInvalidConfig is returned for configs that cannot be plotted.
var ErrInvalidConfig = errors.New("invalid chart config")

// Config is a rendering request.
type Config struct {
	Type        Type         `json:"type" yaml:"type"`
	Data        []engine.Row `json:"data" yaml:"data"`
	XAxis       string       `json:"xAxis" yaml:"xAxis"`
	YAxis       string       `json:"yAxis" yaml:"yAxis"`
	GroupBy     string       `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Aggregation Aggregation  `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	Colors      []string     `json:"colors,omitempty" yaml:"colors,omitempty"`
}

// Validate checks the config can be plotted.
func (c Config) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown chart type %q", ErrInvalidConfig, c.Type)
	}
	if c.XAxis == "" || c.YAxis == "" {
		return fmt.Errorf("%w: xAxis and yAxis are required", ErrInvalidConfig)
	}
	if c.Aggregation != "" {
		known := false
		for _, a := range Aggregations {
			if a == c.Aggregation {
				known = true
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown aggregation %q", ErrInvalidConfig, c.Aggregation)
		}
	}
	return nil
}

// Series is one named line of values, aligned with Chart.Labels.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Color  string    `json:"color"`
}

// Chart is a built, plottable chart.
type Chart struct {
	Type   Type     `json:"type"`
	Title  string   `json:"title,omitempty"`
	XLabel string   `json:"xLabel"`
	YLabel string   `json:"yLabel"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Totals sums every series per label. Pie charts plot these.
func (c *Chart) Totals() []float64 {
	totals := make([]float64, len(c.Labels))
	for _, s := range c.Series {
		for i, v := range s.Values {
			totals[i] += v
		}
	}
	return totals
}

// MaxValue returns the largest value across all series, or 0 when empty.
func (c *Chart) MaxValue() float64 {
	maxV := 0.0
	for _, s := range c.Series {
		for _, v := range s.Values {
			maxV = math.Max(maxV, v)
		}
	}
	return maxV
}

// Build groups rows by the x axis (first-seen order) and aggregates the y
// axis. A groupBy column splits the values into one series per group.
func Build(cfg Config) (*Chart, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	agg := cfg.Aggregation
	if agg == "" {
		agg = Sum
	}

	var labels []string
	labelIdx := make(map[string]int)
	var groups []string
	groupIdx := make(map[string]int)
	acc := make(map[string][]accumulator)

	for _, row := range cfg.Data {
		x := row.String(cfg.XAxis)
		if _, ok := labelIdx[x]; !ok {
			labelIdx[x] = len(labels)
			labels = append(labels, x)
		}

		g := cfg.YAxis
		if cfg.GroupBy != "" {
			g = row.String(cfg.GroupBy)
		}
		if _, ok := groupIdx[g]; !ok {
			groupIdx[g] = len(groups)
			groups = append(groups, g)
		}

		cells := acc[g]
		for len(cells) < len(labels) {
			cells = append(cells, accumulator{})
		}
		v, numeric := ToFloat(row[cfg.YAxis])
		cells[labelIdx[x]].add(v, numeric)
		acc[g] = cells
	}

	colors := cfg.Colors
	if len(colors) == 0 {
		colors = defaultColors
	}

	series := make([]Series, 0, len(groups))
	for i, g := range groups {
		cells := acc[g]
		values := make([]float64, len(labels))
		for j := range labels {
			if j < len(cells) {
				values[j] = roundTo2(cells[j].result(agg))
			}
		}
		series = append(series, Series{
			Name:   g,
			Values: values,
			Color:  colors[i%len(colors)],
		})
	}

	title := cfg.Title
	if title == "" {
		title = fmt.Sprintf("%s of %s by %s", strings.ToUpper(string(agg)[:1])+string(agg)[1:], cfg.YAxis, cfg.XAxis)
	}

	return &Chart{
		Type:   cfg.Type,
		Title:  title,
		XLabel: cfg.XAxis,
		YLabel: cfg.YAxis,
		Labels: labels,
		Series: series,
	}, nil
}

// ToFloat converts numeric values and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// SuggestAxes picks a categorical x axis and a numeric y axis from the first row.
func SuggestAxes(rows []engine.Row, columns []string) (x, y string) {
	if len(rows) == 0 {
		return "", ""
	}
	if len(columns) == 0 {
		columns = rows[0].Columns()
	}
	for _, c := range columns {
		_, numeric := ToFloat(rows[0][c])
		if numeric && y == "" {
			y = c
		}
		if !numeric && x == "" {
			x = c
		}
	}
	if x == "" && len(columns) > 0 {
		x = columns[0]
	}
	if y == "" && len(columns) > 1 {
		y = columns[1]
	}
	return x, y
}

type accumulator struct {
	count   int
	numeric int
	sum     float64
	min     float64
	max     float64
}

func (a *accumulator) add(v float64, numeric bool) {
	a.count++
	if !numeric {
		return
	}
	if a.numeric == 0 || v < a.min {
		a.min = v
	}
	if a.numeric == 0 || v > a.max {
		a.max = v
	}
	a.numeric++
	a.sum += v
}

func (a accumulator) result(agg Aggregation) float64 {
	switch agg {
	case Count:
		return float64(a.count)
	case Avg:
		if a.numeric == 0 {
			return 0
		}
		return a.sum / float64(a.numeric)
	case Min:
		return a.min
	case Max:
		return a.max
	default:
		return a.sum
	}
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
