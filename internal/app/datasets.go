package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joacominatel/dataprism-demo/internal/engine"
)

// Dataset is a named table of rows ready to load.
type Dataset struct {
	Name string
	Rows []engine.Row
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// SampleDatasets returns the demo tables loaded at startup.
func SampleDatasets() []Dataset {
	regions := []string{"North", "South", "East", "West"}
	products := []string{"Widget", "Gadget", "Gizmo"}
	months := []string{"2024-01", "2024-02", "2024-03", "2024-04"}

	var sales []engine.Row
	id := 1
	for mi, month := range months {
		for ri, region := range regions {
			product := products[(mi+ri)%len(products)]
			units := 10 + (mi*7+ri*13)%40
			sales = append(sales, engine.Row{
				"id":      id,
				"month":   month,
				"region":  region,
				"product": product,
				"units":   units,
				"revenue": float64(units) * (19.5 + float64(ri)*5),
			})
			id++
		}
	}

	customers := []engine.Row{
		{"id": 1, "name": "Acme Corp", "city": "Chicago", "segment": "Enterprise", "lifetime_value": 125000},
		{"id": 2, "name": "Globex", "city": "Springfield", "segment": "Enterprise", "lifetime_value": 98000},
		{"id": 3, "name": "Initech", "city": "Austin", "segment": "Mid-Market", "lifetime_value": 43000},
		{"id": 4, "name": "Umbrella", "city": "Raccoon City", "segment": "Enterprise", "lifetime_value": 210000},
		{"id": 5, "name": "Hooli", "city": "Palo Alto", "segment": "Enterprise", "lifetime_value": 175000},
		{"id": 6, "name": "Vandelay Industries", "city": "New York", "segment": "SMB", "lifetime_value": 12000},
		{"id": 7, "name": "Stark Industries", "city": "Malibu", "segment": "Enterprise", "lifetime_value": 320000},
		{"id": 8, "name": "Wayne Enterprises", "city": "Gotham", "segment": "Enterprise", "lifetime_value": 280000},
		{"id": 9, "name": "Pied Piper", "city": "Palo Alto", "segment": "SMB", "lifetime_value": 8000},
		{"id": 10, "name": "Dunder Mifflin", "city": "Scranton", "segment": "Mid-Market", "lifetime_value": 36000},
		{"id": 11, "name": "Soylent", "city": "New York", "segment": "Mid-Market", "lifetime_value": 51000},
		{"id": 12, "name": "Tyrell", "city": "Los Angeles", "segment": "Enterprise", "lifetime_value": 190000},
	}

	return []Dataset{
		{Name: "sales", Rows: sales},
		{Name: "customers", Rows: customers},
	}
}

// LoadSamples loads the demo tables through the service.
func (s *Service) LoadSamples(ctx context.Context) error {
	for _, ds := range SampleDatasets() {
		if err := s.LoadData(ctx, ds.Rows, ds.Name); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile imports a CSV or JSON file as a table named after the file.
func (s *Service) LoadFile(ctx context.Context, path string) (string, error) {
	ds, err := ReadDataset(path)
	if err != nil {
		return "", &ErrLoad{Table: filepath.Base(path), Cause: err}
	}
	return ds.Name, s.LoadData(ctx, ds.Rows, ds.Name)
}

// ReadDataset parses a .csv or .json file into rows.
func ReadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, err
	}

	name := TableName(path)
	var rows []engine.Row
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = ParseCSV(bytes.NewReader(data))
	case ".json":
		rows, err = ParseJSON(data)
	default:
		return Dataset{}, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return Dataset{}, err
	}
	return Dataset{Name: name, Rows: rows}, nil
}

// TableName derives an identifier-safe table name from a file path.
func TableName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := strings.Trim(nonIdent.ReplaceAllString(base, "_"), "_")
	if name == "" {
		return "data"
	}
	return strings.ToLower(name)
}

// ParseCSV reads rows keyed by the header record. Integer and float fields
// become numbers; empty fields become NULL.
func ParseCSV(r io.Reader) ([]engine.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv has no header")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []engine.Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make(engine.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = parseScalar(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseJSON reads an array of objects.
func ParseJSON(data []byte) ([]engine.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	rows := make([]engine.Row, 0, len(raw))
	for _, obj := range raw {
		row := make(engine.Row, len(obj))
		for k, v := range obj {
			if n, ok := v.(json.Number); ok {
				row[k] = parseScalar(n.String())
				continue
			}
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseScalar(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// NaN and Inf stay text; they have no JSON form.
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}
