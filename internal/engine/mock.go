package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	defaultInitDelay = 500 * time.Millisecond
	defaultLoadDelay = 200 * time.Millisecond
)

// MockSelectLimit caps the rows the mock returns for a SELECT.
const MockSelectLimit = 10

// MockEngine is an in-memory stand-in for the real engine. Its query
// dispatcher matches substrings of the SQL text; it does not parse SQL.
type MockEngine struct {
	mu          sync.Mutex
	tables      map[string][]Row
	order       []string // insertion order of table names
	initialized bool
	initDelay   time.Duration
	loadDelay   time.Duration
	rng         *rand.Rand
}

// MockOption configures a MockEngine.
type MockOption func(*MockEngine)

// WithDelays overrides the simulated warm-up and loading delays.
func WithDelays(initDelay, loadDelay time.Duration) MockOption {
	return func(m *MockEngine) {
		m.initDelay = initDelay
		m.loadDelay = loadDelay
	}
}

// WithSeed makes synthetic timings and metrics reproducible.
func WithSeed(seed uint64) MockOption {
	return func(m *MockEngine) {
		m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewMock creates a new mock engine.
func NewMock(opts ...MockOption) *MockEngine {
	m := &MockEngine{
		tables:    make(map[string][]Row),
		initDelay: defaultInitDelay,
		loadDelay: defaultLoadDelay,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "mock".
func (m *MockEngine) Name() string { return "mock" }

// Initialize simulates engine warm-up. It always succeeds unless ctx is done.
func (m *MockEngine) Initialize(ctx context.Context) error {
	if err := sleep(ctx, m.initDelay); err != nil {
		return err
	}
	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// Initialized reports whether Initialize has completed.
func (m *MockEngine) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// LoadData stores rows under tableName. A table that already exists keeps its
// position in the table order; its rows are replaced.
func (m *MockEngine) LoadData(ctx context.Context, rows []Row, tableName string) error {
	if err := sleep(ctx, m.loadDelay); err != nil {
		return err
	}

	stored := make([]Row, len(rows))
	copy(stored, rows)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[tableName]; !exists {
		m.order = append(m.order, tableName)
	}
	m.tables[tableName] = stored
	return nil
}

// Query dispatches on substrings of the upper-cased SQL text. Order matters:
// SHOW TABLES, then DESCRIBE, then SELECT/FROM, then the empty result.
func (m *MockEngine) Query(ctx context.Context, sql string) (*QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := ReadDispatch(sql)

	if d.ShowTables {
		data := make([]Row, 0, len(m.order))
		for _, name := range m.order {
			data = append(data, Row{"name": name})
		}
		return m.result(data, []string{"name"}), nil
	}

	// Unknown tables fall through to the SELECT branch.
	if rows, ok := m.tables[d.Target]; d.Describe && d.Target != "" && ok {
		info := InferColumns(rows)
		data := make([]Row, 0, len(info))
		for _, c := range info {
			data = append(data, Row{
				"column_name": c.ColumnName,
				"data_type":   c.DataType,
				"is_nullable": c.IsNullable,
			})
		}
		return m.result(data, []string{"column_name", "data_type", "is_nullable"}), nil
	}

	if d.Select {
		// The table reference is not parsed; the first loaded table answers.
		if len(m.order) == 0 {
			return m.result([]Row{}, nil), nil
		}
		rows := m.tables[m.order[0]]
		n := min(len(rows), MockSelectLimit)
		data := make([]Row, n)
		copy(data, rows[:n])
		return m.result(data, ResultColumns(data)), nil
	}

	return m.result([]Row{}, nil), nil
}

// GetTableInfo returns columns inferred from the table's first row.
func (m *MockEngine) GetTableInfo(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", tableName, ErrTableNotFound)
	}
	return InferColumns(rows), nil
}

// ListTables returns table names in insertion order.
func (m *MockEngine) ListTables(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names, nil
}

// GetMetrics returns synthetic counters. Only TablesLoaded reflects real state.
func (m *MockEngine) GetMetrics(ctx context.Context) (MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return MetricsSnapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return MetricsSnapshot{
		QueriesExecuted:  m.rng.IntN(1000),
		AverageQueryTime: m.rng.Float64() * 100,
		CacheHitRate:     m.rng.Float64(),
		MemoryUsage:      m.rng.Int64N(100 * 1024 * 1024),
		TablesLoaded:     len(m.order),
	}, nil
}

// Close is a no-op.
func (m *MockEngine) Close() error {
	return nil
}

// result must be called with m.mu held.
func (m *MockEngine) result(data []Row, columns []string) *QueryResult {
	return &QueryResult{
		Data:          data,
		RowCount:      len(data),
		ExecutionTime: 10 + m.rng.Float64()*90,
		Columns:       columns,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
