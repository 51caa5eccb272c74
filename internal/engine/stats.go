package engine

import (
	"sync"
	"time"
)

// Stats accumulates measured query timings for real engines.
type Stats struct {
	mu      sync.Mutex
	queries int
	total   time.Duration
}

// Record adds one executed query.
func (s *Stats) Record(d time.Duration) {
	s.mu.Lock()
	s.queries++
	s.total += d
	s.mu.Unlock()
}

// Queries returns the number of recorded queries.
func (s *Stats) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// AverageMillis returns the mean query duration in milliseconds, or 0 with no queries.
func (s *Stats) AverageMillis() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queries == 0 {
		return 0
	}
	return Millis(s.total) / float64(s.queries)
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
