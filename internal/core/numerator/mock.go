package numerator

import (
	"context"
	"sync"
	"time"
)

// MemoryGenerator is an in-process Generator for tests and tools.
type MemoryGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{counters: make(map[string]int64)}
}

func (g *MemoryGenerator) Next(_ context.Context, cfg Config, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := cfg.Key(period)
	g.counters[key]++
	return cfg.Format(period, g.counters[key]), nil
}

func (g *MemoryGenerator) AdvanceTo(_ context.Context, cfg Config, period time.Time, value int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := cfg.Key(period)
	if g.counters[key] < value {
		g.counters[key] = value
	}
	return nil
}

// Current returns the last issued value for the series.
func (g *MemoryGenerator) Current(cfg Config, period time.Time) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters[cfg.Key(period)]
}

var _ Generator = (*MemoryGenerator)(nil)
