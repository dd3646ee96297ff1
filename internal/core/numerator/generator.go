package numerator

import (
	"context"
	"time"
)

// Generator issues unique, increasing numbers per series.
// Implementations must be atomic across concurrent callers; the
// PostgreSQL one increments a counter row with INSERT ... ON CONFLICT ... RETURNING.
type Generator interface {
	// Next reserves and formats the next number of the series for period.
	Next(ctx context.Context, cfg Config, period time.Time) (string, error)

	// AdvanceTo raises the counter to at least value (imports, collision recovery).
	AdvanceTo(ctx context.Context, cfg Config, period time.Time, value int64) error
}
