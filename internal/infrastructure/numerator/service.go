// Package numerator implements core/numerator.Generator on PostgreSQL.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "produceledger/internal/core/numerator"
	"produceledger/internal/core/tenant"
)

// Querier is the single pgx method the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	nextSQL = `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val`

	advanceSQL = `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = GREATEST(sys_sequences.current_val, EXCLUDED.current_val)
		RETURNING current_val`
)

// Service issues numbers from the sys_sequences counter table.
// The UPSERT takes a row lock, so concurrent callers never receive the same value.
//
// Numbers are taken on the tenant pool, outside the business transaction,
// so a failed create leaves a gap in the series.
type Service struct {
	static Querier
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a service bound to one querier (tools, tests).
func New(q Querier) *Service {
	return &Service{static: q}
}

// NewFromContext creates a service that uses the tenant pool found in context.
func NewFromContext() *Service {
	return &Service{}
}

func (s *Service) querier(ctx context.Context) (Querier, error) {
	if s.static != nil {
		return s.static, nil
	}
	return tenant.GetPool(ctx)
}

// Next implements corenumerator.Generator.
func (s *Service) Next(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return "", err
	}
	var seq int64
	if err := q.QueryRow(ctx, nextSQL, cfg.Key(period)).Scan(&seq); err != nil {
		return "", fmt.Errorf("next number %s: %w", cfg.Key(period), err)
	}
	return cfg.Format(period, seq), nil
}

// AdvanceTo implements corenumerator.Generator.
func (s *Service) AdvanceTo(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	var current int64
	if err := q.QueryRow(ctx, advanceSQL, cfg.Key(period), value).Scan(&current); err != nil {
		return fmt.Errorf("advance %s to %d: %w", cfg.Key(period), value, err)
	}
	return nil
}
