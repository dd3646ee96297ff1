// Package tx declares the transaction boundary domain services run their
// invoice, lot and payment writes in. The Postgres implementation lives in
// infrastructure/storage/postgres and is bound per tenant.
package tx

import "context"

// Manager runs fn atomically. fn sees a ctx carrying the open transaction;
// a nested call joins it instead of starting another. An error from fn
// rolls everything back.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager can also open a read-only transaction, used where several
// queries must observe one snapshot (paged exports).
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
