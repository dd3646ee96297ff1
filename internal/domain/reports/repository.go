package reports

import (
	"context"
)

// Repository reads the raw figures the dashboard is derived from.
type Repository interface {
	SalesRows(ctx context.Context, r Range) ([]SalesRow, error)
	PurchaseRows(ctx context.Context, r Range) ([]PurchaseRow, error)
	OverheadTotals(ctx context.Context, r Range) (OverheadTotals, error)
	// AvailableLots lists every lot with unallocated stock, regardless of date.
	AvailableLots(ctx context.Context) ([]LotStock, error)
}

// Cache stores computed dashboards. Keys carry a data version that writes bump.
type Cache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}
