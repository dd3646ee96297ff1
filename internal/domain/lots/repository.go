package lots

import (
	"context"

	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
)

// Repository persists allocations and answers the stock questions the ledger asks.
type Repository interface {
	Insert(ctx context.Context, a *Allocation) error
	Update(ctx context.Context, a *Allocation) error
	Delete(ctx context.Context, allocationID id.ID) error
	Get(ctx context.Context, allocationID id.ID) (*Allocation, error)
	ListBySalesInvoice(ctx context.Context, salesInvoiceID id.ID) ([]*Allocation, error)
	// ClearLineReferences unsets sales_lot_id on lines pointing at the allocation.
	ClearLineReferences(ctx context.Context, allocationID id.ID) error

	// LockSalesInvoice locks the sales invoice row and returns its header.
	LockSalesInvoice(ctx context.Context, salesInvoiceID id.ID) (*SalesHeader, error)
	// LockLot locks the purchase invoice row and returns its purchased quantity.
	LockLot(ctx context.Context, purchaseInvoiceID id.ID) (*Lot, error)
	// AllocatedQuantity sums allocations from the lot, leaving out excludeID when set.
	AllocatedQuantity(ctx context.Context, purchaseInvoiceID id.ID, excludeID *id.ID) (types.Weight, error)
	LotHasProduct(ctx context.Context, purchaseInvoiceID, productID id.ID) (bool, error)
}
