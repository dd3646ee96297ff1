package purchase

import (
	"context"

	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
)

// ListFilter narrows invoice listings.
type ListFilter struct {
	domain.ListFilter

	VendorID *id.ID
	// OnlyAvailable keeps lots that still have stock to allocate
	OnlyAvailable bool
}

// Repository defines purchase invoice persistence.
// Every method uses the transaction carried by ctx when there is one.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	// GetForUpdate locks the invoice row until the transaction ends.
	GetForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	GetByLotNumber(ctx context.Context, lotNumber string) (*Invoice, error)
	UpdateHeader(ctx context.Context, inv *Invoice) error
	SetNetTotal(ctx context.Context, invoiceID id.ID, netTotal types.Money) error
	Delete(ctx context.Context, invoiceID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error)

	InsertLine(ctx context.Context, line *Line) error
	// InsertLines stores a new invoice's lines in one round trip.
	InsertLines(ctx context.Context, lines []*Line) error
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, invoiceID, lineID id.ID) error
	GetLine(ctx context.Context, invoiceID, lineID id.ID) (*Line, error)
	GetLines(ctx context.Context, invoiceID id.ID) ([]*Line, error)
	// ResequenceLines renumbers serials 1..n by (created_at, id).
	ResequenceLines(ctx context.Context, invoiceID id.ID) error
	SumLineTotals(ctx context.Context, invoiceID id.ID) (types.Money, error)

	InsertPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, invoiceID, paymentID id.ID) error
	GetPayment(ctx context.Context, invoiceID, paymentID id.ID) (*Payment, error)
	GetPayments(ctx context.Context, invoiceID id.ID) ([]*Payment, error)
	// SumPayments totals the invoice payments, leaving out excludeID when set.
	SumPayments(ctx context.Context, invoiceID id.ID, excludeID *id.ID) (types.Money, error)

	Aggregates(ctx context.Context, invoiceIDs []id.ID) (map[id.ID]Aggregates, error)
	ProductQuantities(ctx context.Context, invoiceID id.ID) ([]ProductQuantity, error)
}
