package sales

import (
	"context"
	"time"

	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
)

// ListFilter narrows invoice listings.
type ListFilter struct {
	domain.ListFilter

	CustomerID *id.ID
	Status     *Status
}

// Repository defines sales invoice persistence.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	// GetForUpdate locks the invoice row until the transaction ends.
	GetForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	UpdateHeader(ctx context.Context, inv *Invoice) error
	SetStatus(ctx context.Context, invoiceID id.ID, status Status, at time.Time) error
	Delete(ctx context.Context, invoiceID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error)
	ListByCustomer(ctx context.Context, customerID id.ID) ([]*Invoice, error)

	InsertLine(ctx context.Context, line *Line) error
	// InsertLines stores a new invoice's lines in one round trip.
	InsertLines(ctx context.Context, lines []*Line) error
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, invoiceID, lineID id.ID) error
	GetLine(ctx context.Context, invoiceID, lineID id.ID) (*Line, error)
	GetLines(ctx context.Context, invoiceID id.ID) ([]*Line, error)
	// LastSerial returns the highest serial on the invoice, 0 when it has no lines.
	LastSerial(ctx context.Context, invoiceID id.ID) (int, error)

	InsertPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, invoiceID, paymentID id.ID) error
	GetPayment(ctx context.Context, invoiceID, paymentID id.ID) (*Payment, error)
	GetPayments(ctx context.Context, invoiceID id.ID) ([]*Payment, error)
	SumPayments(ctx context.Context, invoiceID id.ID, excludeID *id.ID) (types.Money, error)

	Aggregates(ctx context.Context, invoiceIDs []id.ID) (map[id.ID]Aggregates, error)
}
