package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
	"produceledger/internal/domain/documents/sales"
	"produceledger/internal/infrastructure/storage/postgres"
)

const (
	salesInvoicesTable = "sales_invoices"
	salesLinesTable    = "sales_lines"
	salesPaymentsTable = "sales_payments"
)

// SalesRepo implements sales.Repository.
type SalesRepo struct {
	*BaseDocumentRepo[*sales.Invoice]

	lines    *childTable[*sales.Line]
	payments *childTable[*sales.Payment]
}

var _ sales.Repository = (*SalesRepo)(nil)

func NewSalesRepo() *SalesRepo {
	return &SalesRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			salesInvoicesTable, "sales invoice",
			postgres.ExtractDBColumns[sales.Invoice](),
			[]string{
				"date", "customer_id", "vehicle_number", "gross_vehicle_weight", "reference",
				"no_of_crates", "cost_per_crate", "purchased_crates_quantity", "purchased_crates_unit_price",
			},
			[]string{"invoice_number", "vehicle_number", "reference"},
			func() *sales.Invoice { return &sales.Invoice{} },
		),
		lines: &childTable[*sales.Line]{
			tableName:    salesLinesTable,
			entityName:   "sales line",
			selectCols:   postgres.ExtractDBColumns[sales.Line](),
			hasUpdatedAt: true,
			order:        "serial_number",
			newFn:        func() *sales.Line { return &sales.Line{} },
		},
		payments: &childTable[*sales.Payment]{
			tableName:  salesPaymentsTable,
			entityName: "sales payment",
			selectCols: postgres.ExtractDBColumns[sales.Payment](),
			order:      "date, created_at",
			newFn:      func() *sales.Payment { return &sales.Payment{} },
		},
	}
}

// SetStatus moves the invoice through its lifecycle.
func (r *SalesRepo) SetStatus(ctx context.Context, invoiceID id.ID, status sales.Status, at time.Time) error {
	q := builder().Update(salesInvoicesTable).
		Set("status", status).
		Set("finalized_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": invoiceID})
	n, err := execOne(ctx, q)
	if err != nil {
		return postgres.MapError("set status", "sales invoice", err)
	}
	if n == 0 {
		return apperror.NewNotFound("sales invoice", invoiceID.String())
	}
	return nil
}

func (r *SalesRepo) List(ctx context.Context, filter sales.ListFilter) (domain.ListResult[*sales.Invoice], error) {
	q := r.baseSelect()
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	return r.list(ctx, q, filter.ListFilter)
}

// ListByCustomer returns every invoice of a customer, oldest first.
func (r *SalesRepo) ListByCustomer(ctx context.Context, customerID id.ID) ([]*sales.Invoice, error) {
	var items []*sales.Invoice
	q := r.baseSelect().Where(squirrel.Eq{"customer_id": customerID}).OrderBy("date", "created_at")
	if err := selectAll(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("list sales invoices by customer: %w", err)
	}
	return items, nil
}

func (r *SalesRepo) InsertLine(ctx context.Context, line *sales.Line) error {
	return r.lines.insert(ctx, line)
}

func (r *SalesRepo) InsertLines(ctx context.Context, lines []*sales.Line) error {
	return r.lines.insertMany(ctx, lines)
}

func (r *SalesRepo) UpdateLine(ctx context.Context, line *sales.Line) error {
	return r.lines.update(ctx, line)
}

func (r *SalesRepo) DeleteLine(ctx context.Context, invoiceID, lineID id.ID) error {
	return r.lines.delete(ctx, invoiceID, lineID)
}

func (r *SalesRepo) GetLine(ctx context.Context, invoiceID, lineID id.ID) (*sales.Line, error) {
	return r.lines.get(ctx, invoiceID, lineID)
}

func (r *SalesRepo) GetLines(ctx context.Context, invoiceID id.ID) ([]*sales.Line, error) {
	return r.lines.list(ctx, invoiceID)
}

func (r *SalesRepo) LastSerial(ctx context.Context, invoiceID id.ID) (int, error) {
	var last int
	q := builder().Select("COALESCE(MAX(serial_number), 0)").From(salesLinesTable).
		Where(squirrel.Eq{"invoice_id": invoiceID})
	if err := scalar(ctx, &last, q); err != nil {
		return 0, fmt.Errorf("last sales serial: %w", err)
	}
	return last, nil
}

func (r *SalesRepo) InsertPayment(ctx context.Context, p *sales.Payment) error {
	return r.payments.insert(ctx, p)
}

func (r *SalesRepo) UpdatePayment(ctx context.Context, p *sales.Payment) error {
	return r.payments.update(ctx, p)
}

func (r *SalesRepo) DeletePayment(ctx context.Context, invoiceID, paymentID id.ID) error {
	return r.payments.delete(ctx, invoiceID, paymentID)
}

func (r *SalesRepo) GetPayment(ctx context.Context, invoiceID, paymentID id.ID) (*sales.Payment, error) {
	return r.payments.get(ctx, invoiceID, paymentID)
}

func (r *SalesRepo) GetPayments(ctx context.Context, invoiceID id.ID) ([]*sales.Payment, error) {
	return r.payments.list(ctx, invoiceID)
}

func (r *SalesRepo) SumPayments(ctx context.Context, invoiceID id.ID, excludeID *id.ID) (types.Money, error) {
	return r.payments.sum(ctx, "amount", invoiceID, excludeID)
}

type salesAggregateRow struct {
	ID id.ID `db:"id"`
	sales.Aggregates
}

// Aggregates loads line and payment sums for many invoices in one query.
func (r *SalesRepo) Aggregates(ctx context.Context, invoiceIDs []id.ID) (map[id.ID]sales.Aggregates, error) {
	out := make(map[id.ID]sales.Aggregates, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	q := builder().Select(
		"si.id",
		"COALESCE((SELECT SUM(l.total) FROM sales_lines l WHERE l.invoice_id = si.id), 0) AS net_total",
		"COALESCE((SELECT SUM(l.gross_weight) FROM sales_lines l WHERE l.invoice_id = si.id), 0) AS total_gross_weight",
		"COALESCE((SELECT SUM(p.amount) FROM sales_payments p WHERE p.invoice_id = si.id), 0) AS paid_amount",
	).From(salesInvoicesTable + " si").Where(squirrel.Eq{"si.id": invoiceIDs})

	var rows []salesAggregateRow
	if err := selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("sales aggregates: %w", err)
	}
	for _, row := range rows {
		out[row.ID] = row.Aggregates
	}
	return out, nil
}
