package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/infrastructure/storage/postgres"
)

const (
	purchaseInvoicesTable = "purchase_invoices"
	purchaseLinesTable    = "purchase_lines"
	purchasePaymentsTable = "purchase_payments"
)

// PurchaseRepo implements purchase.Repository.
type PurchaseRepo struct {
	*BaseDocumentRepo[*purchase.Invoice]

	lines    *childTable[*purchase.Line]
	payments *childTable[*purchase.Payment]
}

var _ purchase.Repository = (*PurchaseRepo)(nil)

func NewPurchaseRepo() *PurchaseRepo {
	return &PurchaseRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			purchaseInvoicesTable, "purchase invoice",
			postgres.ExtractDBColumns[purchase.Invoice](),
			[]string{"vendor_id", "date", "payment_issuer_name"},
			[]string{"invoice_number", "lot_number"},
			func() *purchase.Invoice { return &purchase.Invoice{} },
		),
		lines: &childTable[*purchase.Line]{
			tableName:    purchaseLinesTable,
			entityName:   "purchase line",
			selectCols:   postgres.ExtractDBColumns[purchase.Line](),
			hasUpdatedAt: true,
			order:        "serial_number",
			newFn:        func() *purchase.Line { return &purchase.Line{} },
		},
		payments: &childTable[*purchase.Payment]{
			tableName:  purchasePaymentsTable,
			entityName: "purchase payment",
			selectCols: postgres.ExtractDBColumns[purchase.Payment](),
			order:      "date, created_at",
			newFn:      func() *purchase.Payment { return &purchase.Payment{} },
		},
	}
}

// GetByLotNumber finds the invoice carrying a lot number.
func (r *PurchaseRepo) GetByLotNumber(ctx context.Context, lotNumber string) (*purchase.Invoice, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"lot_number": lotNumber}), lotNumber)
}

// SetNetTotal rewrites the cached Σ line totals.
func (r *PurchaseRepo) SetNetTotal(ctx context.Context, invoiceID id.ID, netTotal types.Money) error {
	q := builder().Update(purchaseInvoicesTable).
		Set("net_total", netTotal).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": invoiceID})
	n, err := execOne(ctx, q)
	if err != nil {
		return postgres.MapError("set net total", "purchase invoice", err)
	}
	if n == 0 {
		return apperror.NewNotFound("purchase invoice", invoiceID.String())
	}
	return nil
}

// List returns a page of invoices. OnlyAvailable keeps lots with unallocated stock.
func (r *PurchaseRepo) List(ctx context.Context, filter purchase.ListFilter) (domain.ListResult[*purchase.Invoice], error) {
	q := r.baseSelect()
	if filter.VendorID != nil {
		q = q.Where(squirrel.Eq{"vendor_id": *filter.VendorID})
	}
	if filter.OnlyAvailable {
		q = q.Where(`COALESCE((SELECT SUM(quantity) FROM purchase_lines l WHERE l.invoice_id = purchase_invoices.id), 0)
			> COALESCE((SELECT SUM(quantity) FROM sales_lots a WHERE a.purchase_invoice_id = purchase_invoices.id), 0)`)
	}
	return r.list(ctx, q, filter.ListFilter)
}

func (r *PurchaseRepo) InsertLine(ctx context.Context, line *purchase.Line) error {
	return r.lines.insert(ctx, line)
}

func (r *PurchaseRepo) InsertLines(ctx context.Context, lines []*purchase.Line) error {
	return r.lines.insertMany(ctx, lines)
}

func (r *PurchaseRepo) UpdateLine(ctx context.Context, line *purchase.Line) error {
	return r.lines.update(ctx, line)
}

func (r *PurchaseRepo) DeleteLine(ctx context.Context, invoiceID, lineID id.ID) error {
	return r.lines.delete(ctx, invoiceID, lineID)
}

func (r *PurchaseRepo) GetLine(ctx context.Context, invoiceID, lineID id.ID) (*purchase.Line, error) {
	return r.lines.get(ctx, invoiceID, lineID)
}

func (r *PurchaseRepo) GetLines(ctx context.Context, invoiceID id.ID) ([]*purchase.Line, error) {
	return r.lines.list(ctx, invoiceID)
}

// ResequenceLines renumbers serials 1..n by creation order in one statement.
// The serial unique constraint is deferred, so intermediate duplicates are fine.
func (r *PurchaseRepo) ResequenceLines(ctx context.Context, invoiceID id.ID) error {
	const query = `
		UPDATE purchase_lines l
		   SET serial_number = s.rn
		  FROM (SELECT id, row_number() OVER (ORDER BY created_at, id) AS rn
		          FROM purchase_lines
		         WHERE invoice_id = $1) s
		 WHERE l.id = s.id AND l.serial_number <> s.rn`
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	if _, err := querier.Exec(ctx, query, invoiceID); err != nil {
		return fmt.Errorf("resequence purchase lines: %w", err)
	}
	return nil
}

func (r *PurchaseRepo) SumLineTotals(ctx context.Context, invoiceID id.ID) (types.Money, error) {
	return r.lines.sum(ctx, "total", invoiceID, nil)
}

func (r *PurchaseRepo) InsertPayment(ctx context.Context, p *purchase.Payment) error {
	return r.payments.insert(ctx, p)
}

func (r *PurchaseRepo) UpdatePayment(ctx context.Context, p *purchase.Payment) error {
	return r.payments.update(ctx, p)
}

func (r *PurchaseRepo) DeletePayment(ctx context.Context, invoiceID, paymentID id.ID) error {
	return r.payments.delete(ctx, invoiceID, paymentID)
}

func (r *PurchaseRepo) GetPayment(ctx context.Context, invoiceID, paymentID id.ID) (*purchase.Payment, error) {
	return r.payments.get(ctx, invoiceID, paymentID)
}

func (r *PurchaseRepo) GetPayments(ctx context.Context, invoiceID id.ID) ([]*purchase.Payment, error) {
	return r.payments.list(ctx, invoiceID)
}

func (r *PurchaseRepo) SumPayments(ctx context.Context, invoiceID id.ID, excludeID *id.ID) (types.Money, error) {
	return r.payments.sum(ctx, "amount", invoiceID, excludeID)
}

type purchaseAggregateRow struct {
	ID id.ID `db:"id"`
	purchase.Aggregates
}

// Aggregates loads purchased, allocated and paid sums for many invoices in one query.
func (r *PurchaseRepo) Aggregates(ctx context.Context, invoiceIDs []id.ID) (map[id.ID]purchase.Aggregates, error) {
	out := make(map[id.ID]purchase.Aggregates, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	q := builder().Select(
		"pi.id",
		"COALESCE((SELECT SUM(l.quantity) FROM purchase_lines l WHERE l.invoice_id = pi.id), 0) AS purchased_quantity",
		"COALESCE((SELECT SUM(a.quantity) FROM sales_lots a WHERE a.purchase_invoice_id = pi.id), 0) AS allocated_quantity",
		"COALESCE((SELECT SUM(p.amount) FROM purchase_payments p WHERE p.invoice_id = pi.id), 0) AS paid_amount",
	).From(purchaseInvoicesTable + " pi").Where(squirrel.Eq{"pi.id": invoiceIDs})

	var rows []purchaseAggregateRow
	if err := selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("purchase aggregates: %w", err)
	}
	for _, row := range rows {
		out[row.ID] = row.Aggregates
	}
	return out, nil
}

// productQuantitiesQuery sums purchased weight per product and the gross weight
// of sales lines drawn from this lot. Lines without a lot allocation never count.
const productQuantitiesQuery = `
	SELECT pl.product_id,
	       p.name AS product_name,
	       SUM(pl.quantity) AS purchased,
	       COALESCE((SELECT SUM(sl.gross_weight)
	                   FROM sales_lines sl
	                   JOIN sales_lots a ON a.id = sl.sales_lot_id
	                  WHERE a.purchase_invoice_id = pl.invoice_id
	                    AND sl.product_id = pl.product_id), 0) AS sold
	  FROM purchase_lines pl
	  JOIN cat_products p ON p.id = pl.product_id
	 WHERE pl.invoice_id = $1
	 GROUP BY pl.invoice_id, pl.product_id, p.name
	 ORDER BY p.name`

func (r *PurchaseRepo) ProductQuantities(ctx context.Context, invoiceID id.ID) ([]purchase.ProductQuantity, error) {
	var items []purchase.ProductQuantity
	if err := selectRaw(ctx, &items, productQuantitiesQuery, invoiceID); err != nil {
		return nil, fmt.Errorf("product quantities: %w", err)
	}
	return items, nil
}
