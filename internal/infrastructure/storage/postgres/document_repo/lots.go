package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain/lots"
	"produceledger/internal/infrastructure/storage/postgres"
)

const salesLotsTable = "sales_lots"

var allocationCols = []string{"id", "sales_invoice_id", "purchase_invoice_id", "quantity", "version", "created_at", "updated_at"}

// LotRepo implements lots.Repository over sales_lots.
type LotRepo struct{}

var _ lots.Repository = (*LotRepo)(nil)

func NewLotRepo() *LotRepo {
	return &LotRepo{}
}

func (r *LotRepo) selectAllocations() squirrel.SelectBuilder {
	return builder().
		Select(append(qualify("a", allocationCols), "pi.lot_number")...).
		From(salesLotsTable + " a").
		Join(purchaseInvoicesTable + " pi ON pi.id = a.purchase_invoice_id")
}

func (r *LotRepo) Insert(ctx context.Context, a *lots.Allocation) error {
	q := builder().Insert(salesLotsTable).SetMap(columns(a, allocationCols))
	if _, err := execOne(ctx, q); err != nil {
		return postgres.MapError("insert sales lot", "lot allocation", err)
	}
	return nil
}

// Update writes the quantity when the stored version still matches.
func (r *LotRepo) Update(ctx context.Context, a *lots.Allocation) error {
	q := builder().Update(salesLotsTable).
		Set("quantity", a.Quantity).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": a.ID, "version": a.Version})
	n, err := execOne(ctx, q)
	if err != nil {
		return postgres.MapError("update sales lot", "lot allocation", err)
	}
	if n == 0 {
		return apperror.NewConcurrentModification("lot allocation", a.ID)
	}
	return nil
}

func (r *LotRepo) Delete(ctx context.Context, allocationID id.ID) error {
	n, err := execOne(ctx, builder().Delete(salesLotsTable).Where(squirrel.Eq{"id": allocationID}))
	if err != nil {
		return postgres.MapError("delete sales lot", "lot allocation", err)
	}
	if n == 0 {
		return apperror.NewNotFound("lot allocation", allocationID.String())
	}
	return nil
}

func (r *LotRepo) Get(ctx context.Context, allocationID id.ID) (*lots.Allocation, error) {
	a := &lots.Allocation{}
	if err := getOne(ctx, a, r.selectAllocations().Where(squirrel.Eq{"a.id": allocationID})); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot allocation", allocationID.String())
		}
		return nil, fmt.Errorf("get sales lot: %w", err)
	}
	return a, nil
}

func (r *LotRepo) ListBySalesInvoice(ctx context.Context, salesInvoiceID id.ID) ([]*lots.Allocation, error) {
	var items []*lots.Allocation
	q := r.selectAllocations().Where(squirrel.Eq{"a.sales_invoice_id": salesInvoiceID}).OrderBy("a.created_at", "a.id")
	if err := selectAll(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("list sales lots: %w", err)
	}
	return items, nil
}

func (r *LotRepo) ClearLineReferences(ctx context.Context, allocationID id.ID) error {
	q := builder().Update(salesLinesTable).
		Set("sales_lot_id", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"sales_lot_id": allocationID})
	if _, err := execOne(ctx, q); err != nil {
		return fmt.Errorf("clear sales lot references: %w", err)
	}
	return nil
}

func (r *LotRepo) LockSalesInvoice(ctx context.Context, salesInvoiceID id.ID) (*lots.SalesHeader, error) {
	const query = `
		SELECT si.id, si.invoice_number, si.status,
		       (SELECT l.product_id
		          FROM sales_lines l
		         WHERE l.invoice_id = si.id
		         ORDER BY l.serial_number
		         LIMIT 1) AS first_product_id
		  FROM sales_invoices si
		 WHERE si.id = $1
		   FOR UPDATE OF si`
	h := &lots.SalesHeader{}
	if err := getRaw(ctx, h, query, salesInvoiceID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sales invoice", salesInvoiceID.String())
		}
		return nil, fmt.Errorf("lock sales invoice: %w", err)
	}
	return h, nil
}

func (r *LotRepo) LockLot(ctx context.Context, purchaseInvoiceID id.ID) (*lots.Lot, error) {
	const query = `
		SELECT pi.id, pi.lot_number,
		       COALESCE((SELECT SUM(l.quantity) FROM purchase_lines l WHERE l.invoice_id = pi.id), 0) AS purchased
		  FROM purchase_invoices pi
		 WHERE pi.id = $1
		   FOR UPDATE OF pi`
	lot := &lots.Lot{}
	if err := getRaw(ctx, lot, query, purchaseInvoiceID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", purchaseInvoiceID.String())
		}
		return nil, fmt.Errorf("lock lot: %w", err)
	}
	return lot, nil
}

func (r *LotRepo) AllocatedQuantity(ctx context.Context, purchaseInvoiceID id.ID, excludeID *id.ID) (types.Weight, error) {
	where := squirrel.And{squirrel.Eq{"purchase_invoice_id": purchaseInvoiceID}}
	if excludeID != nil {
		where = append(where, squirrel.NotEq{"id": *excludeID})
	}
	return sum(ctx, salesLotsTable, "quantity", where)
}

func (r *LotRepo) LotHasProduct(ctx context.Context, purchaseInvoiceID, productID id.ID) (bool, error) {
	var ok bool
	q := builder().Select().Column("EXISTS (SELECT 1 FROM purchase_lines WHERE invoice_id = ? AND product_id = ?)", purchaseInvoiceID, productID)
	if err := scalar(ctx, &ok, q); err != nil {
		return false, fmt.Errorf("lot product check: %w", err)
	}
	return ok, nil
}
