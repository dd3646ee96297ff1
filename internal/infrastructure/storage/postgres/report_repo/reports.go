// Package report_repo provides the PostgreSQL queries behind the dashboard.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"produceledger/internal/domain/reports"
	"produceledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	builder squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

func NewReportRepo() *ReportRepo {
	return &ReportRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// inRange adds the inclusive date bounds on col.
func inRange(q squirrel.SelectBuilder, col string, r reports.Range) squirrel.SelectBuilder {
	if r.From != nil {
		q = q.Where(squirrel.GtOrEq{col: *r.From})
	}
	if r.To != nil {
		q = q.Where(squirrel.LtOrEq{col: *r.To})
	}
	return q
}

func (r *ReportRepo) selectAll(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	return pgxscan.Select(ctx, querier, dst, sql, args...)
}

func (r *ReportRepo) SalesRows(ctx context.Context, rng reports.Range) ([]reports.SalesRow, error) {
	q := r.builder.Select(
		"si.id", "si.customer_id", "c.name AS customer_name",
		"COALESCE((SELECT SUM(l.total) FROM sales_lines l WHERE l.invoice_id = si.id), 0) AS net_total",
		"COALESCE((SELECT SUM(l.gross_weight) FROM sales_lines l WHERE l.invoice_id = si.id), 0) AS total_gross_weight",
		"COALESCE((SELECT SUM(p.amount) FROM sales_payments p WHERE p.invoice_id = si.id), 0) AS paid_amount",
		"si.no_of_crates", "si.cost_per_crate", "si.purchased_crates_quantity", "si.purchased_crates_unit_price",
	).From("sales_invoices si").Join("cat_customers c ON c.id = si.customer_id")

	var rows []reports.SalesRow
	if err := r.selectAll(ctx, &rows, inRange(q, "si.date", rng)); err != nil {
		return nil, fmt.Errorf("sales rows: %w", err)
	}
	return rows, nil
}

func (r *ReportRepo) PurchaseRows(ctx context.Context, rng reports.Range) ([]reports.PurchaseRow, error) {
	q := r.builder.Select(
		"pi.id", "pi.vendor_id", "v.name AS vendor_name", "pi.net_total",
		"COALESCE((SELECT SUM(p.amount) FROM purchase_payments p WHERE p.invoice_id = pi.id), 0) AS paid_amount",
	).From("purchase_invoices pi").Join("cat_vendors v ON v.id = pi.vendor_id")

	var rows []reports.PurchaseRow
	if err := r.selectAll(ctx, &rows, inRange(q, "pi.date", rng)); err != nil {
		return nil, fmt.Errorf("purchase rows: %w", err)
	}
	return rows, nil
}

// OverheadTotals sums the three registers. Packaging is rounded per invoice,
// matching how each packaging invoice shows its own total.
func (r *ReportRepo) OverheadTotals(ctx context.Context, rng reports.Range) (reports.OverheadTotals, error) {
	var out reports.OverheadTotals
	parts := []struct {
		dst  any
		expr string
		from string
	}{
		{&out.Expenses, "COALESCE(SUM(amount), 0)", "expenses"},
		{&out.Packaging, "COALESCE(SUM(ROUND(no_of_crates * cost_per_crate, 2)), 0)", "packaging_invoices"},
		{&out.Damages, "COALESCE(SUM(amount_loss), 0)", "damages"},
	}

	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return out, err
	}
	for _, p := range parts {
		sql, args, err := inRange(r.builder.Select(p.expr).From(p.from), "date", rng).ToSql()
		if err != nil {
			return out, fmt.Errorf("build query: %w", err)
		}
		if err := querier.QueryRow(ctx, sql, args...).Scan(p.dst); err != nil {
			return out, fmt.Errorf("sum %s: %w", p.from, err)
		}
	}
	return out, nil
}

func (r *ReportRepo) AvailableLots(ctx context.Context) ([]reports.LotStock, error) {
	const query = `
		SELECT id AS purchase_invoice_id, lot_number, vendor_name, purchased, allocated,
		       purchased - allocated AS available
		  FROM (SELECT pi.id, pi.lot_number, v.name AS vendor_name,
		               COALESCE((SELECT SUM(l.quantity) FROM purchase_lines l WHERE l.invoice_id = pi.id), 0) AS purchased,
		               COALESCE((SELECT SUM(a.quantity) FROM sales_lots a WHERE a.purchase_invoice_id = pi.id), 0) AS allocated,
		               pi.date
		          FROM purchase_invoices pi
		          JOIN cat_vendors v ON v.id = pi.vendor_id) s
		 WHERE purchased > allocated
		 ORDER BY date, lot_number`
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var lots []reports.LotStock
	if err := pgxscan.Select(ctx, querier, &lots, query); err != nil {
		return nil, fmt.Errorf("available lots: %w", err)
	}
	return lots, nil
}
