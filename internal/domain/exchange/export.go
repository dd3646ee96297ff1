package exchange

import (
	"context"
	"encoding/csv"
	"io"

	"produceledger/internal/core/id"
	"produceledger/internal/core/tx"
	"produceledger/internal/domain"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/domain/documents/sales"
)

// exportPageSize is the listing page used while streaming an export.
const exportPageSize = 500

var (
	purchaseExportHeader = []string{
		"invoice_number", "lot_number", "date", "vendor", "payment_issuer_name",
		"net_total", "net_total_after_cash_cutting", "paid_amount", "due_amount",
		"purchased_quantity", "available_quantity",
	}
	salesExportHeader = []string{
		"invoice_number", "date", "customer", "status", "vehicle_number", "reference",
		"total_gross_weight", "net_total", "commission", "net_total_after_commission",
		"packaging_total", "purchased_crates_total", "net_total_after_packaging",
		"paid_amount", "due_amount", "payment_status",
	}
)

// Exporter writes invoice listings with their derived figures as CSV.
type Exporter struct {
	purchases PurchaseLister
	sales     SalesLister
	vendors   VendorLookup
	customers CustomerLookup
	txManager tx.Manager
}

// NewExporter creates an exporter. txManager may be nil; it is then taken from the tenant context.
func NewExporter(purchases PurchaseLister, sales SalesLister, vendors VendorLookup, customers CustomerLookup, txManager tx.Manager) *Exporter {
	return &Exporter{purchases: purchases, sales: sales, vendors: vendors, customers: customers, txManager: txManager}
}

// snapshot runs fn in one transaction so every page sees the same data.
func (e *Exporter) snapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	txm, err := domain.TxManagerOrContext(ctx, e.txManager)
	if err != nil {
		return err
	}
	if ro, ok := txm.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return txm.RunInTransaction(ctx, fn)
}

func listFilter(f ExportFilter, offset int) domain.ListFilter {
	return domain.ListFilter{
		DateFrom: f.From,
		DateTo:   f.To,
		OrderBy:  "date",
		Limit:    exportPageSize,
		Offset:   offset,
	}
}

// names memoises counterparty names for one export.
type names struct {
	cache  map[id.ID]string
	lookup func(ctx context.Context, id id.ID) (string, error)
}

func (n *names) get(ctx context.Context, key id.ID) (string, error) {
	if v, ok := n.cache[key]; ok {
		return v, nil
	}
	v, err := n.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	n.cache[key] = v
	return v, nil
}

// ExportPurchases writes every purchase invoice in the range, oldest first.
func (e *Exporter) ExportPurchases(ctx context.Context, w io.Writer, f ExportFilter) error {
	vendorNames := &names{cache: map[id.ID]string{}, lookup: func(ctx context.Context, key id.ID) (string, error) {
		v, err := e.vendors.GetByID(ctx, key)
		if err != nil {
			return "", err
		}
		return v.Name, nil
	}}

	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(purchaseExportHeader); err != nil {
		return err
	}
	err := e.snapshot(ctx, func(ctx context.Context) error {
		for offset := 0; ; offset += exportPageSize {
			page, err := e.purchases.List(ctx, purchase.ListFilter{ListFilter: listFilter(f, offset)})
			if err != nil {
				return err
			}
			for _, inv := range page.Items {
				vendorName, err := vendorNames.get(ctx, inv.VendorID)
				if err != nil {
					return err
				}
				if err := writer.Write(purchaseRecord(inv, vendorName)); err != nil {
					return err
				}
			}
			if len(page.Items) < exportPageSize {
				return nil
			}
		}
	})
	if err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func purchaseRecord(inv *purchase.Invoice, vendorName string) []string {
	s := inv.Summary
	if s == nil {
		s = &purchase.Summary{NetTotal: inv.NetTotal}
	}
	return []string{
		inv.InvoiceNumber,
		inv.LotNumber,
		inv.Date.Format(DateLayout),
		vendorName,
		inv.PaymentIssuerName,
		s.NetTotal.StringFixed(2),
		s.NetTotalAfterCashCutting.StringFixed(2),
		s.PaidAmount.StringFixed(2),
		s.DueAmount.StringFixed(2),
		s.PurchasedQuantity.StringFixed(2),
		s.AvailableQuantity.StringFixed(2),
	}
}

// ExportSales writes every sales invoice in the range, oldest first.
func (e *Exporter) ExportSales(ctx context.Context, w io.Writer, f ExportFilter) error {
	customerNames := &names{cache: map[id.ID]string{}, lookup: func(ctx context.Context, key id.ID) (string, error) {
		c, err := e.customers.GetByID(ctx, key)
		if err != nil {
			return "", err
		}
		return c.Name, nil
	}}

	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(salesExportHeader); err != nil {
		return err
	}
	err := e.snapshot(ctx, func(ctx context.Context) error {
		for offset := 0; ; offset += exportPageSize {
			page, err := e.sales.List(ctx, sales.ListFilter{ListFilter: listFilter(f, offset)})
			if err != nil {
				return err
			}
			for _, inv := range page.Items {
				customerName, err := customerNames.get(ctx, inv.CustomerID)
				if err != nil {
					return err
				}
				if err := writer.Write(salesRecord(inv, customerName)); err != nil {
					return err
				}
			}
			if len(page.Items) < exportPageSize {
				return nil
			}
		}
	})
	if err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func salesRecord(inv *sales.Invoice, customerName string) []string {
	s := inv.Summary
	if s == nil {
		s = &sales.Summary{}
	}
	return []string{
		inv.InvoiceNumber,
		inv.Date.Format(DateLayout),
		customerName,
		string(inv.Status),
		inv.VehicleNumber,
		inv.Reference,
		s.TotalGrossWeight.StringFixed(2),
		s.NetTotal.StringFixed(2),
		s.Commission.StringFixed(2),
		s.NetTotalAfterCommission.StringFixed(2),
		s.PackagingTotal.StringFixed(2),
		s.PurchasedCratesTotal.StringFixed(2),
		s.NetTotalAfterPackaging.StringFixed(2),
		s.PaidAmount.StringFixed(2),
		s.DueAmount.StringFixed(2),
		string(s.PaymentStatus),
	}
}
