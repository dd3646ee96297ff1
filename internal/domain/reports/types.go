// Package reports builds the profit and loss dashboard.
package reports

import (
	"time"

	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
)

// Range bounds document dates, inclusive. Nil ends are open.
type Range struct {
	From *time.Time
	To   *time.Time
}

func (r Range) key() string {
	format := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(time.DateOnly)
	}
	return format(r.From) + ".." + format(r.To)
}

// Dashboard is the profit and loss overview.
type Dashboard struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	TotalSales     types.Money `json:"totalSales"`
	TotalPurchases types.Money `json:"totalPurchases"`
	TotalExpenses  types.Money `json:"totalExpenses"`
	TotalPackaging types.Money `json:"totalPackaging"`
	TotalDamages   types.Money `json:"totalDamages"`
	// Profit is sales minus purchases and every overhead; negative is a loss
	Profit types.Money `json:"profit"`

	TopCustomers  []PartyDue `json:"topCustomers"`
	TopVendors    []PartyDue `json:"topVendors"`
	AvailableLots []LotStock `json:"availableLots"`
}

// PartyDue is the outstanding balance of one customer or vendor.
type PartyDue struct {
	ID   id.ID       `json:"id"`
	Name string      `json:"name"`
	Due  types.Money `json:"due"`
}

// LotStock is a lot that still has stock to allocate.
type LotStock struct {
	PurchaseInvoiceID id.ID        `db:"purchase_invoice_id" json:"purchaseInvoiceId"`
	LotNumber         string       `db:"lot_number" json:"lotNumber"`
	VendorName        string       `db:"vendor_name" json:"vendorName"`
	Purchased         types.Weight `db:"purchased" json:"purchased"`
	Allocated         types.Weight `db:"allocated" json:"allocated"`
	Available         types.Weight `db:"available" json:"available"`
}

// SalesRow carries what the sales summary needs for one invoice.
type SalesRow struct {
	InvoiceID    id.ID  `db:"id"`
	CustomerID   id.ID  `db:"customer_id"`
	CustomerName string `db:"customer_name"`

	NetTotal         types.Money  `db:"net_total"`
	TotalGrossWeight types.Weight `db:"total_gross_weight"`
	PaidAmount       types.Money  `db:"paid_amount"`

	NoOfCrates               types.Money `db:"no_of_crates"`
	CostPerCrate             types.Money `db:"cost_per_crate"`
	PurchasedCratesQuantity  types.Money `db:"purchased_crates_quantity"`
	PurchasedCratesUnitPrice types.Money `db:"purchased_crates_unit_price"`
}

// PurchaseRow carries what the purchase summary needs for one invoice.
type PurchaseRow struct {
	InvoiceID  id.ID       `db:"id"`
	VendorID   id.ID       `db:"vendor_id"`
	VendorName string      `db:"vendor_name"`
	NetTotal   types.Money `db:"net_total"`
	PaidAmount types.Money `db:"paid_amount"`
}

// OverheadTotals sums the overhead registers.
type OverheadTotals struct {
	Expenses  types.Money `db:"expenses"`
	Packaging types.Money `db:"packaging"`
	Damages   types.Money `db:"damages"`
}
