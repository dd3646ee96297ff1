// Package lots is the ledger of purchase lots drawn by sales invoices.
package lots

import (
	"time"

	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
)

// Allocation records that a sales invoice draws quantity from a purchase lot.
// A sales invoice holds at most one allocation per lot.
type Allocation struct {
	ID                id.ID        `db:"id" json:"id"`
	SalesInvoiceID    id.ID        `db:"sales_invoice_id" json:"salesInvoiceId"`
	PurchaseInvoiceID id.ID        `db:"purchase_invoice_id" json:"purchaseInvoiceId"`
	Quantity          types.Weight `db:"quantity" json:"quantity"`
	Version           int          `db:"version" json:"version"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`

	// LotNumber is joined from the purchase invoice on reads
	LotNumber string `db:"lot_number" json:"lotNumber"`
}

// Lot is a locked purchase lot with its stock figures.
type Lot struct {
	PurchaseInvoiceID id.ID        `db:"id"`
	LotNumber         string       `db:"lot_number"`
	Purchased         types.Weight `db:"purchased"`
}

// SalesHeader is the part of a sales invoice the ledger checks against.
type SalesHeader struct {
	ID            id.ID  `db:"id"`
	InvoiceNumber string `db:"invoice_number"`
	Status        string `db:"status"`
	// FirstProductID is the product of the lowest-serial line, nil without lines
	FirstProductID *id.ID `db:"first_product_id"`
}

// IsFinalized reports whether the invoice has passed Finalize.
func (h *SalesHeader) IsFinalized() bool {
	return h.Status == "finalized"
}
