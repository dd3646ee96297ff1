// Package purchase provides the purchase invoice ("lot") document: goods bought from a vendor.
package purchase

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/entity"
	"produceledger/internal/core/id"
	"produceledger/internal/core/numerator"
	"produceledger/internal/core/types"
	"produceledger/internal/domain/documents"
)

// Number series. Invoice numbers restart every year, lot numbers never do.
var (
	InvoiceSeries = numerator.Config{Prefix: "MS", IncludeYear: true, Infix: "R", PadWidth: 2, ResetPeriod: numerator.ResetYearly}
	LotSeries     = numerator.Config{Prefix: "LOT-", PadWidth: 2, ResetPeriod: numerator.ResetNever}
)

// Invoice is a purchase invoice. Each one is also a lot that sales draw stock from.
type Invoice struct {
	entity.Document

	InvoiceNumber string `db:"invoice_number" json:"invoiceNumber"`
	LotNumber     string `db:"lot_number" json:"lotNumber"`
	VendorID      id.ID  `db:"vendor_id" json:"vendorId"`

	// NetTotal caches Σ line.total; rewritten in the same transaction as every line change
	NetTotal types.Money `db:"net_total" json:"netTotal"`

	PaymentIssuerName string `db:"payment_issuer_name" json:"paymentIssuerName,omitempty"`

	Lines    []*Line    `db:"-" json:"lines,omitempty"`
	Payments []*Payment `db:"-" json:"payments,omitempty"`
	Summary  *Summary   `db:"-" json:"summary,omitempty"`
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(inv.VendorID) {
		return apperror.NewValidation("vendor is required").WithDetail("field", "vendorId")
	}
	inv.PaymentIssuerName = strings.TrimSpace(inv.PaymentIssuerName)
	return nil
}

// Line is one purchased product on an invoice.
type Line struct {
	ID        id.ID `db:"id" json:"id"`
	InvoiceID id.ID `db:"invoice_id" json:"invoiceId"`

	// SerialNumber is 1-based and gap-free within the invoice, ordered by creation
	SerialNumber int   `db:"serial_number" json:"serialNumber"`
	ProductID    id.ID `db:"product_id" json:"productId"`

	Quantity types.Weight    `db:"quantity" json:"quantity"`
	Price    types.Money     `db:"price" json:"price"`
	Damage   types.Weight    `db:"damage" json:"damage"`
	Discount decimal.Decimal `db:"discount" json:"discount"`
	Rotten   types.Weight    `db:"rotten" json:"rotten"`

	LoadingUnloading types.Money `db:"loading_unloading" json:"loadingUnloading"`
	Total            types.Money `db:"total" json:"total"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Input returns the user-entered part of the line.
func (l *Line) Input() LineInput {
	return LineInput{
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Price:     l.Price,
		Damage:    l.Damage,
		Discount:  l.Discount,
		Rotten:    l.Rotten,
	}
}

// Payment is money paid to the vendor against an invoice.
type Payment struct {
	ID          id.ID                 `db:"id" json:"id"`
	InvoiceID   id.ID                 `db:"invoice_id" json:"invoiceId"`
	Amount      types.Money           `db:"amount" json:"amount"`
	Date        time.Time             `db:"date" json:"date"`
	PaymentMode documents.PaymentMode `db:"payment_mode" json:"paymentMode"`

	AttachmentName string `db:"attachment_name" json:"attachmentName,omitempty"`
	AttachmentType string `db:"attachment_type" json:"attachmentType,omitempty"`
	// AttachmentData is zstd-compressed
	AttachmentData []byte `db:"attachment_data" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// HasAttachment reports whether a proof file was uploaded.
func (p *Payment) HasAttachment() bool {
	return len(p.AttachmentData) > 0
}

// Summary holds the derived, never-persisted invoice figures.
type Summary struct {
	NetTotal                 types.Money  `json:"netTotal"`
	NetTotalAfterCashCutting types.Money  `json:"netTotalAfterCashCutting"`
	PaidAmount               types.Money  `json:"paidAmount"`
	DueAmount                types.Money  `json:"dueAmount"`
	PurchasedQuantity        types.Weight `json:"purchasedQuantity"`
	AllocatedQuantity        types.Weight `json:"allocatedQuantity"`
	AvailableQuantity        types.Weight `json:"availableQuantity"`
}

// Aggregates are the per-invoice sums the summary is derived from.
type Aggregates struct {
	PurchasedQuantity types.Weight `db:"purchased_quantity"`
	AllocatedQuantity types.Weight `db:"allocated_quantity"`
	PaidAmount        types.Money  `db:"paid_amount"`
}

// ProductQuantity is what remains of one product in a lot.
type ProductQuantity struct {
	ProductID   id.ID        `db:"product_id" json:"productId"`
	ProductName string       `db:"product_name" json:"productName"`
	Purchased   types.Weight `db:"purchased" json:"purchased"`
	Sold        types.Weight `db:"sold" json:"sold"`
	Available   types.Weight `db:"-" json:"available"`
}
