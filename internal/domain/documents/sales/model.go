// Package sales provides the sales invoice document: produce sold to a customer on credit.
package sales

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

// InvoiceSeries numbers sales invoices, restarting every year.
var InvoiceSeries = numerator.Config{Prefix: "SA", IncludeYear: true, Infix: "S", PadWidth: 2, ResetPeriod: numerator.ResetYearly}

// Status is the lifecycle state of a sales invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
)

// PaymentStatus summarises how much of an invoice has been collected.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "Paid"
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPartial PaymentStatus = "Partial"
)

// Invoice is a sales invoice.
type Invoice struct {
	entity.Document

	InvoiceNumber string `db:"invoice_number" json:"invoiceNumber"`
	CustomerID    id.ID  `db:"customer_id" json:"customerId"`

	VehicleNumber      string              `db:"vehicle_number" json:"vehicleNumber,omitempty"`
	GrossVehicleWeight decimal.NullDecimal `db:"gross_vehicle_weight" json:"grossVehicleWeight"`
	Reference          string              `db:"reference" json:"reference,omitempty"`

	// Outgoing crates charged to the customer
	NoOfCrates   decimal.Decimal `db:"no_of_crates" json:"noOfCrates"`
	CostPerCrate types.Money     `db:"cost_per_crate" json:"costPerCrate"`

	// Crates the customer bought outright
	PurchasedCratesQuantity  decimal.Decimal `db:"purchased_crates_quantity" json:"purchasedCratesQuantity"`
	PurchasedCratesUnitPrice types.Money     `db:"purchased_crates_unit_price" json:"purchasedCratesUnitPrice"`

	Status      Status     `db:"status" json:"status"`
	FinalizedAt *time.Time `db:"finalized_at" json:"finalizedAt,omitempty"`

	Lines    []*Line    `db:"-" json:"lines,omitempty"`
	Payments []*Payment `db:"-" json:"payments,omitempty"`
	Summary  *Summary   `db:"-" json:"summary,omitempty"`
}

// IsFinalized reports whether Finalize has run.
func (inv *Invoice) IsFinalized() bool {
	return inv.Status == StatusFinalized
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(inv.CustomerID) {
		return apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	inv.VehicleNumber = strings.TrimSpace(inv.VehicleNumber)
	if len(inv.VehicleNumber) > 50 {
		return apperror.NewValidation("vehicle number must be at most 50 characters").WithDetail("field", "vehicleNumber")
	}
	if len(inv.Reference) > 200 {
		return apperror.NewValidation("reference must be at most 200 characters").WithDetail("field", "reference")
	}
	nonNegative := map[string]decimal.Decimal{
		"noOfCrates":               inv.NoOfCrates,
		"costPerCrate":             inv.CostPerCrate,
		"purchasedCratesQuantity":  inv.PurchasedCratesQuantity,
		"purchasedCratesUnitPrice": inv.PurchasedCratesUnitPrice,
	}
	for field, v := range nonNegative {
		if v.IsNegative() {
			return apperror.NewValidation(field+" cannot be negative").WithDetail("field", field)
		}
	}
	if inv.GrossVehicleWeight.Valid && inv.GrossVehicleWeight.Decimal.IsNegative() {
		return apperror.NewValidation("gross vehicle weight cannot be negative").WithDetail("field", "grossVehicleWeight")
	}
	return nil
}

// Line is one product sold on an invoice.
type Line struct {
	ID        id.ID `db:"id" json:"id"`
	InvoiceID id.ID `db:"invoice_id" json:"invoiceId"`

	// SerialNumber is append-only; deleted lines leave gaps
	SerialNumber int   `db:"serial_number" json:"serialNumber"`
	ProductID    id.ID `db:"product_id" json:"productId"`

	GrossWeight types.Weight    `db:"gross_weight" json:"grossWeight"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
	Rotten      types.Weight    `db:"rotten" json:"rotten"`
	NetWeight   types.Weight    `db:"net_weight" json:"netWeight"`
	Price       types.Money     `db:"price" json:"price"`
	Total       types.Money     `db:"total" json:"total"`

	// SalesLotID optionally ties the line to a lot allocation of the same invoice
	SalesLotID *id.ID `db:"sales_lot_id" json:"salesLotId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Payment is money collected from the customer.
type Payment struct {
	ID          id.ID                 `db:"id" json:"id"`
	InvoiceID   id.ID                 `db:"invoice_id" json:"invoiceId"`
	Amount      types.Money           `db:"amount" json:"amount"`
	Date        time.Time             `db:"date" json:"date"`
	PaymentMode documents.PaymentMode `db:"payment_mode" json:"paymentMode"`

	AttachmentName string `db:"attachment_name" json:"attachmentName,omitempty"`
	AttachmentType string `db:"attachment_type" json:"attachmentType,omitempty"`
	AttachmentData []byte `db:"attachment_data" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Summary holds the derived invoice figures.
type Summary struct {
	NetTotal                types.Money   `json:"netTotal"`
	TotalGrossWeight        types.Weight  `json:"totalGrossWeight"`
	Commission              types.Money   `json:"commission"`
	NetTotalAfterCommission types.Money   `json:"netTotalAfterCommission"`
	PackagingTotal          types.Money   `json:"packagingTotal"`
	PurchasedCratesTotal    types.Money   `json:"purchasedCratesTotal"`
	NetTotalAfterPackaging  types.Money   `json:"netTotalAfterPackaging"`
	PaidAmount              types.Money   `json:"paidAmount"`
	DueAmount               types.Money   `json:"dueAmount"`
	PaymentStatus           PaymentStatus `json:"paymentStatus"`
}

// Aggregates are the per-invoice line and payment sums.
type Aggregates struct {
	NetTotal         types.Money  `db:"net_total"`
	TotalGrossWeight types.Weight `db:"total_gross_weight"`
	PaidAmount       types.Money  `db:"paid_amount"`
}

// HasAttachment reports whether a proof file was uploaded.
func (p *Payment) HasAttachment() bool {
	return len(p.AttachmentData) > 0
}
