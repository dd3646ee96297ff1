// Package exchange moves invoices in and out of the system as CSV.
package exchange

import (
	"context"
	"time"

	"produceledger/internal/core/id"
	"produceledger/internal/domain"
	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/catalogs/vendor"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/domain/documents/sales"
)

// DateLayout is the only accepted date format in CSV files.
const DateLayout = "2006-01-02"

// Purchase import columns. Header matching ignores case and surrounding spaces.
const (
	ColInvoiceNumber = "invoice_number"
	ColLotNumber     = "lot_number"
	ColDate          = "date"
	ColVendor        = "vendor"
	ColIssuer        = "payment_issuer_name"
	ColProduct       = "product"
	ColQuantity      = "quantity"
	ColPrice         = "price"
	ColDamage        = "damage"
	ColDiscount      = "discount"
	ColRotten        = "rotten"
	ColPaidAmount    = "paid_amount"
	ColPaymentMode   = "payment_mode"
)

// RequiredColumns must be present in every purchase import header.
var RequiredColumns = []string{ColDate, ColVendor}

// RowError ties an import failure to its CSV row (1-based, header excluded).
type RowError struct {
	Row           int    `json:"row"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	Message       string `json:"message"`
}

// ImportResult summarises a purchase import. Counts are per invoice.
type ImportResult struct {
	Rows         int        `json:"rows"`
	SuccessCount int        `json:"successCount"`
	ErrorCount   int        `json:"errorCount"`
	Imported     []string   `json:"imported"`
	Errors       []RowError `json:"errors,omitempty"`
}

// PurchaseWriter is the purchase service surface the importer drives.
type PurchaseWriter interface {
	Create(ctx context.Context, in purchase.CreateInput) (*purchase.Invoice, error)
	RecordPayment(ctx context.Context, invoiceID id.ID, in purchase.PaymentInput) (*purchase.Payment, error)
}

// VendorResolver finds or creates vendors by name.
type VendorResolver interface {
	GetOrCreate(ctx context.Context, name string) (*vendor.Vendor, error)
}

// ProductResolver finds products by name.
type ProductResolver interface {
	ResolveName(ctx context.Context, name string) (*product.Product, error)
}

// PurchaseLister pages purchase invoices with their summaries.
type PurchaseLister interface {
	List(ctx context.Context, filter purchase.ListFilter) (domain.ListResult[*purchase.Invoice], error)
}

// SalesLister pages sales invoices with their summaries.
type SalesLister interface {
	List(ctx context.Context, filter sales.ListFilter) (domain.ListResult[*sales.Invoice], error)
}

// VendorLookup resolves vendor names for export.
type VendorLookup interface {
	GetByID(ctx context.Context, vendorID id.ID) (*vendor.Vendor, error)
}

// CustomerLookup resolves customer names for export.
type CustomerLookup interface {
	GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error)
}

// ExportFilter bounds an export by invoice date.
type ExportFilter struct {
	From *time.Time
	To   *time.Time
}
