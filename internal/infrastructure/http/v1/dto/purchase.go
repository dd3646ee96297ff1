package dto

import (
	"github.com/shopspring/decimal"

	"produceledger/internal/core/id"
	"produceledger/internal/domain/documents/purchase"
)

type PurchaseLineRequest struct {
	ProductID id.ID           `json:"productId" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Damage    decimal.Decimal `json:"damage"`
	Discount  decimal.Decimal `json:"discount"`
	Rotten    decimal.Decimal `json:"rotten"`
}

func (r PurchaseLineRequest) ToInput() purchase.LineInput {
	return purchase.LineInput{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Damage:    r.Damage,
		Discount:  r.Discount,
		Rotten:    r.Rotten,
	}
}

type CreatePurchaseRequest struct {
	VendorID          id.ID                 `json:"vendorId" binding:"required"`
	Date              Date                  `json:"date"`
	PaymentIssuerName string                `json:"paymentIssuerName" binding:"max=100"`
	Lines             []PurchaseLineRequest `json:"lines" binding:"max=500,dive"`
}

func (r CreatePurchaseRequest) ToInput() purchase.CreateInput {
	in := purchase.CreateInput{
		VendorID:          r.VendorID,
		Date:              r.Date.Time,
		PaymentIssuerName: r.PaymentIssuerName,
		Lines:             make([]purchase.LineInput, len(r.Lines)),
	}
	for i, l := range r.Lines {
		in.Lines[i] = l.ToInput()
	}
	return in
}

type PurchaseHeaderRequest struct {
	VendorID          id.ID  `json:"vendorId" binding:"required"`
	Date              Date   `json:"date"`
	PaymentIssuerName string `json:"paymentIssuerName" binding:"max=100"`
	Version           int    `json:"version" binding:"min=0"`
}

func (r PurchaseHeaderRequest) ToInput() purchase.HeaderInput {
	return purchase.HeaderInput{
		VendorID:          r.VendorID,
		Date:              r.Date.Time,
		PaymentIssuerName: r.PaymentIssuerName,
		Version:           r.Version,
	}
}

// PurchaseListQuery adds purchase filters to the common list query.
type PurchaseListQuery struct {
	ListQuery
	VendorID  string `form:"vendorId" binding:"omitempty,uuid"`
	Available bool   `form:"available"`
}

func (q PurchaseListQuery) ToFilter() purchase.ListFilter {
	f := purchase.ListFilter{ListFilter: q.ListQuery.ToFilter(), OnlyAvailable: q.Available}
	if vid, err := id.Parse(q.VendorID); err == nil {
		f.VendorID = &vid
	}
	return f
}

type AvailableQuantityResponse struct {
	InvoiceID         id.ID           `json:"invoiceId"`
	AvailableQuantity decimal.Decimal `json:"availableQuantity"`
}
