package dto

import (
	"github.com/shopspring/decimal"

	"produceledger/internal/domain/documents"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/domain/documents/sales"
)

// PaymentRequest is accepted as JSON or as multipart form with an optional
// "attachment" file part.
type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" form:"amount"`
	Date        string          `json:"date" form:"date" binding:"omitempty,datetime=2006-01-02"`
	PaymentMode string          `json:"paymentMode" form:"paymentMode" binding:"omitempty,payment_mode"`
}

func (r PaymentRequest) parts() (decimal.Decimal, Date, documents.PaymentMode) {
	var d Date
	if t, err := ParseDate(r.Date); err == nil {
		d.Time = t
	}
	return r.Amount, d, documents.PaymentMode(r.PaymentMode)
}

func (r PaymentRequest) ToPurchaseInput(a *documents.Attachment) purchase.PaymentInput {
	amount, date, mode := r.parts()
	return purchase.PaymentInput{Amount: amount, Date: date.Time, Mode: mode, Attachment: a}
}

func (r PaymentRequest) ToSalesInput(a *documents.Attachment) sales.PaymentInput {
	amount, date, mode := r.parts()
	return sales.PaymentInput{Amount: amount, Date: date.Time, Mode: mode, Attachment: a}
}
