// Package documents holds what purchase and sales invoices share: payment modes and attachments.
package documents

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/types"
)

// PaymentMode is how a payment was settled.
type PaymentMode string

const (
	PaymentAccount PaymentMode = "account_pay"
	PaymentUPI     PaymentMode = "upi"
	PaymentCash    PaymentMode = "cash"
)

// PaymentModes lists accepted modes in display order.
var PaymentModes = []PaymentMode{PaymentAccount, PaymentUPI, PaymentCash}

// ParsePaymentMode normalises user input; empty input defaults to cash.
func ParsePaymentMode(s string) (PaymentMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PaymentCash, nil
	}
	for _, m := range PaymentModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", apperror.NewValidation("invalid payment mode").
		WithDetail("field", "paymentMode").
		WithDetail("value", s)
}

// NormalizePaymentAmount rounds half-up to 2 dp and requires a positive result.
func NormalizePaymentAmount(amount types.Money) (types.Money, error) {
	amount = types.Round2(amount)
	if !amount.IsPositive() {
		return amount, apperror.NewValidation("payment amount must be greater than zero").
			WithDetail("field", "amount")
	}
	return amount, nil
}

// MaxAttachmentSize bounds uploaded payment proofs (before compression).
const MaxAttachmentSize = 5 << 20

// Attachment is an uploaded payment proof (receipt photo, bank slip).
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// AttachmentCodec compresses attachments for storage.
// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
type AttachmentCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewAttachmentCodec creates a zstd codec.
func NewAttachmentCodec() (*AttachmentCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(4*MaxAttachmentSize))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AttachmentCodec{encoder: enc, decoder: dec}, nil
}

// Compress validates and compresses an attachment body.
func (c *AttachmentCodec) Compress(a *Attachment) ([]byte, error) {
	if len(a.Data) == 0 {
		return nil, apperror.NewValidation("attachment is empty").WithDetail("field", "attachment")
	}
	if len(a.Data) > MaxAttachmentSize {
		return nil, apperror.NewValidation("attachment is too large").
			WithDetail("field", "attachment").
			WithDetail("max_bytes", MaxAttachmentSize)
	}
	return c.encoder.EncodeAll(a.Data, make([]byte, 0, len(a.Data)/2)), nil
}

// Decompress restores an attachment body.
func (c *AttachmentCodec) Decompress(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress attachment: %w", err)
	}
	return out, nil
}
