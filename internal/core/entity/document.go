package entity

import (
	"context"
	"time"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
)

// Document is the base type for dated business records (invoices, expenses).
type Document struct {
	BaseEntity

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// CreatedBy is the staff user that recorded the document
	CreatedBy *id.ID `db:"created_by" json:"createdBy,omitempty"`
}

// NewDocument creates a Document dated today (UTC).
func NewDocument() Document {
	return Document{
		BaseEntity: NewBaseEntity(),
		Date:       time.Now().UTC().Truncate(24 * time.Hour),
	}
}

// Validate implements Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	return nil
}

// SetCreatedBy records the author from a string user ID; invalid IDs are ignored.
func (d *Document) SetCreatedBy(userID string) {
	if parsed, err := id.Parse(userID); err == nil {
		d.CreatedBy = &parsed
	}
}
