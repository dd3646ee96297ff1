package entity

import (
	"context"
	"strings"

	"produceledger/internal/core/apperror"
)

// Catalog is the base for reference data: vendors, customers, products.
type Catalog struct {
	BaseEntity

	// Name is the display name, unique per tenant
	Name string `db:"name" json:"name"`
}

// NewCatalog creates a Catalog with generated ID.
func NewCatalog(name string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Name:       strings.TrimSpace(name),
	}
}

// Validate implements Validatable.
func (c *Catalog) Validate(ctx context.Context) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if len(c.Name) > 100 {
		return apperror.NewValidation("name must be at most 100 characters").WithDetail("field", "name")
	}
	return nil
}
