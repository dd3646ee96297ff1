// Package product provides the Product catalog (fruit and vegetable kinds).
package product

import (
	"context"

	"produceledger/internal/core/entity"
)

// Product is a kind of produce traded by weight.
type Product struct {
	entity.Catalog

	// IsWasteCategory marks spoiled-goods products; their purchase lines carry no handling charge.
	IsWasteCategory bool `db:"is_waste_category" json:"isWasteCategory"`
}

// NewProduct creates a Product with a generated ID.
func NewProduct(name string, waste bool) *Product {
	return &Product{Catalog: entity.NewCatalog(name), IsWasteCategory: waste}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	return p.Catalog.Validate(ctx)
}
