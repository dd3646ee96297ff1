package product

import (
	"context"

	"produceledger/internal/core/id"
	"produceledger/internal/domain"
)

// Repository defines Product persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// GetMany loads products by ID; unknown IDs are absent from the map.
	GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*Product, error)
}
