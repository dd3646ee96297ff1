package customer

import (
	"context"

	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
)

// Repository defines Customer persistence.
type Repository interface {
	domain.CatalogRepository[*Customer]
}

// DueSource reports the outstanding sales balance of a customer.
// Implemented by the sales invoice service.
type DueSource interface {
	CustomerDue(ctx context.Context, customerID id.ID) (types.Money, error)
}
