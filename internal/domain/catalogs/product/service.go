package product

import (
	"context"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/domain"
)

// Service provides business logic for the Product catalog.
type Service struct {
	*domain.CatalogService[*Product]
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		CatalogService: domain.NewCatalogService[*Product](repo, nil, "product"),
		repo:           repo,
	}
}

// GetMany loads products by ID and fails on the first missing one.
func (s *Service) GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*Product, error) {
	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, pid := range ids {
		if _, ok := found[pid]; !ok {
			return nil, apperror.NewNotFound("product", pid.String())
		}
	}
	return found, nil
}

// ResolveName looks a product up by name for imports.
func (s *Service) ResolveName(ctx context.Context, name string) (*Product, error) {
	return s.repo.GetByName(ctx, name)
}
