package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"produceledger/internal/core/id"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

func NewProductRepo() *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			productTable, "product",
			postgres.ExtractDBColumns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
	}
}

// GetMany loads products by ID in one query.
func (r *ProductRepo) GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*product.Product, error) {
	out := make(map[id.ID]*product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sql, args, err := r.baseSelect().Where(squirrel.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	q, err := r.querier(ctx)
	if err != nil {
		return nil, err
	}
	var items []*product.Product
	if err := pgxscan.Select(ctx, q, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}
