// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
// The querier is taken from context per request (database-per-tenant).
package catalog_repo

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/domain"
	"produceledger/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo provides common CRUD operations for catalog entities.
// Embed this in specific catalog repositories.
type BaseCatalogRepo[T any] struct {
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T

	searchCols   []string
	dateCol      string
	defaultOrder string
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](tableName, entityName string, selectCols []string, newFn func() T) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,

		searchCols:   []string{"name"},
		defaultOrder: "name ASC",
	}
}

// Dated switches the repo to document mode: listings filter on dateCol,
// newest first, and search the given text columns.
func (r *BaseCatalogRepo[T]) Dated(dateCol string, searchCols ...string) *BaseCatalogRepo[T] {
	r.dateCol = dateCol
	r.searchCols = searchCols
	r.defaultOrder = dateCol + " DESC, created_at DESC"
	return r
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseCatalogRepo[T]) querier(ctx context.Context) (postgres.Querier, error) {
	return postgres.QuerierFromContext(ctx)
}

func (r *BaseCatalogRepo[T]) columns(entity T, skip ...string) map[string]any {
	data := postgres.StructToMap(entity)
	out := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if slices.Contains(skip, col) {
			continue
		}
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

// Create inserts a new entity using its "db" tags.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T) error {
	sql, args, err := r.Builder().Insert(r.tableName).SetMap(r.columns(entity)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	q, err := r.querier(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert "+r.tableName, r.entityName, err)
	}
	return nil
}

// Update modifies an existing entity with optimistic locking on version.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	entityID, ok := data["id"]
	if !ok {
		return fmt.Errorf("entity has no 'id' column")
	}
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no int 'version' column")
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(r.columns(entity, "id", "version", "created_at")).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": entityID, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	q, err := r.querier(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update "+r.tableName, r.entityName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entityName, entityID)
	}
	return nil
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

// FindOne executes q and scans a single entity.
func (r *BaseCatalogRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	entity := r.newFn()
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}
	querier, err := r.querier(ctx)
	if err != nil {
		return entity, err
	}
	if err := pgxscan.Get(ctx, querier, entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, key)
		}
		return entity, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return entity, nil
}

// GetByID retrieves entity by ID.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.FindOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID.String())
}

// GetByName retrieves entity by its exact (case-insensitive) name.
func (r *BaseCatalogRepo[T]) GetByName(ctx context.Context, name string) (T, error) {
	name = strings.TrimSpace(name)
	return r.FindOne(ctx, r.baseSelect().Where(squirrel.Expr("lower(name) = lower(?)", name)), name)
}

// List retrieves entities with search and pagination.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: filter.Limit, Offset: filter.Offset}

	q := r.baseSelect()
	if filter.Search != "" && len(r.searchCols) > 0 {
		or := squirrel.Or{}
		for _, col := range r.searchCols {
			or = append(or, squirrel.ILike{col: "%" + filter.Search + "%"})
		}
		q = q.Where(or)
	}
	if r.dateCol != "" {
		if filter.DateFrom != nil {
			q = q.Where(squirrel.GtOrEq{r.dateCol: *filter.DateFrom})
		}
		if filter.DateTo != nil {
			q = q.Where(squirrel.LtOrEq{r.dateCol: *filter.DateTo})
		}
	}

	querier, err := r.querier(ctx)
	if err != nil {
		return result, err
	}

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", r.tableName, err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return result, nil
}

// Delete performs physical removal. Rows referenced by invoices fail with a conflict.
func (r *BaseCatalogRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	sql, args, err := r.Builder().Delete(r.tableName).Where(squirrel.Eq{"id": entityID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	q, err := r.querier(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		mapped := postgres.MapError("delete "+r.tableName, r.entityName, err)
		if apperror.HasCode(mapped, apperror.CodeValidation) {
			return apperror.NewConflict(fmt.Sprintf("%s is used by invoices and cannot be deleted", r.entityName)).
				WithDetail("id", entityID.String()).WithCause(err)
		}
		return mapped
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

func (r *BaseCatalogRepo[T]) parseOrderBy(orderBy string) (string, error) {
	if orderBy == "" {
		return r.defaultOrder, nil
	}
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = orderBy[1:]
	}
	field = strings.TrimSpace(field)
	if !slices.Contains(r.selectCols, field) {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}
