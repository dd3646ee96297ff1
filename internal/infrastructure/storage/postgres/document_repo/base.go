// Package document_repo provides PostgreSQL implementations for invoice repositories.
// The querier is taken from context per request (database-per-tenant).
package document_repo

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/domain"
	"produceledger/internal/infrastructure/storage/postgres"
)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// columns picks the listed "db" columns out of entity.
func columns(entity any, cols []string) map[string]any {
	data := postgres.StructToMap(entity)
	out := make(map[string]any, len(cols))
	for _, col := range cols {
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

func without(cols []string, skip ...string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !slices.Contains(skip, c) {
			out = append(out, c)
		}
	}
	return out
}

func qualify(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func execOne(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func getOne(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	return pgxscan.Get(ctx, querier, dst, sql, args...)
}

func getRaw(ctx context.Context, dst any, query string, args ...any) error {
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	return pgxscan.Get(ctx, querier, dst, query, args...)
}

// scalar scans a single-row, single-column result.
func scalar(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	return querier.QueryRow(ctx, sql, args...).Scan(dst)
}

func selectAll(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	return pgxscan.Select(ctx, querier, dst, sql, args...)
}

func selectRaw(ctx context.Context, dst any, query string, args ...any) error {
	querier, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	return pgxscan.Select(ctx, querier, dst, query, args...)
}

// sum returns COALESCE(SUM(col), 0) over table rows matching where.
func sum(ctx context.Context, table, col string, where squirrel.Sqlizer) (decimal.Decimal, error) {
	var total decimal.Decimal
	q := builder().Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", col)).From(table).Where(where)
	if err := scalar(ctx, &total, q); err != nil {
		return total, fmt.Errorf("sum %s.%s: %w", table, col, err)
	}
	return total, nil
}

// BaseDocumentRepo handles invoice header rows: insert, optimistic header
// updates, row locks, hard deletes and paged listings.
type BaseDocumentRepo[T any] struct {
	tableName  string
	entityName string
	selectCols []string
	editable   []string
	searchCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a header repository. editable lists the
// columns UpdateHeader writes; everything else is fixed after insert.
func NewBaseDocumentRepo[T any](tableName, entityName string, selectCols, editable, searchCols []string, newFn func() T) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		editable:   editable,
		searchCols: searchCols,
		newFn:      newFn,
	}
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return builder().Select(r.selectCols...).From(r.tableName)
}

// Create inserts the header row.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T) error {
	q := builder().Insert(r.tableName).SetMap(columns(entity, r.selectCols))
	if _, err := execOne(ctx, q); err != nil {
		return postgres.MapError("insert "+r.tableName, r.entityName, err)
	}
	return nil
}

func (r *BaseDocumentRepo[T]) findOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	entity := r.newFn()
	if err := getOne(ctx, entity, q); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, key)
		}
		return entity, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return entity, nil
}

// GetByID retrieves a header by ID.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID.String())
}

// GetForUpdate retrieves a header with a row lock held until the transaction ends.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, docID id.ID) (T, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID.String())
}

// UpdateHeader writes the editable columns when the stored version still matches.
func (r *BaseDocumentRepo[T]) UpdateHeader(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	docID := data["id"]
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("%s has no int 'version' column", r.entityName)
	}

	q := builder().Update(r.tableName).
		SetMap(columns(entity, r.editable)).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": docID, "version": version})
	n, err := execOne(ctx, q)
	if err != nil {
		return postgres.MapError("update "+r.tableName, r.entityName, err)
	}
	if n == 0 {
		return apperror.NewConcurrentModification(r.entityName, docID)
	}
	return nil
}

// Delete removes the header; lines and payments cascade.
// A header still referenced elsewhere fails with a conflict.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, docID id.ID) error {
	n, err := execOne(ctx, builder().Delete(r.tableName).Where(squirrel.Eq{"id": docID}))
	if err != nil {
		mapped := postgres.MapError("delete "+r.tableName, r.entityName, err)
		if apperror.HasCode(mapped, apperror.CodeValidation) {
			return apperror.NewConflict(fmt.Sprintf("%s is referenced by other records and cannot be deleted", r.entityName)).
				WithDetail("id", docID.String()).WithCause(err)
		}
		return mapped
	}
	if n == 0 {
		return apperror.NewNotFound(r.entityName, docID.String())
	}
	return nil
}

// list applies the shared filter (search, date range, order, page) on top of q.
func (r *BaseDocumentRepo[T]) list(ctx context.Context, q squirrel.SelectBuilder, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: filter.Limit, Offset: filter.Offset}

	if filter.Search != "" && len(r.searchCols) > 0 {
		or := squirrel.Or{}
		for _, col := range r.searchCols {
			or = append(or, squirrel.ILike{col: "%" + filter.Search + "%"})
		}
		q = q.Where(or)
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	if err := scalar(ctx, &result.TotalCount, builder().Select("COUNT(*)").FromSelect(q, "sub")); err != nil {
		return result, fmt.Errorf("count %s: %w", r.tableName, err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	if err := selectAll(ctx, &result.Items, q); err != nil {
		return result, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return result, nil
}

func (r *BaseDocumentRepo[T]) parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "date DESC", nil
	}
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = orderBy[1:]
	}
	if !slices.Contains(r.selectCols, field) {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}

// childTable stores rows owned by an invoice (lines, payments).
// Every statement is scoped by invoice_id so a row cannot be reached
// through another invoice.
type childTable[T any] struct {
	tableName  string
	entityName string
	selectCols []string
	// hasUpdatedAt marks tables with an updated_at column
	hasUpdatedAt bool
	order        string
	newFn        func() T
}

func (c *childTable[T]) insert(ctx context.Context, row T) error {
	q := builder().Insert(c.tableName).SetMap(columns(row, c.selectCols))
	if _, err := execOne(ctx, q); err != nil {
		return postgres.MapError("insert "+c.tableName, c.entityName, err)
	}
	return nil
}

// insertMany queues one INSERT per row and sends them as a single batch.
func (c *childTable[T]) insertMany(ctx context.Context, rows []T) error {
	b := &pgx.Batch{}
	for _, row := range rows {
		sql, args, err := builder().Insert(c.tableName).SetMap(columns(row, c.selectCols)).ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		b.Queue(sql, args...)
	}
	if _, err := postgres.ExecBatch(ctx, b); err != nil {
		return postgres.MapError("insert "+c.tableName, c.entityName, err)
	}
	return nil
}

func (c *childTable[T]) update(ctx context.Context, row T) error {
	data := postgres.StructToMap(row)
	q := builder().Update(c.tableName).
		SetMap(columns(row, without(c.selectCols, "id", "invoice_id", "created_at", "updated_at"))).
		Where(squirrel.Eq{"id": data["id"], "invoice_id": data["invoice_id"]})
	if c.hasUpdatedAt {
		q = q.Set("updated_at", squirrel.Expr("now()"))
	}
	n, err := execOne(ctx, q)
	if err != nil {
		return postgres.MapError("update "+c.tableName, c.entityName, err)
	}
	if n == 0 {
		return apperror.NewNotFound(c.entityName, fmt.Sprint(data["id"]))
	}
	return nil
}

func (c *childTable[T]) delete(ctx context.Context, invoiceID, rowID id.ID) error {
	n, err := execOne(ctx, builder().Delete(c.tableName).Where(squirrel.Eq{"id": rowID, "invoice_id": invoiceID}))
	if err != nil {
		return postgres.MapError("delete "+c.tableName, c.entityName, err)
	}
	if n == 0 {
		return apperror.NewNotFound(c.entityName, rowID.String())
	}
	return nil
}

func (c *childTable[T]) get(ctx context.Context, invoiceID, rowID id.ID) (T, error) {
	row := c.newFn()
	q := builder().Select(c.selectCols...).From(c.tableName).
		Where(squirrel.Eq{"id": rowID, "invoice_id": invoiceID})
	if err := getOne(ctx, row, q); err != nil {
		if pgxscan.NotFound(err) {
			return row, apperror.NewNotFound(c.entityName, rowID.String())
		}
		return row, fmt.Errorf("get %s: %w", c.tableName, err)
	}
	return row, nil
}

func (c *childTable[T]) list(ctx context.Context, invoiceID id.ID) ([]T, error) {
	var rows []T
	q := builder().Select(c.selectCols...).From(c.tableName).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy(c.order)
	if err := selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.tableName, err)
	}
	return rows, nil
}

func (c *childTable[T]) sum(ctx context.Context, col string, invoiceID id.ID, excludeID *id.ID) (decimal.Decimal, error) {
	where := squirrel.And{squirrel.Eq{"invoice_id": invoiceID}}
	if excludeID != nil {
		where = append(where, squirrel.NotEq{"id": *excludeID})
	}
	return sum(ctx, c.tableName, col, where)
}
