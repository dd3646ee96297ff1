package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"produceledger/internal/core/tx"
)

type ctxKey int

const (
	poolKey ctxKey = iota
	txManagerKey
	tenantKey
)

var (
	ErrNoPoolInContext = errors.New("database pool not found in context")
	ErrNoTxManager     = errors.New("transaction manager not found in context")
)

// WithPool stores the tenant database pool in context.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolKey, pool)
}

// GetPool retrieves the tenant database pool from context.
func GetPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, ok := ctx.Value(poolKey).(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, ErrNoPoolInContext
	}
	return pool, nil
}

// MustGetPool retrieves the pool or panics. A missing pool is a wiring bug.
func MustGetPool(ctx context.Context) *pgxpool.Pool {
	pool, err := GetPool(ctx)
	if err != nil {
		panic(err.Error())
	}
	return pool
}

// WithTxManager stores the tenant transaction manager in context.
func WithTxManager(ctx context.Context, txm tx.Manager) context.Context {
	return context.WithValue(ctx, txManagerKey, txm)
}

// GetTxManager retrieves the transaction manager from context.
func GetTxManager(ctx context.Context) (tx.Manager, error) {
	txm, ok := ctx.Value(txManagerKey).(tx.Manager)
	if !ok || txm == nil {
		return nil, ErrNoTxManager
	}
	return txm, nil
}

// WithTenant stores the resolved tenant in context.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// GetTenant retrieves the tenant from context, nil when absent.
func GetTenant(ctx context.Context) *Tenant {
	t, _ := ctx.Value(tenantKey).(*Tenant)
	return t
}

// GetTenantID returns tenant ID or empty string.
func GetTenantID(ctx context.Context) string {
	if t := GetTenant(ctx); t != nil {
		return t.ID
	}
	return ""
}

// Bind attaches everything a request needs to work against one tenant database.
func Bind(ctx context.Context, t *Tenant, pool *pgxpool.Pool, txm tx.Manager) context.Context {
	ctx = WithTenant(ctx, t)
	ctx = WithPool(ctx, pool)
	return WithTxManager(ctx, txm)
}
