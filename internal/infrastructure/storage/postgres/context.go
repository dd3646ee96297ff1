package postgres

import (
	"context"
	"fmt"

	"produceledger/internal/core/tenant"
)

// TxManagerFromContext returns the tenant *TxManager bound by the tenant middleware.
// Domain code should depend only on internal/core/tx.Manager.
func TxManagerFromContext(ctx context.Context) (*TxManager, error) {
	txm, err := tenant.GetTxManager(ctx)
	if err != nil {
		return nil, err
	}
	pgTxm, ok := txm.(*TxManager)
	if !ok || pgTxm == nil {
		return nil, fmt.Errorf("unexpected tx manager type %T", txm)
	}
	return pgTxm, nil
}

// QuerierFromContext returns the active transaction or the tenant pool.
func QuerierFromContext(ctx context.Context) (Querier, error) {
	txm, err := TxManagerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return txm.Querier(ctx), nil
}

// BindTenant acquires the tenant pool and returns ctx carrying the tenant, its
// pool and a TxManager. release must be called when the work is done.
func BindTenant(ctx context.Context, manager *tenant.Manager, tenantID string) (context.Context, func(), error) {
	mp, release, err := manager.Acquire(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return tenant.Bind(ctx, mp.Tenant(), mp.Pool(), NewTxManager(mp.Pool())), release, nil
}
