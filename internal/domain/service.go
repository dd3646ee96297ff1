package domain

import (
	"context"
	"fmt"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/entity"
	"produceledger/internal/core/id"
	"produceledger/internal/core/tenant"
	"produceledger/internal/core/tx"
	"produceledger/pkg/logger"
)

// TxManagerOrContext returns txm when set, otherwise the tenant manager bound to ctx.
func TxManagerOrContext(ctx context.Context, txm tx.Manager) (tx.Manager, error) {
	if txm != nil {
		return txm, nil
	}
	m, err := tenant.GetTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	return m, nil
}

// CatalogService provides CRUD with lifecycle hooks for reference data and the
// single-table overhead documents.
// TxManager may be nil; it is then taken from the tenant context.
type CatalogService[T entity.Validatable] struct {
	repo       Repository[T]
	txManager  tx.Manager
	hooks      *HookRegistry[T]
	entityName string
}

// NewCatalogService creates a new catalog service.
func NewCatalogService[T entity.Validatable](repo Repository[T], txManager tx.Manager, entityName string) *CatalogService[T] {
	return &CatalogService[T]{
		repo:       repo,
		txManager:  txManager,
		hooks:      NewHookRegistry[T](),
		entityName: entityName,
	}
}

// Hooks returns the hook registry for external registration.
func (s *CatalogService[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

func (s *CatalogService[T]) write(ctx context.Context, before, after HookEvent, e T, fn func(ctx context.Context) error) error {
	if err := s.hooks.Run(ctx, before, e); err != nil {
		return err
	}
	txm, err := TxManagerOrContext(ctx, s.txManager)
	if err != nil {
		return err
	}
	if err := txm.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, after, e); err != nil {
		logger.Warn(ctx, "after-write hook failed", "entity", s.entityName, "event", after, "error", err)
	}
	return nil
}

// Create validates and inserts a new entity.
func (s *CatalogService[T]) Create(ctx context.Context, e T) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}
	return s.write(ctx, BeforeCreate, AfterCreate, e, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}
		return nil
	})
}

// GetByID retrieves entity by ID.
func (s *CatalogService[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	e, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return e, apperror.NewNotFound(s.entityName, entityID.String())
		}
		return e, err
	}
	return e, nil
}

// Update validates and saves an existing entity.
func (s *CatalogService[T]) Update(ctx context.Context, e T) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}
	return s.write(ctx, BeforeUpdate, AfterUpdate, e, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return nil
	})
}

// Delete removes an entity. Rows still referenced by invoices are rejected by foreign keys.
func (s *CatalogService[T]) Delete(ctx context.Context, entityID id.ID) error {
	e, err := s.GetByID(ctx, entityID)
	if err != nil {
		return err
	}
	return s.write(ctx, BeforeDelete, AfterDelete, e, func(ctx context.Context) error {
		return s.repo.Delete(ctx, entityID)
	})
}

// List retrieves entities with filtering.
func (s *CatalogService[T]) List(ctx context.Context, filter ListFilter) (ListResult[T], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
