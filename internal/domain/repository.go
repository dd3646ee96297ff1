// Package domain provides shared business-layer interfaces and types.
package domain

import (
	"context"
	"time"

	"produceledger/internal/core/entity"
	"produceledger/internal/core/id"
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches name-like columns case-insensitively
	Search string

	// DateFrom/DateTo bound the business date (inclusive) on documents
	DateFrom *time.Time
	DateTo   *time.Time

	// OrderBy is a column name, "-" prefix for descending
	OrderBy string

	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{Limit: 50}
}

// Normalize clamps pagination to sane bounds.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// Repository defines CRUD operations for single-table entities.
type Repository[T entity.Validatable] interface {
	Create(ctx context.Context, entity T) error
	GetByID(ctx context.Context, id id.ID) (T, error)
	// Update applies optimistic locking on the version column.
	Update(ctx context.Context, entity T) error
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter ListFilter) (ListResult[T], error)
}

// CatalogRepository adds name lookup for reference data.
type CatalogRepository[T entity.Validatable] interface {
	Repository[T]
	GetByName(ctx context.Context, name string) (T, error)
}

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	AfterCreate  HookEvent = "after_create"
	BeforeUpdate HookEvent = "before_update"
	AfterUpdate  HookEvent = "after_update"
	BeforeDelete HookEvent = "before_delete"
	AfterDelete  HookEvent = "after_delete"
)

// Hook is a function that runs at specific lifecycle points.
type Hook[T any] func(ctx context.Context, entity T) error

// HookRegistry stores lifecycle hooks for an entity type.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{hooks: make(map[HookEvent][]Hook[T])}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// OnChange registers hook for every after-write event.
func (r *HookRegistry[T]) OnChange(hook Hook[T]) {
	r.On(AfterCreate, hook)
	r.On(AfterUpdate, hook)
	r.On(AfterDelete, hook)
}

// Run executes hooks for event in registration order, stopping at the first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}
