package tenant

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry provides access to tenant metadata stored in the meta database.
type Registry interface {
	GetByID(ctx context.Context, tenantID string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	ListActive(ctx context.Context) ([]*Tenant, error)
	ListAll(ctx context.Context) ([]*Tenant, error)
	// Create inserts a new tenant row and populates t.ID.
	Create(ctx context.Context, t *Tenant) error
	UpdateStatus(ctx context.Context, tenantID string, status Status) error
	UpdateSettings(ctx context.Context, tenantID string, settings Settings) error
}

const tenantColumns = `id, slug, display_name, business_type, db_name, db_host, db_port,
	status, settings, created_at, updated_at`

// PostgresRegistry implements Registry on the meta database.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) get(ctx context.Context, where string, arg any) (*Tenant, error) {
	var t Tenant
	err := pgxscan.Get(ctx, r.pool, &t, `SELECT `+tenantColumns+` FROM tenants WHERE `+where, arg)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (r *PostgresRegistry) GetByID(ctx context.Context, tenantID string) (*Tenant, error) {
	return r.get(ctx, "id = $1", tenantID)
}

func (r *PostgresRegistry) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return r.get(ctx, "slug = $1", slug)
}

func (r *PostgresRegistry) ListActive(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := pgxscan.Select(ctx, r.pool, &tenants,
		`SELECT `+tenantColumns+` FROM tenants WHERE status = $1 ORDER BY slug`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	return tenants, nil
}

func (r *PostgresRegistry) ListAll(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := pgxscan.Select(ctx, r.pool, &tenants, `SELECT `+tenantColumns+` FROM tenants ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (r *PostgresRegistry) Create(ctx context.Context, t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is nil")
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	if t.Settings.DefaultCurrency == "" {
		t.Settings.DefaultCurrency = "INR"
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (slug, display_name, business_type, db_name, db_host, db_port, status, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, t.Slug, t.DisplayName, t.BusinessType, t.DBName, t.DBHost, t.DBPort, t.Status, t.Settings).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) UpdateStatus(ctx context.Context, tenantID string, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`, tenantID, status)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *PostgresRegistry) UpdateSettings(ctx context.Context, tenantID string, settings Settings) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET settings = $2, updated_at = now() WHERE id = $1`, tenantID, settings)
	if err != nil {
		return fmt.Errorf("update tenant settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

var _ Registry = (*PostgresRegistry)(nil)
