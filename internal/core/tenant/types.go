// Package tenant provides multi-tenant database management.
// Every tenant owns an isolated PostgreSQL database; the meta database only keeps the registry.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status represents tenant lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// BusinessType describes what the tenant trades in.
type BusinessType string

const (
	BusinessFruits     BusinessType = "fruits"
	BusinessVegetables BusinessType = "vegetables"
	BusinessMixed      BusinessType = "mixed"
)

// Tenant is a row of the meta-database tenants table.
type Tenant struct {
	ID           string       `db:"id"`
	Slug         string       `db:"slug"`
	DisplayName  string       `db:"display_name"`
	BusinessType BusinessType `db:"business_type"`
	DBName       string       `db:"db_name"`
	DBHost       string       `db:"db_host"`
	DBPort       int          `db:"db_port"`
	Status       Status       `db:"status"`
	Settings     Settings     `db:"settings"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// IsActive returns true if tenant can accept requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// DSN builds the PostgreSQL connection string for this tenant's database.
func (t *Tenant) DSN(user, password, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, password, t.DBHost, t.DBPort, t.DBName, sslMode,
	)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,59}$`)

// CreateInput contains data for provisioning a new tenant.
type CreateInput struct {
	Slug         string
	DisplayName  string
	BusinessType BusinessType
	DBHost       string
	DBPort       int
}

// Validate normalises and checks the input.
func (i *CreateInput) Validate() error {
	i.Slug = strings.ToLower(strings.TrimSpace(i.Slug))
	if !slugPattern.MatchString(i.Slug) {
		return fmt.Errorf("slug must match %s", slugPattern.String())
	}
	if strings.TrimSpace(i.DisplayName) == "" {
		return fmt.Errorf("display name is required")
	}
	switch i.BusinessType {
	case "":
		i.BusinessType = BusinessMixed
	case BusinessFruits, BusinessVegetables, BusinessMixed:
	default:
		return fmt.Errorf("unknown business type %q", i.BusinessType)
	}
	if i.DBHost == "" {
		i.DBHost = "localhost"
	}
	if i.DBPort == 0 {
		i.DBPort = 5432
	}
	return nil
}

// DBName derives the tenant database name from the slug.
func (i *CreateInput) DBName() string {
	return "pl_" + i.Slug
}
