// Package migrations embeds the schema for the meta and tenant databases and
// applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed meta/*.sql tenant/*.sql
var files embed.FS

// Target selects which schema to apply.
type Target string

const (
	Meta   Target = "meta"
	Tenant Target = "tenant"
)

// Source returns the embedded migration files for target.
func Source(target Target) (fs.FS, error) {
	switch target {
	case Meta, Tenant:
		return fs.Sub(files, string(target))
	default:
		return nil, fmt.Errorf("unknown migration target %q", target)
	}
}

// driverURL rewrites a postgres:// DSN to the pgx/v5 driver scheme.
func driverURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// Up applies all pending migrations of target to the database at dsn.
// It returns the schema version after the run.
func Up(dsn string, target Target) (uint, error) {
	m, err := open(dsn, target)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate %s up: %w", target, err)
	}
	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read %s version: %w", target, err)
	}
	return version, nil
}

func open(dsn string, target Target) (*migrate.Migrate, error) {
	sub, err := Source(target)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", target, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, driverURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("init %s migrations: %w", target, err)
	}
	return m, nil
}
