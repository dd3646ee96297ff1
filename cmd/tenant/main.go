// Package main provides CLI for tenant management.
// Usage: tenant create --slug acme --name "ACME Traders"
//
//	tenant list
//	tenant migrate --all
//	tenant suspend <tenant-id>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/infrastructure/storage/migrations"
)

type cliConfig struct {
	MetaDatabaseURL  string `envconfig:"META_DATABASE_URL" required:"true"`
	AdminDatabaseURL string `envconfig:"POSTGRES_ADMIN_URL"`
	TenantDBUser     string `envconfig:"TENANT_DB_USER" default:"postgres"`
	TenantDBPassword string `envconfig:"TENANT_DB_PASSWORD"`
	TenantDBSSLMode  string `envconfig:"TENANT_DB_SSLMODE" default:"disable"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fail(err)
	}
	var cfg cliConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fail(err)
	}

	ctx := context.Background()
	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "create":
		err = createTenant(ctx, cfg, args)
	case "list":
		err = listTenants(ctx, cfg)
	case "migrate":
		err = migrateTenants(ctx, cfg, args)
	case "suspend":
		err = setStatus(ctx, cfg, args, tenant.StatusSuspended)
	case "activate":
		err = setStatus(ctx, cfg, args, tenant.StatusActive)
	case "settings":
		err = updateSettings(ctx, cfg, args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Tenant Management CLI

Usage:
  tenant <command> [options]

Commands:
  create    Create the tenant database, migrate it and register the tenant
  list      List all tenants
  migrate   Run migrations for the meta database or tenant(s)
  suspend   Suspend a tenant
  activate  Activate a suspended tenant
  settings  Replace tenant settings from a JSON file
  help      Show this help

Environment Variables:
  META_DATABASE_URL    Connection string for meta database (required)
  TENANT_DB_USER       Username for tenant databases
  TENANT_DB_PASSWORD   Password for tenant databases
  POSTGRES_ADMIN_URL   Admin connection for creating databases

Examples:
  tenant create --slug acme --name "ACME Traders" --business fruits
  tenant list
  tenant migrate --meta
  tenant migrate --all
  tenant migrate --id <tenant-uuid>
  tenant suspend <tenant-uuid>
  tenant activate <tenant-uuid>
  tenant settings --id <tenant-uuid> --file settings.json`)
}

func metaRegistry(ctx context.Context, cfg cliConfig) (*tenant.PostgresRegistry, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.MetaDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to meta database: %w", err)
	}
	return tenant.NewPostgresRegistry(pool), pool.Close, nil
}

func createTenant(ctx context.Context, cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var in tenant.CreateInput
	var business string
	fs.StringVar(&in.Slug, "slug", "", "tenant slug (lowercase, digits, underscore)")
	fs.StringVar(&in.DisplayName, "name", "", "display name")
	fs.StringVar(&business, "business", "", "fruits, vegetables or mixed")
	fs.StringVar(&in.DBHost, "db-host", "", "tenant database host")
	fs.IntVar(&in.DBPort, "db-port", 0, "tenant database port")
	_ = fs.Parse(args)

	in.BusinessType = tenant.BusinessType(business)
	if err := in.Validate(); err != nil {
		return err
	}

	registry, closeMeta, err := metaRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	t := &tenant.Tenant{
		Slug:         in.Slug,
		DisplayName:  in.DisplayName,
		BusinessType: in.BusinessType,
		DBName:       in.DBName(),
		DBHost:       in.DBHost,
		DBPort:       in.DBPort,
		Status:       tenant.StatusActive,
	}

	fmt.Printf("Creating tenant '%s'...\n", t.Slug)

	// 1. Create database
	if err := createDatabase(ctx, cfg, t.DBName); err != nil {
		return err
	}

	// 2. Run migrations
	fmt.Println("  Running migrations...")
	version, err := migrations.Up(t.DSN(cfg.TenantDBUser, cfg.TenantDBPassword, cfg.TenantDBSSLMode), migrations.Tenant)
	if err != nil {
		return err
	}
	fmt.Printf("  Schema at version %d\n", version)

	// 3. Register in meta database
	if err := registry.Create(ctx, t); err != nil {
		return err
	}

	fmt.Printf("\nTenant '%s' created\n", t.Slug)
	fmt.Printf("  Tenant ID: %s\n", t.ID)
	fmt.Printf("  Database:  %s\n", t.DBName)
	fmt.Printf("  Business:  %s\n", t.BusinessType)
	return nil
}

func createDatabase(ctx context.Context, cfg cliConfig, dbName string) error {
	adminDSN := cfg.AdminDatabaseURL
	if adminDSN == "" {
		adminDSN = cfg.MetaDatabaseURL
	}
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("connect as admin: %w", err)
	}
	defer conn.Close(ctx)

	fmt.Printf("  Creating database %s...\n", dbName)
	_, err = conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P04" {
		fmt.Println("  Database already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	return nil
}

func listTenants(ctx context.Context, cfg cliConfig) error {
	registry, closeMeta, err := metaRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	tenants, err := registry.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return nil
	}

	fmt.Printf("%-36s %-20s %-30s %-20s %-10s %-10s\n", "TENANT_ID", "SLUG", "NAME", "DATABASE", "BUSINESS", "STATUS")
	fmt.Println(strings.Repeat("-", 131))
	for _, t := range tenants {
		fmt.Printf("%-36s %-20s %-30s %-20s %-10s %-10s\n",
			t.ID,
			truncate(t.Slug, 20),
			truncate(t.DisplayName, 30),
			truncate(t.DBName, 20),
			t.BusinessType,
			t.Status,
		)
	}
	return nil
}

func migrateTenants(ctx context.Context, cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	targetID := fs.String("id", "", "tenant to migrate")
	all := fs.Bool("all", false, "migrate every active tenant")
	meta := fs.Bool("meta", false, "migrate the meta database")
	_ = fs.Parse(args)

	if *meta {
		version, err := migrations.Up(cfg.MetaDatabaseURL, migrations.Meta)
		if err != nil {
			return err
		}
		fmt.Printf("Meta database at version %d\n", version)
		if !*all && *targetID == "" {
			return nil
		}
	}
	if !*all && *targetID == "" {
		return errors.New("specify --meta, --id <tenant-uuid> or --all")
	}

	registry, closeMeta, err := metaRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	var tenants []*tenant.Tenant
	if *all {
		if tenants, err = registry.ListActive(ctx); err != nil {
			return err
		}
	} else {
		t, err := registry.GetByID(ctx, *targetID)
		if err != nil {
			return fmt.Errorf("tenant '%s': %w", *targetID, err)
		}
		tenants = []*tenant.Tenant{t}
	}

	var failed int
	for _, t := range tenants {
		fmt.Printf("Migrating %s (%s)...\n", t.Slug, t.DBName)
		version, err := migrations.Up(t.DSN(cfg.TenantDBUser, cfg.TenantDBPassword, cfg.TenantDBSSLMode), migrations.Tenant)
		if err != nil {
			failed++
			fmt.Printf("  Failed: %v\n", err)
			continue
		}
		fmt.Printf("  Done, version %d\n", version)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tenants failed to migrate", failed, len(tenants))
	}
	return nil
}

func setStatus(ctx context.Context, cfg cliConfig, args []string, status tenant.Status) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tenant %s <tenant-uuid>", os.Args[1])
	}
	registry, closeMeta, err := metaRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	if err := registry.UpdateStatus(ctx, args[0], status); err != nil {
		return err
	}
	fmt.Printf("Tenant '%s' is now %s\n", args[0], status)
	return nil
}

func updateSettings(ctx context.Context, cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	targetID := fs.String("id", "", "tenant to update")
	file := fs.String("file", "", "JSON settings file")
	_ = fs.Parse(args)

	if *targetID == "" || *file == "" {
		return errors.New("usage: tenant settings --id <tenant-uuid> --file settings.json")
	}
	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	var settings tenant.Settings
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if settings.HandlingExemptRule != "" {
		policy, err := purchase.NewRulePolicy()
		if err != nil {
			return err
		}
		if _, err := policy.Compile(settings.HandlingExemptRule); err != nil {
			return err
		}
	}

	registry, closeMeta, err := metaRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	if err := registry.UpdateSettings(ctx, *targetID, settings); err != nil {
		return err
	}
	fmt.Printf("Settings of tenant '%s' updated\n", *targetID)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
