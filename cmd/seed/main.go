// Package main seeds a tenant database with the admin account and the
// default product catalog.
//
// Usage: seed --tenant <tenant-uuid|slug>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/auth"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/infrastructure/storage/postgres"
	"produceledger/internal/infrastructure/storage/postgres/auth_repo"
	"produceledger/internal/infrastructure/storage/postgres/catalog_repo"
	"produceledger/pkg/logger"
)

type seedConfig struct {
	MetaDatabaseURL  string   `envconfig:"META_DATABASE_URL" required:"true"`
	TenantDBUser     string   `envconfig:"TENANT_DB_USER" default:"postgres"`
	TenantDBPassword string   `envconfig:"TENANT_DB_PASSWORD"`
	TenantDBSSLMode  string   `envconfig:"TENANT_DB_SSLMODE" default:"disable"`
	AdminEmail       string   `envconfig:"ADMIN_EMAIL" default:"admin@produceledger.local"`
	AdminName        string   `envconfig:"ADMIN_NAME" default:"Administrator"`
	AdminPassword    string   `envconfig:"ADMIN_PASSWORD" required:"true"`
	Products         []string `envconfig:"SEED_PRODUCTS" default:"Mango"`
	WasteProducts    []string `envconfig:"SEED_WASTE_PRODUCTS" default:"Waste"`
}

func main() {
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(log); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}
	log.Info("seeding completed successfully")
}

func run(log *logger.Logger) error {
	ref := flag.String("tenant", "", "tenant id or slug")
	flag.Parse()
	if *ref == "" {
		return errors.New("--tenant is required")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var cfg seedConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return err
	}

	ctx := context.Background()

	metaPool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.MetaDatabaseURL))
	if err != nil {
		return fmt.Errorf("meta database: %w", err)
	}
	defer metaPool.Close()
	registry := tenant.NewPostgresRegistry(metaPool)

	t, err := lookupTenant(ctx, registry, *ref)
	if err != nil {
		return err
	}

	managerCfg := tenant.DefaultManagerConfig()
	managerCfg.DBUser = cfg.TenantDBUser
	managerCfg.DBPassword = cfg.TenantDBPassword
	managerCfg.DBSSLMode = cfg.TenantDBSSLMode
	managerCfg.MaxPools = 1
	manager := tenant.NewManager(managerCfg, registry, log)
	defer manager.Close()

	ctx, release, err := postgres.BindTenant(ctx, manager, t.ID)
	if err != nil {
		return fmt.Errorf("bind tenant %s: %w", t.Slug, err)
	}
	defer release()
	log.Infow("connected to tenant database", "tenant", t.Slug, "db", t.DBName)

	// the JWT service is never asked for a token here
	users := auth.NewService(auth_repo.NewUserRepo(), auth.NewJWTService(auth.DefaultJWTConfig(uuid.NewString())))
	created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Infow("admin user created", "email", cfg.AdminEmail)
	} else {
		log.Infow("admin user already exists", "email", cfg.AdminEmail)
	}

	products := product.NewService(catalog_repo.NewProductRepo())
	for _, name := range cfg.Products {
		if err := ensureProduct(ctx, products, name, false, log); err != nil {
			return err
		}
	}
	for _, name := range cfg.WasteProducts {
		if err := ensureProduct(ctx, products, name, true, log); err != nil {
			return err
		}
	}
	return nil
}

func lookupTenant(ctx context.Context, registry *tenant.PostgresRegistry, ref string) (*tenant.Tenant, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return registry.GetByID(ctx, ref)
	}
	return registry.GetBySlug(ctx, ref)
}

func ensureProduct(ctx context.Context, products *product.Service, name string, waste bool, log *logger.Logger) error {
	_, err := products.ResolveName(ctx, name)
	if err == nil {
		return nil
	}
	if !apperror.IsNotFound(err) {
		return err
	}
	if err := products.Create(ctx, product.NewProduct(name, waste)); err != nil {
		return fmt.Errorf("seed product %q: %w", name, err)
	}
	log.Infow("product created", "name", name, "waste", waste)
	return nil
}
