// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/auth"
	"produceledger/internal/infrastructure/cache"
	"produceledger/internal/infrastructure/pdf"
	"produceledger/pkg/logger"
)

// Config holds runtime configuration shared by the binaries.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	MetaDatabaseURL string `envconfig:"META_DATABASE_URL" required:"true"`

	TenantDBUser      string        `envconfig:"TENANT_DB_USER" default:"postgres"`
	TenantDBPassword  string        `envconfig:"TENANT_DB_PASSWORD"`
	TenantDBSSLMode   string        `envconfig:"TENANT_DB_SSLMODE" default:"disable"`
	TenantMaxConns    int32         `envconfig:"TENANT_MAX_CONNS" default:"10"`
	TenantMinConns    int32         `envconfig:"TENANT_MIN_CONNS" default:"1"`
	TenantMaxPools    int           `envconfig:"TENANT_MAX_POOLS" default:"100"`
	TenantIdleTimeout time.Duration `envconfig:"TENANT_IDLE_TIMEOUT" default:"30m"`
	TenantRefresh     time.Duration `envconfig:"TENANT_REFRESH_PERIOD" default:"1m"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"12h"`

	// RateLimit is requests per RateWindow per client IP; 0 disables limiting
	RateLimit  int           `envconfig:"RATE_LIMIT" default:"300"`
	RateWindow time.Duration `envconfig:"RATE_WINDOW" default:"1m"`

	CashCutting          decimal.Decimal `envconfig:"RATE_CASH_CUTTING" default:"0.02"`
	SalesCommissionPerKg decimal.Decimal `envconfig:"RATE_SALES_COMMISSION_PER_KG" default:"1"`
	HandlingPerKg        decimal.Decimal `envconfig:"RATE_HANDLING_PER_KG" default:"0.40"`

	ChromePath string        `envconfig:"PDF_CHROME_PATH"`
	PDFTimeout time.Duration `envconfig:"PDF_TIMEOUT" default:"30s"`

	WorkerConcurrency  int    `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WorkerMetricsAddr  string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	PrewarmTenantPools bool   `envconfig:"PREWARM_POOLS" default:"false"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv processes the environment without touching .env.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MetaDatabaseURL == "" {
		return errors.New("META_DATABASE_URL must be provided")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.CashCutting.IsNegative() || c.CashCutting.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("RATE_CASH_CUTTING must be in [0, 1), got %s", c.CashCutting)
	}
	if c.SalesCommissionPerKg.IsNegative() || c.HandlingPerKg.IsNegative() {
		return errors.New("per-kg rates must not be negative")
	}
	if c.TenantMinConns > c.TenantMaxConns {
		return fmt.Errorf("TENANT_MIN_CONNS (%d) exceeds TENANT_MAX_CONNS (%d)", c.TenantMinConns, c.TenantMaxConns)
	}
	if c.WorkerConcurrency < 1 {
		return errors.New("WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Development: c.LogDevelopment}
}

func (c *Config) TenantManager() tenant.ManagerConfig {
	mc := tenant.DefaultManagerConfig()
	mc.DBUser = c.TenantDBUser
	mc.DBPassword = c.TenantDBPassword
	mc.DBSSLMode = c.TenantDBSSLMode
	mc.MaxConnsPerTenant = c.TenantMaxConns
	mc.MinConnsPerTenant = c.TenantMinConns
	mc.MaxPools = c.TenantMaxPools
	mc.IdleTimeout = c.TenantIdleTimeout
	mc.RefreshPeriod = c.TenantRefresh
	return mc
}

func (c *Config) Redis() cache.Config {
	return cache.Config{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// Queue is the asynq connection; it shares the cache Redis.
func (c *Config) Queue() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// HasRedis reports whether caching and background jobs are configured.
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) JWT() auth.JWTConfig {
	jc := auth.DefaultJWTConfig(c.JWTSecret)
	jc.AccessTokenTTL = c.JWTTTL
	return jc
}

func (c *Config) PDF() pdf.Config {
	return pdf.Config{ChromePath: c.ChromePath, Timeout: c.PDFTimeout}
}

// Rates are the base business rates; tenants may override them in settings.
func (c *Config) Rates() tenant.Rates {
	return tenant.Rates{
		CashCutting:          c.CashCutting,
		SalesCommissionPerKg: c.SalesCommissionPerKg,
		HandlingPerKg:        c.HandlingPerKg,
	}
}
