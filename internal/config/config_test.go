package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/tenant"
)

var testSecret = strings.Repeat("s", 32)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("META_DATABASE_URL", "postgres://localhost:5432/meta")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 12*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.False(t, cfg.IsProduction())

	rates := cfg.Rates()
	def := tenant.DefaultRates()
	assert.True(t, rates.CashCutting.Equal(def.CashCutting))
	assert.True(t, rates.SalesCommissionPerKg.Equal(def.SalesCommissionPerKg))
	assert.True(t, rates.HandlingPerKg.Equal(def.HandlingPerKg))
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("RATE_CASH_CUTTING", "0.015")
	t.Setenv("TENANT_MAX_POOLS", "7")
	t.Setenv("PDF_CHROME_PATH", "/usr/bin/chromium")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Rates().CashCutting.Equal(decimal.RequireFromString("0.015")))
	assert.Equal(t, 7, cfg.TenantManager().MaxPools)
	assert.Equal(t, "/usr/bin/chromium", cfg.PDF().ChromePath)
	assert.Equal(t, "produceledger", cfg.JWT().Issuer)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"cash cutting too high", map[string]string{"RATE_CASH_CUTTING": "1"}},
		{"negative handling", map[string]string{"RATE_HANDLING_PER_KG": "-0.1"}},
		{"min above max", map[string]string{"TENANT_MIN_CONNS": "5", "TENANT_MAX_CONNS": "2"}},
		{"bad duration", map[string]string{"JWT_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("META_DATABASE_URL", "")
	t.Setenv("JWT_SECRET", testSecret)

	_, err := FromEnv()
	assert.Error(t, err)
}
