package tenant

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatesFromContext_NoTenantUsesBase(t *testing.T) {
	base := DefaultRates()
	got := RatesFromContext(context.Background(), base)
	assert.True(t, got.CashCutting.Equal(decimal.RequireFromString("0.02")))
	assert.True(t, got.HandlingPerKg.Equal(decimal.RequireFromString("0.4")))
}

func TestRatesFromContext_AppliesOverrides(t *testing.T) {
	var s Settings
	require.NoError(t, json.Unmarshal([]byte(`{"rates":{"cash_cutting":"0.03"}}`), &s))

	ctx := WithTenant(context.Background(), &Tenant{ID: "t1", Settings: s})
	got := RatesFromContext(ctx, DefaultRates())

	assert.True(t, got.CashCutting.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, got.SalesCommissionPerKg.Equal(decimal.NewFromInt(1)))
}

func TestSettings_FeatureEnabled(t *testing.T) {
	s := Settings{Features: map[string]bool{FeatureSales: false}}
	assert.False(t, s.FeatureEnabled(FeatureSales))
	assert.True(t, s.FeatureEnabled(FeaturePurchases))
}

func TestSettings_IssuerAllowed(t *testing.T) {
	open := Settings{}
	assert.True(t, open.IssuerAllowed("anyone"))
	assert.False(t, open.IssuerAllowed(""))

	restricted := Settings{PaymentIssuers: []string{"Abdul Rafi", "Sadiq"}}
	assert.True(t, restricted.IssuerAllowed("Sadiq"))
	assert.False(t, restricted.IssuerAllowed("Someone"))
}

func TestSettings_Validate(t *testing.T) {
	dec := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	assert.NoError(t, Settings{}.Validate())
	assert.NoError(t, Settings{
		Rates:    RateOverrides{CashCutting: dec("0.015"), HandlingPerKg: dec("0")},
		Features: map[string]bool{FeatureExpenses: false},
	}.Validate())

	assert.Error(t, Settings{Rates: RateOverrides{CashCutting: dec("1")}}.Validate())
	assert.Error(t, Settings{Rates: RateOverrides{SalesCommissionPerKg: dec("-1")}}.Validate())
	assert.Error(t, Settings{Features: map[string]bool{"payroll": true}}.Validate())
}
