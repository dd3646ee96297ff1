package tenant

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Feature names recognised in tenant settings.
const (
	FeaturePurchases = "purchase_management"
	FeatureSales     = "sales_management"
	FeatureExpenses  = "expense_tracking"
	FeatureReports   = "reports"
)

// Rates are the business constants applied by the invoice calculators.
type Rates struct {
	// CashCutting is the fraction deducted from a purchase net total (0.02 = 2%).
	CashCutting decimal.Decimal
	// SalesCommissionPerKg is added to a sales invoice per kg of gross weight.
	SalesCommissionPerKg decimal.Decimal
	// HandlingPerKg is the loading/unloading charge on purchased quantity.
	HandlingPerKg decimal.Decimal
}

// DefaultRates returns the house rates.
func DefaultRates() Rates {
	return Rates{
		CashCutting:          decimal.RequireFromString("0.02"),
		SalesCommissionPerKg: decimal.NewFromInt(1),
		HandlingPerKg:        decimal.RequireFromString("0.40"),
	}
}

// RateOverrides holds per-tenant rate overrides; nil fields keep the base rate.
type RateOverrides struct {
	CashCutting          *decimal.Decimal `json:"cash_cutting,omitempty"`
	SalesCommissionPerKg *decimal.Decimal `json:"sales_commission_per_kg,omitempty"`
	HandlingPerKg        *decimal.Decimal `json:"handling_per_kg,omitempty"`
}

// Settings is the JSONB settings document stored per tenant.
type Settings struct {
	Rates              RateOverrides   `json:"rates"`
	Features           map[string]bool `json:"features,omitempty"`
	PaymentIssuers     []string        `json:"payment_issuers,omitempty"`
	HandlingExemptRule string          `json:"handling_exempt_rule,omitempty"`
	DefaultCurrency    string          `json:"default_currency,omitempty"`
}

// Resolve applies the overrides on top of base.
func (o RateOverrides) Resolve(base Rates) Rates {
	out := base
	if o.CashCutting != nil {
		out.CashCutting = *o.CashCutting
	}
	if o.SalesCommissionPerKg != nil {
		out.SalesCommissionPerKg = *o.SalesCommissionPerKg
	}
	if o.HandlingPerKg != nil {
		out.HandlingPerKg = *o.HandlingPerKg
	}
	return out
}

var knownFeatures = []string{FeaturePurchases, FeatureSales, FeatureExpenses, FeatureReports}

// Validate checks the override ranges and feature names.
func (s Settings) Validate() error {
	r := s.Rates
	if r.CashCutting != nil && (r.CashCutting.IsNegative() || r.CashCutting.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		return fmt.Errorf("rates.cash_cutting must be in [0, 1), got %s", r.CashCutting)
	}
	if r.SalesCommissionPerKg != nil && r.SalesCommissionPerKg.IsNegative() {
		return fmt.Errorf("rates.sales_commission_per_kg must not be negative")
	}
	if r.HandlingPerKg != nil && r.HandlingPerKg.IsNegative() {
		return fmt.Errorf("rates.handling_per_kg must not be negative")
	}
	for name := range s.Features {
		if !slices.Contains(knownFeatures, name) {
			return fmt.Errorf("unknown feature %q", name)
		}
	}
	return nil
}

// FeatureEnabled reports whether a module is switched on. Unlisted features are on.
func (s Settings) FeatureEnabled(name string) bool {
	enabled, ok := s.Features[name]
	return !ok || enabled
}

// IssuerAllowed checks a payment issuer against the configured staff list.
// An empty list accepts any non-empty name.
func (s Settings) IssuerAllowed(name string) bool {
	if name == "" {
		return false
	}
	if len(s.PaymentIssuers) == 0 {
		return true
	}
	return slices.Contains(s.PaymentIssuers, name)
}

// RatesFromContext resolves the tenant's rates against base.
// Without a tenant in context the base rates are returned.
func RatesFromContext(ctx context.Context, base Rates) Rates {
	if t := GetTenant(ctx); t != nil {
		return t.Settings.Rates.Resolve(base)
	}
	return base
}

// SettingsFromContext returns the tenant settings or the zero value.
func SettingsFromContext(ctx context.Context) Settings {
	if t := GetTenant(ctx); t != nil {
		return t.Settings
	}
	return Settings{}
}
