package purchase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/catalogs/product"
)

func tenantCtx(rule string) context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{
		ID:       "t1",
		Status:   tenant.StatusActive,
		Settings: tenant.Settings{HandlingExemptRule: rule},
	})
}

func TestRulePolicy_DefaultsToWasteFlag(t *testing.T) {
	policy, err := NewRulePolicy()
	require.NoError(t, err)

	exempt, err := policy.Exempt(context.Background(), product.NewProduct("Rotten", true))
	require.NoError(t, err)
	assert.True(t, exempt)

	exempt, err = policy.Exempt(context.Background(), product.NewProduct("Mango", false))
	require.NoError(t, err)
	assert.False(t, exempt)
}

func TestRulePolicy_TenantRule(t *testing.T) {
	policy, err := NewRulePolicy()
	require.NoError(t, err)
	ctx := tenantCtx(`product.is_waste_category || product.name in ["Sorting Waste"]`)

	exempt, err := policy.Exempt(ctx, product.NewProduct("Sorting Waste", false))
	require.NoError(t, err)
	assert.True(t, exempt)

	exempt, err = policy.Exempt(ctx, product.NewProduct("Mango", false))
	require.NoError(t, err)
	assert.False(t, exempt)
}

func TestRulePolicy_InvalidRule(t *testing.T) {
	policy, err := NewRulePolicy()
	require.NoError(t, err)

	_, err = policy.Compile(`product.name +`)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = policy.Compile(`"not a bool"`)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
