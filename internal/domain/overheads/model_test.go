package overheads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/types"
)

func TestPackaging_Total(t *testing.T) {
	p := NewPackaging()
	assert.Equal(t, "0.00", p.Total().StringFixed(2))

	p.NoOfCrates = 12
	p.CostPerCrate = types.MustMoney("17.5")
	assert.Equal(t, "210.00", p.Total().StringFixed(2))
}

func TestPackaging_Validate(t *testing.T) {
	p := NewPackaging()
	p.NoOfCrates = -1
	assert.True(t, apperror.HasCode(p.Validate(context.Background()), apperror.CodeValidation))
}

func TestExpense_Validate(t *testing.T) {
	ctx := context.Background()
	e := NewExpense()
	e.PaidBy, e.PaidTo, e.Description = "Suresh", "Diesel pump", "truck fuel"
	e.Amount = types.MustMoney("1500.456")

	require.NoError(t, e.Validate(ctx))
	assert.Equal(t, "1500.46", e.Amount.StringFixed(2))

	e.PaidTo = "  "
	assert.Error(t, e.Validate(ctx))
}

func TestDamage_Validate(t *testing.T) {
	ctx := context.Background()
	d := NewDamage()
	d.Name, d.DueTo, d.Description = "Cold store", "power cut", "two pallets spoiled"
	d.AmountLoss = types.MustMoney("-1")

	err := d.Validate(ctx)

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "amountLoss", appErr.Details["field"])
}
