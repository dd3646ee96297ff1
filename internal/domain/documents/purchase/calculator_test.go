package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
)

var handling = types.MustMoney("0.40")

func line(qty, price, damage, discount, rotten string) LineInput {
	return LineInput{
		ProductID: id.New(),
		Quantity:  types.MustMoney(qty),
		Price:     types.MustMoney(price),
		Damage:    types.MustMoney(damage),
		Discount:  types.MustMoney(discount),
		Rotten:    types.MustMoney(rotten),
	}
}

func TestCalculateLine(t *testing.T) {
	tests := []struct {
		name   string
		in     LineInput
		exempt bool
		lu     string
		total  string
	}{
		{"reference example", line("100", "50", "5", "10", "2"), false, "40.00", "4145.00"},
		{"waste product has no handling", line("100", "50", "5", "10", "2"), true, "0.00", "4185.00"},
		{"no deductions", line("10", "20", "0", "0", "0"), false, "4.00", "196.00"},
		{"fully spoiled floors at a paisa", line("10", "20", "6", "0", "6"), false, "4.00", "0.01"},
		{"handling exceeds value", line("10", "0.30", "0", "0", "0"), false, "4.00", "0.01"},
		{"exempt zero price floors", line("10", "0", "0", "0", "0"), true, "0.00", "0.01"},
		{"full discount", line("10", "20", "0", "100", "0"), false, "4.00", "0.01"},
		{"rounds half up", line("1", "10.005", "0", "0", "0"), true, "0.00", "10.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateLine(tt.in, handling, tt.exempt)
			assert.Equal(t, tt.lu, got.LoadingUnloading.StringFixed(2))
			assert.Equal(t, tt.total, got.Total.StringFixed(2))
			assert.True(t, got.Total.IsPositive())
		})
	}
}

func TestCalculateLine_Intermediates(t *testing.T) {
	got := CalculateLine(line("100", "50", "5", "10", "2"), handling, false)

	assert.Equal(t, "93", got.PhysicalQuantity.String())
	assert.Equal(t, "4650", got.BasePriceTotal.String())
	assert.Equal(t, "465", got.DiscountAmount.String())
	assert.Equal(t, "4185", got.PriceAfterDiscount.String())
}

func TestLineInput_Validate(t *testing.T) {
	require.NoError(t, line("1", "1", "0", "0", "0").Validate(1))

	bad := []LineInput{
		line("0", "1", "0", "0", "0"),
		line("1", "-1", "0", "0", "0"),
		line("1", "1", "-1", "0", "0"),
		line("1", "1", "0", "101", "0"),
		line("1", "1", "0", "0", "-0.5"),
		{Quantity: types.MustMoney("1")},
	}
	for i, in := range bad {
		assert.Error(t, in.Validate(i+1), "case %d", i)
	}
}

func TestAfterCashCutting(t *testing.T) {
	assert.Equal(t, "4062.10", AfterCashCutting(types.MustMoney("4145"), types.MustMoney("0.02")).StringFixed(2))
	assert.Equal(t, "0.01", AfterCashCutting(types.MustMoney("0.01"), types.MustMoney("0.02")).StringFixed(2))
}

func TestSummarize(t *testing.T) {
	agg := Aggregates{
		PurchasedQuantity: types.MustMoney("100"),
		AllocatedQuantity: types.MustMoney("40"),
		PaidAmount:        types.MustMoney("1000"),
	}

	s := Summarize(types.MustMoney("4145"), agg, types.MustMoney("0.02"))

	assert.Equal(t, "4062.10", s.NetTotalAfterCashCutting.StringFixed(2))
	assert.Equal(t, "3062.10", s.DueAmount.StringFixed(2))
	assert.Equal(t, "60", s.AvailableQuantity.String())
}

func TestNetTotal(t *testing.T) {
	lines := []*Line{{Total: types.MustMoney("4145")}, {Total: types.MustMoney("0.01")}}
	assert.Equal(t, "4145.01", NetTotal(lines).StringFixed(2))
	assert.True(t, NetTotal(nil).IsZero())
}
