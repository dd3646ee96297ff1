package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/tenant"
	"produceledger/internal/core/types"
)

func m(s string) types.Money { return types.MustMoney(s) }

type fakeRepo struct {
	sales     []SalesRow
	purchases []PurchaseRow
	overheads OverheadTotals
	lots      []LotStock
	err       error
	calls     int
}

func (f *fakeRepo) SalesRows(context.Context, Range) ([]SalesRow, error) {
	f.calls++
	return f.sales, f.err
}

func (f *fakeRepo) PurchaseRows(context.Context, Range) ([]PurchaseRow, error) {
	return f.purchases, nil
}

func (f *fakeRepo) OverheadTotals(context.Context, Range) (OverheadTotals, error) {
	return f.overheads, nil
}

func (f *fakeRepo) AvailableLots(context.Context) ([]LotStock, error) {
	return f.lots, nil
}

// mapCache is an in-process Cache with a manual version.
type mapCache struct {
	version int
	data    map[string][]byte
}

func (c *mapCache) BuildKey(_ context.Context, parts ...string) (string, error) {
	key := ""
	for _, p := range parts {
		key += p + ":"
	}
	return key + string(rune('0'+c.version)), nil
}

func (c *mapCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if raw, ok := c.data[key]; ok {
		return json.Unmarshal(raw, dest)
	}
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, _ := json.Marshal(v)
	c.data[key] = raw
	return json.Unmarshal(raw, dest)
}

var (
	kumar  = id.MustParse("01900000-0000-7000-8000-000000000001")
	ravi   = id.MustParse("01900000-0000-7000-8000-000000000002")
	farmCo = id.MustParse("01900000-0000-7000-8000-000000000003")
)

func sampleRepo() *fakeRepo {
	return &fakeRepo{
		sales: []SalesRow{
			{
				InvoiceID: id.New(), CustomerID: kumar, CustomerName: "Kumar Traders",
				NetTotal: m("1840"), TotalGrossWeight: m("100"), PaidAmount: m("1000"),
				NoOfCrates: m("10"), CostPerCrate: m("15"),
			},
			{
				InvoiceID: id.New(), CustomerID: ravi, CustomerName: "Ravi Fruits",
				NetTotal: m("500"), TotalGrossWeight: m("50"), PaidAmount: m("550"),
			},
		},
		purchases: []PurchaseRow{
			{InvoiceID: id.New(), VendorID: farmCo, VendorName: "Farm Co", NetTotal: m("1000")},
		},
		overheads: OverheadTotals{Expenses: m("100"), Packaging: m("50"), Damages: m("25")},
		lots: []LotStock{
			{PurchaseInvoiceID: id.New(), LotNumber: "LOT-01", Purchased: m("100"), Allocated: m("40"), Available: m("60")},
		},
	}
}

func TestDashboard_Totals(t *testing.T) {
	svc := NewService(sampleRepo(), nil, tenant.DefaultRates())

	d, err := svc.Dashboard(context.Background(), Range{})

	require.NoError(t, err)
	// 2090 after packaging + 550 for the second invoice
	assert.Equal(t, "2640.00", d.TotalSales.StringFixed(2))
	assert.Equal(t, "1000.00", d.TotalPurchases.StringFixed(2))
	assert.Equal(t, "1465.00", d.Profit.StringFixed(2))
	assert.Len(t, d.AvailableLots, 1)
}

func TestDashboard_TopDues(t *testing.T) {
	svc := NewService(sampleRepo(), nil, tenant.DefaultRates())

	d, err := svc.Dashboard(context.Background(), Range{})

	require.NoError(t, err)
	// Ravi has paid in full and is left out
	require.Len(t, d.TopCustomers, 1)
	assert.Equal(t, "Kumar Traders", d.TopCustomers[0].Name)
	assert.Equal(t, "1090.00", d.TopCustomers[0].Due.StringFixed(2))

	require.Len(t, d.TopVendors, 1)
	assert.Equal(t, "980.00", d.TopVendors[0].Due.StringFixed(2))
}

func TestDashboard_TenantRates(t *testing.T) {
	zero := types.Zero()
	ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{
		ID:       "acme",
		Settings: tenant.Settings{Rates: tenant.RateOverrides{SalesCommissionPerKg: &zero}},
	})
	svc := NewService(sampleRepo(), nil, tenant.DefaultRates())

	d, err := svc.Dashboard(ctx, Range{})

	require.NoError(t, err)
	assert.Equal(t, "2490.00", d.TotalSales.StringFixed(2))
}

func TestDashboard_Cached(t *testing.T) {
	repo := sampleRepo()
	cache := &mapCache{version: 1, data: map[string][]byte{}}
	svc := NewService(repo, cache, tenant.DefaultRates())
	ctx := context.Background()

	first, err := svc.Dashboard(ctx, Range{})
	require.NoError(t, err)
	second, err := svc.Dashboard(ctx, Range{})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.True(t, first.Profit.Equal(second.Profit))

	cache.version++
	_, err = svc.Dashboard(ctx, Range{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestDashboard_RangeValidation(t *testing.T) {
	svc := NewService(sampleRepo(), nil, tenant.DefaultRates())
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)

	_, err := svc.Dashboard(context.Background(), Range{From: &from, To: &to})

	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDashboard_RepoError(t *testing.T) {
	repo := sampleRepo()
	repo.err = errors.New("connection reset")
	svc := NewService(repo, nil, tenant.DefaultRates())

	_, err := svc.Dashboard(context.Background(), Range{})

	assert.ErrorContains(t, err, "connection reset")
}

func TestRangeKey(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "-..-", Range{}.key())
	assert.Equal(t, "2025-03-01..-", Range{From: &from}.key())
}
