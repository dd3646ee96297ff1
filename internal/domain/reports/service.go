package reports

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/tenant"
	"produceledger/internal/core/types"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/domain/documents/sales"
)

// TopN is how many customers and vendors the dashboard ranks by due.
const TopN = 5

// Service computes reports.
type Service struct {
	repo  Repository
	cache Cache
	rates tenant.Rates
}

// NewService creates the reports service. cache may be nil.
func NewService(repo Repository, cache Cache, rates tenant.Rates) *Service {
	return &Service{repo: repo, cache: cache, rates: rates}
}

// Dashboard returns the profit and loss overview for r, served from cache
// until the tenant's data changes.
func (s *Service) Dashboard(ctx context.Context, r Range) (*Dashboard, error) {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return nil, apperror.NewValidation("date_from must not be after date_to")
	}
	if s.cache == nil {
		return s.compute(ctx, r)
	}

	key, err := s.cache.BuildKey(ctx, "dashboard", r.key())
	if err != nil {
		return s.compute(ctx, r)
	}
	var d Dashboard
	err = s.cache.FetchJSON(ctx, key, &d, func(ctx context.Context) (any, error) {
		return s.compute(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) compute(ctx context.Context, r Range) (*Dashboard, error) {
	var (
		salesRows    []SalesRow
		purchaseRows []PurchaseRow
		overheads    OverheadTotals
		lots         []LotStock
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		salesRows, err = s.repo.SalesRows(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		purchaseRows, err = s.repo.PurchaseRows(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		overheads, err = s.repo.OverheadTotals(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		lots, err = s.repo.AvailableLots(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	rates := tenant.RatesFromContext(ctx, s.rates)
	d := &Dashboard{
		From:           r.From,
		To:             r.To,
		TotalExpenses:  types.Round2(overheads.Expenses),
		TotalPackaging: types.Round2(overheads.Packaging),
		TotalDamages:   types.Round2(overheads.Damages),
		AvailableLots:  lots,
	}
	if d.AvailableLots == nil {
		d.AvailableLots = []LotStock{}
	}

	customers := newDueBook()
	for _, row := range salesRows {
		summary := sales.Summarize(&sales.Invoice{
			NoOfCrates:               row.NoOfCrates,
			CostPerCrate:             row.CostPerCrate,
			PurchasedCratesQuantity:  row.PurchasedCratesQuantity,
			PurchasedCratesUnitPrice: row.PurchasedCratesUnitPrice,
		}, sales.Aggregates{
			NetTotal:         row.NetTotal,
			TotalGrossWeight: row.TotalGrossWeight,
			PaidAmount:       row.PaidAmount,
		}, rates.SalesCommissionPerKg)
		d.TotalSales = d.TotalSales.Add(summary.NetTotalAfterPackaging)
		customers.add(row.CustomerID, row.CustomerName, summary.DueAmount)
	}

	vendors := newDueBook()
	for _, row := range purchaseRows {
		summary := purchase.Summarize(row.NetTotal, purchase.Aggregates{PaidAmount: row.PaidAmount}, rates.CashCutting)
		d.TotalPurchases = d.TotalPurchases.Add(summary.NetTotal)
		vendors.add(row.VendorID, row.VendorName, summary.DueAmount)
	}

	costs := types.Sum(d.TotalPurchases, d.TotalExpenses, d.TotalPackaging, d.TotalDamages)
	d.Profit = d.TotalSales.Sub(costs)
	d.TopCustomers = customers.top(TopN)
	d.TopVendors = vendors.top(TopN)
	return d, nil
}

// dueBook accumulates dues per party.
type dueBook struct {
	order []id.ID
	byID  map[id.ID]*PartyDue
}

func newDueBook() *dueBook {
	return &dueBook{byID: make(map[id.ID]*PartyDue)}
}

func (b *dueBook) add(partyID id.ID, name string, due types.Money) {
	p, ok := b.byID[partyID]
	if !ok {
		p = &PartyDue{ID: partyID, Name: name}
		b.byID[partyID] = p
		b.order = append(b.order, partyID)
	}
	p.Due = p.Due.Add(due)
}

// top returns up to n parties with a positive due, largest first, ties by name.
func (b *dueBook) top(n int) []PartyDue {
	out := make([]PartyDue, 0, len(b.order))
	for _, partyID := range b.order {
		if p := b.byID[partyID]; p.Due.IsPositive() {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Due.Cmp(out[j].Due); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
