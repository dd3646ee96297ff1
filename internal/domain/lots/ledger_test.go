package lots

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain/catalogs/product"
)

type memLot struct {
	number   string
	products map[id.ID]decimal.Decimal
}

type memRepo struct {
	mu          sync.Mutex
	allocations map[id.ID]*Allocation
	lots        map[id.ID]*memLot
	sales       map[id.ID]*SalesHeader
	// lineRefs maps line IDs to the allocation they reference
	lineRefs map[id.ID]id.ID
}

func newMemRepo() *memRepo {
	return &memRepo{
		allocations: map[id.ID]*Allocation{},
		lots:        map[id.ID]*memLot{},
		sales:       map[id.ID]*SalesHeader{},
		lineRefs:    map[id.ID]id.ID{},
	}
}

func (r *memRepo) Insert(_ context.Context, a *Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.allocations {
		if other.SalesInvoiceID == a.SalesInvoiceID && other.PurchaseInvoiceID == a.PurchaseInvoiceID {
			return apperror.NewDuplicate("sales lot", "sales_lots_pair_key", a.PurchaseInvoiceID.String())
		}
	}
	cp := *a
	r.allocations[a.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, a *Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.allocations[a.ID] = &cp
	return nil
}

func (r *memRepo) Delete(_ context.Context, allocationID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allocations, allocationID)
	return nil
}

func (r *memRepo) Get(_ context.Context, allocationID id.ID) (*Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.allocations[allocationID]
	if !ok {
		return nil, apperror.NewNotFound("sales lot", allocationID.String())
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListBySalesInvoice(_ context.Context, salesInvoiceID id.ID) ([]*Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Allocation
	for _, a := range r.allocations {
		if a.SalesInvoiceID == salesInvoiceID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) ClearLineReferences(_ context.Context, allocationID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for line, ref := range r.lineRefs {
		if ref == allocationID {
			delete(r.lineRefs, line)
		}
	}
	return nil
}

func (r *memRepo) LockSalesInvoice(_ context.Context, salesInvoiceID id.ID) (*SalesHeader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sales[salesInvoiceID]
	if !ok {
		return nil, apperror.NewNotFound("sales invoice", salesInvoiceID.String())
	}
	cp := *h
	return &cp, nil
}

func (r *memRepo) LockLot(_ context.Context, purchaseInvoiceID id.ID) (*Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[purchaseInvoiceID]
	if !ok {
		return nil, apperror.NewNotFound("purchase invoice", purchaseInvoiceID.String())
	}
	purchased := decimal.Zero
	for _, q := range lot.products {
		purchased = purchased.Add(q)
	}
	return &Lot{PurchaseInvoiceID: purchaseInvoiceID, LotNumber: lot.number, Purchased: purchased}, nil
}

func (r *memRepo) AllocatedQuantity(_ context.Context, purchaseInvoiceID id.ID, excludeID *id.ID) (types.Weight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, a := range r.allocations {
		if a.PurchaseInvoiceID != purchaseInvoiceID || (excludeID != nil && a.ID == *excludeID) {
			continue
		}
		total = total.Add(a.Quantity)
	}
	return total, nil
}

func (r *memRepo) LotHasProduct(_ context.Context, purchaseInvoiceID, productID id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.lots[purchaseInvoiceID].products[productID]
	return ok, nil
}

type noTx struct{}

func (noTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type productStub map[id.ID]*product.Product

func (p productStub) GetMany(_ context.Context, ids []id.ID) (map[id.ID]*product.Product, error) {
	out := map[id.ID]*product.Product{}
	for _, pid := range ids {
		if found, ok := p[pid]; ok {
			out[pid] = found
		}
	}
	return out, nil
}

type fixture struct {
	ledger *Ledger
	repo   *memRepo
	mango  *product.Product
	apple  *product.Product
	lot    id.ID
	sale   id.ID
}

func newFixture() *fixture {
	f := &fixture{
		repo:  newMemRepo(),
		mango: product.NewProduct("Mango", false),
		apple: product.NewProduct("Apple", false),
		lot:   id.New(),
		sale:  id.New(),
	}
	f.repo.lots[f.lot] = &memLot{number: "LOT-07", products: map[id.ID]decimal.Decimal{f.mango.ID: decimal.NewFromInt(100)}}
	f.repo.sales[f.sale] = &SalesHeader{ID: f.sale, InvoiceNumber: "SA2025S01", Status: "draft"}
	f.ledger = NewLedger(f.repo, productStub{f.mango.ID: f.mango, f.apple.ID: f.apple}, noTx{})
	return f
}

func kg(s string) decimal.Decimal { return types.MustMoney(s) }

func TestAllocate_Capacity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	other := id.New()
	f.repo.sales[other] = &SalesHeader{ID: other, InvoiceNumber: "SA2025S02", Status: "draft"}

	_, err := f.ledger.Allocate(ctx, f.sale, f.lot, kg("60"))
	require.NoError(t, err)

	_, err = f.ledger.Allocate(ctx, other, f.lot, kg("45"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeLotCapacityExceeded))
	assert.Contains(t, err.Error(), "Only 40.00kg available in LOT-07")
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "5.00", appErr.Details["shortfall"])

	_, err = f.ledger.Allocate(ctx, other, f.lot, kg("40"))
	assert.NoError(t, err)
}

func TestAllocate_RejectsNonPositive(t *testing.T) {
	f := newFixture()

	_, err := f.ledger.Allocate(context.Background(), f.sale, f.lot, kg("0"))

	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestAllocate_DuplicatePairIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.ledger.Allocate(ctx, f.sale, f.lot, kg("10"))
	require.NoError(t, err)

	_, err = f.ledger.Allocate(ctx, f.sale, f.lot, kg("10"))

	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestAllocate_DraftDefersProductCheck(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.sales[f.sale].FirstProductID = &f.apple.ID

	_, err := f.ledger.Allocate(ctx, f.sale, f.lot, kg("10"))
	require.NoError(t, err)

	err = f.ledger.CheckConsistency(ctx, f.sale, f.apple.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeLotProductMismatch))
	assert.Contains(t, err.Error(), "Lot LOT-07 doesn't contain Apple")
	assert.NoError(t, f.ledger.CheckConsistency(ctx, f.sale, f.mango.ID))
}

func TestAllocate_FinalizedChecksImmediately(t *testing.T) {
	f := newFixture()
	f.repo.sales[f.sale].Status = "finalized"
	f.repo.sales[f.sale].FirstProductID = &f.apple.ID

	_, err := f.ledger.Allocate(context.Background(), f.sale, f.lot, kg("10"))

	assert.True(t, apperror.HasCode(err, apperror.CodeLotProductMismatch))
	assert.Empty(t, f.repo.allocations)
}

func TestUpdateAllocation_ExcludesOwnQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.ledger.Allocate(ctx, f.sale, f.lot, kg("80"))
	require.NoError(t, err)

	updated, err := f.ledger.UpdateAllocation(ctx, f.sale, a.ID, kg("100"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", updated.Quantity.StringFixed(2))

	_, err = f.ledger.UpdateAllocation(ctx, f.sale, a.ID, kg("100.01"))
	assert.True(t, apperror.HasCode(err, apperror.CodeLotCapacityExceeded))
	assert.Contains(t, err.Error(), "Only 100.00kg available in LOT-07")
}

func TestUpdateAllocation_OtherInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.ledger.Allocate(ctx, f.sale, f.lot, kg("1"))
	require.NoError(t, err)
	other := id.New()
	f.repo.sales[other] = &SalesHeader{ID: other, Status: "draft"}

	_, err = f.ledger.UpdateAllocation(ctx, other, a.ID, kg("2"))

	assert.True(t, apperror.IsNotFound(err))
}

func TestRemoveAllocation_ClearsLines(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.ledger.Allocate(ctx, f.sale, f.lot, kg("5"))
	require.NoError(t, err)
	line := id.New()
	f.repo.lineRefs[line] = a.ID
	require.NoError(t, f.ledger.CheckAllocation(ctx, f.sale, a.ID))

	require.NoError(t, f.ledger.RemoveAllocation(ctx, f.sale, a.ID))

	assert.Empty(t, f.repo.lineRefs)
	list, err := f.ledger.ListAllocations(ctx, f.sale)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.True(t, apperror.HasCode(f.ledger.CheckAllocation(ctx, f.sale, a.ID), apperror.CodeValidation))
}
