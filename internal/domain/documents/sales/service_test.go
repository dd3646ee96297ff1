package sales

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/numerator"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/documents"
)

type fixture struct {
	svc      *Service
	repo     *memRepo
	lots     *lotStub
	customer *customer.Customer
	apple    *product.Product
	grapes   *product.Product
}

var may2025 = time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := documents.NewAttachmentCodec()
	require.NoError(t, err)

	f := &fixture{
		repo:     newMemRepo(),
		lots:     &lotStub{allocations: map[id.ID]id.ID{}},
		customer: customer.NewCustomer("Fresh Mart"),
		apple:    product.NewProduct("Apple", false),
		grapes:   product.NewProduct("Grapes", false),
	}
	f.svc = NewService(Config{
		Repo:      f.repo,
		Customers: customerStub{f.customer.ID: f.customer},
		Products:  productStub{f.apple.ID: f.apple, f.grapes.ID: f.grapes},
		Numerator: numerator.NewMemoryGenerator(),
		Lots:      f.lots,
		Codec:     codec,
		Rates:     tenant.DefaultRates(),
		TxManager: noTx{},
	})
	return f
}

func (f *fixture) line(productID id.ID, gw, discount, rotten, price string) LineInput {
	in := salesLine(gw, discount, rotten, price)
	in.ProductID = productID
	return in
}

func (f *fixture) create(t *testing.T, h HeaderInput, lines ...LineInput) *Invoice {
	t.Helper()
	h.CustomerID = f.customer.ID
	h.Date = may2025
	inv, err := f.svc.Create(context.Background(), CreateInput{HeaderInput: h, Lines: lines})
	require.NoError(t, err)
	return inv
}

func TestCreate_NumbersAndDraft(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, HeaderInput{}, f.line(f.apple.ID, "100", "5", "3", "20"))
	second := f.create(t, HeaderInput{})

	assert.Equal(t, "SA2025S01", first.InvoiceNumber)
	assert.Equal(t, "SA2025S02", second.InvoiceNumber)
	assert.Equal(t, StatusDraft, first.Status)
	require.Len(t, first.Lines, 1)
	assert.Equal(t, "92.00", first.Lines[0].NetWeight.StringFixed(2))
	assert.Equal(t, "1840.00", first.Lines[0].Total.StringFixed(2))
}

func TestCreate_RetriesOnNumberCollision(t *testing.T) {
	f := newFixture(t)
	f.repo.failCreate = 2

	inv := f.create(t, HeaderInput{})

	assert.Equal(t, "SA2025S03", inv.InvoiceNumber)
}

func TestCreate_GivesUpAfterThreeCollisions(t *testing.T) {
	f := newFixture(t)
	f.repo.failCreate = 3

	_, err := f.svc.Create(context.Background(), CreateInput{HeaderInput: HeaderInput{CustomerID: f.customer.ID}})

	assert.True(t, apperror.IsDuplicate(err))
}

func TestCreate_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{HeaderInput: HeaderInput{CustomerID: id.New()}})

	assert.True(t, apperror.IsNotFound(err))
}

func TestGet_Summary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, HeaderInput{NoOfCrates: m("10"), CostPerCrate: m("15")}, f.line(f.apple.ID, "100", "5", "3", "20"))

	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)

	s := got.Summary
	assert.Equal(t, "1840.00", s.NetTotal.StringFixed(2))
	assert.Equal(t, "100.00", s.Commission.StringFixed(2))
	assert.Equal(t, "2090.00", s.NetTotalAfterPackaging.StringFixed(2))
	assert.Equal(t, PaymentUnpaid, s.PaymentStatus)
}

func TestLines_AppendOnlySerials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, HeaderInput{}, f.line(f.apple.ID, "10", "0", "0", "1"), f.line(f.apple.ID, "10", "0", "0", "1"))

	require.NoError(t, f.svc.DeleteLine(ctx, inv.ID, inv.Lines[1].ID))
	added, err := f.svc.AddLine(ctx, inv.ID, f.line(f.grapes.ID, "5", "0", "0", "2"))
	require.NoError(t, err)

	assert.Equal(t, 3, added.SerialNumber)
	lines, _ := f.repo.GetLines(ctx, inv.ID)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].SerialNumber)
	assert.Equal(t, 3, lines[1].SerialNumber)
}

func TestUpdateLine_KeepsSerialAndRecalculates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, HeaderInput{}, f.line(f.apple.ID, "10", "0", "0", "1"))

	line, err := f.svc.UpdateLine(ctx, inv.ID, inv.Lines[0].ID, f.line(f.apple.ID, "100", "5", "3", "20"))

	require.NoError(t, err)
	assert.Equal(t, 1, line.SerialNumber)
	assert.Equal(t, "1840.00", line.Total.StringFixed(2))
}

func TestAddLine_ForeignAllocationRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, HeaderInput{})
	other := id.New()
	f.lots.allocations[other] = id.New()

	in := f.line(f.apple.ID, "1", "0", "0", "1")
	in.SalesLotID = &other
	_, err := f.svc.AddLine(ctx, inv.ID, in)

	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("requires lines", func(t *testing.T) {
		inv := f.create(t, HeaderInput{})
		_, err := f.svc.Finalize(ctx, inv.ID)
		assert.True(t, apperror.HasCode(err, apperror.CodeNotFinalizable))
	})

	t.Run("checks first line product", func(t *testing.T) {
		inv := f.create(t, HeaderInput{}, f.line(f.grapes.ID, "1", "0", "0", "1"), f.line(f.apple.ID, "1", "0", "0", "1"))
		done, err := f.svc.Finalize(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, f.grapes.ID, f.lots.checkedProduct)
		assert.True(t, done.IsFinalized())
		assert.NotNil(t, done.FinalizedAt)
	})

	t.Run("mismatch keeps draft", func(t *testing.T) {
		inv := f.create(t, HeaderInput{}, f.line(f.apple.ID, "1", "0", "0", "1"))
		f.lots.err = apperror.NewLotProductMismatch("LOT-01", "Apple")
		defer func() { f.lots.err = nil }()

		_, err := f.svc.Finalize(ctx, inv.ID)
		assert.True(t, apperror.HasCode(err, apperror.CodeLotProductMismatch))
		stored, _ := f.repo.GetByID(ctx, inv.ID)
		assert.Equal(t, StatusDraft, stored.Status)
	})
}

func TestFinalizedLineEdits_RecheckLots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mismatch := apperror.NewLotProductMismatch("LOT-01", "Grapes")

	finalized := func(t *testing.T, lines ...LineInput) (*Invoice, []*Line) {
		t.Helper()
		inv := f.create(t, HeaderInput{}, lines...)
		_, err := f.svc.Finalize(ctx, inv.ID)
		require.NoError(t, err)
		stored, err := f.repo.GetLines(ctx, inv.ID)
		require.NoError(t, err)
		return inv, stored
	}

	t.Run("changing first product is checked", func(t *testing.T) {
		inv, lines := finalized(t, f.line(f.apple.ID, "10", "0", "0", "5"))
		f.lots.err = mismatch
		defer func() { f.lots.err = nil }()

		_, err := f.svc.UpdateLine(ctx, inv.ID, lines[0].ID, f.line(f.grapes.ID, "10", "0", "0", "5"))
		assert.True(t, apperror.HasCode(err, apperror.CodeLotProductMismatch))
		assert.Equal(t, f.grapes.ID, f.lots.checkedProduct)
	})

	t.Run("same product skips the check", func(t *testing.T) {
		inv, lines := finalized(t, f.line(f.apple.ID, "10", "0", "0", "5"))
		f.lots.checkedProduct = id.ID{}
		f.lots.err = mismatch
		defer func() { f.lots.err = nil }()

		line, err := f.svc.UpdateLine(ctx, inv.ID, lines[0].ID, f.line(f.apple.ID, "10", "0", "0", "6"))
		require.NoError(t, err)
		assert.Equal(t, "60.00", line.Total.StringFixed(2))
		assert.Equal(t, id.ID{}, f.lots.checkedProduct)
	})

	t.Run("deleting first line checks the next one", func(t *testing.T) {
		inv, lines := finalized(t, f.line(f.apple.ID, "1", "0", "0", "1"), f.line(f.grapes.ID, "1", "0", "0", "1"))
		f.lots.err = mismatch
		defer func() { f.lots.err = nil }()

		err := f.svc.DeleteLine(ctx, inv.ID, lines[0].ID)
		assert.True(t, apperror.HasCode(err, apperror.CodeLotProductMismatch))
		assert.Equal(t, f.grapes.ID, f.lots.checkedProduct)
	})

	t.Run("last line cannot be deleted", func(t *testing.T) {
		inv, lines := finalized(t, f.line(f.apple.ID, "1", "0", "0", "1"))

		err := f.svc.DeleteLine(ctx, inv.ID, lines[0].ID)
		assert.True(t, apperror.HasCode(err, apperror.CodeNotFinalizable))
	})

	t.Run("draft invoices are not checked", func(t *testing.T) {
		inv := f.create(t, HeaderInput{}, f.line(f.apple.ID, "1", "0", "0", "1"))
		lines, err := f.repo.GetLines(ctx, inv.ID)
		require.NoError(t, err)
		f.lots.err = mismatch
		defer func() { f.lots.err = nil }()

		_, err = f.svc.UpdateLine(ctx, inv.ID, lines[0].ID, f.line(f.grapes.ID, "1", "0", "0", "1"))
		assert.NoError(t, err)
		assert.NoError(t, f.svc.DeleteLine(ctx, inv.ID, lines[0].ID))
	})
}

func TestPayments_CapIncludesPackaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, HeaderInput{NoOfCrates: m("10"), CostPerCrate: m("15")}, f.line(f.apple.ID, "100", "5", "3", "20"))

	p, err := f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: m("2000"), Mode: documents.PaymentUPI})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: m("90.01")})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodePaymentExceedsBalance))
	assert.Contains(t, err.Error(), "Total payment cannot exceed the net total after packaging: ₹2090.00")

	_, err = f.svc.UpdatePayment(ctx, inv.ID, p.ID, PaymentInput{Amount: m("2090")})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got.Summary.PaymentStatus)
	assert.True(t, got.Summary.DueAmount.IsZero())
}

func TestCustomerDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, HeaderInput{}, f.line(f.apple.ID, "100", "5", "3", "20"))
	f.create(t, HeaderInput{}, f.line(f.apple.ID, "10", "0", "0", "10"))
	_, err := f.svc.RecordPayment(ctx, a.ID, PaymentInput{Amount: m("940")})
	require.NoError(t, err)

	due, err := f.svc.CustomerDue(ctx, f.customer.ID)

	require.NoError(t, err)
	// (1840 + 100 - 940) + (100 + 10)
	assert.True(t, due.Equal(decimal.NewFromInt(1110)), "due %s", due)
}

func TestUpdateHeader_VersionConflict(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, HeaderInput{})

	_, err := f.svc.UpdateHeader(context.Background(), inv.ID, HeaderInput{CustomerID: f.customer.ID, Version: inv.Version + 5})

	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification))
}
