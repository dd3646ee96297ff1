package purchase

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/catalogs/vendor"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu        sync.Mutex
	invoices  map[id.ID]*Invoice
	lines     map[id.ID][]*Line
	payments  map[id.ID][]*Payment
	allocated map[id.ID]decimal.Decimal
	sold      map[id.ID][]soldLine
	// failCreate makes the next n creates fail with a duplicate number
	failCreate int
}

func newMemRepo() *memRepo {
	return &memRepo{
		invoices:  map[id.ID]*Invoice{},
		lines:     map[id.ID][]*Line{},
		payments:  map[id.ID][]*Payment{},
		allocated: map[id.ID]decimal.Decimal{},
		sold:      map[id.ID][]soldLine{},
	}
}

// soldLine is a sales line as seen from a purchase lot; linked reports whether
// it references a lot allocation on that lot.
type soldLine struct {
	productID   id.ID
	grossWeight decimal.Decimal
	linked      bool
}

func (r *memRepo) Create(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate > 0 {
		r.failCreate--
		return apperror.NewDuplicate("purchase invoice", "purchase_invoices_invoice_number_key", inv.InvoiceNumber)
	}
	for _, other := range r.invoices {
		if other.InvoiceNumber == inv.InvoiceNumber || other.LotNumber == inv.LotNumber {
			return apperror.NewDuplicate("purchase invoice", "number", inv.InvoiceNumber)
		}
	}
	cp := *inv
	cp.Lines, cp.Payments = nil, nil
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memRepo) get(invoiceID id.ID) (*Invoice, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return nil, apperror.NewNotFound("purchase invoice", invoiceID.String())
	}
	cp := *inv
	return &cp, nil
}

func (r *memRepo) GetByID(_ context.Context, invoiceID id.ID) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(invoiceID)
}

func (r *memRepo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return r.GetByID(ctx, invoiceID)
}

func (r *memRepo) GetByLotNumber(_ context.Context, lotNumber string) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.LotNumber == lotNumber {
			return r.get(inv.ID)
		}
	}
	return nil, apperror.NewNotFound("purchase invoice", lotNumber)
}

func (r *memRepo) UpdateHeader(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.invoices[inv.ID]
	stored.VendorID, stored.Date, stored.PaymentIssuerName = inv.VendorID, inv.Date, inv.PaymentIssuerName
	stored.Version++
	return nil
}

func (r *memRepo) SetNetTotal(_ context.Context, invoiceID id.ID, net types.Money) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[invoiceID].NetTotal = net
	return nil
}

func (r *memRepo) Delete(_ context.Context, invoiceID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.invoices, invoiceID)
	delete(r.lines, invoiceID)
	delete(r.payments, invoiceID)
	return nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) (domain.ListResult[*Invoice], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := domain.ListResult[*Invoice]{Limit: f.Limit, Offset: f.Offset}
	for invID := range r.invoices {
		inv, _ := r.get(invID)
		res.Items = append(res.Items, inv)
	}
	sort.Slice(res.Items, func(i, j int) bool { return res.Items[i].InvoiceNumber < res.Items[j].InvoiceNumber })
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

func (r *memRepo) InsertLines(ctx context.Context, lines []*Line) error {
	for _, l := range lines {
		if err := r.InsertLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRepo) InsertLine(_ context.Context, l *Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.lines[l.InvoiceID] = append(r.lines[l.InvoiceID], &cp)
	return nil
}

func (r *memRepo) UpdateLine(_ context.Context, l *Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.lines[l.InvoiceID] {
		if existing.ID == l.ID {
			cp := *l
			r.lines[l.InvoiceID][i] = &cp
			return nil
		}
	}
	return apperror.NewNotFound("purchase line", l.ID.String())
}

func (r *memRepo) DeleteLine(_ context.Context, invoiceID, lineID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.lines[invoiceID]
	for i, l := range lines {
		if l.ID == lineID {
			r.lines[invoiceID] = append(lines[:i:i], lines[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("purchase line", lineID.String())
}

func (r *memRepo) GetLine(_ context.Context, invoiceID, lineID id.ID) (*Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines[invoiceID] {
		if l.ID == lineID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("purchase line", lineID.String())
}

func (r *memRepo) GetLines(_ context.Context, invoiceID id.ID) ([]*Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Line, 0, len(r.lines[invoiceID]))
	for _, l := range r.lines[invoiceID] {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, nil
}

func (r *memRepo) ResequenceLines(_ context.Context, invoiceID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.lines[invoiceID]
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].CreatedAt.Before(lines[j].CreatedAt)
		}
		return lines[i].ID.String() < lines[j].ID.String()
	})
	for i, l := range lines {
		l.SerialNumber = i + 1
	}
	return nil
}

func (r *memRepo) SumLineTotals(_ context.Context, invoiceID id.ID) (types.Money, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return NetTotal(r.lines[invoiceID]), nil
}

func (r *memRepo) InsertPayment(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.InvoiceID] = append(r.payments[p.InvoiceID], &cp)
	return nil
}

func (r *memRepo) UpdatePayment(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.payments[p.InvoiceID] {
		if existing.ID == p.ID {
			cp := *p
			r.payments[p.InvoiceID][i] = &cp
			return nil
		}
	}
	return apperror.NewNotFound("payment", p.ID.String())
}

func (r *memRepo) DeletePayment(_ context.Context, invoiceID, paymentID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.payments[invoiceID]
	for i, p := range ps {
		if p.ID == paymentID {
			r.payments[invoiceID] = append(ps[:i:i], ps[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("payment", paymentID.String())
}

func (r *memRepo) GetPayment(_ context.Context, invoiceID, paymentID id.ID) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments[invoiceID] {
		if p.ID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("payment", paymentID.String())
}

func (r *memRepo) GetPayments(_ context.Context, invoiceID id.ID) ([]*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Payment(nil), r.payments[invoiceID]...), nil
}

func (r *memRepo) SumPayments(_ context.Context, invoiceID id.ID, excludeID *id.ID) (types.Money, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, p := range r.payments[invoiceID] {
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (r *memRepo) Aggregates(_ context.Context, ids []id.ID) (map[id.ID]Aggregates, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[id.ID]Aggregates, len(ids))
	for _, invID := range ids {
		agg := Aggregates{PurchasedQuantity: decimal.Zero, AllocatedQuantity: r.allocated[invID], PaidAmount: decimal.Zero}
		for _, l := range r.lines[invID] {
			agg.PurchasedQuantity = agg.PurchasedQuantity.Add(l.Quantity)
		}
		for _, p := range r.payments[invID] {
			agg.PaidAmount = agg.PaidAmount.Add(p.Amount)
		}
		out[invID] = agg
	}
	return out, nil
}

func (r *memRepo) ProductQuantities(_ context.Context, invoiceID id.ID) ([]ProductQuantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byProduct := map[id.ID]*ProductQuantity{}
	var out []ProductQuantity
	for _, l := range r.lines[invoiceID] {
		pq, ok := byProduct[l.ProductID]
		if !ok {
			pq = &ProductQuantity{ProductID: l.ProductID, Purchased: decimal.Zero, Sold: decimal.Zero}
			byProduct[l.ProductID] = pq
		}
		pq.Purchased = pq.Purchased.Add(l.Quantity)
	}
	for _, sl := range r.sold[invoiceID] {
		if pq, ok := byProduct[sl.productID]; ok && sl.linked {
			pq.Sold = pq.Sold.Add(sl.grossWeight)
		}
	}
	for _, pq := range byProduct {
		out = append(out, *pq)
	}
	return out, nil
}

// noTx runs fn directly.
type noTx struct{}

func (noTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type vendorStub map[id.ID]*vendor.Vendor

func (v vendorStub) GetByID(_ context.Context, vendorID id.ID) (*vendor.Vendor, error) {
	if found, ok := v[vendorID]; ok {
		return found, nil
	}
	return nil, apperror.NewNotFound("vendor", vendorID.String())
}

type productStub map[id.ID]*product.Product

func (p productStub) GetMany(_ context.Context, ids []id.ID) (map[id.ID]*product.Product, error) {
	out := map[id.ID]*product.Product{}
	for _, pid := range ids {
		found, ok := p[pid]
		if !ok {
			return nil, apperror.NewNotFound("product", pid.String())
		}
		out[pid] = found
	}
	return out, nil
}
