package sales

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
)

type memRepo struct {
	mu         sync.Mutex
	invoices   map[id.ID]*Invoice
	lines      map[id.ID][]*Line
	payments   map[id.ID][]*Payment
	failCreate int
}

func newMemRepo() *memRepo {
	return &memRepo{
		invoices: map[id.ID]*Invoice{},
		lines:    map[id.ID][]*Line{},
		payments: map[id.ID][]*Payment{},
	}
}

func (r *memRepo) Create(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate > 0 {
		r.failCreate--
		return apperror.NewDuplicate("sales invoice", "invoice_number", inv.InvoiceNumber)
	}
	cp := *inv
	cp.Lines, cp.Payments = nil, nil
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memRepo) get(invoiceID id.ID) (*Invoice, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return nil, apperror.NewNotFound("sales invoice", invoiceID.String())
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

func (r *memRepo) UpdateHeader(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	cp.Version++
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memRepo) SetStatus(_ context.Context, invoiceID id.ID, status Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[invoiceID].Status = status
	r.invoices[invoiceID].FinalizedAt = &at
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
	for invID, inv := range r.invoices {
		if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
			continue
		}
		if f.Status != nil && inv.Status != *f.Status {
			continue
		}
		cp, _ := r.get(invID)
		res.Items = append(res.Items, cp)
	}
	sort.Slice(res.Items, func(i, j int) bool { return res.Items[i].InvoiceNumber < res.Items[j].InvoiceNumber })
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

func (r *memRepo) ListByCustomer(ctx context.Context, customerID id.ID) ([]*Invoice, error) {
	res, err := r.List(ctx, ListFilter{CustomerID: &customerID})
	return res.Items, err
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
	return apperror.NewNotFound("sales line", l.ID.String())
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
	return apperror.NewNotFound("sales line", lineID.String())
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
	return nil, apperror.NewNotFound("sales line", lineID.String())
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

func (r *memRepo) LastSerial(_ context.Context, invoiceID id.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := 0
	for _, l := range r.lines[invoiceID] {
		last = max(last, l.SerialNumber)
	}
	return last, nil
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
		agg := Aggregates{NetTotal: decimal.Zero, TotalGrossWeight: decimal.Zero, PaidAmount: decimal.Zero}
		for _, l := range r.lines[invID] {
			agg.NetTotal = agg.NetTotal.Add(l.Total)
			agg.TotalGrossWeight = agg.TotalGrossWeight.Add(l.GrossWeight)
		}
		for _, p := range r.payments[invID] {
			agg.PaidAmount = agg.PaidAmount.Add(p.Amount)
		}
		out[invID] = agg
	}
	return out, nil
}

type noTx struct{}

func (noTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type customerStub map[id.ID]*customer.Customer

func (c customerStub) GetByID(_ context.Context, customerID id.ID) (*customer.Customer, error) {
	if found, ok := c[customerID]; ok {
		return found, nil
	}
	return nil, apperror.NewNotFound("customer", customerID.String())
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

// lotStub records consistency calls and fails them with err.
type lotStub struct {
	checkedProduct id.ID
	err            error
	allocations    map[id.ID]id.ID
}

func (l *lotStub) CheckConsistency(_ context.Context, _, productID id.ID) error {
	l.checkedProduct = productID
	return l.err
}

func (l *lotStub) CheckAllocation(_ context.Context, salesInvoiceID, allocationID id.ID) error {
	if l.allocations[allocationID] != salesInvoiceID {
		return apperror.NewValidation("lot allocation does not belong to this invoice")
	}
	return nil
}
