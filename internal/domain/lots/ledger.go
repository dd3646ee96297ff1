package lots

import (
	"context"
	"fmt"
	"time"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/tx"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/pkg/logger"
)

// ProductLookup resolves product names for mismatch messages.
type ProductLookup interface {
	GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*product.Product, error)
}

// Ledger allocates purchase lot quantity to sales invoices.
//
// Capacity is checked when an allocation is written, under a row lock on the lot.
// Product consistency is deferred to Finalize of the sales invoice; once an invoice
// is finalized, allocation writes run that check immediately.
type Ledger struct {
	repo      Repository
	products  ProductLookup
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Allocation]
}

func NewLedger(repo Repository, products ProductLookup, txManager tx.Manager) *Ledger {
	return &Ledger{
		repo:      repo,
		products:  products,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*Allocation](),
	}
}

func (l *Ledger) Hooks() *domain.HookRegistry[*Allocation] {
	return l.hooks
}

func (l *Ledger) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txm, err := domain.TxManagerOrContext(ctx, l.txManager)
	if err != nil {
		return err
	}
	return txm.RunInTransaction(ctx, fn)
}

func (l *Ledger) notify(ctx context.Context, event domain.HookEvent, a *Allocation) {
	if err := l.hooks.Run(ctx, event, a); err != nil {
		logger.Warn(ctx, "lot hook failed", "event", event, "allocation_id", a.ID, "error", err)
	}
}

func validateQuantity(q types.Weight) error {
	if !q.IsPositive() {
		return apperror.NewValidation("quantity must be greater than zero").WithDetail("field", "quantity")
	}
	return nil
}

// checkCapacity locks the lot and rejects quantity beyond what is left,
// not counting the allocation's own previous quantity.
func (l *Ledger) checkCapacity(ctx context.Context, purchaseInvoiceID id.ID, quantity types.Weight, exclude *id.ID) (*Lot, error) {
	lot, err := l.repo.LockLot(ctx, purchaseInvoiceID)
	if err != nil {
		return nil, err
	}
	allocated, err := l.repo.AllocatedQuantity(ctx, purchaseInvoiceID, exclude)
	if err != nil {
		return nil, fmt.Errorf("allocated quantity: %w", err)
	}
	available := lot.Purchased.Sub(allocated)
	if quantity.GreaterThan(available) {
		return nil, apperror.NewLotCapacityExceeded(
			lot.LotNumber,
			quantity.StringFixed(2),
			available.StringFixed(2),
			quantity.Sub(available).StringFixed(2),
		)
	}
	return lot, nil
}

// checkLot verifies one lot carries productID.
func (l *Ledger) checkLot(ctx context.Context, purchaseInvoiceID id.ID, lotNumber string, productID id.ID) error {
	ok, err := l.repo.LotHasProduct(ctx, purchaseInvoiceID, productID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	name := productID.String()
	if found, err := l.products.GetMany(ctx, []id.ID{productID}); err == nil {
		name = found[productID].Name
	}
	return apperror.NewLotProductMismatch(lotNumber, name)
}

// checkIfFinalized runs the product check right away for finalized invoices.
func (l *Ledger) checkIfFinalized(ctx context.Context, header *SalesHeader, lot *Lot) error {
	if !header.IsFinalized() || header.FirstProductID == nil {
		return nil
	}
	return l.checkLot(ctx, lot.PurchaseInvoiceID, lot.LotNumber, *header.FirstProductID)
}

// Allocate draws quantity from a purchase lot for a sales invoice.
func (l *Ledger) Allocate(ctx context.Context, salesInvoiceID, purchaseInvoiceID id.ID, quantity types.Weight) (*Allocation, error) {
	quantity = types.Round2(quantity)
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	a := &Allocation{
		ID:                id.New(),
		SalesInvoiceID:    salesInvoiceID,
		PurchaseInvoiceID: purchaseInvoiceID,
		Quantity:          quantity,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := l.inTx(ctx, func(ctx context.Context) error {
		header, err := l.repo.LockSalesInvoice(ctx, salesInvoiceID)
		if err != nil {
			return err
		}
		lot, err := l.checkCapacity(ctx, purchaseInvoiceID, quantity, nil)
		if err != nil {
			return err
		}
		if err := l.checkIfFinalized(ctx, header, lot); err != nil {
			return err
		}
		a.LotNumber = lot.LotNumber
		if err := l.repo.Insert(ctx, a); err != nil {
			if apperror.IsDuplicate(err) {
				return apperror.NewConflict(fmt.Sprintf("Lot %s is already allocated to invoice %s", lot.LotNumber, header.InvoiceNumber)).
					WithDetail("lot_number", lot.LotNumber).
					WithCause(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.notify(ctx, domain.AfterCreate, a)
	logger.Info(ctx, "lot allocated",
		"sales_invoice_id", salesInvoiceID, "lot_number", a.LotNumber, "quantity", quantity.StringFixed(2))
	return a, nil
}

// UpdateAllocation changes the drawn quantity. The lot itself cannot be changed.
func (l *Ledger) UpdateAllocation(ctx context.Context, salesInvoiceID, allocationID id.ID, quantity types.Weight) (*Allocation, error) {
	quantity = types.Round2(quantity)
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	var a *Allocation
	err := l.inTx(ctx, func(ctx context.Context) error {
		header, err := l.repo.LockSalesInvoice(ctx, salesInvoiceID)
		if err != nil {
			return err
		}
		if a, err = l.owned(ctx, salesInvoiceID, allocationID); err != nil {
			return err
		}
		lot, err := l.checkCapacity(ctx, a.PurchaseInvoiceID, quantity, &a.ID)
		if err != nil {
			return err
		}
		if err := l.checkIfFinalized(ctx, header, lot); err != nil {
			return err
		}
		a.Quantity = quantity
		a.UpdatedAt = time.Now().UTC()
		return l.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	a.Version++
	l.notify(ctx, domain.AfterUpdate, a)
	return a, nil
}

// RemoveAllocation deletes the allocation and unlinks the lines that referenced it.
func (l *Ledger) RemoveAllocation(ctx context.Context, salesInvoiceID, allocationID id.ID) error {
	var a *Allocation
	err := l.inTx(ctx, func(ctx context.Context) error {
		if _, err := l.repo.LockSalesInvoice(ctx, salesInvoiceID); err != nil {
			return err
		}
		var err error
		if a, err = l.owned(ctx, salesInvoiceID, allocationID); err != nil {
			return err
		}
		if err := l.repo.ClearLineReferences(ctx, allocationID); err != nil {
			return err
		}
		return l.repo.Delete(ctx, allocationID)
	})
	if err != nil {
		return err
	}
	l.notify(ctx, domain.AfterDelete, a)
	return nil
}

// ListAllocations returns the invoice's allocations with lot numbers.
func (l *Ledger) ListAllocations(ctx context.Context, salesInvoiceID id.ID) ([]*Allocation, error) {
	return l.repo.ListBySalesInvoice(ctx, salesInvoiceID)
}

func (l *Ledger) owned(ctx context.Context, salesInvoiceID, allocationID id.ID) (*Allocation, error) {
	a, err := l.repo.Get(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if a.SalesInvoiceID != salesInvoiceID {
		return nil, apperror.NewNotFound("sales lot", allocationID.String())
	}
	return a, nil
}

// CheckConsistency verifies every lot allocated to the invoice carries productID.
func (l *Ledger) CheckConsistency(ctx context.Context, salesInvoiceID, productID id.ID) error {
	allocations, err := l.repo.ListBySalesInvoice(ctx, salesInvoiceID)
	if err != nil {
		return err
	}
	for _, a := range allocations {
		if err := l.checkLot(ctx, a.PurchaseInvoiceID, a.LotNumber, productID); err != nil {
			return err
		}
	}
	return nil
}

// CheckAllocation verifies a line may reference the allocation.
func (l *Ledger) CheckAllocation(ctx context.Context, salesInvoiceID, allocationID id.ID) error {
	a, err := l.repo.Get(ctx, allocationID)
	if apperror.IsNotFound(err) || (err == nil && a.SalesInvoiceID != salesInvoiceID) {
		return apperror.NewValidation("lot allocation does not belong to this invoice").
			WithDetail("field", "salesLotId").
			WithDetail("value", allocationID.String())
	}
	return err
}
