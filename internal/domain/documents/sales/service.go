package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/entity"
	"produceledger/internal/core/id"
	"produceledger/internal/core/numerator"
	"produceledger/internal/core/tenant"
	"produceledger/internal/core/tx"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/documents"
	"produceledger/pkg/logger"
)

const maxNumberAttempts = 3

// CustomerLookup resolves the invoiced customer.
type CustomerLookup interface {
	GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error)
}

// ProductLookup loads products and fails on unknown IDs.
type ProductLookup interface {
	GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*product.Product, error)
}

// LotChecker is the part of the lot ledger the invoice needs.
type LotChecker interface {
	// CheckConsistency verifies that every allocated lot carries productID.
	CheckConsistency(ctx context.Context, salesInvoiceID, productID id.ID) error
	// CheckAllocation verifies the allocation belongs to the sales invoice.
	CheckAllocation(ctx context.Context, salesInvoiceID, allocationID id.ID) error
}

// Config wires the service dependencies.
type Config struct {
	Repo      Repository
	Customers CustomerLookup
	Products  ProductLookup
	Numerator numerator.Generator
	Lots      LotChecker
	Codec     *documents.AttachmentCodec
	Rates     tenant.Rates
	TxManager tx.Manager
}

// Service implements sales invoice operations.
type Service struct {
	repo      Repository
	customers CustomerLookup
	products  ProductLookup
	numerator numerator.Generator
	lots      LotChecker
	codec     *documents.AttachmentCodec
	rates     tenant.Rates
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Invoice]
}

func NewService(cfg Config) *Service {
	return &Service{
		repo:      cfg.Repo,
		customers: cfg.Customers,
		products:  cfg.Products,
		numerator: cfg.Numerator,
		lots:      cfg.Lots,
		codec:     cfg.Codec,
		rates:     cfg.Rates,
		txManager: cfg.TxManager,
		hooks:     domain.NewHookRegistry[*Invoice](),
	}
}

func (s *Service) Hooks() *domain.HookRegistry[*Invoice] {
	return s.hooks
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txm, err := domain.TxManagerOrContext(ctx, s.txManager)
	if err != nil {
		return err
	}
	return txm.RunInTransaction(ctx, fn)
}

func (s *Service) notify(ctx context.Context, event domain.HookEvent, inv *Invoice) {
	if err := s.hooks.Run(ctx, event, inv); err != nil {
		logger.Warn(ctx, "sales hook failed", "event", event, "invoice_id", inv.ID, "error", err)
	}
}

// HeaderInput carries the editable invoice header.
type HeaderInput struct {
	CustomerID               id.ID
	Date                     time.Time
	VehicleNumber            string
	GrossVehicleWeight       decimal.NullDecimal
	Reference                string
	NoOfCrates               decimal.Decimal
	CostPerCrate             types.Money
	PurchasedCratesQuantity  decimal.Decimal
	PurchasedCratesUnitPrice types.Money
	// Version is checked on update when non-zero
	Version int
}

func (h HeaderInput) apply(inv *Invoice) {
	inv.CustomerID = h.CustomerID
	if !h.Date.IsZero() {
		inv.Date = h.Date
	}
	inv.VehicleNumber = h.VehicleNumber
	inv.GrossVehicleWeight = h.GrossVehicleWeight
	inv.Reference = h.Reference
	inv.NoOfCrates = h.NoOfCrates
	inv.CostPerCrate = h.CostPerCrate
	inv.PurchasedCratesQuantity = h.PurchasedCratesQuantity
	inv.PurchasedCratesUnitPrice = h.PurchasedCratesUnitPrice
}

// CreateInput carries a new invoice with its lines.
type CreateInput struct {
	HeaderInput
	Lines []LineInput
}

// Create records a draft sales invoice numbered from the SA series.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Invoice, error) {
	if _, err := s.customers.GetByID(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	for i, l := range in.Lines {
		if err := l.Validate(i + 1); err != nil {
			return nil, err
		}
		if l.SalesLotID != nil {
			return nil, apperror.NewValidation("lot allocations can only be linked after the invoice exists").
				WithDetail("field", "salesLotId").WithDetail("lineNo", i+1)
		}
	}
	if err := s.checkProducts(ctx, in.Lines); err != nil {
		return nil, err
	}

	var inv *Invoice
	for attempt := 1; ; attempt++ {
		inv = s.buildInvoice(ctx, in)
		if err := inv.Validate(ctx); err != nil {
			return nil, err
		}
		number, err := s.numerator.Next(ctx, InvoiceSeries, inv.Date)
		if err != nil {
			return nil, fmt.Errorf("invoice number: %w", err)
		}
		inv.InvoiceNumber = number

		err = s.inTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, inv); err != nil {
				return err
			}
			return s.repo.InsertLines(ctx, inv.Lines)
		})
		if err == nil {
			break
		}
		if !apperror.IsDuplicate(err) || attempt == maxNumberAttempts {
			return nil, err
		}
		logger.Warn(ctx, "sales number collision, retrying", "invoice_number", inv.InvoiceNumber, "attempt", attempt)
	}

	s.notify(ctx, domain.AfterCreate, inv)
	logger.Info(ctx, "sales invoice created", "invoice_id", inv.ID, "invoice_number", inv.InvoiceNumber)
	return inv, nil
}

func (s *Service) buildInvoice(ctx context.Context, in CreateInput) *Invoice {
	inv := &Invoice{Document: entity.NewDocument(), Status: StatusDraft}
	in.HeaderInput.apply(inv)
	inv.SetCreatedBy(appctx.GetUserID(ctx))
	for i, li := range in.Lines {
		l := newLine(inv.ID, li)
		l.SerialNumber = i + 1
		l.CreatedAt, l.UpdatedAt = inv.CreatedAt, inv.CreatedAt
		inv.Lines = append(inv.Lines, l)
	}
	return inv
}

func newLine(invoiceID id.ID, in LineInput) *Line {
	l := &Line{ID: id.New(), InvoiceID: invoiceID}
	fillLine(l, in)
	return l
}

func fillLine(l *Line, in LineInput) {
	l.ProductID = in.ProductID
	l.GrossWeight = in.GrossWeight
	l.Discount = in.Discount
	l.Rotten = in.Rotten
	l.Price = in.Price
	l.SalesLotID = in.SalesLotID
	l.NetWeight, l.Total = CalculateLine(in)
}

func (s *Service) checkProducts(ctx context.Context, lines []LineInput) error {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]id.ID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	_, err := s.products.GetMany(ctx, ids)
	return err
}

// Get returns the invoice with lines, payments and derived figures.
func (s *Service) Get(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Lines, err = s.repo.GetLines(ctx, invoiceID); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	if inv.Payments, err = s.repo.GetPayments(ctx, invoiceID); err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}
	return inv, s.summarize(ctx, inv)
}

// List returns invoices with their derived figures.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	filter.Normalize()
	res, err := s.repo.List(ctx, filter)
	if err != nil {
		return res, err
	}
	return res, s.summarize(ctx, res.Items...)
}

func (s *Service) summarize(ctx context.Context, invoices ...*Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]id.ID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	aggs, err := s.repo.Aggregates(ctx, ids)
	if err != nil {
		return fmt.Errorf("invoice aggregates: %w", err)
	}
	rate := tenant.RatesFromContext(ctx, s.rates).SalesCommissionPerKg
	for _, inv := range invoices {
		inv.Summary = Summarize(inv, aggs[inv.ID], rate)
	}
	return nil
}

// CustomerDue sums the due amount over the customer's invoices.
func (s *Service) CustomerDue(ctx context.Context, customerID id.ID) (types.Money, error) {
	invoices, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return types.Zero(), err
	}
	if err := s.summarize(ctx, invoices...); err != nil {
		return types.Zero(), err
	}
	due := types.Zero()
	for _, inv := range invoices {
		due = due.Add(inv.Summary.DueAmount)
	}
	return due, nil
}

// UpdateHeader edits the header. The invoice number is not editable.
func (s *Service) UpdateHeader(ctx context.Context, invoiceID id.ID, in HeaderInput) (*Invoice, error) {
	if _, err := s.customers.GetByID(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if in.Version != 0 && in.Version != inv.Version {
			return apperror.NewConcurrentModification("sales invoice", invoiceID.String())
		}
		in.apply(inv)
		if err := inv.Validate(ctx); err != nil {
			return err
		}
		return s.repo.UpdateHeader(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	inv.Touch()
	s.notify(ctx, domain.AfterUpdate, inv)
	return inv, nil
}

// Delete removes the invoice with its lines, payments and lot allocations.
func (s *Service) Delete(ctx context.Context, invoiceID id.ID) error {
	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, invoiceID)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, domain.AfterDelete, inv)
	logger.Info(ctx, "sales invoice deleted", "invoice_id", invoiceID, "invoice_number", inv.InvoiceNumber)
	return nil
}

func (s *Service) checkLineLot(ctx context.Context, invoiceID id.ID, in LineInput) error {
	if in.SalesLotID == nil {
		return nil
	}
	if s.lots == nil {
		return apperror.NewInternal(fmt.Errorf("lot ledger not configured"))
	}
	return s.lots.CheckAllocation(ctx, invoiceID, *in.SalesLotID)
}

// firstProduct returns the product of the lowest-serial line, or nil when there are none.
func (s *Service) firstProduct(ctx context.Context, invoiceID id.ID) (*id.ID, error) {
	lines, err := s.repo.GetLines(ctx, invoiceID)
	if err != nil || len(lines) == 0 {
		return nil, err
	}
	return &lines[0].ProductID, nil
}

// recheckFinalized keeps a finalized invoice consistent with its lots after a line
// write: it must keep a line, and a new first product is checked against every lot.
func (s *Service) recheckFinalized(ctx context.Context, inv *Invoice, before *id.ID) error {
	if !inv.IsFinalized() {
		return nil
	}
	after, err := s.firstProduct(ctx, inv.ID)
	if err != nil {
		return err
	}
	if after == nil {
		return apperror.NewBusinessRule(apperror.CodeNotFinalizable, "A finalized invoice must keep at least one product line").
			WithDetail("invoice_number", inv.InvoiceNumber)
	}
	if before != nil && *before == *after {
		return nil
	}
	if s.lots == nil {
		return apperror.NewInternal(fmt.Errorf("lot ledger not configured"))
	}
	return s.lots.CheckConsistency(ctx, inv.ID, *after)
}

// AddLine appends a line after the current last serial.
func (s *Service) AddLine(ctx context.Context, invoiceID id.ID, in LineInput) (*Line, error) {
	if err := in.Validate(0); err != nil {
		return nil, err
	}
	if err := s.checkProducts(ctx, []LineInput{in}); err != nil {
		return nil, err
	}
	line := newLine(invoiceID, in)
	line.CreatedAt = time.Now().UTC()
	line.UpdatedAt = line.CreatedAt

	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if err := s.checkLineLot(ctx, invoiceID, in); err != nil {
			return err
		}
		last, err := s.repo.LastSerial(ctx, invoiceID)
		if err != nil {
			return err
		}
		line.SerialNumber = last + 1
		if err := s.repo.InsertLine(ctx, line); err != nil {
			return err
		}
		if last == 0 {
			return s.recheckFinalized(ctx, inv, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return line, nil
}

// UpdateLine recalculates a line; its serial is kept.
func (s *Service) UpdateLine(ctx context.Context, invoiceID, lineID id.ID, in LineInput) (*Line, error) {
	if err := in.Validate(0); err != nil {
		return nil, err
	}
	if err := s.checkProducts(ctx, []LineInput{in}); err != nil {
		return nil, err
	}
	var (
		inv  *Invoice
		line *Line
	)
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if line, err = s.repo.GetLine(ctx, invoiceID, lineID); err != nil {
			return err
		}
		if err := s.checkLineLot(ctx, invoiceID, in); err != nil {
			return err
		}
		var before *id.ID
		if inv.IsFinalized() {
			if before, err = s.firstProduct(ctx, invoiceID); err != nil {
				return err
			}
		}
		fillLine(line, in)
		line.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return err
		}
		return s.recheckFinalized(ctx, inv, before)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return line, nil
}

// DeleteLine removes a line; the serial gap is kept.
func (s *Service) DeleteLine(ctx context.Context, invoiceID, lineID id.ID) error {
	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		var before *id.ID
		if inv.IsFinalized() {
			if before, err = s.firstProduct(ctx, invoiceID); err != nil {
				return err
			}
		}
		if err := s.repo.DeleteLine(ctx, invoiceID, lineID); err != nil {
			return err
		}
		return s.recheckFinalized(ctx, inv, before)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return nil
}

// Finalize runs the deferred lot consistency check and marks the invoice finalized.
// Finalizing an already finalized invoice is a no-op.
func (s *Service) Finalize(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if inv.IsFinalized() {
			return nil
		}
		lines, err := s.repo.GetLines(ctx, invoiceID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperror.NewBusinessRule(apperror.CodeNotFinalizable, "Cannot finalize an invoice without products").
				WithDetail("invoice_number", inv.InvoiceNumber)
		}
		if s.lots == nil {
			return apperror.NewInternal(fmt.Errorf("lot ledger not configured"))
		}
		if err := s.lots.CheckConsistency(ctx, invoiceID, lines[0].ProductID); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.repo.SetStatus(ctx, invoiceID, StatusFinalized, now); err != nil {
			return err
		}
		inv.Status = StatusFinalized
		inv.FinalizedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	logger.Info(ctx, "sales invoice finalized", "invoice_id", inv.ID, "invoice_number", inv.InvoiceNumber)
	return inv, nil
}

// PaymentInput carries a payment. On update a nil Attachment keeps the stored one.
type PaymentInput struct {
	Amount     types.Money
	Date       time.Time
	Mode       documents.PaymentMode
	Attachment *documents.Attachment
}

func (in *PaymentInput) normalize() error {
	amount, err := documents.NormalizePaymentAmount(in.Amount)
	if err != nil {
		return err
	}
	in.Amount = amount
	if in.Date.IsZero() {
		in.Date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	in.Mode, err = documents.ParsePaymentMode(string(in.Mode))
	return err
}

// checkCap enforces Σ payments ≤ net total after packaging with the invoice row locked.
func (s *Service) checkCap(ctx context.Context, inv *Invoice, amount types.Money, exclude *id.ID) error {
	if err := s.summarize(ctx, inv); err != nil {
		return err
	}
	others, err := s.repo.SumPayments(ctx, inv.ID, exclude)
	if err != nil {
		return fmt.Errorf("sum payments: %w", err)
	}
	limit := inv.Summary.NetTotalAfterPackaging
	newTotal := others.Add(amount)
	if newTotal.GreaterThan(limit) {
		return apperror.NewPaymentExceedsBalance("net total after packaging", limit.StringFixed(2), newTotal.StringFixed(2))
	}
	return nil
}

func (s *Service) attach(p *Payment, a *documents.Attachment) error {
	if a == nil {
		return nil
	}
	if s.codec == nil {
		return apperror.NewInternal(fmt.Errorf("attachment codec not configured"))
	}
	data, err := s.codec.Compress(a)
	if err != nil {
		return err
	}
	p.AttachmentName, p.AttachmentType, p.AttachmentData = a.Name, a.ContentType, data
	return nil
}

// RecordPayment adds a customer payment within the packaging-inclusive cap.
func (s *Service) RecordPayment(ctx context.Context, invoiceID id.ID, in PaymentInput) (*Payment, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	p := &Payment{
		ID:          id.New(),
		InvoiceID:   invoiceID,
		Amount:      in.Amount,
		Date:        in.Date,
		PaymentMode: in.Mode,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.attach(p, in.Attachment); err != nil {
		return nil, err
	}
	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if err := s.checkCap(ctx, inv, p.Amount, nil); err != nil {
			return err
		}
		return s.repo.InsertPayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	logger.Info(ctx, "sales payment recorded",
		"invoice_number", inv.InvoiceNumber, "amount", p.Amount.StringFixed(2), "mode", p.PaymentMode)
	return p, nil
}

// UpdatePayment edits a payment; its previous amount does not count against the cap.
func (s *Service) UpdatePayment(ctx context.Context, invoiceID, paymentID id.ID, in PaymentInput) (*Payment, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var (
		inv *Invoice
		p   *Payment
	)
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if p, err = s.repo.GetPayment(ctx, invoiceID, paymentID); err != nil {
			return err
		}
		if err := s.checkCap(ctx, inv, in.Amount, &paymentID); err != nil {
			return err
		}
		p.Amount, p.Date, p.PaymentMode = in.Amount, in.Date, in.Mode
		if err := s.attach(p, in.Attachment); err != nil {
			return err
		}
		return s.repo.UpdatePayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return p, nil
}

// DeletePayment removes a payment.
func (s *Service) DeletePayment(ctx context.Context, invoiceID, paymentID id.ID) error {
	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		return s.repo.DeletePayment(ctx, invoiceID, paymentID)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return nil
}

// GetAttachment returns the decompressed payment proof.
func (s *Service) GetAttachment(ctx context.Context, invoiceID, paymentID id.ID) (*documents.Attachment, error) {
	p, err := s.repo.GetPayment(ctx, invoiceID, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.HasAttachment() {
		return nil, apperror.NewNotFound("attachment", paymentID.String())
	}
	if s.codec == nil {
		return nil, apperror.NewInternal(fmt.Errorf("attachment codec not configured"))
	}
	data, err := s.codec.Decompress(p.AttachmentData)
	if err != nil {
		return nil, err
	}
	return &documents.Attachment{Name: p.AttachmentName, ContentType: p.AttachmentType, Data: data}, nil
}
