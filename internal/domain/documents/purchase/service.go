package purchase

import (
	"context"
	"fmt"
	"time"

	"produceledger/internal/core/apperror"
	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/entity"
	"produceledger/internal/core/id"
	"produceledger/internal/core/numerator"
	"produceledger/internal/core/tenant"
	"produceledger/internal/core/tx"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/catalogs/vendor"
	"produceledger/internal/domain/documents"
	"produceledger/pkg/logger"
)

// maxNumberAttempts bounds create retries after an invoice/lot number collision.
const maxNumberAttempts = 3

// VendorLookup resolves vendors referenced by invoices.
type VendorLookup interface {
	GetByID(ctx context.Context, vendorID id.ID) (*vendor.Vendor, error)
}

// ProductLookup loads products and fails on unknown IDs.
type ProductLookup interface {
	GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*product.Product, error)
}

// Config wires the service dependencies.
type Config struct {
	Repo      Repository
	Vendors   VendorLookup
	Products  ProductLookup
	Numerator numerator.Generator
	Policy    HandlingPolicy
	Codec     *documents.AttachmentCodec
	Rates     tenant.Rates
	// TxManager is optional; when nil it is taken from the tenant context.
	TxManager tx.Manager
}

// Service implements purchase invoice operations.
type Service struct {
	repo      Repository
	vendors   VendorLookup
	products  ProductLookup
	numerator numerator.Generator
	policy    HandlingPolicy
	codec     *documents.AttachmentCodec
	rates     tenant.Rates
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Invoice]
}

func NewService(cfg Config) *Service {
	policy := cfg.Policy
	if policy == nil {
		policy = WastePolicy{}
	}
	return &Service{
		repo:      cfg.Repo,
		vendors:   cfg.Vendors,
		products:  cfg.Products,
		numerator: cfg.Numerator,
		policy:    policy,
		codec:     cfg.Codec,
		rates:     cfg.Rates,
		txManager: cfg.TxManager,
		hooks:     domain.NewHookRegistry[*Invoice](),
	}
}

// Hooks returns the hook registry; after-events fire on every committed change.
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
		logger.Warn(ctx, "purchase hook failed", "event", event, "invoice_id", inv.ID, "error", err)
	}
}

// CreateInput carries a new invoice with its lines.
type CreateInput struct {
	VendorID          id.ID
	Date              time.Time
	PaymentIssuerName string
	// InvoiceNumber and LotNumber are set by imports; empty means next in series.
	InvoiceNumber string
	LotNumber     string
	Lines         []LineInput
}

// Create records a purchase invoice. Numbers come from the counters; on a unique
// collision the create is retried with fresh numbers.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Invoice, error) {
	if _, err := s.vendors.GetByID(ctx, in.VendorID); err != nil {
		return nil, err
	}
	if err := s.checkIssuer(ctx, in.PaymentIssuerName); err != nil {
		return nil, err
	}
	for i, l := range in.Lines {
		if err := l.Validate(i + 1); err != nil {
			return nil, err
		}
	}
	amounts, err := s.priceLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	explicit := in.InvoiceNumber != "" || in.LotNumber != ""
	var inv *Invoice
	for attempt := 1; ; attempt++ {
		inv = s.buildInvoice(ctx, in, amounts)
		if err := inv.Validate(ctx); err != nil {
			return nil, err
		}
		if err := s.assignNumbers(ctx, inv, in); err != nil {
			return nil, err
		}

		err := s.inTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, inv); err != nil {
				return err
			}
			return s.repo.InsertLines(ctx, inv.Lines)
		})
		if err == nil {
			break
		}
		if explicit || !apperror.IsDuplicate(err) || attempt == maxNumberAttempts {
			return nil, err
		}
		logger.Warn(ctx, "purchase number collision, retrying",
			"invoice_number", inv.InvoiceNumber, "lot_number", inv.LotNumber, "attempt", attempt)
	}

	if explicit {
		s.advanceCounters(ctx, inv)
	}

	s.notify(ctx, domain.AfterCreate, inv)
	logger.Info(ctx, "purchase invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"lot_number", inv.LotNumber,
		"net_total", inv.NetTotal.StringFixed(2))
	return inv, nil
}

func (s *Service) buildInvoice(ctx context.Context, in CreateInput, amounts []LineAmounts) *Invoice {
	inv := &Invoice{
		Document:          entity.NewDocument(),
		VendorID:          in.VendorID,
		PaymentIssuerName: in.PaymentIssuerName,
	}
	if !in.Date.IsZero() {
		inv.Date = in.Date
	}
	inv.SetCreatedBy(appctx.GetUserID(ctx))

	base := inv.CreatedAt
	for i, li := range in.Lines {
		l := &Line{
			ID:           id.New(),
			InvoiceID:    inv.ID,
			SerialNumber: i + 1,
			ProductID:    li.ProductID,
			Quantity:     li.Quantity,
			Price:        li.Price,
			Damage:       li.Damage,
			Discount:     li.Discount,
			Rotten:       li.Rotten,
			// distinct timestamps keep creation order stable for resequencing
			CreatedAt: base.Add(time.Duration(i) * time.Microsecond),
			UpdatedAt: base,
		}
		amounts[i].Apply(l)
		inv.Lines = append(inv.Lines, l)
	}
	inv.NetTotal = NetTotal(inv.Lines)
	return inv
}

func (s *Service) assignNumbers(ctx context.Context, inv *Invoice, in CreateInput) error {
	var err error
	inv.InvoiceNumber = in.InvoiceNumber
	if inv.InvoiceNumber == "" {
		if inv.InvoiceNumber, err = s.numerator.Next(ctx, InvoiceSeries, inv.Date); err != nil {
			return fmt.Errorf("invoice number: %w", err)
		}
	}
	inv.LotNumber = in.LotNumber
	if inv.LotNumber == "" {
		if inv.LotNumber, err = s.numerator.Next(ctx, LotSeries, inv.Date); err != nil {
			return fmt.Errorf("lot number: %w", err)
		}
	}
	return nil
}

// advanceCounters moves the series past imported numbers so later creates don't collide.
func (s *Service) advanceCounters(ctx context.Context, inv *Invoice) {
	advance := func(cfg numerator.Config, number string) {
		year, seq, ok := cfg.Parse(number)
		if !ok {
			return
		}
		period := inv.Date
		if year > 0 {
			period = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		if err := s.numerator.AdvanceTo(ctx, cfg, period, seq); err != nil {
			logger.Warn(ctx, "advance counter failed", "number", number, "error", err)
		}
	}
	advance(InvoiceSeries, inv.InvoiceNumber)
	advance(LotSeries, inv.LotNumber)
}

func (s *Service) checkIssuer(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	if !tenant.SettingsFromContext(ctx).IssuerAllowed(name) {
		return apperror.NewValidation("payment issuer is not an authorised staff member").
			WithDetail("field", "paymentIssuerName").
			WithDetail("value", name)
	}
	return nil
}

func (s *Service) priceLines(ctx context.Context, lines []LineInput) ([]LineAmounts, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	ids := make([]id.ID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	rate := tenant.RatesFromContext(ctx, s.rates).HandlingPerKg
	out := make([]LineAmounts, len(lines))
	for i, l := range lines {
		exempt, err := s.policy.Exempt(ctx, products[l.ProductID])
		if err != nil {
			return nil, err
		}
		out[i] = CalculateLine(l, rate, exempt)
	}
	return out, nil
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
	if err := s.summarize(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// GetByLotNumber resolves a lot by its number (imports, autocomplete).
func (s *Service) GetByLotNumber(ctx context.Context, lotNumber string) (*Invoice, error) {
	inv, err := s.repo.GetByLotNumber(ctx, lotNumber)
	if err != nil {
		return nil, err
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
	if err := s.summarize(ctx, res.Items...); err != nil {
		return res, err
	}
	return res, nil
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
	rate := tenant.RatesFromContext(ctx, s.rates).CashCutting
	for _, inv := range invoices {
		inv.Summary = Summarize(inv.NetTotal, aggs[inv.ID], rate)
	}
	return nil
}

// HeaderInput carries editable header fields; Version guards against lost updates.
type HeaderInput struct {
	VendorID          id.ID
	Date              time.Time
	PaymentIssuerName string
	Version           int
}

// UpdateHeader edits vendor, date and issuer. Numbers and totals are not editable.
func (s *Service) UpdateHeader(ctx context.Context, invoiceID id.ID, in HeaderInput) (*Invoice, error) {
	if _, err := s.vendors.GetByID(ctx, in.VendorID); err != nil {
		return nil, err
	}
	if err := s.checkIssuer(ctx, in.PaymentIssuerName); err != nil {
		return nil, err
	}

	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if in.Version != 0 && in.Version != inv.Version {
			return apperror.NewConcurrentModification("purchase invoice", invoiceID.String())
		}
		inv.VendorID = in.VendorID
		if !in.Date.IsZero() {
			inv.Date = in.Date
		}
		inv.PaymentIssuerName = in.PaymentIssuerName
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

// Delete removes an invoice with its lines and payments. Lots drawn by sales cannot be deleted.
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
	logger.Info(ctx, "purchase invoice deleted", "invoice_id", invoiceID, "invoice_number", inv.InvoiceNumber)
	return nil
}

// AddLine appends a line, renumbers serials and refreshes net_total atomically.
func (s *Service) AddLine(ctx context.Context, invoiceID id.ID, in LineInput) (*Line, error) {
	if err := in.Validate(0); err != nil {
		return nil, err
	}
	amounts, err := s.priceLines(ctx, []LineInput{in})
	if err != nil {
		return nil, err
	}

	var inv *Invoice
	line := &Line{
		ID:        id.New(),
		InvoiceID: invoiceID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Price:     in.Price,
		Damage:    in.Damage,
		Discount:  in.Discount,
		Rotten:    in.Rotten,
		CreatedAt: time.Now().UTC(),
	}
	line.UpdatedAt = line.CreatedAt
	amounts[0].Apply(line)

	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if err := s.repo.InsertLine(ctx, line); err != nil {
			return err
		}
		if err := s.repo.ResequenceLines(ctx, invoiceID); err != nil {
			return err
		}
		if inv.NetTotal, err = s.refreshNetTotal(ctx, invoiceID); err != nil {
			return err
		}
		line, err = s.repo.GetLine(ctx, invoiceID, line.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return line, nil
}

// UpdateLine recalculates a line. The lot may not end up with less stock than sales already drew.
func (s *Service) UpdateLine(ctx context.Context, invoiceID, lineID id.ID, in LineInput) (*Line, error) {
	if err := in.Validate(0); err != nil {
		return nil, err
	}
	amounts, err := s.priceLines(ctx, []LineInput{in})
	if err != nil {
		return nil, err
	}

	var (
		inv  *Invoice
		line *Line
	)
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if line, err = s.repo.GetLine(ctx, invoiceID, lineID); err != nil {
			return err
		}
		line.ProductID = in.ProductID
		line.Quantity = in.Quantity
		line.Price = in.Price
		line.Damage = in.Damage
		line.Discount = in.Discount
		line.Rotten = in.Rotten
		line.UpdatedAt = time.Now().UTC()
		amounts[0].Apply(line)

		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return err
		}
		if err := s.checkStillCovered(ctx, inv); err != nil {
			return err
		}
		inv.NetTotal, err = s.refreshNetTotal(ctx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return line, nil
}

// DeleteLine removes a line and closes the serial gap.
func (s *Service) DeleteLine(ctx context.Context, invoiceID, lineID id.ID) error {
	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if err := s.repo.DeleteLine(ctx, invoiceID, lineID); err != nil {
			return err
		}
		if err := s.checkStillCovered(ctx, inv); err != nil {
			return err
		}
		if err := s.repo.ResequenceLines(ctx, invoiceID); err != nil {
			return err
		}
		inv.NetTotal, err = s.refreshNetTotal(ctx, invoiceID)
		return err
	})
	if err != nil {
		return err
	}
	s.notify(ctx, domain.AfterUpdate, inv)
	return nil
}

func (s *Service) refreshNetTotal(ctx context.Context, invoiceID id.ID) (types.Money, error) {
	net, err := s.repo.SumLineTotals(ctx, invoiceID)
	if err != nil {
		return net, fmt.Errorf("sum line totals: %w", err)
	}
	if err := s.repo.SetNetTotal(ctx, invoiceID, net); err != nil {
		return net, err
	}
	return net, nil
}

// checkStillCovered rejects line changes that would leave the lot over-allocated.
func (s *Service) checkStillCovered(ctx context.Context, inv *Invoice) error {
	aggs, err := s.repo.Aggregates(ctx, []id.ID{inv.ID})
	if err != nil {
		return fmt.Errorf("invoice aggregates: %w", err)
	}
	agg := aggs[inv.ID]
	if agg.PurchasedQuantity.LessThan(agg.AllocatedQuantity) {
		return apperror.NewBusinessRule(apperror.CodeLotCapacityExceeded,
			fmt.Sprintf("%skg of %s is already allocated to sales", agg.AllocatedQuantity.StringFixed(2), inv.LotNumber)).
			WithDetail("lot_number", inv.LotNumber).
			WithDetail("allocated", agg.AllocatedQuantity.StringFixed(2)).
			WithDetail("purchased", agg.PurchasedQuantity.StringFixed(2))
	}
	return nil
}

// PaymentInput carries a payment. On update a nil Attachment keeps the stored one.
type PaymentInput struct {
	Amount     types.Money
	Date       time.Time
	Mode       documents.PaymentMode
	Attachment *documents.Attachment
}

func (s *Service) normalizePayment(in *PaymentInput) error {
	amount, err := documents.NormalizePaymentAmount(in.Amount)
	if err != nil {
		return err
	}
	in.Amount = amount
	if in.Date.IsZero() {
		in.Date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	mode, err := documents.ParsePaymentMode(string(in.Mode))
	if err != nil {
		return err
	}
	in.Mode = mode
	return nil
}

// checkCap enforces Σ payments ≤ net total after cash cutting with the invoice row locked.
func (s *Service) checkCap(ctx context.Context, inv *Invoice, amount types.Money, exclude *id.ID) error {
	others, err := s.repo.SumPayments(ctx, inv.ID, exclude)
	if err != nil {
		return fmt.Errorf("sum payments: %w", err)
	}
	limit := AfterCashCutting(inv.NetTotal, tenant.RatesFromContext(ctx, s.rates).CashCutting)
	newTotal := others.Add(amount)
	if newTotal.GreaterThan(limit) {
		return apperror.NewPaymentExceedsBalance("net total after cash cutting", limit.StringFixed(2), newTotal.StringFixed(2))
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
	p.AttachmentName = a.Name
	p.AttachmentType = a.ContentType
	p.AttachmentData = data
	return nil
}

// RecordPayment adds a vendor payment within the cash-cut cap.
func (s *Service) RecordPayment(ctx context.Context, invoiceID id.ID, in PaymentInput) (*Payment, error) {
	if err := s.normalizePayment(&in); err != nil {
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
	logger.Info(ctx, "purchase payment recorded",
		"invoice_number", inv.InvoiceNumber, "amount", p.Amount.StringFixed(2), "mode", p.PaymentMode)
	return p, nil
}

// UpdatePayment edits a payment; its own previous amount does not count against the cap.
func (s *Service) UpdatePayment(ctx context.Context, invoiceID, paymentID id.ID, in PaymentInput) (*Payment, error) {
	if err := s.normalizePayment(&in); err != nil {
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
		p.Amount = in.Amount
		p.Date = in.Date
		p.PaymentMode = in.Mode
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

// AvailableQuantity is Σ purchased − Σ allocated to sales for the lot.
func (s *Service) AvailableQuantity(ctx context.Context, invoiceID id.ID) (types.Weight, error) {
	if _, err := s.repo.GetByID(ctx, invoiceID); err != nil {
		return types.Zero(), err
	}
	aggs, err := s.repo.Aggregates(ctx, []id.ID{invoiceID})
	if err != nil {
		return types.Zero(), err
	}
	agg := aggs[invoiceID]
	return agg.PurchasedQuantity.Sub(agg.AllocatedQuantity), nil
}

// ProductQuantities lists, per product, purchased weight minus weight sold from this lot.
func (s *Service) ProductQuantities(ctx context.Context, invoiceID id.ID) ([]ProductQuantity, error) {
	if _, err := s.repo.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	items, err := s.repo.ProductQuantities(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Available = items[i].Purchased.Sub(items[i].Sold)
	}
	return items, nil
}
