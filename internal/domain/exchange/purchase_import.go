package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/tx"
	"produceledger/internal/domain"
	"produceledger/internal/domain/documents"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/pkg/logger"
)

// MaxImportRows bounds one upload.
const MaxImportRows = 20000

// Importer loads purchase invoices from CSV through the regular purchase service,
// so numbering, pricing and payment caps apply exactly as for manual entry.
type Importer struct {
	purchases PurchaseWriter
	vendors   VendorResolver
	products  ProductResolver
	txManager tx.Manager
	onDone    func(ctx context.Context)
}

// NewImporter creates an importer. txManager may be nil; it is then taken from the tenant context.
func NewImporter(purchases PurchaseWriter, vendors VendorResolver, products ProductResolver, txManager tx.Manager) *Importer {
	return &Importer{purchases: purchases, vendors: vendors, products: products, txManager: txManager}
}

// OnDone registers fn to run after an import that stored at least one invoice.
func (im *Importer) OnDone(fn func(ctx context.Context)) {
	im.onDone = fn
}

type importRow struct {
	num    int
	values map[string]string
}

func (r importRow) get(col string) string {
	return strings.TrimSpace(r.values[col])
}

// invoiceGroup is the rows that make up one invoice.
type invoiceGroup struct {
	number string
	rows   []importRow
}

// ImportPurchases reads the CSV and stores every invoice in its own transaction.
// A bad header fails the whole import; anything else is reported per invoice.
func (im *Importer) ImportPurchases(ctx context.Context, r io.Reader) (*ImportResult, error) {
	groups, rows, err := readPurchaseCSV(r)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Rows: rows, Imported: []string{}}
	for _, g := range groups {
		inv, rowNum, err := im.importGroup(ctx, g)
		if err != nil {
			res.ErrorCount++
			res.Errors = append(res.Errors, RowError{Row: rowNum, InvoiceNumber: g.number, Message: errorMessage(err)})
			continue
		}
		res.SuccessCount++
		res.Imported = append(res.Imported, inv.InvoiceNumber)
	}

	if res.SuccessCount > 0 && im.onDone != nil {
		im.onDone(ctx)
	}
	logger.Info(ctx, "purchase import finished",
		"rows", res.Rows, "imported", res.SuccessCount, "failed", res.ErrorCount)
	return res, nil
}

func readPurchaseCSV(r io.Reader) ([]*invoiceGroup, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, apperror.NewValidation("CSV file is empty")
	}
	if err != nil {
		return nil, 0, apperror.NewValidation("CSV header is unreadable").WithCause(err)
	}
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		seen[cols[i]] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, 0, apperror.NewValidation("CSV is missing required headers: "+strings.Join(missing, ", ")).
			WithDetail("missing", missing)
	}

	var (
		groups []*invoiceGroup
		byNum  = map[string]*invoiceGroup{}
		count  int
	)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, apperror.NewValidation(fmt.Sprintf("CSV row %d is malformed", line)).WithCause(err)
		}
		if blank(record) {
			continue
		}
		count++
		if count > MaxImportRows {
			return nil, 0, apperror.NewValidation(fmt.Sprintf("CSV has more than %d rows", MaxImportRows))
		}

		row := importRow{num: line, values: make(map[string]string, len(cols))}
		for i, v := range record {
			if i < len(cols) {
				row.values[cols[i]] = v
			}
		}

		number := row.get(ColInvoiceNumber)
		if number == "" {
			// unnumbered rows are separate invoices numbered from the series
			groups = append(groups, &invoiceGroup{rows: []importRow{row}})
			continue
		}
		g, ok := byNum[number]
		if !ok {
			g = &invoiceGroup{number: number}
			byNum[number] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}
	return groups, count, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type paymentRow struct {
	amount decimal.Decimal
	mode   documents.PaymentMode
}

// importGroup stores one invoice. On failure it returns the row the error belongs to.
func (im *Importer) importGroup(ctx context.Context, g *invoiceGroup) (*purchase.Invoice, int, error) {
	first := g.rows[0]
	date, err := time.Parse(DateLayout, first.get(ColDate))
	if err != nil {
		return nil, first.num, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", first.get(ColDate))
	}
	vendorName := first.get(ColVendor)
	if vendorName == "" {
		return nil, first.num, fmt.Errorf("vendor is required")
	}

	in := purchase.CreateInput{
		Date:              date,
		PaymentIssuerName: first.get(ColIssuer),
		InvoiceNumber:     g.number,
		LotNumber:         first.get(ColLotNumber),
	}
	var payments []paymentRow
	for _, row := range g.rows {
		if err := sameHeader(first, row); err != nil {
			return nil, row.num, err
		}
		line, ok, err := im.parseLine(ctx, row)
		if err != nil {
			return nil, row.num, err
		}
		if ok {
			in.Lines = append(in.Lines, line)
		}
		p, ok, err := parsePayment(row)
		if err != nil {
			return nil, row.num, err
		}
		if ok {
			payments = append(payments, p)
		}
	}

	txm, err := domain.TxManagerOrContext(ctx, im.txManager)
	if err != nil {
		return nil, first.num, err
	}
	var inv *purchase.Invoice
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		v, err := im.vendors.GetOrCreate(ctx, vendorName)
		if err != nil {
			return err
		}
		in.VendorID = v.ID
		if inv, err = im.purchases.Create(ctx, in); err != nil {
			return err
		}
		for _, p := range payments {
			_, err := im.purchases.RecordPayment(ctx, inv.ID, purchase.PaymentInput{
				Amount: p.amount,
				Date:   date,
				Mode:   p.mode,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, first.num, err
	}
	return inv, first.num, nil
}

// sameHeader rejects rows whose header columns contradict the invoice's first row.
func sameHeader(first, row importRow) error {
	for _, col := range []string{ColDate, ColVendor, ColLotNumber, ColIssuer} {
		v := row.get(col)
		if v != "" && !strings.EqualFold(v, first.get(col)) {
			return fmt.Errorf("%s %q differs from row %d", col, v, first.num)
		}
	}
	return nil
}

func (im *Importer) parseLine(ctx context.Context, row importRow) (purchase.LineInput, bool, error) {
	name := row.get(ColProduct)
	if name == "" {
		return purchase.LineInput{}, false, nil
	}
	p, err := im.products.ResolveName(ctx, name)
	if err != nil {
		if apperror.IsNotFound(err) {
			return purchase.LineInput{}, false, fmt.Errorf("unknown product %q", name)
		}
		return purchase.LineInput{}, false, err
	}

	line := purchase.LineInput{ProductID: p.ID}
	fields := []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColQuantity, &line.Quantity},
		{ColPrice, &line.Price},
		{ColDamage, &line.Damage},
		{ColDiscount, &line.Discount},
		{ColRotten, &line.Rotten},
	}
	for _, f := range fields {
		if *f.dst, err = parseDecimal(row.get(f.col)); err != nil {
			return purchase.LineInput{}, false, fmt.Errorf("invalid %s %q", f.col, row.get(f.col))
		}
	}
	return line, true, nil
}

func parsePayment(row importRow) (paymentRow, bool, error) {
	amount, err := parseDecimal(row.get(ColPaidAmount))
	if err != nil {
		return paymentRow{}, false, fmt.Errorf("invalid %s %q", ColPaidAmount, row.get(ColPaidAmount))
	}
	if !amount.IsPositive() {
		return paymentRow{}, false, nil
	}
	mode, err := documents.ParsePaymentMode(row.get(ColPaymentMode))
	if err != nil {
		return paymentRow{}, false, fmt.Errorf("invalid %s %q", ColPaymentMode, row.get(ColPaymentMode))
	}
	return paymentRow{amount: amount, mode: mode}, true, nil
}

// parseDecimal accepts blanks as zero and tolerates thousands separators and a % suffix.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), "%")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

func errorMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
