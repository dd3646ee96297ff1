package pdf

import (
	"context"
	"fmt"

	"produceledger/internal/core/id"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/catalogs/vendor"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/domain/documents/sales"
)

// PurchaseView is the data behind the purchase invoice template.
type PurchaseView struct {
	Company       string
	Invoice       *purchase.Invoice
	Vendor        string
	Products      map[id.ID]string
	AmountInWords string
}

// SalesView is the data behind the sales invoice template.
type SalesView struct {
	Company       string
	Invoice       *sales.Invoice
	Customer      string
	Products      map[id.ID]string
	AmountInWords string
}

// Document is a rendered file.
type Document struct {
	FileName string `json:"fileName"`
	Data     []byte `json:"data"`
}

type (
	PurchaseSource interface {
		Get(ctx context.Context, invoiceID id.ID) (*purchase.Invoice, error)
	}
	SalesSource interface {
		Get(ctx context.Context, invoiceID id.ID) (*sales.Invoice, error)
	}
	VendorSource interface {
		GetByID(ctx context.Context, vendorID id.ID) (*vendor.Vendor, error)
	}
	CustomerSource interface {
		GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error)
	}
	ProductSource interface {
		GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*product.Product, error)
	}
	// DocumentCache keeps rendered files until the tenant's data version moves.
	DocumentCache interface {
		BuildKey(ctx context.Context, parts ...string) (string, error)
		FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	}
)

// Invoices loads invoices with their counterparties and renders them.
type Invoices struct {
	purchases PurchaseSource
	sales     SalesSource
	vendors   VendorSource
	customers CustomerSource
	products  ProductSource
	renderer  *Renderer
	cache     DocumentCache
}

func NewInvoices(
	purchases PurchaseSource,
	sales SalesSource,
	vendors VendorSource,
	customers CustomerSource,
	products ProductSource,
	renderer *Renderer,
) *Invoices {
	return &Invoices{
		purchases: purchases,
		sales:     sales,
		vendors:   vendors,
		customers: customers,
		products:  products,
		renderer:  renderer,
	}
}

// WithCache serves repeated renders of unchanged invoices from c.
func (p *Invoices) WithCache(c DocumentCache) *Invoices {
	p.cache = c
	return p
}

func (p *Invoices) cached(ctx context.Context, kind string, invoiceID id.ID, render func(context.Context) (*Document, error)) (*Document, error) {
	if p.cache == nil {
		return render(ctx)
	}
	key, err := p.cache.BuildKey(ctx, "pdf", kind, invoiceID.String())
	if err != nil {
		return render(ctx)
	}
	var doc Document
	err = p.cache.FetchJSON(ctx, key, &doc, func(ctx context.Context) (any, error) {
		return render(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// PurchaseInvoice returns the purchase invoice as a PDF.
func (p *Invoices) PurchaseInvoice(ctx context.Context, invoiceID id.ID) (*Document, error) {
	return p.cached(ctx, "purchase", invoiceID, func(ctx context.Context) (*Document, error) {
		return p.renderPurchase(ctx, invoiceID)
	})
}

// SalesInvoice returns the sales invoice as a PDF.
func (p *Invoices) SalesInvoice(ctx context.Context, invoiceID id.ID) (*Document, error) {
	return p.cached(ctx, "sales", invoiceID, func(ctx context.Context) (*Document, error) {
		return p.renderSales(ctx, invoiceID)
	})
}

func (p *Invoices) renderPurchase(ctx context.Context, invoiceID id.ID) (*Document, error) {
	view, err := p.PurchaseView(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	data, err := p.renderer.RenderPurchaseInvoice(ctx, view)
	if err != nil {
		return nil, err
	}
	return &Document{FileName: fmt.Sprintf("purchase-%s.pdf", view.Invoice.InvoiceNumber), Data: data}, nil
}

func (p *Invoices) renderSales(ctx context.Context, invoiceID id.ID) (*Document, error) {
	view, err := p.SalesView(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	data, err := p.renderer.RenderSalesInvoice(ctx, view)
	if err != nil {
		return nil, err
	}
	return &Document{FileName: fmt.Sprintf("sales-%s.pdf", view.Invoice.InvoiceNumber), Data: data}, nil
}

// PurchaseView assembles the template data for a purchase invoice.
func (p *Invoices) PurchaseView(ctx context.Context, invoiceID id.ID) (*PurchaseView, error) {
	inv, err := p.purchases.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	v, err := p.vendors.GetByID(ctx, inv.VendorID)
	if err != nil {
		return nil, err
	}
	ids := make([]id.ID, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := p.productNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	view := &PurchaseView{Company: companyName(ctx), Invoice: inv, Vendor: v.Name, Products: products}
	if inv.Summary != nil {
		view.AmountInWords = amountInWords(inv.Summary.NetTotalAfterCashCutting)
	}
	return view, nil
}

// SalesView assembles the template data for a sales invoice.
func (p *Invoices) SalesView(ctx context.Context, invoiceID id.ID) (*SalesView, error) {
	inv, err := p.sales.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	c, err := p.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return nil, err
	}
	ids := make([]id.ID, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := p.productNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	view := &SalesView{Company: companyName(ctx), Invoice: inv, Customer: c.Name, Products: products}
	if inv.Summary != nil {
		view.AmountInWords = amountInWords(inv.Summary.NetTotalAfterPackaging)
	}
	return view, nil
}

func (p *Invoices) productNames(ctx context.Context, ids []id.ID) (map[id.ID]string, error) {
	names := make(map[id.ID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	found, err := p.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for pid, prod := range found {
		names[pid] = prod.Name
	}
	return names, nil
}

func companyName(ctx context.Context) string {
	if t := tenant.GetTenant(ctx); t != nil {
		return t.DisplayName
	}
	return ""
}
