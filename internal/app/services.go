// Package app assembles the domain services shared by the server, the worker
// and the command line tools.
package app

import (
	"context"
	"fmt"

	"produceledger/internal/core/tenant"
	"produceledger/internal/domain"
	"produceledger/internal/domain/auth"
	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/catalogs/vendor"
	"produceledger/internal/domain/documents"
	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/domain/documents/sales"
	"produceledger/internal/domain/exchange"
	"produceledger/internal/domain/lots"
	"produceledger/internal/domain/overheads"
	"produceledger/internal/domain/reports"
	"produceledger/internal/infrastructure/cache"
	"produceledger/internal/infrastructure/numerator"
	"produceledger/internal/infrastructure/pdf"
	"produceledger/internal/infrastructure/storage/postgres/auth_repo"
	"produceledger/internal/infrastructure/storage/postgres/catalog_repo"
	"produceledger/internal/infrastructure/storage/postgres/document_repo"
	"produceledger/internal/infrastructure/storage/postgres/report_repo"
)

// Deps are the process-wide inputs of the service graph.
type Deps struct {
	Rates tenant.Rates
	JWT   auth.JWTConfig
	// Cache may be nil; reads then always hit the database.
	Cache *cache.Versioned
	// Renderer may be nil; PDF endpoints and pre-rendering are then disabled.
	Renderer *pdf.Renderer
}

// Services is the wired service graph. Repositories and services are
// tenant-agnostic: the database comes from the request context.
type Services struct {
	Vendors   *vendor.Service
	Customers *customer.Service
	Products  *product.Service
	Overheads *overheads.Services
	Purchases *purchase.Service
	Sales     *sales.Service
	Lots      *lots.Ledger
	Reports   *reports.Service
	Importer  *exchange.Importer
	Exporter  *exchange.Exporter
	Invoices  *pdf.Invoices
	JWT       *auth.JWTService
	Auth      *auth.Service
	Cache     *cache.Versioned
}

// NewServices builds every service and registers the cache invalidation hooks.
func NewServices(deps Deps) (*Services, error) {
	codec, err := documents.NewAttachmentCodec()
	if err != nil {
		return nil, fmt.Errorf("attachment codec: %w", err)
	}
	policy, err := purchase.NewRulePolicy()
	if err != nil {
		return nil, fmt.Errorf("handling policy: %w", err)
	}
	numbers := numerator.NewFromContext()

	s := &Services{
		Vendors:   vendor.NewService(catalog_repo.NewVendorRepo()),
		Customers: customer.NewService(catalog_repo.NewCustomerRepo()),
		Products:  product.NewService(catalog_repo.NewProductRepo()),
		Overheads: overheads.NewServices(
			catalog_repo.NewPackagingRepo(),
			catalog_repo.NewExpenseRepo(),
			catalog_repo.NewDamageRepo(),
		),
		Cache: deps.Cache,
	}

	s.Lots = lots.NewLedger(document_repo.NewLotRepo(), s.Products, nil)
	s.Purchases = purchase.NewService(purchase.Config{
		Repo:      document_repo.NewPurchaseRepo(),
		Vendors:   s.Vendors,
		Products:  s.Products,
		Numerator: numbers,
		Policy:    policy,
		Codec:     codec,
		Rates:     deps.Rates,
	})
	s.Sales = sales.NewService(sales.Config{
		Repo:      document_repo.NewSalesRepo(),
		Customers: s.Customers,
		Products:  s.Products,
		Numerator: numbers,
		Lots:      s.Lots,
		Codec:     codec,
		Rates:     deps.Rates,
	})
	s.Customers.SetDueSource(s.Sales)

	// a nil *Versioned must not become a non-nil interface
	var reportCache reports.Cache
	if deps.Cache != nil {
		reportCache = deps.Cache
	}
	s.Reports = reports.NewService(report_repo.NewReportRepo(), reportCache, deps.Rates)

	s.Importer = exchange.NewImporter(s.Purchases, s.Vendors, s.Products, nil)
	s.Exporter = exchange.NewExporter(s.Purchases, s.Sales, s.Vendors, s.Customers, nil)

	if deps.Renderer != nil {
		s.Invoices = pdf.NewInvoices(s.Purchases, s.Sales, s.Vendors, s.Customers, s.Products, deps.Renderer)
		if deps.Cache != nil {
			s.Invoices.WithCache(deps.Cache)
		}
	}

	s.JWT = auth.NewJWTService(deps.JWT)
	s.Auth = auth.NewService(auth_repo.NewUserRepo(), s.JWT)

	if deps.Cache != nil {
		s.OnChange(deps.Cache.BumpQuietly)
	}
	return s, nil
}

// OnChange registers fn for every committed write that can move a report,
// a rendered invoice or a cached list.
func (s *Services) OnChange(fn func(ctx context.Context)) {
	s.Vendors.Hooks().OnChange(func(ctx context.Context, _ *vendor.Vendor) error { fn(ctx); return nil })
	s.Customers.Hooks().OnChange(func(ctx context.Context, _ *customer.Customer) error { fn(ctx); return nil })
	s.Products.Hooks().OnChange(func(ctx context.Context, _ *product.Product) error { fn(ctx); return nil })
	s.Overheads.OnChange(fn)
	s.Purchases.Hooks().OnChange(func(ctx context.Context, _ *purchase.Invoice) error { fn(ctx); return nil })
	s.Sales.Hooks().OnChange(func(ctx context.Context, _ *sales.Invoice) error { fn(ctx); return nil })
	s.Lots.Hooks().OnChange(func(ctx context.Context, _ *lots.Allocation) error { fn(ctx); return nil })
	s.Importer.OnDone(fn)
}

// OnSalesFinalized registers fn for invoices that reach the finalized state.
func (s *Services) OnSalesFinalized(fn func(ctx context.Context, inv *sales.Invoice)) {
	s.Sales.Hooks().On(domain.AfterUpdate, func(ctx context.Context, inv *sales.Invoice) error {
		if inv.IsFinalized() {
			fn(ctx, inv)
		}
		return nil
	})
}
