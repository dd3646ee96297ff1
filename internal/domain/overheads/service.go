package overheads

import (
	"context"

	appctx "produceledger/internal/core/context"
	"produceledger/internal/domain"
)

// Services bundles the three overhead registers.
type Services struct {
	Packaging *domain.CatalogService[*Packaging]
	Expenses  *domain.CatalogService[*Expense]
	Damages   *domain.CatalogService[*Damage]
}

// NewServices creates the services; every new record is stamped with its author.
func NewServices(packaging domain.Repository[*Packaging], expenses domain.Repository[*Expense], damages domain.Repository[*Damage]) *Services {
	s := &Services{
		Packaging: domain.NewCatalogService(packaging, nil, "packaging invoice"),
		Expenses:  domain.NewCatalogService(expenses, nil, "expense"),
		Damages:   domain.NewCatalogService(damages, nil, "damage"),
	}
	s.Packaging.Hooks().On(domain.BeforeCreate, func(ctx context.Context, p *Packaging) error {
		p.SetCreatedBy(appctx.GetUserID(ctx))
		return nil
	})
	s.Expenses.Hooks().On(domain.BeforeCreate, func(ctx context.Context, e *Expense) error {
		e.SetCreatedBy(appctx.GetUserID(ctx))
		return nil
	})
	s.Damages.Hooks().On(domain.BeforeCreate, func(ctx context.Context, d *Damage) error {
		d.SetCreatedBy(appctx.GetUserID(ctx))
		return nil
	})
	return s
}

// OnChange registers fn for every committed write in any register.
func (s *Services) OnChange(fn func(ctx context.Context)) {
	s.Packaging.Hooks().OnChange(func(ctx context.Context, _ *Packaging) error { fn(ctx); return nil })
	s.Expenses.Hooks().OnChange(func(ctx context.Context, _ *Expense) error { fn(ctx); return nil })
	s.Damages.Hooks().OnChange(func(ctx context.Context, _ *Damage) error { fn(ctx); return nil })
}
