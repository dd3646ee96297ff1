package catalog_repo

import (
	"produceledger/internal/domain"
	"produceledger/internal/domain/overheads"
	"produceledger/internal/infrastructure/storage/postgres"
)

// Overhead registers are dated single-table documents, so they reuse the
// catalog base in dated mode.

func NewPackagingRepo() *BaseCatalogRepo[*overheads.Packaging] {
	return NewBaseCatalogRepo(
		"packaging_invoices", "packaging invoice",
		postgres.ExtractDBColumns[overheads.Packaging](),
		func() *overheads.Packaging { return &overheads.Packaging{} },
	).Dated("date")
}

func NewExpenseRepo() *BaseCatalogRepo[*overheads.Expense] {
	return NewBaseCatalogRepo(
		"expenses", "expense",
		postgres.ExtractDBColumns[overheads.Expense](),
		func() *overheads.Expense { return &overheads.Expense{} },
	).Dated("date", "paid_by", "paid_to", "description")
}

func NewDamageRepo() *BaseCatalogRepo[*overheads.Damage] {
	return NewBaseCatalogRepo(
		"damages", "damage",
		postgres.ExtractDBColumns[overheads.Damage](),
		func() *overheads.Damage { return &overheads.Damage{} },
	).Dated("date", "name", "due_to", "description")
}

var (
	_ domain.Repository[*overheads.Packaging] = (*BaseCatalogRepo[*overheads.Packaging])(nil)
	_ domain.Repository[*overheads.Expense]   = (*BaseCatalogRepo[*overheads.Expense])(nil)
	_ domain.Repository[*overheads.Damage]    = (*BaseCatalogRepo[*overheads.Damage])(nil)
)
