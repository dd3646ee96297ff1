package dto

import (
	"github.com/shopspring/decimal"

	"produceledger/internal/domain/overheads"
)

type PackagingRequest struct {
	Date         Date            `json:"date"`
	NoOfCrates   int             `json:"noOfCrates" binding:"min=0"`
	CostPerCrate decimal.Decimal `json:"costPerCrate"`
	Version      int             `json:"version" binding:"min=0"`
}

func (r PackagingRequest) ToPackaging() *overheads.Packaging {
	return r.Apply(overheads.NewPackaging())
}

func (r PackagingRequest) Apply(p *overheads.Packaging) *overheads.Packaging {
	if !r.Date.IsZero() {
		p.Date = r.Date.Time
	}
	p.NoOfCrates = r.NoOfCrates
	p.CostPerCrate = r.CostPerCrate
	applyVersion(&p.Version, r.Version)
	return p
}

type ExpenseRequest struct {
	Date        Date            `json:"date"`
	PaidBy      string          `json:"paidBy" binding:"required,max=100"`
	PaidTo      string          `json:"paidTo" binding:"required,max=100"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Version     int             `json:"version" binding:"min=0"`
}

func (r ExpenseRequest) ToExpense() *overheads.Expense {
	return r.Apply(overheads.NewExpense())
}

func (r ExpenseRequest) Apply(e *overheads.Expense) *overheads.Expense {
	if !r.Date.IsZero() {
		e.Date = r.Date.Time
	}
	e.PaidBy = r.PaidBy
	e.PaidTo = r.PaidTo
	e.Description = r.Description
	e.Amount = r.Amount
	applyVersion(&e.Version, r.Version)
	return e
}

type DamageRequest struct {
	Date        Date            `json:"date"`
	Name        string          `json:"name" binding:"required,max=100"`
	DueTo       string          `json:"dueTo" binding:"required,max=100"`
	Description string          `json:"description" binding:"required"`
	AmountLoss  decimal.Decimal `json:"amountLoss"`
	Version     int             `json:"version" binding:"min=0"`
}

func (r DamageRequest) ToDamage() *overheads.Damage {
	return r.Apply(overheads.NewDamage())
}

func (r DamageRequest) Apply(d *overheads.Damage) *overheads.Damage {
	if !r.Date.IsZero() {
		d.Date = r.Date.Time
	}
	d.Name = r.Name
	d.DueTo = r.DueTo
	d.Description = r.Description
	d.AmountLoss = r.AmountLoss
	applyVersion(&d.Version, r.Version)
	return d
}
