// Package overheads records business costs outside the invoices: outgoing
// packaging, general expenses and damage losses. All feed the profit report.
package overheads

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/entity"
	"produceledger/internal/core/types"
)

func requireText(field, value string, maxLen int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return apperror.NewValidation(field+" is required").WithDetail("field", field)
	}
	if maxLen > 0 && len(value) > maxLen {
		return apperror.NewValidation(field+" is too long").WithDetail("field", field).WithDetail("max", maxLen)
	}
	return nil
}

func requireAmount(field string, v *decimal.Decimal) error {
	*v = types.Round2(*v)
	if v.IsNegative() {
		return apperror.NewValidation(field+" cannot be negative").WithDetail("field", field)
	}
	return nil
}

// Packaging is a batch of crates bought for outgoing produce.
type Packaging struct {
	entity.Document

	NoOfCrates   int         `db:"no_of_crates" json:"noOfCrates"`
	CostPerCrate types.Money `db:"cost_per_crate" json:"costPerCrate"`
}

func NewPackaging() *Packaging {
	return &Packaging{Document: entity.NewDocument()}
}

// Total is crates × cost per crate.
func (p *Packaging) Total() types.Money {
	return types.Round2(decimal.NewFromInt(int64(p.NoOfCrates)).Mul(p.CostPerCrate))
}

func (p *Packaging) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}
	if p.NoOfCrates < 0 {
		return apperror.NewValidation("number of crates cannot be negative").WithDetail("field", "noOfCrates")
	}
	return requireAmount("costPerCrate", &p.CostPerCrate)
}

// Expense is a general business payment.
type Expense struct {
	entity.Document

	PaidBy      string      `db:"paid_by" json:"paidBy"`
	PaidTo      string      `db:"paid_to" json:"paidTo"`
	Description string      `db:"description" json:"description"`
	Amount      types.Money `db:"amount" json:"amount"`
}

func NewExpense() *Expense {
	return &Expense{Document: entity.NewDocument()}
}

func (e *Expense) Validate(ctx context.Context) error {
	if err := e.Document.Validate(ctx); err != nil {
		return err
	}
	if err := requireText("paidBy", e.PaidBy, 100); err != nil {
		return err
	}
	if err := requireText("paidTo", e.PaidTo, 100); err != nil {
		return err
	}
	if err := requireText("description", e.Description, 0); err != nil {
		return err
	}
	return requireAmount("amount", &e.Amount)
}

// Damage is stock or property lost, attributed to a cause.
type Damage struct {
	entity.Document

	Name        string      `db:"name" json:"name"`
	DueTo       string      `db:"due_to" json:"dueTo"`
	Description string      `db:"description" json:"description"`
	AmountLoss  types.Money `db:"amount_loss" json:"amountLoss"`
}

func NewDamage() *Damage {
	return &Damage{Document: entity.NewDocument()}
}

func (d *Damage) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}
	if err := requireText("name", d.Name, 100); err != nil {
		return err
	}
	if err := requireText("dueTo", d.DueTo, 100); err != nil {
		return err
	}
	if err := requireText("description", d.Description, 0); err != nil {
		return err
	}
	return requireAmount("amountLoss", &d.AmountLoss)
}
