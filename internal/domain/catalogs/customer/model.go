// Package customer provides the Customer catalog and credit-limit evaluation.
package customer

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/entity"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
)

// Customer is a buyer of produce on credit.
type Customer struct {
	entity.Catalog

	Contact string `db:"contact" json:"contact"`
	Address string `db:"address" json:"address"`

	// CreditLimit of zero (or less) means no limit is enforced.
	CreditLimit types.Money `db:"credit_limit" json:"creditLimit"`
}

// NewCustomer creates a Customer with a generated ID and no credit limit.
func NewCustomer(name string) *Customer {
	return &Customer{Catalog: entity.NewCatalog(name), CreditLimit: decimal.Zero}
}

// Validate implements entity.Validatable.
func (c *Customer) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}
	c.Contact = strings.TrimSpace(c.Contact)
	if len(c.Contact) > 15 {
		return apperror.NewValidation("contact must be at most 15 characters").WithDetail("field", "contact")
	}
	if c.CreditLimit.IsNegative() {
		return apperror.NewValidation("credit limit cannot be negative").WithDetail("field", "creditLimit")
	}
	c.CreditLimit = types.Round2(c.CreditLimit)
	return nil
}

// CreditStatus buckets a customer's outstanding balance against the limit.
type CreditStatus string

const (
	CreditNoLimit CreditStatus = "No Limit Set"
	CreditWithin  CreditStatus = "Within Limit"
	CreditNear    CreditStatus = "Near Limit"
	CreditOver    CreditStatus = "Over Limit"
)

var (
	hundred       = decimal.NewFromInt(100)
	nearThreshold = decimal.NewFromInt(80)
)

// Credit is the derived credit position of a customer.
type Credit struct {
	CustomerID        id.ID        `json:"customerId"`
	CreditLimit       types.Money  `json:"creditLimit"`
	TotalDue          types.Money  `json:"totalDue"`
	Status            CreditStatus `json:"creditStatus"`
	IsOverCreditLimit bool         `json:"isOverCreditLimit"`
}

// EvaluateCredit computes the credit status for a limit and outstanding total.
// Utilisation of exactly 80% is Near, exactly 100% is Over.
// IsOverCreditLimit is strict: a due equal to the limit is not over it.
func EvaluateCredit(limit, totalDue decimal.Decimal) (CreditStatus, bool) {
	if !limit.IsPositive() {
		return CreditNoLimit, false
	}
	over := totalDue.GreaterThan(limit)

	utilisation := totalDue.Mul(hundred)
	switch {
	case utilisation.GreaterThanOrEqual(limit.Mul(hundred)):
		return CreditOver, over
	case utilisation.GreaterThanOrEqual(limit.Mul(nearThreshold)):
		return CreditNear, over
	default:
		return CreditWithin, over
	}
}
