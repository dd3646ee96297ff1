package sales

import (
	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// LineInput is the user-entered part of a sales line.
type LineInput struct {
	ProductID   id.ID
	GrossWeight types.Weight
	// Discount is a weight allowance in percent, 0-100
	Discount   decimal.Decimal
	Rotten     types.Weight
	Price      types.Money
	SalesLotID *id.ID
}

// Validate checks ranges; lineNo is used in error details (0 = single line).
func (in LineInput) Validate(lineNo int) error {
	fail := func(field, msg string) error {
		e := apperror.NewValidation(msg).WithDetail("field", field)
		if lineNo > 0 {
			e = e.WithDetail("lineNo", lineNo)
		}
		return e
	}
	switch {
	case id.IsNil(in.ProductID):
		return fail("productId", "product is required")
	case !in.GrossWeight.IsPositive():
		return fail("grossWeight", "gross weight must be greater than zero")
	case in.Rotten.IsNegative():
		return fail("rotten", "rotten cannot be negative")
	case in.Price.IsNegative():
		return fail("price", "price cannot be negative")
	case in.Discount.IsNegative() || in.Discount.GreaterThan(hundred):
		return fail("discount", "discount must be between 0 and 100")
	}
	return nil
}

// CalculateLine returns the net weight and total. Both are rounded from the exact
// net weight, so the total may differ from rounded net weight × price. Totals are
// not floored; zero and negative totals are kept.
func CalculateLine(in LineInput) (netWeight types.Weight, total types.Money) {
	exact := in.GrossWeight.Sub(types.Percent(in.GrossWeight, in.Discount)).Sub(in.Rotten)
	return types.Round2(exact), types.Round2(exact.Mul(in.Price))
}

// PackagingTotal is crates × cost per crate.
func PackagingTotal(crates, costPerCrate decimal.Decimal) types.Money {
	return types.Round2(crates.Mul(costPerCrate))
}

// Summarize derives the invoice figures from its header and sums.
func Summarize(inv *Invoice, agg Aggregates, commissionPerKg decimal.Decimal) *Summary {
	s := &Summary{
		NetTotal:             types.Round2(agg.NetTotal),
		TotalGrossWeight:     agg.TotalGrossWeight,
		Commission:           types.Round2(agg.TotalGrossWeight.Mul(commissionPerKg)),
		PackagingTotal:       PackagingTotal(inv.NoOfCrates, inv.CostPerCrate),
		PurchasedCratesTotal: types.Round2(inv.PurchasedCratesQuantity.Mul(inv.PurchasedCratesUnitPrice)),
		PaidAmount:           types.Round2(agg.PaidAmount),
	}
	s.NetTotalAfterCommission = s.NetTotal.Add(s.Commission)
	s.NetTotalAfterPackaging = s.NetTotalAfterCommission.Add(s.PackagingTotal).Add(s.PurchasedCratesTotal)
	s.DueAmount = s.NetTotalAfterPackaging.Sub(s.PaidAmount)
	s.PaymentStatus = StatusOf(s.PaidAmount, s.DueAmount)
	return s
}

// StatusOf classifies collection progress.
func StatusOf(paid, due decimal.Decimal) PaymentStatus {
	switch {
	case due.IsZero():
		return PaymentPaid
	case paid.IsZero():
		return PaymentUnpaid
	default:
		return PaymentPartial
	}
}
