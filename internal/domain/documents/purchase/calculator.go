package purchase

import (
	"github.com/shopspring/decimal"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// LineInput is the user-entered part of a purchase line.
type LineInput struct {
	ProductID id.ID
	Quantity  types.Weight
	Price     types.Money
	Damage    types.Weight
	// Discount is a percentage, 0-100
	Discount decimal.Decimal
	Rotten   types.Weight
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
	case !in.Quantity.IsPositive():
		return fail("quantity", "quantity must be greater than zero")
	case in.Price.IsNegative():
		return fail("price", "price cannot be negative")
	case in.Damage.IsNegative():
		return fail("damage", "damage cannot be negative")
	case in.Rotten.IsNegative():
		return fail("rotten", "rotten cannot be negative")
	case in.Discount.IsNegative() || in.Discount.GreaterThan(hundred):
		return fail("discount", "discount must be between 0 and 100")
	}
	return nil
}

// LineAmounts are the intermediate and final figures of one purchase line.
type LineAmounts struct {
	PhysicalQuantity   types.Weight
	BasePriceTotal     types.Money
	DiscountAmount     types.Money
	PriceAfterDiscount types.Money
	LoadingUnloading   types.Money
	Total              types.Money
}

// CalculateLine derives the line total.
//
// Damage and rotten weight are not paid for; the discount applies to what is left.
// The handling charge is levied on the full delivered quantity unless exempt.
// The total is floored at 0.01 so no line is ever free or negative.
func CalculateLine(in LineInput, handlingPerKg decimal.Decimal, exempt bool) LineAmounts {
	var a LineAmounts
	a.PhysicalQuantity = types.MaxZero(in.Quantity.Sub(in.Damage).Sub(in.Rotten))
	a.BasePriceTotal = a.PhysicalQuantity.Mul(in.Price)
	a.DiscountAmount = types.Percent(a.BasePriceTotal, in.Discount)
	a.PriceAfterDiscount = a.BasePriceTotal.Sub(a.DiscountAmount)

	lu := decimal.Zero
	if !exempt {
		lu = in.Quantity.Mul(handlingPerKg)
	}

	a.Total = types.Round2(a.PriceAfterDiscount.Sub(lu))
	if !a.Total.IsPositive() {
		a.Total = types.MinLineTotal
	}
	a.LoadingUnloading = types.Round2(lu)
	return a
}

// Apply stores the derived amounts on the line.
func (a LineAmounts) Apply(l *Line) {
	l.LoadingUnloading = a.LoadingUnloading
	l.Total = a.Total
}

// NetTotal sums the line totals.
func NetTotal(lines []*Line) types.Money {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return total
}

// AfterCashCutting deducts the cash-cutting rate from a net total.
func AfterCashCutting(netTotal, rate decimal.Decimal) types.Money {
	return types.Round2(netTotal.Sub(netTotal.Mul(rate)))
}

// Summarize derives the read-side figures of an invoice.
func Summarize(netTotal types.Money, agg Aggregates, cashCutting decimal.Decimal) *Summary {
	after := AfterCashCutting(netTotal, cashCutting)
	paid := types.Round2(agg.PaidAmount)
	return &Summary{
		NetTotal:                 netTotal,
		NetTotalAfterCashCutting: after,
		PaidAmount:               paid,
		DueAmount:                after.Sub(paid),
		PurchasedQuantity:        agg.PurchasedQuantity,
		AllocatedQuantity:        agg.AllocatedQuantity,
		AvailableQuantity:        agg.PurchasedQuantity.Sub(agg.AllocatedQuantity),
	}
}
