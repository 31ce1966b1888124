// Package money centralises the decimal arithmetic used for order amounts.
// All monetary values are rounded to 2 places, half away from zero, so item
// line totals and order rollups can never disagree on rounding.
package money

import "github.com/shopspring/decimal"

// Places is the precision for all monetary amounts.
const Places = 2

var oneHundred = decimal.NewFromInt(100)

// Round2 rounds an amount to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// LineTotal computes quantity * unitPrice * (1 - discountPercent/100), rounded.
func LineTotal(quantity, unitPrice, discountPercent decimal.Decimal) decimal.Decimal {
	multiplier := decimal.NewFromInt(1).Sub(discountPercent.Div(oneHundred))
	return Round2(quantity.Mul(unitPrice).Mul(multiplier))
}

// Tax computes subtotal * rate, rounded.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Round2(subtotal.Mul(rate))
}

// OrderTotal computes subtotal + tax + shipping - discount. The operands are
// already rounded, so the sum needs no further rounding.
func OrderTotal(subtotal, tax, shipping, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Add(shipping).Sub(discount)
}

// NonNegative reports whether the amount is zero or greater.
func NonNegative(d decimal.Decimal) bool {
	return !d.IsNegative()
}

// ValidDiscountPercent reports whether p lies in [0, 100].
func ValidDiscountPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(oneHundred)
}
