package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountedPrice applies a percentage discount and rounds to cents. The percent is clamped to [0, 100].
func DiscountedPrice(price, percent decimal.Decimal) decimal.Decimal {
	if percent.LessThanOrEqual(decimal.Zero) {
		return price.Round(2)
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	off := price.Mul(percent).Div(hundred)
	return price.Sub(off).Round(2)
}

// LineTotal is price times quantity, rounded to cents.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

// ClampQty bounds a requested quantity to [1, max]. A non-positive max means the bound is unknown.
func ClampQty(qty, max int) int {
	if qty < 1 {
		qty = 1
	}
	if max > 0 && qty > max {
		qty = max
	}
	return qty
}
