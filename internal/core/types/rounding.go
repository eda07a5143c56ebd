package types

import "github.com/shopspring/decimal"

// Rounding holds the fixed-precision rules for monetary arithmetic.
// Money amounts round half-even at MoneyScale; derived unit costs keep
// UnitCostScale fractional digits so that compounding error stays bounded
// across long movement histories.
type Rounding struct {
	MoneyScale    int32
	UnitCostScale int32
}

// DefaultRounding returns the standard precision: 2 digits for money,
// 6 digits for intermediate unit costs.
func DefaultRounding() Rounding {
	return Rounding{MoneyScale: 2, UnitCostScale: 6}
}

// Money rounds d half-even at the money scale.
func (r Rounding) Money(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(r.MoneyScale)
}

// UnitCost rounds d half-even at the unit-cost scale.
func (r Rounding) UnitCost(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(r.UnitCostScale)
}
