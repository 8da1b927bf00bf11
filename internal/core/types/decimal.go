// Package types provides common numeric types and fixed-precision helpers.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is a stock quantity. Stored and compared at QuantityPlaces digits.
type Quantity = decimal.Decimal

// Fixed precision used by the valuation engine.
//
// Quantities match Postgres NUMERIC(18,4), unit costs NUMERIC(18,6),
// valuations and line values NUMERIC(20,4).
const (
	QuantityPlaces int32 = 4
	CostPlaces     int32 = 6
	MoneyPlaces    int32 = 4
)

// ValuationTolerance is the largest accepted gap between a stored valuation
// and quantity * average cost after rounding.
var ValuationTolerance = decimal.New(1, -2)

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MustQuantity creates a Quantity from a string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return RoundQuantity(MustMoney(s))
}

// Zero returns zero value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// RoundQuantity rounds q to QuantityPlaces (half away from zero).
func RoundQuantity(q Quantity) Quantity {
	return q.Round(QuantityPlaces)
}

// RoundCost rounds a unit cost to CostPlaces.
func RoundCost(c Money) Money {
	return c.Round(CostPlaces)
}

// RoundMoney rounds a valuation or line value to MoneyPlaces.
func RoundMoney(m Money) Money {
	return m.Round(MoneyPlaces)
}

// ApproxEqual reports whether a and b differ by at most tol.
func ApproxEqual(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Ptr returns a pointer to a copy of d. Handy for optional costs.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
