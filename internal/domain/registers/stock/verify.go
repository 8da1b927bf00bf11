package stock

import (
	"fmt"

	"github.com/shopspring/decimal"

	"kardex/internal/core/types"
)

// costRoundingError is half a unit in the last place of a rounded average cost.
var costRoundingError = decimal.New(5, -(types.CostPlaces + 1))

// VerifyBalance checks the numeric invariants of a balance:
// valuation matches quantity * average cost within types.ValuationTolerance
// (widened by the rounding of the average cost to types.CostPlaces),
// valuation and average cost are zero when stock is zero, and (when trackLots)
// lot quantities add up to the on-hand quantity.
func VerifyBalance(b Balance, trackLots bool) error {
	if b.Quantity.IsZero() {
		if !b.Valuation.IsZero() || !b.AverageCost.IsZero() {
			return fmt.Errorf("balance %s: zero quantity with valuation %s and average cost %s",
				b.Key(), b.Valuation, b.AverageCost)
		}
	} else {
		expected := types.RoundMoney(b.Quantity.Mul(b.AverageCost))
		tolerance := types.ValuationTolerance.Add(b.Quantity.Abs().Mul(costRoundingError))
		if !types.ApproxEqual(b.Valuation, expected, tolerance) {
			return fmt.Errorf("balance %s: valuation %s differs from quantity*average %s",
				b.Key(), b.Valuation, expected)
		}
	}

	if trackLots {
		if total := b.LotTotal(); !total.Equal(b.Quantity) {
			return fmt.Errorf("balance %s: lot total %s differs from quantity %s",
				b.Key(), total, b.Quantity)
		}
	}
	return nil
}
