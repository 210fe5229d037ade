package costlot

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// SplitEvenly divides a total price over a count of units, spreading the
// indivisible remainder one unit at a time so the groups always sum back to
// the exact total. The result holds at most two price groups.
func SplitEvenly(totalPrice decimal.Decimal, totalCount int) []PriceGroup {
	if totalCount <= 0 {
		return nil
	}
	countDec := decimal.NewFromInt(int64(totalCount))

	remainder := totalPrice.Mod(countDec)
	base := totalPrice.Sub(remainder).Div(countDec)

	bumped := int(remainder.IntPart())
	if bumped <= 0 {
		return []PriceGroup{{Count: totalCount, UnitPrice: base}}
	}

	groups := []PriceGroup{{Count: bumped, UnitPrice: base.Add(one)}}
	if rest := totalCount - bumped; rest > 0 {
		groups = append(groups, PriceGroup{Count: rest, UnitPrice: base})
	}
	return groups
}

// AveragePrice returns the per-unit average of a total, rounded half to even
// to keep repeated re-averaging from drifting upward.
func AveragePrice(totalPrice decimal.Decimal, totalCount int) decimal.Decimal {
	if totalCount <= 0 {
		return decimal.Zero
	}
	return totalPrice.Div(decimal.NewFromInt(int64(totalCount))).RoundBank(0)
}
