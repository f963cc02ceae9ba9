// Package price implements the scaled-integer price model used by the
// matching engine. A nominal price p is stored as p * Scale, and the cost of
// a fill is computed with a 128-bit intermediate so the multiply can never
// wrap silently.
package price

import (
	"math/bits"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

// DefaultScale is the fixed-point denominator used when none is configured.
const DefaultScale uint64 = 1

// Cost returns floor(price * quantity / scale), the collateral owed for
// filling quantity units at the given scaled price. Rounding is always
// truncation toward zero; the buyer never pays a rounded-up fraction.
//
// The product is computed in 128 bits. If the resulting quotient does not
// fit in 64 bits, Cost returns domain.ErrArithmeticOverflow.
func Cost(priceTicks, quantity, scale uint64) (uint64, error) {
	if scale == 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	hi, lo := bits.Mul64(priceTicks, quantity)
	// bits.Div64 panics when the quotient overflows; reject that case first.
	if hi >= scale {
		return 0, domain.ErrArithmeticOverflow
	}
	quo, _ := bits.Div64(hi, lo, scale)
	return quo, nil
}
