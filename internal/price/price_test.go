package price

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

func TestCost(t *testing.T) {
	cases := []struct {
		name     string
		price    uint64
		quantity uint64
		scale    uint64
		want     uint64
	}{
		{"unit scale", 50, 10, 1, 500},
		{"zero quantity", 50, 0, 1, 0},
		{"zero price", 0, 10, 1, 0},
		{"scaled exact", 500_000, 10, 1_000_000, 5},
		{"scaled truncates", 333_333, 1, 1_000_000, 0},
		{"truncation toward zero", 7, 3, 10, 2}, // 21/10
		{"large but representable", math.MaxUint64 / 2, 2, 1, math.MaxUint64 - 1},
		{"wide intermediate", math.MaxUint64, 1_000_000, 1_000_000, math.MaxUint64},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Cost(tc.price, tc.quantity, tc.scale)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCostOverflow(t *testing.T) {
	// price*quantity exceeds 64 bits and scale cannot bring it back down.
	_, err := Cost(math.MaxUint64, 2, 1)
	require.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	// Quotient exactly one past the 64-bit range.
	_, err = Cost(math.MaxUint64, 4, 2)
	require.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	// A zero scale can never produce a representable quotient.
	_, err = Cost(1, 1, 0)
	require.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}
