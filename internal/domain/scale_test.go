// internal/domain/scale_test.go
package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinledger/internal/util"
)

func TestToAtomicTruncatesTowardZero(t *testing.T) {
	cases := []struct {
		amount string
		scale  int
		want   int64
	}{
		{"10.5", 6, 10500000},
		{"0.0004", 6, 400},
		{"1.999999", 2, 199},
		{"0.0000009", 6, 0},
		{"123", 0, 123},
		{"0.000000000001", 12, 1},
	}
	for _, tc := range cases {
		atoms, err := ToAtomic(decimal.RequireFromString(tc.amount), tc.scale)
		require.NoError(t, err, "amount %s scale %d", tc.amount, tc.scale)
		assert.Equal(t, tc.want, atoms, "amount %s scale %d", tc.amount, tc.scale)
	}
}

func TestToAtomicRejectsNegative(t *testing.T) {
	_, err := ToAtomic(decimal.RequireFromString("-0.01"), 6)
	assert.ErrorIs(t, err, util.ErrNegativeAmount)
}

func TestScaleBounds(t *testing.T) {
	_, err := ToAtomic(decimal.NewFromInt(1), -1)
	assert.ErrorIs(t, err, util.ErrScaleOutOfRange)

	_, err = ToAtomic(decimal.NewFromInt(1), 13)
	assert.ErrorIs(t, err, util.ErrScaleOutOfRange)

	_, err = ToAmount(1, -1)
	assert.ErrorIs(t, err, util.ErrScaleOutOfRange)

	_, err = ToAmount(1, 13)
	assert.ErrorIs(t, err, util.ErrScaleOutOfRange)
}

func TestRoundTripAtEveryScale(t *testing.T) {
	base := decimal.RequireFromString("987.654321987654")
	for scale := 0; scale <= MaxScale; scale++ {
		x := base.Truncate(int32(scale))
		atoms, err := ToAtomic(x, scale)
		require.NoError(t, err)
		back, err := ToAmount(atoms, scale)
		require.NoError(t, err)
		assert.True(t, back.Equal(x), "scale %d: got %s want %s", scale, back, x)
	}
}

func TestToAmountRendersAtScale(t *testing.T) {
	amount, err := ToAmount(10500000, 6)
	require.NoError(t, err)
	assert.Equal(t, "10.500000", amount.StringFixed(6))
	assert.True(t, amount.Equal(decimal.RequireFromString("10.500000")))
}
