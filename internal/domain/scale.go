// internal/domain/scale.go
package domain

import (
	"github.com/shopspring/decimal"

	"coinledger/internal/util"
)

// MaxScale is the largest supported number of decimal places for a coin.
const MaxScale = 12

// ToAtomic converts a decimal amount to atomic units at the given scale,
// truncating toward zero. A scale=6 coin turns 10.5 into 10500000.
// Negative amounts are rejected with ErrNegativeAmount.
func ToAtomic(amount decimal.Decimal, scale int) (int64, error) {
	if scale < 0 || scale > MaxScale {
		return 0, util.ErrScaleOutOfRange
	}
	if amount.IsNegative() {
		return 0, util.ErrNegativeAmount
	}
	return amount.Shift(int32(scale)).Truncate(0).IntPart(), nil
}

// ToAmount converts atomic units back to a decimal amount at the given scale.
// It is the exact inverse of ToAtomic for amounts already quantized to the
// scale: ToAmount(ToAtomic(x, s), s) == x.
func ToAmount(atomic int64, scale int) (decimal.Decimal, error) {
	if scale < 0 || scale > MaxScale {
		return decimal.Zero, util.ErrScaleOutOfRange
	}
	return decimal.New(atomic, -int32(scale)), nil
}
