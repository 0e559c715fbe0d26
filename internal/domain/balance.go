// internal/domain/balance.go
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinledger/internal/util"
)

// Balance is the simplified reservation-only variant of the wallet family,
// used for non-coin (fiat) balances. It keeps 2dp decimals instead of atomic
// units and has no transaction types of its own: total, reserved and the
// optimistic version counter are the whole state.
// Invariants: total >= 0, reserved >= 0, reserved <= total.
type Balance struct {
	ID        int64           `db:"id" json:"id"`
	OwnerID   int64           `db:"owner_id" json:"owner_id"`
	Currency  string          `db:"currency" json:"currency"`
	Total     decimal.Decimal `db:"total" json:"total"`
	Reserved  decimal.Decimal `db:"reserved" json:"reserved"`
	Version   int64           `db:"version" json:"version"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// quantizeMoney truncates to 2dp toward zero, the deterministic rounding the
// fiat side uses everywhere.
func quantizeMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(2)
}

// NewBalance creates an empty fiat balance for an owner.
func NewBalance(ownerID int64, currency string) (*Balance, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) < 2 || len(currency) > 8 {
		return nil, util.ErrInvalidInput
	}
	now := time.Now().UTC()
	return &Balance{
		OwnerID:   ownerID,
		Currency:  currency,
		Total:     decimal.Zero,
		Reserved:  decimal.Zero,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (b *Balance) touch() {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}

// Available returns total minus reserved.
func (b *Balance) Available() decimal.Decimal {
	return b.Total.Sub(b.Reserved)
}

// Credit adds amount to the total.
func (b *Balance) Credit(amount decimal.Decimal) error {
	amt := quantizeMoney(amount)
	if amt.Sign() <= 0 {
		return util.ErrInvalidInput
	}
	b.Total = b.Total.Add(amt)
	b.touch()
	return nil
}

// Debit removes amount from the available portion of the total.
func (b *Balance) Debit(amount decimal.Decimal) error {
	amt := quantizeMoney(amount)
	if amt.Sign() <= 0 {
		return util.ErrInvalidInput
	}
	if amt.GreaterThan(b.Available()) {
		return util.ErrInsufficientFunds
	}
	b.Total = b.Total.Sub(amt)
	b.touch()
	return nil
}

// Reserve earmarks amount of the available balance.
func (b *Balance) Reserve(amount decimal.Decimal) error {
	amt := quantizeMoney(amount)
	if amt.Sign() <= 0 {
		return util.ErrInvalidInput
	}
	if amt.GreaterThan(b.Available()) {
		return util.ErrInsufficientFunds
	}
	b.Reserved = b.Reserved.Add(amt)
	b.touch()
	return nil
}

// Release returns up to amount from the reserved portion, clamped at zero.
func (b *Balance) Release(amount decimal.Decimal) error {
	amt := quantizeMoney(amount)
	if amt.IsNegative() {
		return util.ErrNegativeAmount
	}
	b.Reserved = b.Reserved.Sub(amt)
	if b.Reserved.IsNegative() {
		b.Reserved = decimal.Zero
	}
	b.touch()
	return nil
}

// CaptureReserved consumes amount from the reserved portion, reducing both
// reserved and total.
func (b *Balance) CaptureReserved(amount decimal.Decimal) error {
	amt := quantizeMoney(amount)
	if amt.Sign() <= 0 {
		return util.ErrInvalidInput
	}
	if amt.GreaterThan(b.Reserved) {
		return util.ErrInsufficientHold
	}
	b.Reserved = b.Reserved.Sub(amt)
	b.Total = b.Total.Sub(amt)
	b.touch()
	return nil
}
