// internal/domain/wallet.go
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations

	"coinledger/internal/util"
)

// WalletStatus defines the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusFrozen WalletStatus = "frozen"
	WalletStatusClosed WalletStatus = "closed"
)

// Wallet is the coin ledger aggregate for one (owner, coin) pair. Balances are
// kept in atomic integer units at the wallet's decimal scale; holds earmark a
// portion of the balance for pending operations. Every mutation bumps Version,
// which the persistence layer uses for optimistic lock checks.
//
// The wallet performs no I/O and takes no locks; serializing concurrent
// mutations is the applier's responsibility.
type Wallet struct {
	ID            int64        `db:"id" json:"id"`
	OwnerID       int64        `db:"owner_id" json:"owner_id"`
	CoinSymbol    string       `db:"coin_symbol" json:"coin_symbol"`
	Scale         int          `db:"scale" json:"scale"`
	BalanceAtomic int64        `db:"balance_atomic" json:"balance_atomic"`
	HoldsAtomic   int64        `db:"holds_atomic" json:"holds_atomic"`
	Status        WalletStatus `db:"status" json:"status"`
	Version       int64        `db:"version" json:"version"`
	LastTxnID     *int64       `db:"last_txn_id" json:"last_txn_id"`
	LastTxnAt     *time.Time   `db:"last_txn_at" json:"last_txn_at"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// NewWallet creates an active wallet with a zero balance.
func NewWallet(ownerID int64, coinSymbol string, scale int) (*Wallet, error) {
	if scale < 0 || scale > MaxScale {
		return nil, util.ErrScaleOutOfRange
	}
	coinSymbol = strings.ToUpper(strings.TrimSpace(coinSymbol))
	if len(coinSymbol) < 1 || len(coinSymbol) > 16 {
		return nil, util.ErrInvalidInput
	}
	now := time.Now().UTC()
	return &Wallet{
		OwnerID:    ownerID,
		CoinSymbol: coinSymbol,
		Scale:      scale,
		Status:     WalletStatusActive,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// touch records a mutation: bumps the optimistic-lock version and the
// updated timestamp.
func (w *Wallet) touch() {
	w.Version++
	w.UpdatedAt = time.Now().UTC()
}

// AvailableAtomic returns the spendable portion of the balance in atomic
// units (balance minus holds, never negative).
func (w *Wallet) AvailableAtomic() int64 {
	if avail := w.BalanceAtomic - w.HoldsAtomic; avail > 0 {
		return avail
	}
	return 0
}

// Balance returns the full balance as a decimal at the wallet's scale.
func (w *Wallet) Balance() decimal.Decimal {
	return decimal.New(w.BalanceAtomic, -int32(w.Scale))
}

// Holds returns the held amount as a decimal at the wallet's scale.
func (w *Wallet) Holds() decimal.Decimal {
	return decimal.New(w.HoldsAtomic, -int32(w.Scale))
}

// Available returns the spendable balance as a decimal at the wallet's scale.
func (w *Wallet) Available() decimal.Decimal {
	return decimal.New(w.AvailableAtomic(), -int32(w.Scale))
}

// Freeze blocks debits and holds; credits still land.
func (w *Wallet) Freeze() {
	w.Status = WalletStatusFrozen
	w.touch()
}

// Unfreeze returns a frozen wallet to active.
func (w *Wallet) Unfreeze() {
	w.Status = WalletStatusActive
	w.touch()
}

// Close permanently retires the wallet. Wallets are never hard-deleted.
func (w *Wallet) Close() {
	w.Status = WalletStatusClosed
	w.touch()
}

// CreditAtomic adds atoms to the balance. Credits are accepted while frozen
// but not once the wallet is closed.
func (w *Wallet) CreditAtomic(atoms int64) error {
	if atoms < 0 {
		return util.ErrNegativeAmount
	}
	if w.Status == WalletStatusClosed {
		return util.ErrWalletClosed
	}
	w.BalanceAtomic += atoms
	w.touch()
	return nil
}

// DebitAtomic removes atoms from the balance. With useHold the amount is
// taken from the held portion (failing with ErrInsufficientHold if the hold
// is smaller); otherwise it must fit within the available balance.
func (w *Wallet) DebitAtomic(atoms int64, useHold bool) error {
	if atoms < 0 {
		return util.ErrNegativeAmount
	}
	if w.Status != WalletStatusActive {
		return util.ErrWalletNotActive
	}
	if useHold {
		if atoms > w.HoldsAtomic {
			return util.ErrInsufficientHold
		}
		w.HoldsAtomic -= atoms
	} else if atoms > w.AvailableAtomic() {
		return util.ErrInsufficientFunds
	}
	if atoms > w.BalanceAtomic {
		return util.ErrInsufficientFunds
	}
	w.BalanceAtomic -= atoms
	w.touch()
	return nil
}

// Credit converts amount at the wallet's scale and credits it.
// It returns the atomic units credited.
func (w *Wallet) Credit(amount decimal.Decimal) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, util.ErrInvalidInput
	}
	atoms, err := ToAtomic(amount, w.Scale)
	if err != nil {
		return 0, err
	}
	if err := w.CreditAtomic(atoms); err != nil {
		return 0, err
	}
	return atoms, nil
}

// Debit converts amount at the wallet's scale and debits it.
// It returns the atomic units debited.
func (w *Wallet) Debit(amount decimal.Decimal, useHold bool) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, util.ErrInvalidInput
	}
	atoms, err := ToAtomic(amount, w.Scale)
	if err != nil {
		return 0, err
	}
	if err := w.DebitAtomic(atoms, useHold); err != nil {
		return 0, err
	}
	return atoms, nil
}

// PlaceHold earmarks amount of the available balance for a pending operation.
// It returns the atomic units placed on hold.
func (w *Wallet) PlaceHold(amount decimal.Decimal) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, util.ErrInvalidInput
	}
	if w.Status != WalletStatusActive {
		return 0, util.ErrWalletNotActive
	}
	atoms, err := ToAtomic(amount, w.Scale)
	if err != nil {
		return 0, err
	}
	if atoms > w.AvailableAtomic() {
		return 0, util.ErrInsufficientFunds
	}
	w.HoldsAtomic += atoms
	w.touch()
	return atoms, nil
}

// ReleaseHold removes up to atoms from the held portion, clamped at zero.
func (w *Wallet) ReleaseHold(atoms int64) error {
	if atoms < 0 {
		return util.ErrNegativeAmount
	}
	w.HoldsAtomic -= atoms
	if w.HoldsAtomic < 0 {
		w.HoldsAtomic = 0
	}
	w.touch()
	return nil
}

// TransferTo moves amount from this wallet to other. Both wallets must carry
// the same coin at the same scale. Neither wallet is mutated when any guard
// fails. The caller must have locked both wallets in ascending-id order.
func (w *Wallet) TransferTo(other *Wallet, amount decimal.Decimal) (int64, error) {
	if other == nil || w.ID == other.ID {
		return 0, util.ErrSameWalletTransfer
	}
	if w.CoinSymbol != other.CoinSymbol {
		return 0, util.ErrCoinMismatch
	}
	if w.Scale != other.Scale {
		return 0, util.ErrScaleMismatch
	}
	if other.Status == WalletStatusClosed {
		return 0, util.ErrWalletClosed
	}
	atoms, err := w.Debit(amount, false)
	if err != nil {
		return 0, err
	}
	if err := other.CreditAtomic(atoms); err != nil {
		// undo the debit so the pair stays consistent
		w.BalanceAtomic += atoms
		return 0, err
	}
	return atoms, nil
}
