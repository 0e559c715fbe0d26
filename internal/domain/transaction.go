// internal/domain/transaction.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations

	"coinledger/internal/util"
)

// TransactionType defines the business meaning of a ledger entry.
type TransactionType string

const (
	TransactionTypeEarn        TransactionType = "earn"         // in-app earnings (gifts, rewards)
	TransactionTypeSpend       TransactionType = "spend"        // purchases/consumption
	TransactionTypeTransferIn  TransactionType = "transfer_in"  // from another wallet
	TransactionTypeTransferOut TransactionType = "transfer_out" // to another wallet
	TransactionTypeDeposit     TransactionType = "deposit"      // top-up bridge
	TransactionTypeWithdraw    TransactionType = "withdraw"     // cash-out bridge
	TransactionTypeConvertIn   TransactionType = "convert_in"   // conversion result (+)
	TransactionTypeConvertOut  TransactionType = "convert_out"  // conversion source (-)
	TransactionTypeAdjust      TransactionType = "adjust"       // admin/compensation
)

// TransactionStatus defines the lifecycle state of a ledger entry.
// pending -> success | failed; success -> reversed. failed and reversed are
// terminal; success is terminal unless explicitly reversed.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusSuccess  TransactionStatus = "success"
	TransactionStatusFailed   TransactionStatus = "failed"
	TransactionStatusReversed TransactionStatus = "reversed"
)

// Transaction is one signed ledger entry against a wallet. Amount and Fee are
// positive decimals; the signed balance effect comes from Delta. Once a
// transaction reaches a terminal status its delta is never edited again.
type Transaction struct {
	ID                   int64             `db:"id" json:"id"`
	WalletID             int64             `db:"wallet_id" json:"wallet_id"`
	CounterpartyWalletID *int64            `db:"counterparty_wallet_id" json:"counterparty_wallet_id"`
	CoinSymbol           string            `db:"coin_symbol" json:"coin_symbol"`
	Type                 TransactionType   `db:"type" json:"type"`
	Status               TransactionStatus `db:"status" json:"status"`
	Amount               decimal.Decimal   `db:"amount" json:"amount"`
	Fee                  decimal.Decimal   `db:"fee" json:"fee"`
	Description          *string           `db:"description" json:"description"`
	IdempotencyKey       string            `db:"idempotency_key" json:"idempotency_key"`
	GroupID              *string           `db:"group_id" json:"group_id"`
	AdjustDebit          bool              `db:"adjust_debit" json:"adjust_debit"`
	UseHold              bool              `db:"use_hold" json:"use_hold"`
	BalanceBefore        *decimal.Decimal  `db:"balance_before" json:"balance_before"`
	BalanceAfter         *decimal.Decimal  `db:"balance_after" json:"balance_after"`
	ReversalOfID         *int64            `db:"reversal_of_id" json:"reversal_of_id"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
	PostedAt             *time.Time        `db:"posted_at" json:"posted_at"`
	FailedAt             *time.Time        `db:"failed_at" json:"failed_at"`
	ReversedAt           *time.Time        `db:"reversed_at" json:"reversed_at"`
}

var validTransactionTypes = map[TransactionType]bool{
	TransactionTypeEarn:        true,
	TransactionTypeSpend:       true,
	TransactionTypeTransferIn:  true,
	TransactionTypeTransferOut: true,
	TransactionTypeDeposit:     true,
	TransactionTypeWithdraw:    true,
	TransactionTypeConvertIn:   true,
	TransactionTypeConvertOut:  true,
	TransactionTypeAdjust:      true,
}

// NewTransaction creates a pending ledger entry. Amount must be positive and
// fee non-negative. When idempotencyKey is empty a fresh one is generated, so
// the key is fixed before the entry ever reaches the applier.
func NewTransaction(walletID int64, coinSymbol string, txType TransactionType, amount, fee decimal.Decimal, idempotencyKey string) (*Transaction, error) {
	if !validTransactionTypes[txType] {
		return nil, util.ErrInvalidInput
	}
	if amount.Sign() <= 0 {
		return nil, util.ErrInvalidInput
	}
	if fee.IsNegative() {
		return nil, util.ErrNegativeAmount
	}
	coinSymbol = strings.ToUpper(strings.TrimSpace(coinSymbol))
	if len(coinSymbol) < 1 || len(coinSymbol) > 16 {
		return nil, util.ErrInvalidInput
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	return &Transaction{
		WalletID:       walletID,
		CoinSymbol:     coinSymbol,
		Type:           txType,
		Status:         TransactionStatusPending,
		Amount:         amount,
		Fee:            fee,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// NewTransferPair creates the (transfer_out, transfer_in) legs of a transfer.
// Both legs carry the same amount, share a generated group id and reference
// each other as counterparties.
func NewTransferPair(fromWalletID, toWalletID int64, coinSymbol string, amount decimal.Decimal, idempotencyKeyOut, idempotencyKeyIn string) (*Transaction, *Transaction, error) {
	if fromWalletID == toWalletID {
		return nil, nil, util.ErrSameWalletTransfer
	}
	outTxn, err := NewTransaction(fromWalletID, coinSymbol, TransactionTypeTransferOut, amount, decimal.Zero, idempotencyKeyOut)
	if err != nil {
		return nil, nil, err
	}
	inTxn, err := NewTransaction(toWalletID, coinSymbol, TransactionTypeTransferIn, amount, decimal.Zero, idempotencyKeyIn)
	if err != nil {
		return nil, nil, err
	}
	groupID := uuid.NewString()
	outTxn.GroupID = &groupID
	inTxn.GroupID = &groupID
	outTxn.CounterpartyWalletID = &toWalletID
	inTxn.CounterpartyWalletID = &fromWalletID
	return outTxn, inTxn, nil
}

// NewReversal creates a compensating entry whose delta is the exact negation
// of the original's. The original entry is never edited; the reversal is an
// adjust transaction linked via ReversalOfID and applied through the normal
// apply path.
func NewReversal(original *Transaction, idempotencyKey string) (*Transaction, error) {
	if original.Status != TransactionStatusSuccess {
		return nil, util.ErrInvalidTransition
	}
	delta := original.Delta()
	if delta.IsZero() {
		return nil, util.ErrInvalidInput
	}
	reversal, err := NewTransaction(original.WalletID, original.CoinSymbol, TransactionTypeAdjust, delta.Abs(), decimal.Zero, idempotencyKey)
	if err != nil {
		return nil, err
	}
	// a credit is undone by a debit-direction adjust and vice versa
	reversal.AdjustDebit = delta.Sign() > 0
	reversal.ReversalOfID = &original.ID
	reversal.CounterpartyWalletID = original.CounterpartyWalletID
	reversal.GroupID = original.GroupID
	return reversal, nil
}

// IsCredit reports whether the type increases the wallet balance.
func (t *Transaction) IsCredit() bool {
	switch t.Type {
	case TransactionTypeEarn, TransactionTypeTransferIn, TransactionTypeDeposit, TransactionTypeConvertIn:
		return true
	case TransactionTypeAdjust:
		return !t.AdjustDebit
	}
	return false
}

// IsDebit reports whether the type decreases the wallet balance.
func (t *Transaction) IsDebit() bool {
	return !t.IsCredit()
}

// Delta returns the signed effect on the balance: amount - fee for credits,
// -(amount + fee) for debits.
func (t *Transaction) Delta() decimal.Decimal {
	if t.IsCredit() {
		return t.Amount.Sub(t.Fee)
	}
	return t.Amount.Add(t.Fee).Neg()
}

// IsTerminal reports whether the entry may no longer change balances.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusReversed:
		return true
	}
	return false
}

// MarkSuccess transitions pending -> success and stamps PostedAt.
func (t *Transaction) MarkSuccess() error {
	if t.Status != TransactionStatusPending {
		return util.ErrInvalidTransition
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusSuccess
	t.PostedAt = &now
	return nil
}

// MarkFailed transitions pending -> failed and stamps FailedAt.
func (t *Transaction) MarkFailed() error {
	if t.Status != TransactionStatusPending {
		return util.ErrInvalidTransition
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusFailed
	t.FailedAt = &now
	return nil
}

// MarkReversed transitions success -> reversed and stamps ReversedAt.
func (t *Transaction) MarkReversed() error {
	if t.Status != TransactionStatusSuccess {
		return util.ErrInvalidTransition
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusReversed
	t.ReversedAt = &now
	return nil
}

// StampPosted records the wallet balance snapshots around the application of
// this entry.
func (t *Transaction) StampPosted(before, after decimal.Decimal) {
	t.BalanceBefore = &before
	t.BalanceAfter = &after
}
