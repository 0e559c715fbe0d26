// internal/util/errors.go
package util

import "errors"

// Validation errors. Non-retryable: surfaced immediately, never auto-retried.
var (
	ErrInvalidInput       = errors.New("invalid input provided")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrScaleOutOfRange    = errors.New("scale must be between 0 and 12")
	ErrScaleMismatch      = errors.New("scale mismatch between wallets")
	ErrCoinMismatch       = errors.New("coin symbol mismatch")
	ErrWalletNotActive    = errors.New("wallet not active")
	ErrWalletClosed       = errors.New("wallet closed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientHold   = errors.New("insufficient held amount")
	ErrSameWalletTransfer = errors.New("cannot transfer to the same wallet")
	ErrInvalidTransition  = errors.New("invalid transaction status transition")
)

// ErrConflict signals a lost-update race (version mismatch or an idempotency
// race resolved against us). Retryable inside the applier, surfaced once the
// retry budget is exhausted.
var ErrConflict = errors.New("concurrent update conflict")

// Persistence errors.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// IsError reports whether err matches target anywhere in its chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
