// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"coinledger/internal/domain"
)

// TransactionRepository defines the interface for ledger entry data operations.
type TransactionRepository interface {
	// Create appends a new ledger entry. A (wallet_id, idempotency_key)
	// unique-constraint violation is returned as util.ErrDuplicateEntry.
	Create(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetByID retrieves a ledger entry by its ID.
	GetByID(ctx context.Context, q DBExecutor, id int64) (*domain.Transaction, error)
	// GetByIdempotencyKey retrieves the entry for a (wallet, key) pair, or
	// util.ErrNotFound when no such entry exists.
	GetByIdempotencyKey(ctx context.Context, q DBExecutor, walletID int64, key string) (*domain.Transaction, error)
	// Update persists the mutable lifecycle fields (status, snapshots,
	// timestamps) of an existing entry.
	Update(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// ListByWalletID retrieves a page of entries for a wallet, newest first,
	// along with the total count.
	ListByWalletID(ctx context.Context, q DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error)
}
