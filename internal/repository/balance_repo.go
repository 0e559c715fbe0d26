// internal/repository/balance_repo.go
package repository

import (
	"context"

	"coinledger/internal/domain"
)

// BalanceRepository defines the interface for fiat balance data operations.
type BalanceRepository interface {
	// Create adds a new balance row for an owner.
	Create(ctx context.Context, q DBExecutor, balance *domain.Balance) error
	// GetByOwner retrieves the balance of an owner.
	GetByOwner(ctx context.Context, q DBExecutor, ownerID int64) (*domain.Balance, error)
	// GetForUpdate retrieves the balance of an owner under an exclusive row lock.
	GetForUpdate(ctx context.Context, q DBExecutor, ownerID int64) (*domain.Balance, error)
	// Update persists balance state conditioned on expectedVersion; zero rows
	// affected returns util.ErrConflict.
	Update(ctx context.Context, q DBExecutor, balance *domain.Balance, expectedVersion int64) error
}
