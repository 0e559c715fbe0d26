// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"coinledger/internal/domain"
)

// WalletRepository defines the interface for wallet data operations.
type WalletRepository interface {
	// Create adds a new wallet using the provided DBExecutor.
	Create(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetByID retrieves a wallet by its ID.
	GetByID(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetByOwnerAndCoin retrieves the wallet for an (owner, coin) pair.
	GetByOwnerAndCoin(ctx context.Context, q DBExecutor, ownerID int64, coinSymbol string) (*domain.Wallet, error)
	// GetForUpdate retrieves a wallet under an exclusive row lock
	// (SELECT ... FOR UPDATE). Must run inside a store transaction.
	GetForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// Update persists wallet state conditioned on expectedVersion. A write
	// affecting zero rows signals a lost update and returns util.ErrConflict.
	Update(ctx context.Context, q DBExecutor, wallet *domain.Wallet, expectedVersion int64) error
}
