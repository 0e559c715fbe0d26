// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"coinledger/internal/domain"
	"coinledger/internal/repository"
	"coinledger/internal/util"

	"github.com/jmoiron/sqlx"
)

const walletColumns = `id, owner_id, coin_symbol, scale, balance_atomic, holds_atomic, status, version, last_txn_id, last_txn_at, created_at, updated_at`

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) repository.WalletRepository {
	return &WalletRepository{}
}

// Create inserts a new wallet using the provided DBExecutor.
func (r *WalletRepository) Create(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (owner_id, coin_symbol, scale, balance_atomic, holds_atomic, status, version, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		wallet.OwnerID,
		wallet.CoinSymbol,
		wallet.Scale,
		wallet.BalanceAtomic,
		wallet.HoldsAtomic,
		wallet.Status,
		wallet.Version,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	).Scan(&wallet.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("wallet for owner %d already exists: %w", wallet.OwnerID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetByID retrieves a wallet by its ID using the provided DBExecutor.
func (r *WalletRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	err := q.GetContext(ctx, &wallet, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet by ID %d: %w", id, err)
	}
	return &wallet, nil
}

// GetByOwnerAndCoin retrieves the wallet for an (owner, coin) pair.
func (r *WalletRepository) GetByOwnerAndCoin(ctx context.Context, q repository.DBExecutor, ownerID int64, coinSymbol string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND coin_symbol = $2`
	err := q.GetContext(ctx, &wallet, query, ownerID, coinSymbol)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for owner %d coin %s: %w", ownerID, coinSymbol, err)
	}
	return &wallet, nil
}

// GetForUpdate retrieves a wallet under an exclusive row lock. The lock is
// held until the enclosing store transaction commits or rolls back.
func (r *WalletRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &wallet, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet %d: %w", id, err)
	}
	return &wallet, nil
}

// Update persists wallet state conditioned on expectedVersion. Zero rows
// affected means another writer got there first: util.ErrConflict.
func (r *WalletRepository) Update(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet, expectedVersion int64) error {
	query := `UPDATE wallets
              SET balance_atomic = $1, holds_atomic = $2, status = $3, version = $4,
                  last_txn_id = $5, last_txn_at = $6, updated_at = $7
              WHERE id = $8 AND version = $9`
	result, err := q.ExecContext(ctx, query,
		wallet.BalanceAtomic,
		wallet.HoldsAtomic,
		wallet.Status,
		wallet.Version,
		wallet.LastTxnID,
		wallet.LastTxnAt,
		wallet.UpdatedAt,
		wallet.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet %d: %w", wallet.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for wallet %d: %w", wallet.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("wallet %d version %d: %w", wallet.ID, expectedVersion, util.ErrConflict)
	}
	return nil
}
