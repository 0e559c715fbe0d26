// internal/repository/postgres/balance_pg.go
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

const balanceColumns = `id, owner_id, currency, total, reserved, version, created_at, updated_at`

// BalanceRepository implements repository.BalanceRepository for PostgreSQL.
type BalanceRepository struct{}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) repository.BalanceRepository {
	return &BalanceRepository{}
}

// Create inserts a new balance row using the provided DBExecutor.
func (r *BalanceRepository) Create(ctx context.Context, q repository.DBExecutor, balance *domain.Balance) error {
	query := `INSERT INTO balances (owner_id, currency, total, reserved, version, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		balance.OwnerID,
		balance.Currency,
		balance.Total,
		balance.Reserved,
		balance.Version,
		balance.CreatedAt,
		balance.UpdatedAt,
	).Scan(&balance.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("balance for owner %d already exists: %w", balance.OwnerID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

// GetByOwner retrieves the balance of an owner.
func (r *BalanceRepository) GetByOwner(ctx context.Context, q repository.DBExecutor, ownerID int64) (*domain.Balance, error) {
	var balance domain.Balance
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE owner_id = $1`
	err := q.GetContext(ctx, &balance, query, ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance for owner %d: %w", ownerID, err)
	}
	return &balance, nil
}

// GetForUpdate retrieves the balance of an owner under an exclusive row lock.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, ownerID int64) (*domain.Balance, error) {
	var balance domain.Balance
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE owner_id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &balance, query, ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock balance for owner %d: %w", ownerID, err)
	}
	return &balance, nil
}

// Update persists balance state conditioned on expectedVersion.
func (r *BalanceRepository) Update(ctx context.Context, q repository.DBExecutor, balance *domain.Balance, expectedVersion int64) error {
	query := `UPDATE balances
              SET total = $1, reserved = $2, version = $3, updated_at = $4
              WHERE id = $5 AND version = $6`
	result, err := q.ExecContext(ctx, query,
		balance.Total,
		balance.Reserved,
		balance.Version,
		balance.UpdatedAt,
		balance.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance %d: %w", balance.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for balance %d: %w", balance.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance %d version %d: %w", balance.ID, expectedVersion, util.ErrConflict)
	}
	return nil
}
