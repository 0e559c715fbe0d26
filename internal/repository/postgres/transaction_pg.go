// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coinledger/internal/domain"
	"coinledger/internal/repository"
	"coinledger/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const transactionColumns = `id, wallet_id, counterparty_wallet_id, coin_symbol, type, status, amount, fee, description, idempotency_key, group_id, adjust_debit, use_hold, balance_before, balance_after, reversal_of_id, created_at, posted_at, failed_at, reversed_at`

// uniqueViolation is the PostgreSQL SQLSTATE for unique-constraint errors.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) repository.TransactionRepository {
	return &TransactionRepository{}
}

// Create appends a new ledger entry using the provided DBExecutor.
// A (wallet_id, idempotency_key) collision surfaces as util.ErrDuplicateEntry
// so the applier can resolve the race by re-reading the existing row.
func (r *TransactionRepository) Create(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (wallet_id, counterparty_wallet_id, coin_symbol, type, status, amount, fee, description, idempotency_key, group_id, adjust_debit, use_hold, balance_before, balance_after, reversal_of_id, created_at, posted_at, failed_at, reversed_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		transaction.WalletID,
		transaction.CounterpartyWalletID,
		transaction.CoinSymbol,
		transaction.Type,
		transaction.Status,
		transaction.Amount,
		transaction.Fee,
		transaction.Description,
		transaction.IdempotencyKey,
		transaction.GroupID,
		transaction.AdjustDebit,
		transaction.UseHold,
		transaction.BalanceBefore,
		transaction.BalanceAfter,
		transaction.ReversalOfID,
		transaction.CreatedAt,
		transaction.PostedAt,
		transaction.FailedAt,
		transaction.ReversedAt,
	).Scan(&transaction.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("idempotency key %q for wallet %d: %w", transaction.IdempotencyKey, transaction.WalletID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger entry by its ID.
func (r *TransactionRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Transaction, error) {
	var transaction domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	err := q.GetContext(ctx, &transaction, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return &transaction, nil
}

// GetByIdempotencyKey retrieves the entry for a (wallet, key) pair.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, q repository.DBExecutor, walletID int64, key string) (*domain.Transaction, error) {
	var transaction domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE wallet_id = $1 AND idempotency_key = $2`
	err := q.GetContext(ctx, &transaction, query, walletID, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key for wallet %d: %w", walletID, err)
	}
	return &transaction, nil
}

// Update persists the lifecycle fields of an existing entry. The business
// columns (type, amount, fee, key) are immutable and deliberately not listed.
func (r *TransactionRepository) Update(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `UPDATE transactions
              SET status = $1, balance_before = $2, balance_after = $3,
                  posted_at = $4, failed_at = $5, reversed_at = $6
              WHERE id = $7`
	result, err := q.ExecContext(ctx, query,
		transaction.Status,
		transaction.BalanceBefore,
		transaction.BalanceAfter,
		transaction.PostedAt,
		transaction.FailedAt,
		transaction.ReversedAt,
		transaction.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", transaction.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for transaction %d: %w", transaction.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %d: %w", transaction.ID, util.ErrNotFound)
	}
	return nil
}

// ListByWalletID retrieves a page of entries for a wallet, newest first, plus
// the total count.
func (r *TransactionRepository) ListByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	transactions := []domain.Transaction{}
	query := `SELECT ` + transactionColumns + `
              FROM transactions
              WHERE wallet_id = $1
              ORDER BY created_at DESC, id DESC
              LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &transactions, query, walletID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for wallet %d: %w", walletID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, walletID); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions for wallet %d: %w", walletID, err)
	}
	return transactions, totalCount, nil
}
