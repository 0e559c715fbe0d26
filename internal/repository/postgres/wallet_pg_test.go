// internal/repository/postgres/wallet_pg_test.go
package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinledger/internal/domain"
	"coinledger/internal/util"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func walletRows(w *domain.Wallet) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "coin_symbol", "scale", "balance_atomic", "holds_atomic",
		"status", "version", "last_txn_id", "last_txn_at", "created_at", "updated_at",
	}).AddRow(
		w.ID, w.OwnerID, w.CoinSymbol, w.Scale, w.BalanceAtomic, w.HoldsAtomic,
		w.Status, w.Version, nil, nil, w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepositoryCreate(t *testing.T) {
	t.Run("Successful", func(t *testing.T) {
		sqlxDB, mock := newMockDB(t)
		repo := NewWalletRepository(sqlxDB)

		wallet, err := domain.NewWallet(1, "SMART", 6)
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO wallets`)).
			WithArgs(wallet.OwnerID, wallet.CoinSymbol, wallet.Scale, wallet.BalanceAtomic,
				wallet.HoldsAtomic, wallet.Status, wallet.Version, wallet.CreatedAt, wallet.UpdatedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))

		require.NoError(t, repo.Create(context.Background(), sqlxDB, wallet))
		assert.Equal(t, int64(10), wallet.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateOwnerCoin", func(t *testing.T) {
		sqlxDB, mock := newMockDB(t)
		repo := NewWalletRepository(sqlxDB)

		wallet, err := domain.NewWallet(1, "SMART", 6)
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO wallets`)).
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err = repo.Create(context.Background(), sqlxDB, wallet)
		assert.ErrorIs(t, err, util.ErrDuplicateEntry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepositoryGetByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		sqlxDB, mock := newMockDB(t)
		repo := NewWalletRepository(sqlxDB)

		stored := &domain.Wallet{
			ID: 1, OwnerID: 7, CoinSymbol: "SMART", Scale: 6,
			BalanceAtomic: 10500000, Status: domain.WalletStatusActive, Version: 3,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(walletRows(stored))

		wallet, err := repo.GetByID(context.Background(), sqlxDB, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(10500000), wallet.BalanceAtomic)
		assert.Equal(t, int64(3), wallet.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		sqlxDB, mock := newMockDB(t)
		repo := NewWalletRepository(sqlxDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`)).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), sqlxDB, 99)
		assert.ErrorIs(t, err, util.ErrWalletNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepositoryGetForUpdate(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewWalletRepository(sqlxDB)

	stored := &domain.Wallet{
		ID: 1, OwnerID: 7, CoinSymbol: "SMART", Scale: 6,
		Status: domain.WalletStatusActive, Version: 1,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(1)).
		WillReturnRows(walletRows(stored))

	wallet, err := repo.GetForUpdate(context.Background(), sqlxDB, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), wallet.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepositoryUpdate(t *testing.T) {
	t.Run("Successful", func(t *testing.T) {
		sqlxDB, mock := newMockDB(t)
		repo := NewWalletRepository(sqlxDB)

		wallet, err := domain.NewWallet(1, "SMART", 6)
		require.NoError(t, err)
		wallet.ID = 1
		wallet.Version = 2

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE wallets`)).
			WithArgs(wallet.BalanceAtomic, wallet.HoldsAtomic, wallet.Status, wallet.Version,
				wallet.LastTxnID, wallet.LastTxnAt, wallet.UpdatedAt, wallet.ID, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), sqlxDB, wallet, 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("VersionConflict", func(t *testing.T) {
		sqlxDB, mock := newMockDB(t)
		repo := NewWalletRepository(sqlxDB)

		wallet, err := domain.NewWallet(1, "SMART", 6)
		require.NoError(t, err)
		wallet.ID = 1
		wallet.Version = 2

		// another writer bumped the version: zero rows match
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE wallets`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.Update(context.Background(), sqlxDB, wallet, 1)
		assert.ErrorIs(t, err, util.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
