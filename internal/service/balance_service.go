// internal/service/balance_service.go
package service

import (
	"context"
	"fmt"

	"coinledger/internal/domain"
	"coinledger/internal/repository"
	"coinledger/pkg/db"

	"github.com/shopspring/decimal"
)

// BalanceService manages the reservation-only fiat balances: the simplified
// wallet variant with no atomic-unit scaling and no ledger entries of its own.
type BalanceService interface {
	CreateBalance(ctx context.Context, ownerID int64, currency string) (*domain.Balance, error)
	GetFiatBalance(ctx context.Context, ownerID int64) (*domain.Balance, error)
	CreditFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error)
	DebitFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error)
	ReserveFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error)
	ReleaseFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error)
	CaptureReserved(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error)
}

// balanceService implements the BalanceService interface.
type balanceService struct {
	dbBeginner  db.DBTxBeginner
	dbExecutor  repository.DBExecutor
	balanceRepo repository.BalanceRepository
	beginTx     db.BeginTxFunc
	commitTx    db.CommitTxFunc
	rollbackTx  db.RollbackTxFunc
}

// NewBalanceService creates a new instance of BalanceService.
func NewBalanceService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	balanceRepo repository.BalanceRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) BalanceService {
	return &balanceService{
		dbBeginner:  dbBeginner,
		dbExecutor:  dbExecutor,
		balanceRepo: balanceRepo,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
	}
}

// CreateBalance creates an empty fiat balance for an owner.
func (s *balanceService) CreateBalance(ctx context.Context, ownerID int64, currency string) (*domain.Balance, error) {
	balance, err := domain.NewBalance(ownerID, currency)
	if err != nil {
		return nil, err
	}
	if err := s.balanceRepo.Create(ctx, s.dbExecutor, balance); err != nil {
		return nil, fmt.Errorf("create balance: %w", err)
	}
	return balance, nil
}

// GetFiatBalance returns the owner's balance without an exclusive lock.
func (s *balanceService) GetFiatBalance(ctx context.Context, ownerID int64) (*domain.Balance, error) {
	balance, err := s.balanceRepo.GetByOwner(ctx, s.dbExecutor, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get fiat balance: %w", err)
	}
	return balance, nil
}

func (s *balanceService) CreditFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error) {
	return s.mutate(ctx, ownerID, func(b *domain.Balance) error { return b.Credit(amount) })
}

func (s *balanceService) DebitFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error) {
	return s.mutate(ctx, ownerID, func(b *domain.Balance) error { return b.Debit(amount) })
}

func (s *balanceService) ReserveFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error) {
	return s.mutate(ctx, ownerID, func(b *domain.Balance) error { return b.Reserve(amount) })
}

func (s *balanceService) ReleaseFunds(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error) {
	return s.mutate(ctx, ownerID, func(b *domain.Balance) error { return b.Release(amount) })
}

func (s *balanceService) CaptureReserved(ctx context.Context, ownerID int64, amount decimal.Decimal) (*domain.Balance, error) {
	return s.mutate(ctx, ownerID, func(b *domain.Balance) error { return b.CaptureReserved(amount) })
}

// mutate runs one guarded read-modify-write cycle with the same bounded retry
// discipline the coin applier uses.
func (s *balanceService) mutate(ctx context.Context, ownerID int64, apply func(*domain.Balance) error) (*domain.Balance, error) {
	var lastErr error
	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		balance, err := s.mutateOnce(ctx, ownerID, apply)
		if err == nil || !isRetryable(err) {
			return balance, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("balance mutation: retries exhausted: %w", lastErr)
}

func (s *balanceService) mutateOnce(ctx context.Context, ownerID int64, apply func(*domain.Balance) error) (*domain.Balance, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("balance mutation: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("balance mutation: transaction controller does not implement DBExecutor")
	}

	balance, err := s.balanceRepo.GetForUpdate(ctx, txExecutor, ownerID)
	if err != nil {
		return nil, fmt.Errorf("balance mutation: failed to lock balance for owner %d: %w", ownerID, err)
	}
	expectedVersion := balance.Version
	if err := apply(balance); err != nil {
		return nil, err
	}
	if err := s.balanceRepo.Update(ctx, txExecutor, balance, expectedVersion); err != nil {
		return nil, fmt.Errorf("balance mutation: failed to update balance for owner %d: %w", ownerID, err)
	}
	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("balance mutation: failed to commit transaction: %w", err)
	}
	return balance, nil
}
