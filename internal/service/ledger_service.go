// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"coinledger/internal/domain"
	"coinledger/internal/repository"
	"coinledger/internal/util"
	"coinledger/pkg/db"

	"github.com/shopspring/decimal"
)

// maxApplyRetries bounds how often an apply is re-run after a lost-update
// conflict before ErrConflict is surfaced to the caller.
const maxApplyRetries = 3

// ApplyResult is the outcome of running a transaction through the ledger.
type ApplyResult struct {
	Status        domain.TransactionStatus `json:"status"`
	BalanceBefore decimal.Decimal          `json:"balance_before"`
	BalanceAfter  decimal.Decimal          `json:"balance_after"`
	Transaction   *domain.Transaction      `json:"transaction"`
	// Replayed is true when the result was served from an already-applied
	// entry with the same idempotency key instead of a fresh application.
	Replayed bool `json:"replayed"`
}

// TransferResult is the outcome of a two-leg transfer.
type TransferResult struct {
	OutTransaction *domain.Transaction `json:"out_transaction"`
	InTransaction  *domain.Transaction `json:"in_transaction"`
	FromBalance    decimal.Decimal     `json:"from_balance"`
	ToBalance      decimal.Decimal     `json:"to_balance"`
	Replayed       bool                `json:"replayed"`
}

// BalanceSummary is the read-only view of a wallet's balances.
type BalanceSummary struct {
	WalletID   int64           `json:"wallet_id"`
	CoinSymbol string          `json:"coin_symbol"`
	Balance    decimal.Decimal `json:"balance"`
	Holds      decimal.Decimal `json:"holds"`
	Available  decimal.Decimal `json:"available"`
}

// LedgerService is the applier: it owns locking, idempotency, conversion,
// mutation and snapshotting for every balance-affecting operation.
type LedgerService interface {
	CreateWallet(ctx context.Context, ownerID int64, coinSymbol string, scale int) (*domain.Wallet, error)
	GetWalletForOwner(ctx context.Context, ownerID int64, coinSymbol string) (*domain.Wallet, error)
	Apply(ctx context.Context, txn *domain.Transaction) (*ApplyResult, error)
	Transfer(ctx context.Context, fromWalletID, toWalletID int64, amount decimal.Decimal, idempotencyKeyOut, idempotencyKeyIn string) (*TransferResult, error)
	Reverse(ctx context.Context, transactionID int64, idempotencyKey string) (*ApplyResult, error)
	GetBalance(ctx context.Context, walletID int64) (*BalanceSummary, error)
	ListTransactions(ctx context.Context, walletID int64, limit, offset int) ([]domain.Transaction, int64, error)
	FreezeWallet(ctx context.Context, walletID int64) error
	UnfreezeWallet(ctx context.Context, walletID int64) error
	CloseWallet(ctx context.Context, walletID int64) error
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	dbBeginner db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	walletRepo repository.WalletRepository
	txnRepo    repository.TransactionRepository
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	txnRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) LedgerService {
	return &ledgerService{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		walletRepo: walletRepo,
		txnRepo:    txnRepo,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
	}
}

// isRetryable reports whether an apply attempt may be re-run: version
// conflicts and idempotency-key races both resolve by re-reading.
func isRetryable(err error) bool {
	return util.IsError(err, util.ErrConflict) || util.IsError(err, util.ErrDuplicateEntry)
}

// CreateWallet creates a wallet for an (owner, coin) pair.
func (s *ledgerService) CreateWallet(ctx context.Context, ownerID int64, coinSymbol string, scale int) (*domain.Wallet, error) {
	wallet, err := domain.NewWallet(ownerID, coinSymbol, scale)
	if err != nil {
		return nil, err
	}
	if err := s.walletRepo.Create(ctx, s.dbExecutor, wallet); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return wallet, nil
}

// GetWalletForOwner looks up the wallet for an (owner, coin) pair.
func (s *ledgerService) GetWalletForOwner(ctx context.Context, ownerID int64, coinSymbol string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwnerAndCoin(ctx, s.dbExecutor, ownerID, coinSymbol)
	if err != nil {
		return nil, fmt.Errorf("get wallet for owner %d: %w", ownerID, err)
	}
	return wallet, nil
}

// Apply runs a pending transaction against its wallet: lock, replay check,
// conversion, mutation, snapshots, commit — all in one store transaction.
// A repeated (wallet_id, idempotency_key) returns the stored terminal result
// unchanged. Conflicts are retried up to maxApplyRetries.
func (s *ledgerService) Apply(ctx context.Context, txn *domain.Transaction) (*ApplyResult, error) {
	if txn == nil || txn.Status != domain.TransactionStatusPending {
		return nil, util.ErrInvalidTransition
	}

	var lastErr error
	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		result, err := s.applyOnce(ctx, txn)
		if err == nil || !isRetryable(err) {
			return result, err
		}
		lastErr = err
	}

	// The key may have been applied by the racing writer we lost against.
	if prior, err := s.txnRepo.GetByIdempotencyKey(ctx, s.dbExecutor, txn.WalletID, txn.IdempotencyKey); err == nil && prior.IsTerminal() {
		return resultFromStored(prior), nil
	}
	return nil, fmt.Errorf("apply: retries exhausted: %w", lastErr)
}

// applyOnce is a single attempt of the apply algorithm. It mutates a copy of
// txn and writes the copy back only when the attempt commits, so a rolled-back
// attempt leaves the caller's transaction pending for the next try.
func (s *ledgerService) applyOnce(ctx context.Context, txn *domain.Transaction) (*ApplyResult, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("apply: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("apply: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, txExecutor, txn.WalletID)
	if err != nil {
		return nil, fmt.Errorf("apply: failed to lock wallet %d: %w", txn.WalletID, err)
	}

	// Exactly-once: a terminal entry under this key replays its stored result.
	prior, err := s.txnRepo.GetByIdempotencyKey(ctx, txExecutor, txn.WalletID, txn.IdempotencyKey)
	if err == nil {
		if prior.IsTerminal() {
			if err := s.commitTx(txController); err != nil {
				return nil, fmt.Errorf("apply: failed to commit replay: %w", err)
			}
			return resultFromStored(prior), nil
		}
		return nil, fmt.Errorf("apply: key %q still pending: %w", txn.IdempotencyKey, util.ErrConflict)
	}
	if !util.IsError(err, util.ErrNotFound) {
		return nil, fmt.Errorf("apply: idempotency check failed: %w", err)
	}

	entry := *txn
	expectedVersion := wallet.Version
	before := wallet.Balance()

	verr := s.applyToWallet(wallet, &entry)
	if verr != nil {
		// Validation failed under the lock: persist the failed entry, keep
		// the wallet row untouched.
		if err := entry.MarkFailed(); err != nil {
			return nil, err
		}
		if err := s.txnRepo.Create(ctx, txExecutor, &entry); err != nil {
			return nil, fmt.Errorf("apply: failed to record failed transaction: %w", err)
		}
		if err := s.commitTx(txController); err != nil {
			return nil, fmt.Errorf("apply: failed to commit failed transaction: %w", err)
		}
		*txn = entry
		return &ApplyResult{
			Status:        domain.TransactionStatusFailed,
			BalanceBefore: before,
			BalanceAfter:  before,
			Transaction:   txn,
		}, verr
	}

	after := wallet.Balance()
	entry.StampPosted(before, after)
	if err := entry.MarkSuccess(); err != nil {
		return nil, err
	}
	if err := s.txnRepo.Create(ctx, txExecutor, &entry); err != nil {
		return nil, fmt.Errorf("apply: failed to create transaction: %w", err)
	}

	now := time.Now().UTC()
	wallet.LastTxnID = &entry.ID
	wallet.LastTxnAt = &now
	if err := s.walletRepo.Update(ctx, txExecutor, wallet, expectedVersion); err != nil {
		return nil, fmt.Errorf("apply: failed to update wallet %d: %w", wallet.ID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("apply: failed to commit transaction: %w", err)
	}

	*txn = entry
	return &ApplyResult{
		Status:        domain.TransactionStatusSuccess,
		BalanceBefore: before,
		BalanceAfter:  after,
		Transaction:   txn,
	}, nil
}

// applyToWallet validates the entry against the wallet and applies its delta
// in atomic units. Any returned error is a validation error: the wallet must
// be treated as untouched by the caller.
func (s *ledgerService) applyToWallet(wallet *domain.Wallet, entry *domain.Transaction) error {
	if entry.CoinSymbol != wallet.CoinSymbol {
		return util.ErrCoinMismatch
	}
	if wallet.Status != domain.WalletStatusActive {
		return util.ErrWalletNotActive
	}
	delta := entry.Delta()
	atoms, err := domain.ToAtomic(delta.Abs(), wallet.Scale)
	if err != nil {
		return err
	}
	if delta.Sign() >= 0 {
		return wallet.CreditAtomic(atoms)
	}
	return wallet.DebitAtomic(atoms, entry.UseHold)
}

// resultFromStored builds a replayed ApplyResult from a terminal entry.
func resultFromStored(prior *domain.Transaction) *ApplyResult {
	result := &ApplyResult{
		Status:      prior.Status,
		Transaction: prior,
		Replayed:    true,
	}
	if prior.BalanceBefore != nil {
		result.BalanceBefore = *prior.BalanceBefore
	}
	if prior.BalanceAfter != nil {
		result.BalanceAfter = *prior.BalanceAfter
	}
	return result
}

// Transfer moves amount between two wallets of the same coin and scale. Both
// legs are applied in one store transaction with the wallet rows locked in
// ascending-id order, so concurrent transfers cannot deadlock and either both
// legs commit or neither does.
func (s *ledgerService) Transfer(ctx context.Context, fromWalletID, toWalletID int64, amount decimal.Decimal, idempotencyKeyOut, idempotencyKeyIn string) (*TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, util.ErrInvalidInput
	}
	if fromWalletID == toWalletID {
		return nil, util.ErrSameWalletTransfer
	}

	var lastErr error
	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		result, err := s.transferOnce(ctx, fromWalletID, toWalletID, amount, idempotencyKeyOut, idempotencyKeyIn)
		if err == nil || !isRetryable(err) {
			return result, err
		}
		lastErr = err
	}

	if idempotencyKeyOut != "" {
		if prior, err := s.txnRepo.GetByIdempotencyKey(ctx, s.dbExecutor, fromWalletID, idempotencyKeyOut); err == nil && prior.IsTerminal() {
			return s.transferResultFromStored(ctx, s.dbExecutor, prior, toWalletID, idempotencyKeyIn)
		}
	}
	return nil, fmt.Errorf("transfer: retries exhausted: %w", lastErr)
}

func (s *ledgerService) transferOnce(ctx context.Context, fromWalletID, toWalletID int64, amount decimal.Decimal, idempotencyKeyOut, idempotencyKeyIn string) (*TransferResult, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("transfer: transaction controller does not implement DBExecutor")
	}

	// Fixed global lock order: ascending wallet id.
	firstID, secondID := fromWalletID, toWalletID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := s.walletRepo.GetForUpdate(ctx, txExecutor, firstID)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to lock wallet %d: %w", firstID, err)
	}
	second, err := s.walletRepo.GetForUpdate(ctx, txExecutor, secondID)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to lock wallet %d: %w", secondID, err)
	}
	from, to := first, second
	if from.ID != fromWalletID {
		from, to = second, first
	}

	if idempotencyKeyOut != "" {
		prior, err := s.txnRepo.GetByIdempotencyKey(ctx, txExecutor, fromWalletID, idempotencyKeyOut)
		if err == nil {
			if !prior.IsTerminal() {
				return nil, fmt.Errorf("transfer: key %q still pending: %w", idempotencyKeyOut, util.ErrConflict)
			}
			result, rerr := s.transferResultFromStored(ctx, txExecutor, prior, toWalletID, idempotencyKeyIn)
			if rerr != nil {
				return nil, rerr
			}
			if err := s.commitTx(txController); err != nil {
				return nil, fmt.Errorf("transfer: failed to commit replay: %w", err)
			}
			return result, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("transfer: idempotency check failed: %w", err)
		}
	}

	outTxn, inTxn, err := domain.NewTransferPair(fromWalletID, toWalletID, from.CoinSymbol, amount, idempotencyKeyOut, idempotencyKeyIn)
	if err != nil {
		return nil, err
	}

	expectedFrom := from.Version
	expectedTo := to.Version
	beforeFrom := from.Balance()
	beforeTo := to.Balance()

	verr := s.checkTransferable(from, to)
	if verr == nil {
		_, verr = from.TransferTo(to, amount)
	}
	if verr != nil {
		// Record both legs failed; neither wallet row is written.
		if err := outTxn.MarkFailed(); err != nil {
			return nil, err
		}
		if err := inTxn.MarkFailed(); err != nil {
			return nil, err
		}
		if err := s.txnRepo.Create(ctx, txExecutor, outTxn); err != nil {
			return nil, fmt.Errorf("transfer: failed to record failed out leg: %w", err)
		}
		if err := s.txnRepo.Create(ctx, txExecutor, inTxn); err != nil {
			return nil, fmt.Errorf("transfer: failed to record failed in leg: %w", err)
		}
		if err := s.commitTx(txController); err != nil {
			return nil, fmt.Errorf("transfer: failed to commit failed legs: %w", err)
		}
		return nil, verr
	}

	afterFrom := from.Balance()
	afterTo := to.Balance()
	outTxn.StampPosted(beforeFrom, afterFrom)
	inTxn.StampPosted(beforeTo, afterTo)
	if err := outTxn.MarkSuccess(); err != nil {
		return nil, err
	}
	if err := inTxn.MarkSuccess(); err != nil {
		return nil, err
	}

	if err := s.txnRepo.Create(ctx, txExecutor, outTxn); err != nil {
		return nil, fmt.Errorf("transfer: failed to create out leg: %w", err)
	}
	if err := s.txnRepo.Create(ctx, txExecutor, inTxn); err != nil {
		return nil, fmt.Errorf("transfer: failed to create in leg: %w", err)
	}

	now := time.Now().UTC()
	from.LastTxnID = &outTxn.ID
	from.LastTxnAt = &now
	to.LastTxnID = &inTxn.ID
	to.LastTxnAt = &now
	if err := s.walletRepo.Update(ctx, txExecutor, from, expectedFrom); err != nil {
		return nil, fmt.Errorf("transfer: failed to update source wallet %d: %w", from.ID, err)
	}
	if err := s.walletRepo.Update(ctx, txExecutor, to, expectedTo); err != nil {
		return nil, fmt.Errorf("transfer: failed to update destination wallet %d: %w", to.ID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("transfer: failed to commit transaction: %w", err)
	}

	return &TransferResult{
		OutTransaction: outTxn,
		InTransaction:  inTxn,
		FromBalance:    afterFrom,
		ToBalance:      afterTo,
	}, nil
}

// checkTransferable validates the wallet pair before any leg mutates state.
func (s *ledgerService) checkTransferable(from, to *domain.Wallet) error {
	if from.CoinSymbol != to.CoinSymbol {
		return util.ErrCoinMismatch
	}
	if from.Scale != to.Scale {
		return util.ErrScaleMismatch
	}
	if from.Status != domain.WalletStatusActive || to.Status != domain.WalletStatusActive {
		return util.ErrWalletNotActive
	}
	return nil
}

// transferResultFromStored rebuilds a TransferResult from the persisted out
// leg of an already-applied transfer.
func (s *ledgerService) transferResultFromStored(ctx context.Context, q repository.DBExecutor, outTxn *domain.Transaction, toWalletID int64, idempotencyKeyIn string) (*TransferResult, error) {
	result := &TransferResult{OutTransaction: outTxn, Replayed: true}
	if outTxn.BalanceAfter != nil {
		result.FromBalance = *outTxn.BalanceAfter
	}
	if idempotencyKeyIn != "" {
		inTxn, err := s.txnRepo.GetByIdempotencyKey(ctx, q, toWalletID, idempotencyKeyIn)
		if err == nil {
			result.InTransaction = inTxn
			if inTxn.BalanceAfter != nil {
				result.ToBalance = *inTxn.BalanceAfter
			}
		} else if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("transfer replay: failed to load in leg: %w", err)
		}
	}
	return result, nil
}

// Reverse applies a compensating entry for a successful transaction and marks
// the original reversed, in one store transaction. The original's own delta is
// never edited.
func (s *ledgerService) Reverse(ctx context.Context, transactionID int64, idempotencyKey string) (*ApplyResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		result, err := s.reverseOnce(ctx, transactionID, idempotencyKey)
		if err == nil || !isRetryable(err) {
			return result, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("reverse: retries exhausted: %w", lastErr)
}

func (s *ledgerService) reverseOnce(ctx context.Context, transactionID int64, idempotencyKey string) (*ApplyResult, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("reverse: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("reverse: transaction controller does not implement DBExecutor")
	}

	original, err := s.txnRepo.GetByID(ctx, txExecutor, transactionID)
	if err != nil {
		return nil, fmt.Errorf("reverse: failed to load transaction %d: %w", transactionID, err)
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, txExecutor, original.WalletID)
	if err != nil {
		return nil, fmt.Errorf("reverse: failed to lock wallet %d: %w", original.WalletID, err)
	}

	reversal, err := domain.NewReversal(original, idempotencyKey)
	if err != nil {
		return nil, err
	}

	prior, err := s.txnRepo.GetByIdempotencyKey(ctx, txExecutor, wallet.ID, reversal.IdempotencyKey)
	if err == nil {
		if prior.IsTerminal() {
			if err := s.commitTx(txController); err != nil {
				return nil, fmt.Errorf("reverse: failed to commit replay: %w", err)
			}
			return resultFromStored(prior), nil
		}
		return nil, fmt.Errorf("reverse: key %q still pending: %w", reversal.IdempotencyKey, util.ErrConflict)
	}
	if !util.IsError(err, util.ErrNotFound) {
		return nil, fmt.Errorf("reverse: idempotency check failed: %w", err)
	}

	expectedVersion := wallet.Version
	before := wallet.Balance()
	delta := reversal.Delta()
	atoms, err := domain.ToAtomic(delta.Abs(), wallet.Scale)
	if err != nil {
		return nil, err
	}
	if delta.Sign() >= 0 {
		err = wallet.CreditAtomic(atoms)
	} else {
		err = wallet.DebitAtomic(atoms, false)
	}
	if err != nil {
		return nil, err
	}
	after := wallet.Balance()

	reversal.StampPosted(before, after)
	if err := reversal.MarkSuccess(); err != nil {
		return nil, err
	}
	if err := s.txnRepo.Create(ctx, txExecutor, reversal); err != nil {
		return nil, fmt.Errorf("reverse: failed to create reversal: %w", err)
	}

	if err := original.MarkReversed(); err != nil {
		return nil, err
	}
	if err := s.txnRepo.Update(ctx, txExecutor, original); err != nil {
		return nil, fmt.Errorf("reverse: failed to update original transaction %d: %w", original.ID, err)
	}

	now := time.Now().UTC()
	wallet.LastTxnID = &reversal.ID
	wallet.LastTxnAt = &now
	if err := s.walletRepo.Update(ctx, txExecutor, wallet, expectedVersion); err != nil {
		return nil, fmt.Errorf("reverse: failed to update wallet %d: %w", wallet.ID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("reverse: failed to commit transaction: %w", err)
	}

	return &ApplyResult{
		Status:        domain.TransactionStatusSuccess,
		BalanceBefore: before,
		BalanceAfter:  after,
		Transaction:   reversal,
	}, nil
}

// GetBalance returns the wallet's balances without taking an exclusive lock.
func (s *ledgerService) GetBalance(ctx context.Context, walletID int64) (*BalanceSummary, error) {
	wallet, err := s.walletRepo.GetByID(ctx, s.dbExecutor, walletID)
	if err != nil {
		return nil, fmt.Errorf("get balance: failed to get wallet %d: %w", walletID, err)
	}
	return &BalanceSummary{
		WalletID:   wallet.ID,
		CoinSymbol: wallet.CoinSymbol,
		Balance:    wallet.Balance(),
		Holds:      wallet.Holds(),
		Available:  wallet.Available(),
	}, nil
}

// ListTransactions retrieves a page of ledger entries for a wallet.
func (s *ledgerService) ListTransactions(ctx context.Context, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	if _, err := s.walletRepo.GetByID(ctx, s.dbExecutor, walletID); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	transactions, totalCount, err := s.txnRepo.ListByWalletID(ctx, s.dbExecutor, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, totalCount, nil
}

// FreezeWallet blocks debits and holds on the wallet.
func (s *ledgerService) FreezeWallet(ctx context.Context, walletID int64) error {
	return s.updateStatus(ctx, walletID, (*domain.Wallet).Freeze)
}

// UnfreezeWallet returns a frozen wallet to active.
func (s *ledgerService) UnfreezeWallet(ctx context.Context, walletID int64) error {
	return s.updateStatus(ctx, walletID, (*domain.Wallet).Unfreeze)
}

// CloseWallet retires the wallet; its rows stay for the audit trail.
func (s *ledgerService) CloseWallet(ctx context.Context, walletID int64) error {
	return s.updateStatus(ctx, walletID, (*domain.Wallet).Close)
}

func (s *ledgerService) updateStatus(ctx context.Context, walletID int64, mutate func(*domain.Wallet)) error {
	var lastErr error
	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		err := s.updateStatusOnce(ctx, walletID, mutate)
		if err == nil || !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("update wallet status: retries exhausted: %w", lastErr)
}

func (s *ledgerService) updateStatusOnce(ctx context.Context, walletID int64, mutate func(*domain.Wallet)) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("update wallet status: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("update wallet status: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, txExecutor, walletID)
	if err != nil {
		return fmt.Errorf("update wallet status: failed to lock wallet %d: %w", walletID, err)
	}
	expectedVersion := wallet.Version
	mutate(wallet)
	if err := s.walletRepo.Update(ctx, txExecutor, wallet, expectedVersion); err != nil {
		return fmt.Errorf("update wallet status: failed to update wallet %d: %w", walletID, err)
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("update wallet status: failed to commit transaction: %w", err)
	}
	return nil
}
