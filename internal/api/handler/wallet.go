// internal/api/handler/wallet.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"coinledger/internal/api/types"
	"coinledger/internal/domain"
	"coinledger/internal/service"
	"coinledger/internal/util"
)

// DefaultTimeout bounds request handling end to end.
const DefaultTimeout = 15 * time.Second

// WalletHandler handles HTTP requests for the coin ledger.
type WalletHandler struct {
	service service.LedgerService
	logger  *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(svc service.LedgerService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		service: svc,
		logger:  logger,
	}
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput),
		util.IsError(err, util.ErrNegativeAmount),
		util.IsError(err, util.ErrScaleOutOfRange),
		util.IsError(err, util.ErrSameWalletTransfer):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrNotFound), util.IsError(err, util.ErrWalletNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrInsufficientFunds), util.IsError(err, util.ErrInsufficientHold):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = err.Error()
	case util.IsError(err, util.ErrCoinMismatch),
		util.IsError(err, util.ErrScaleMismatch),
		util.IsError(err, util.ErrWalletNotActive),
		util.IsError(err, util.ErrWalletClosed),
		util.IsError(err, util.ErrInvalidTransition):
		statusCode = http.StatusUnprocessableEntity
		message = err.Error()
	case util.IsError(err, util.ErrConflict), util.IsError(err, util.ErrDuplicateEntry):
		statusCode = http.StatusConflict
		message = err.Error()
	default:
		logger.Error("Unhandled service error", "error", err)
	}

	respondWithJSON(w, logger, statusCode, map[string]string{"error": message})
}

func walletIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "walletID"), 10, 64)
}

// CreateWalletRequest represents the request body for wallet creation.
type CreateWalletRequest struct {
	OwnerID    int64  `json:"owner_id"`
	CoinSymbol string `json:"coin_symbol"`
	Scale      int    `json:"scale"`
}

// CreateWallet handles wallet creation.
// POST /wallets
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if req.OwnerID == 0 || req.CoinSymbol == "" {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), req.OwnerID, req.CoinSymbol, req.Scale)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, wallet)
}

// AmountRequest represents the request body for single-wallet operations.
type AmountRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func (h *WalletHandler) applyTyped(w http.ResponseWriter, r *http.Request, txType domain.TransactionType) {
	walletID, err := walletIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), walletID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	txn, err := domain.NewTransaction(walletID, balance.CoinSymbol, txType, req.Amount, req.Fee, req.IdempotencyKey)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.service.Apply(r.Context(), txn)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, result)
}

// Deposit applies a deposit transaction to the wallet.
// POST /wallets/{walletID}/deposit
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.applyTyped(w, r, domain.TransactionTypeDeposit)
}

// Withdraw applies a withdraw transaction to the wallet.
// POST /wallets/{walletID}/withdraw
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.applyTyped(w, r, domain.TransactionTypeWithdraw)
}

// ApplyRequest represents the request body for the generic apply endpoint.
type ApplyRequest struct {
	Type           domain.TransactionType `json:"type"`
	Amount         decimal.Decimal        `json:"amount"`
	Fee            decimal.Decimal        `json:"fee"`
	IdempotencyKey string                 `json:"idempotency_key"`
	UseHold        bool                   `json:"use_hold"`
	AdjustDebit    bool                   `json:"adjust_debit"`
}

// Apply runs an arbitrary-typed transaction through the ledger. Collaborators
// (gifting, billing, payments) post earn/spend/convert entries here.
// POST /wallets/{walletID}/apply
func (h *WalletHandler) Apply(w http.ResponseWriter, r *http.Request) {
	walletID, err := walletIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), walletID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	txn, err := domain.NewTransaction(walletID, balance.CoinSymbol, req.Type, req.Amount, req.Fee, req.IdempotencyKey)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	txn.UseHold = req.UseHold
	txn.AdjustDebit = req.AdjustDebit

	result, err := h.service.Apply(r.Context(), txn)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, result)
}

// TransferRequest represents the request body for transfer.
type TransferRequest struct {
	FromWalletID      int64           `json:"from_wallet_id"`
	ToWalletID        int64           `json:"to_wallet_id"`
	Amount            decimal.Decimal `json:"amount"`
	IdempotencyKeyOut string          `json:"idempotency_key_out"`
	IdempotencyKeyIn  string          `json:"idempotency_key_in"`
}

// Transfer moves an amount between two wallets of the same coin.
// POST /transfers
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if req.FromWalletID == 0 || req.ToWalletID == 0 {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	result, err := h.service.Transfer(r.Context(), req.FromWalletID, req.ToWalletID, req.Amount, req.IdempotencyKeyOut, req.IdempotencyKeyIn)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, result)
}

// ReverseRequest represents the request body for a reversal.
type ReverseRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// Reverse applies a compensating entry for a successful transaction.
// POST /transactions/{transactionID}/reverse
func (h *WalletHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	transactionID, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	result, err := h.service.Reverse(r.Context(), transactionID, req.IdempotencyKey)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, result)
}

// GetWalletBalance returns balance, holds and available for a wallet.
// GET /wallets/{walletID}/balance
func (h *WalletHandler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	walletID, err := walletIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	summary, err := h.service.GetBalance(r.Context(), walletID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, summary)
}

// GetOwnerWallet looks up a wallet by owner id and coin symbol.
// GET /wallets/owner/{ownerID}/{coinSymbol}
func (h *WalletHandler) GetOwnerWallet(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(chi.URLParam(r, "ownerID"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	coinSymbol := chi.URLParam(r, "coinSymbol")

	wallet, err := h.service.GetWalletForOwner(r.Context(), ownerID, coinSymbol)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, wallet)
}

// ListTransactions returns a page of ledger entries for a wallet.
// GET /wallets/{walletID}/transactions
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	walletID, err := walletIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	transactions, totalCount, err := h.service.ListTransactions(r.Context(), walletID, limit, offset)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}

func (h *WalletHandler) updateStatus(w http.ResponseWriter, r *http.Request, op func(*http.Request, int64) error, message string) {
	walletID, err := walletIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := op(r, walletID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"message": message})
}

// Freeze blocks debits and holds on a wallet.
// POST /wallets/{walletID}/freeze
func (h *WalletHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, func(r *http.Request, id int64) error {
		return h.service.FreezeWallet(r.Context(), id)
	}, "Wallet frozen")
}

// Unfreeze returns a frozen wallet to active.
// POST /wallets/{walletID}/unfreeze
func (h *WalletHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, func(r *http.Request, id int64) error {
		return h.service.UnfreezeWallet(r.Context(), id)
	}, "Wallet active")
}

// Close permanently retires a wallet.
// POST /wallets/{walletID}/close
func (h *WalletHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, func(r *http.Request, id int64) error {
		return h.service.CloseWallet(r.Context(), id)
	}, "Wallet closed")
}
