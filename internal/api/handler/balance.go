// internal/api/handler/balance.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"coinledger/internal/domain"
	"coinledger/internal/service"
	"coinledger/internal/util"
)

// BalanceHandler handles HTTP requests for the fiat reservation balances.
type BalanceHandler struct {
	service service.BalanceService
	logger  *slog.Logger
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(svc service.BalanceService, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		service: svc,
		logger:  logger,
	}
}

func ownerIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "ownerID"), 10, 64)
}

// CreateBalanceRequest represents the request body for balance creation.
type CreateBalanceRequest struct {
	OwnerID  int64  `json:"owner_id"`
	Currency string `json:"currency"`
}

// CreateBalance creates a fiat balance for an owner.
// POST /balances
func (h *BalanceHandler) CreateBalance(w http.ResponseWriter, r *http.Request) {
	var req CreateBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if req.OwnerID == 0 || req.Currency == "" {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	balance, err := h.service.CreateBalance(r.Context(), req.OwnerID, req.Currency)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, balance)
}

// GetBalance returns the owner's balance with total, reserved and available.
// GET /balances/{ownerID}
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	balance, err := h.service.GetFiatBalance(r.Context(), ownerID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"owner_id":  balance.OwnerID,
		"currency":  balance.Currency,
		"total":     balance.Total,
		"reserved":  balance.Reserved,
		"available": balance.Available(),
	})
}

// BalanceAmountRequest represents the request body for balance mutations.
type BalanceAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *BalanceHandler) mutate(w http.ResponseWriter, r *http.Request, op func(*http.Request, int64, decimal.Decimal) (*domain.Balance, error)) {
	ownerID, err := ownerIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	var req BalanceAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	balance, err := op(r, ownerID, req.Amount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, balance)
}

// Credit adds funds to the balance total.
// POST /balances/{ownerID}/credit
func (h *BalanceHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(r *http.Request, id int64, amount decimal.Decimal) (*domain.Balance, error) {
		return h.service.CreditFunds(r.Context(), id, amount)
	})
}

// Debit removes funds from the available balance.
// POST /balances/{ownerID}/debit
func (h *BalanceHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(r *http.Request, id int64, amount decimal.Decimal) (*domain.Balance, error) {
		return h.service.DebitFunds(r.Context(), id, amount)
	})
}

// Reserve earmarks part of the available balance.
// POST /balances/{ownerID}/reserve
func (h *BalanceHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(r *http.Request, id int64, amount decimal.Decimal) (*domain.Balance, error) {
		return h.service.ReserveFunds(r.Context(), id, amount)
	})
}

// Release returns reserved funds to the available balance.
// POST /balances/{ownerID}/release
func (h *BalanceHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(r *http.Request, id int64, amount decimal.Decimal) (*domain.Balance, error) {
		return h.service.ReleaseFunds(r.Context(), id, amount)
	})
}

// Capture consumes reserved funds.
// POST /balances/{ownerID}/capture
func (h *BalanceHandler) Capture(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(r *http.Request, id int64, amount decimal.Decimal) (*domain.Balance, error) {
		return h.service.CaptureReserved(r.Context(), id, amount)
	})
}
