// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coinledger/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(walletHandler *handler.WalletHandler, balanceHandler *handler.BalanceHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Coin wallet routes
	r.Route("/wallets", func(r chi.Router) {
		r.Post("/", walletHandler.CreateWallet)
		r.Get("/owner/{ownerID}/{coinSymbol}", walletHandler.GetOwnerWallet)
		r.Get("/{walletID}/balance", walletHandler.GetWalletBalance)
		r.Get("/{walletID}/transactions", walletHandler.ListTransactions)
		r.Post("/{walletID}/deposit", walletHandler.Deposit)
		r.Post("/{walletID}/withdraw", walletHandler.Withdraw)
		r.Post("/{walletID}/apply", walletHandler.Apply)
		r.Post("/{walletID}/freeze", walletHandler.Freeze)
		r.Post("/{walletID}/unfreeze", walletHandler.Unfreeze)
		r.Post("/{walletID}/close", walletHandler.Close)
	})

	// Transfers touch two wallets, so they get a top-level endpoint
	r.Post("/transfers", walletHandler.Transfer)
	r.Post("/transactions/{transactionID}/reverse", walletHandler.Reverse)

	// Fiat balance (reservation-only) routes
	r.Route("/balances", func(r chi.Router) {
		r.Post("/", balanceHandler.CreateBalance)
		r.Get("/{ownerID}", balanceHandler.GetBalance)
		r.Post("/{ownerID}/credit", balanceHandler.Credit)
		r.Post("/{ownerID}/debit", balanceHandler.Debit)
		r.Post("/{ownerID}/reserve", balanceHandler.Reserve)
		r.Post("/{ownerID}/release", balanceHandler.Release)
		r.Post("/{ownerID}/capture", balanceHandler.Capture)
	})

	return r
}
