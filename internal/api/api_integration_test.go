// internal/api/api_integration_test.go
package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "coinledger/internal"
	"coinledger/internal/domain"
)

// testApp is the global application instance for testing. It stays nil when no
// test database is reachable, in which case every test here skips.
var testApp *app.Application

// testServer is the httptest server.
var testServer *httptest.Server

// TestMain is the special entry point for Go tests, executed once before all tests.
func TestMain(m *testing.M) {
	setupEnvVars()

	candidate := app.NewApplication()
	if err := candidate.Initialize(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "skipping API integration tests, no test database: %v\n", err)
		os.Exit(m.Run())
	}
	testApp = candidate

	testServer = httptest.NewServer(testApp.HTTPHandler)
	defer testServer.Close()

	code := m.Run()

	if err := testApp.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown test application: %v\n", err)
		os.Exit(1)
	}

	os.Exit(code)
}

// setupEnvVars sets the database environment variables required for testing.
func setupEnvVars() {
	if os.Getenv("SERVER_PORT") == "" {
		os.Setenv("SERVER_PORT", "8080")
	}
	if os.Getenv("DB_HOST") == "" {
		os.Setenv("DB_HOST", "localhost")
	}
	if os.Getenv("DB_PORT") == "" {
		os.Setenv("DB_PORT", "5432")
	}
	if os.Getenv("DB_USER") == "" {
		os.Setenv("DB_USER", "user")
	}
	if os.Getenv("DB_PASSWORD") == "" {
		os.Setenv("DB_PASSWORD", "password")
	}
	if os.Getenv("DB_NAME") == "" {
		os.Setenv("DB_NAME", "coinledger_test")
	}
	if os.Getenv("DB_SSLMODE") == "" {
		os.Setenv("DB_SSLMODE", "disable")
	}
}

func requireTestApp(t *testing.T) {
	t.Helper()
	if testApp == nil {
		t.Skip("test database not available")
	}
}

// clearDatabase truncates all relevant tables so each test starts clean.
func clearDatabase(t *testing.T) {
	t.Helper()
	tables := []string{"transactions", "wallets", "balances"}
	for _, table := range tables {
		_, err := testApp.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE;", table))
		require.NoError(t, err, "Failed to truncate table %s", table)
	}
}

// createTestWallet creates a wallet and seeds its balance directly, bypassing
// the API so setup failures stay distinct from the behavior under test.
func createTestWallet(t *testing.T, ownerID int64, coinSymbol string, scale int, balanceAtomic int64) int64 {
	t.Helper()
	wallet, err := domain.NewWallet(ownerID, coinSymbol, scale)
	require.NoError(t, err)
	require.NoError(t, testApp.WalletRepository.Create(context.Background(), testApp.DB, wallet))

	_, err = testApp.DB.ExecContext(context.Background(),
		"UPDATE wallets SET balance_atomic = $1 WHERE id = $2", balanceAtomic, wallet.ID)
	require.NoError(t, err)

	return wallet.ID
}

// makeRequest sends an HTTP request to the test server.
func makeRequest(t *testing.T, method, path string, body io.Reader) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, testServer.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(respBody)
}

func decodeJSON(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}

func decimalField(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	raw, ok := m[key].(string)
	require.True(t, ok, "field %q missing or not a string", key)
	d, err := decimal.NewFromString(raw)
	require.NoError(t, err)
	return d
}

// TestDepositIntegration tests the deposit endpoint.
func TestDepositIntegration(t *testing.T) {
	requireTestApp(t)
	clearDatabase(t)
	walletID := createTestWallet(t, 1, "SMART", 6, 0)

	t.Run("SuccessfulDeposit", func(t *testing.T) {
		requestBody := `{"amount": "10.5", "idempotency_key": "dep-1"}`
		resp, body := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/deposit", walletID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		responseMap := decodeJSON(t, body)
		assert.Equal(t, string(domain.TransactionStatusSuccess), responseMap["status"])
		assert.Equal(t, false, responseMap["replayed"])
		newBalance := decimalField(t, responseMap, "balance_after")
		assert.True(t, newBalance.Equal(decimal.RequireFromString("10.5")))

		respGet, bodyGet := makeRequest(t, "GET", fmt.Sprintf("/wallets/%d/balance", walletID), nil)
		defer respGet.Body.Close()
		assert.Equal(t, http.StatusOK, respGet.StatusCode)
		balanceMap := decodeJSON(t, bodyGet)
		assert.True(t, decimalField(t, balanceMap, "balance").Equal(decimal.RequireFromString("10.5")))
	})

	t.Run("IdempotentReplay", func(t *testing.T) {
		requestBody := `{"amount": "10.5", "idempotency_key": "dep-1"}`
		resp, body := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/deposit", walletID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		responseMap := decodeJSON(t, body)
		assert.Equal(t, true, responseMap["replayed"])
		// the balance did not move a second time
		assert.True(t, decimalField(t, responseMap, "balance_after").Equal(decimal.RequireFromString("10.5")))
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		requestBody := `{"amount": "-10.00"}`
		resp, body := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/deposit", walletID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "invalid input")
	})

	t.Run("WalletNotFound", func(t *testing.T) {
		requestBody := `{"amount": "50.00"}`
		resp, body := makeRequest(t, "POST", "/wallets/9999/deposit", strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "Resource not found")
	})
}

// TestWithdrawIntegration tests the withdraw endpoint.
func TestWithdrawIntegration(t *testing.T) {
	requireTestApp(t)
	clearDatabase(t)
	walletID := createTestWallet(t, 1, "SMART", 2, 50000) // 500.00

	t.Run("SuccessfulWithdrawal", func(t *testing.T) {
		requestBody := `{"amount": "100.00"}`
		resp, body := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/withdraw", walletID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		responseMap := decodeJSON(t, body)
		assert.True(t, decimalField(t, responseMap, "balance_after").Equal(decimal.RequireFromString("400.00")))
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		requestBody := `{"amount": "1000.00"}`
		resp, body := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/withdraw", walletID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		assert.Contains(t, body, "insufficient funds")
	})

	t.Run("FrozenWalletRejectsWithdrawal", func(t *testing.T) {
		respFreeze, _ := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/freeze", walletID), strings.NewReader(`{}`))
		defer respFreeze.Body.Close()
		require.Equal(t, http.StatusOK, respFreeze.StatusCode)

		resp, _ := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/withdraw", walletID), strings.NewReader(`{"amount": "1.00"}`))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		respUnfreeze, _ := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/unfreeze", walletID), strings.NewReader(`{}`))
		defer respUnfreeze.Body.Close()
		require.Equal(t, http.StatusOK, respUnfreeze.StatusCode)
	})
}

// TestTransferIntegration tests the transfer endpoint.
func TestTransferIntegration(t *testing.T) {
	requireTestApp(t)
	clearDatabase(t)
	walletID1 := createTestWallet(t, 1, "SMART", 2, 50000) // 500.00
	walletID2 := createTestWallet(t, 2, "SMART", 2, 10000) // 100.00

	t.Run("SuccessfulTransfer", func(t *testing.T) {
		requestBody := fmt.Sprintf(`{"from_wallet_id": %d, "to_wallet_id": %d, "amount": "50.00"}`, walletID1, walletID2)
		resp, body := makeRequest(t, "POST", "/transfers", strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		responseMap := decodeJSON(t, body)
		assert.True(t, decimalField(t, responseMap, "from_balance").Equal(decimal.RequireFromString("450.00")))
		assert.True(t, decimalField(t, responseMap, "to_balance").Equal(decimal.RequireFromString("150.00")))
	})

	t.Run("SameWalletTransfer", func(t *testing.T) {
		requestBody := fmt.Sprintf(`{"from_wallet_id": %d, "to_wallet_id": %d, "amount": "10.00"}`, walletID1, walletID1)
		resp, _ := makeRequest(t, "POST", "/transfers", strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("InsufficientFundsInSourceWallet", func(t *testing.T) {
		requestBody := fmt.Sprintf(`{"from_wallet_id": %d, "to_wallet_id": %d, "amount": "10000.00"}`, walletID2, walletID1)
		resp, body := makeRequest(t, "POST", "/transfers", strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		assert.Contains(t, body, "insufficient funds")
	})
}

// TestReverseIntegration tests reversing a posted entry.
func TestReverseIntegration(t *testing.T) {
	requireTestApp(t)
	clearDatabase(t)
	walletID := createTestWallet(t, 1, "SMART", 2, 10000) // 100.00

	resp, body := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/apply", walletID),
		strings.NewReader(`{"type": "spend", "amount": "25.00", "idempotency_key": "spend-1"}`))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	responseMap := decodeJSON(t, body)
	txnMap := responseMap["transaction"].(map[string]interface{})
	transactionID := int64(txnMap["id"].(float64))

	respRev, bodyRev := makeRequest(t, "POST", fmt.Sprintf("/transactions/%d/reverse", transactionID),
		strings.NewReader(`{"idempotency_key": "rev-1"}`))
	defer respRev.Body.Close()
	assert.Equal(t, http.StatusOK, respRev.StatusCode)
	revMap := decodeJSON(t, bodyRev)
	assert.True(t, decimalField(t, revMap, "balance_after").Equal(decimal.RequireFromString("100.00")))
}

// TestTransactionHistoryAndBalanceConsistency replays the history against the
// reported balance.
func TestTransactionHistoryAndBalanceConsistency(t *testing.T) {
	requireTestApp(t)
	clearDatabase(t)
	walletID := createTestWallet(t, 1, "SMART", 2, 0)

	operations := []string{
		`{"amount": "500.00", "idempotency_key": "h-1"}`,
		`{"amount": "200.00", "idempotency_key": "h-3"}`,
	}
	for _, op := range operations {
		resp, _ := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/deposit", walletID), strings.NewReader(op))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	respW, _ := makeRequest(t, "POST", fmt.Sprintf("/wallets/%d/withdraw", walletID),
		strings.NewReader(`{"amount": "150.00", "idempotency_key": "h-2"}`))
	respW.Body.Close()
	require.Equal(t, http.StatusOK, respW.StatusCode)

	// 0 + 500 - 150 + 200 = 550
	respBalance, bodyBalance := makeRequest(t, "GET", fmt.Sprintf("/wallets/%d/balance", walletID), nil)
	defer respBalance.Body.Close()
	assert.Equal(t, http.StatusOK, respBalance.StatusCode)
	currentBalance := decimalField(t, decodeJSON(t, bodyBalance), "balance")
	assert.True(t, currentBalance.Equal(decimal.RequireFromString("550.00")))

	respHistory, bodyHistory := makeRequest(t, "GET", fmt.Sprintf("/wallets/%d/transactions?limit=10&offset=0", walletID), nil)
	defer respHistory.Body.Close()
	assert.Equal(t, http.StatusOK, respHistory.StatusCode)
	historyMap := decodeJSON(t, bodyHistory)

	transactionsData := historyMap["data"].([]interface{})
	assert.Len(t, transactionsData, 3, "Should have 3 transactions")

	// Replaying the signed deltas from history must land on the same balance.
	calculated := decimal.Zero
	for _, txInterface := range transactionsData {
		txMap := txInterface.(map[string]interface{})
		amount, err := decimal.NewFromString(txMap["amount"].(string))
		require.NoError(t, err)
		fee, err := decimal.NewFromString(txMap["fee"].(string))
		require.NoError(t, err)

		switch domain.TransactionType(txMap["type"].(string)) {
		case domain.TransactionTypeDeposit, domain.TransactionTypeEarn, domain.TransactionTypeTransferIn:
			calculated = calculated.Add(amount.Sub(fee))
		case domain.TransactionTypeWithdraw, domain.TransactionTypeSpend, domain.TransactionTypeTransferOut:
			calculated = calculated.Sub(amount.Add(fee))
		}
	}
	assert.True(t, currentBalance.Equal(calculated), "Balance derived from history should match current balance")
}
