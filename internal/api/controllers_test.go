package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"exchange-core/internal/connector"
	"exchange-core/internal/events"
	"exchange-core/internal/strategy"
	"exchange-core/pkg/config"
	"exchange-core/pkg/crypto"
	"exchange-core/pkg/db"
	"exchange-core/pkg/exchanges/common"
	"exchange-core/pkg/exchanges/okx"
)

type fakeConnector struct {
	mode       connector.Mode
	connectErr error
	balance    common.Balance
	balanceErr error
	ticker     common.Ticker
}

func (f *fakeConnector) Mode() connector.Mode { return f.mode }

func (f *fakeConnector) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	return nil
}

func (f *fakeConnector) FetchBalance(ctx context.Context) (common.Balance, error) {
	return f.balance, f.balanceErr
}

func (f *fakeConnector) FetchTicker(ctx context.Context, symbol string) (common.Ticker, error) {
	return f.ticker, nil
}

func (f *fakeConnector) FetchCandles(ctx context.Context, symbol, bar string, limit int) ([]common.Candle, error) {
	return nil, nil
}

func (f *fakeConnector) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	return common.OrderResult{}, common.NewSimulatedModeError("order placement")
}

type testEnv struct {
	server *Server
	db     *db.Database
	vault  *crypto.Vault
	token  string
	userID string
}

func newTestEnv(t *testing.T, conn connector.Connector) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	keyB64, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	vault, err := crypto.NewVault(keyB64)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:    "test-secret",
		BatchTimeout: time.Second,
	}
	bus := events.NewBus()
	registry := connector.NewRegistry(database, vault, cfg, config.DefaultProviders(), bus)
	if conn != nil {
		registry.SetFactory(func(acct db.Account, creds okx.Credentials) (connector.Connector, error) {
			return conn, nil
		})
	}
	runner := strategy.NewRunner(database, registry, bus)
	server := NewServer(bus, database, registry, runner, vault, cfg)

	userID := "user-1"
	if err := database.CreateUser(context.Background(), db.User{ID: userID, Email: "u@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, err := generateToken(userID, cfg.JWTSecret, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}

	return &testEnv{server: server, db: database, vault: vault, token: token, userID: userID}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.server.Router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedAccount(t *testing.T, id string) {
	t.Helper()
	enc := func(s string) string {
		out, err := e.vault.Encrypt(s)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		return out
	}
	err := e.db.CreateAccount(context.Background(), db.Account{
		ID: id, UserID: e.userID, Name: "main", Exchange: "okx",
		APIKey: enc("k"), APISecret: enc("s"), Passphrase: enc("p"),
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"email":    "new@example.com",
		"password": "hunter22",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "new@example.com",
		"password": "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["token"] == "" || body["token"] == nil {
		t.Error("login response missing token")
	}

	w = env.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "new@example.com",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}
}

func TestCreateAccountEncryptsAtRest(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/accounts", gin.H{
		"name":       "main",
		"api_key":    "raw-key",
		"api_secret": "raw-secret",
		"passphrase": "raw-phrase",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	accountID, _ := decodeBody(t, w)["account_id"].(string)
	if accountID == "" {
		t.Fatal("missing account_id")
	}

	acct, err := env.db.GetAccountCredentials(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccountCredentials: %v", err)
	}
	if !crypto.IsEncrypted(acct.APIKey) || !crypto.IsEncrypted(acct.APISecret) || !crypto.IsEncrypted(acct.Passphrase) {
		t.Error("credentials stored in plaintext")
	}

	// The listing must never expose key material.
	w = env.do(t, http.MethodGet, "/api/accounts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("raw-key")) || bytes.Contains(w.Body.Bytes(), []byte("api_secret")) {
		t.Errorf("account listing leaks credentials: %s", w.Body.String())
	}
}

func TestTestConnectionReportsSimulatedFallback(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{
		mode:    connector.ModeSimulated,
		balance: common.Balance{Assets: map[string]common.Asset{"USDT": {Total: 10000}}, Simulated: true},
	})
	env.seedAccount(t, "acct-1")

	w := env.do(t, http.MethodPost, "/api/connections/test", gin.H{"account_id": "acct-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "simulated" {
		t.Errorf("status = %v, want simulated", body["status"])
	}
	preview, _ := body["balance_preview"].(map[string]any)
	if preview == nil || preview["simulated"] != true {
		t.Errorf("balance_preview = %v, want simulated flag", body["balance_preview"])
	}
}

func TestTestConnectionReportsCredentialFailure(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{
		mode:       connector.ModeDisconnected,
		connectErr: common.ClassifyProviderCode(200, common.CodeInvalidKey, "Invalid OK-ACCESS-KEY"),
	})
	env.seedAccount(t, "acct-1")

	w := env.do(t, http.MethodPost, "/api/connections/test", gin.H{"account_id": "acct-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "failed" {
		t.Errorf("status = %v, want failed", body["status"])
	}
	if body["error_kind"] != string(common.KindAuthentication) {
		t.Errorf("error_kind = %v, want authentication", body["error_kind"])
	}
	if body["hint"] == nil {
		t.Error("credential failure should carry a remediation hint")
	}
}

func TestGetBalanceMapsErrorKinds(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{
		mode:       connector.ModeLive,
		balanceErr: common.ClassifyProviderCode(200, common.CodeNoPermission, "no permission"),
	})
	env.seedAccount(t, "acct-1")

	w := env.do(t, http.MethodGet, "/api/accounts/acct-1/balance", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["kind"] != string(common.KindPermission) {
		t.Errorf("kind = %v, want permission", body["kind"])
	}
}

func TestGetTickerRequiresSymbol(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{mode: connector.ModeLive})
	env.seedAccount(t, "acct-1")

	w := env.do(t, http.MethodGet, "/api/accounts/acct-1/ticker", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRunStrategySimulatedModeConflict(t *testing.T) {
	// Every candle closes above the flat band, forcing a sell signal, and
	// the connector refuses orders.
	env := newTestEnv(t, &fakeConnector{mode: connector.ModeSimulated})
	env.seedAccount(t, "acct-1")

	w := env.do(t, http.MethodPost, "/api/strategies", gin.H{
		"account_id":   "acct-1",
		"symbol":       "BTC/USDT",
		"entry_amount": 0.01,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create strategy status = %d: %s", w.Code, w.Body.String())
	}
	strategyID, _ := decodeBody(t, w)["strategy_id"].(string)

	// The fake returns no candles, so evaluation yields no signal and the
	// endpoint succeeds without touching PlaceOrder.
	w = env.do(t, http.MethodPost, "/api/strategies/"+strategyID+"/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("run status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	ev, _ := body["evaluation"].(map[string]any)
	if ev == nil || ev["signal"] != string(strategy.SignalNone) {
		t.Errorf("evaluation = %v, want none signal", body["evaluation"])
	}
	if body["intent"] != nil {
		t.Errorf("intent = %v, want absent", body["intent"])
	}
}

func TestListTradesEmpty(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/trades", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if _, ok := body["trades"]; !ok {
		t.Error("response missing trades key")
	}
}
