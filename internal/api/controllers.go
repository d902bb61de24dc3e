package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"exchange-core/internal/connector"
	"exchange-core/internal/strategy"
	"exchange-core/pkg/db"
	"exchange-core/pkg/exchanges/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// accountView is the redacted account representation; key material never
// leaves the server.
type accountView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Exchange  string `json:"exchange"`
	IsTestnet bool   `json:"is_testnet"`
	CreatedAt string `json:"created_at"`
}

// writeVenueError maps a typed venue error onto an HTTP response.
func writeVenueError(c *gin.Context, err error) {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, db.ErrNotFound) || errors.Is(err, connector.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}

	body := gin.H{
		"error": apiErr.Message,
		"kind":  apiErr.Kind,
	}
	if apiErr.Subkind != "" {
		body["subkind"] = apiErr.Subkind
	}
	if apiErr.Code != "" {
		body["provider_code"] = apiErr.Code
	}
	if apiErr.Hint != "" {
		body["hint"] = apiErr.Hint
	}
	if len(apiErr.Suggestions) > 0 {
		body["suggestions"] = apiErr.Suggestions
	}

	status := http.StatusBadGateway
	switch apiErr.Kind {
	case common.KindAuthentication:
		status = http.StatusUnauthorized
	case common.KindPermission:
		status = http.StatusForbidden
	case common.KindRateLimit:
		status = http.StatusTooManyRequests
		body["retry_after_ms"] = apiErr.RetryAfter.Milliseconds()
	case common.KindSymbolNotFound:
		status = http.StatusNotFound
	case common.KindSimulatedMode:
		status = http.StatusConflict
	case common.KindNetworkTimeout:
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, body)
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.DB.GetAccountsByUser(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeVenueError(c, err)
		return
	}
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountView{
			ID:        a.ID,
			Name:      a.Name,
			Exchange:  a.Exchange,
			IsTestnet: a.IsTestnet,
			CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (s *Server) createAccount(c *gin.Context) {
	var req struct {
		Name       string `json:"name"`
		Exchange   string `json:"exchange"`
		APIKey     string `json:"api_key"`
		APISecret  string `json:"api_secret"`
		Passphrase string `json:"passphrase"`
		IsTestnet  bool   `json:"is_testnet"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "invalid request payload"})
		return
	}
	if req.Exchange == "" {
		req.Exchange = "okx"
	}
	if req.APIKey == "" || req.APISecret == "" || req.Passphrase == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "MISSING_CREDENTIALS",
			"error": "api_key, api_secret and passphrase are required",
		})
		return
	}

	encrypt := func(v string) (string, error) {
		if s.Vault == nil {
			return v, nil
		}
		return s.Vault.Encrypt(v)
	}
	var err error
	if req.APIKey, err = encrypt(req.APIKey); err == nil {
		if req.APISecret, err = encrypt(req.APISecret); err == nil {
			req.Passphrase, err = encrypt(req.Passphrase)
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "failed to protect credentials"})
		return
	}

	acct := db.Account{
		ID:         uuid.NewString(),
		UserID:     CurrentUserID(c),
		Name:       strings.TrimSpace(req.Name),
		Exchange:   req.Exchange,
		APIKey:     req.APIKey,
		APISecret:  req.APISecret,
		Passphrase: req.Passphrase,
		IsTestnet:  req.IsTestnet,
	}
	if err := s.DB.CreateAccount(c.Request.Context(), acct); err != nil {
		writeVenueError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account_id": acct.ID})
}

func (s *Server) deactivateAccount(c *gin.Context) {
	accountID := c.Param("id")
	if err := s.DB.DeactivateAccount(c.Request.Context(), CurrentUserID(c), accountID); err != nil {
		writeVenueError(c, err)
		return
	}
	// Drop any cached connector for either network so rotated credentials
	// take effect on the next access.
	s.Registry.Invalidate(accountID, false)
	s.Registry.Invalidate(accountID, true)
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// testConnection probes the venue for an account and reports a structured
// outcome instead of a bare error.
func (s *Server) testConnection(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := c.BindJSON(&req); err != nil || req.AccountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "account_id is required"})
		return
	}

	ctx := c.Request.Context()
	conn, err := s.Registry.GetOrCreate(ctx, CurrentUserID(c), req.AccountID)
	if err != nil {
		writeVenueError(c, err)
		return
	}

	if err := conn.Connect(ctx); err != nil {
		var apiErr *common.APIError
		result := gin.H{
			"status":  "failed",
			"mode":    conn.Mode(),
			"message": err.Error(),
		}
		if errors.As(err, &apiErr) {
			result["error_kind"] = apiErr.Kind
			if apiErr.Subkind != "" {
				result["error_subkind"] = apiErr.Subkind
			}
			if apiErr.Hint != "" {
				result["hint"] = apiErr.Hint
			}
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result := gin.H{
		"status": string(conn.Mode()),
		"mode":   conn.Mode(),
	}
	if conn.Mode() == connector.ModeSimulated {
		result["message"] = "venue unreachable; serving simulated data"
	} else {
		result["message"] = "connection verified"
	}
	if bal, err := conn.FetchBalance(ctx); err == nil {
		result["balance_preview"] = gin.H{
			"assets":    bal.Assets,
			"simulated": bal.Simulated,
		}
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getBalance(c *gin.Context) {
	conn, err := s.Registry.GetOrCreate(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeVenueError(c, err)
		return
	}
	bal, err := conn.FetchBalance(c.Request.Context())
	if err != nil {
		writeVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (s *Server) getTicker(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "MISSING_SYMBOL", "error": "symbol query parameter is required"})
		return
	}
	cacheKey := c.Param("id") + ":" + symbol
	if tick, ok := s.Tickers.Get(cacheKey); ok {
		c.JSON(http.StatusOK, tick)
		return
	}

	conn, err := s.Registry.GetOrCreate(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeVenueError(c, err)
		return
	}
	tick, err := conn.FetchTicker(c.Request.Context(), symbol)
	if err != nil {
		writeVenueError(c, err)
		return
	}
	s.Tickers.Set(cacheKey, tick)
	c.JSON(http.StatusOK, tick)
}

func (s *Server) getCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "MISSING_SYMBOL", "error": "symbol query parameter is required"})
		return
	}
	bar := c.DefaultQuery("bar", "1m")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	conn, err := s.Registry.GetOrCreate(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeVenueError(c, err)
		return
	}
	candles, err := conn.FetchCandles(c.Request.Context(), symbol, bar, limit)
	if err != nil {
		writeVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "bar": bar, "candles": candles})
}

// refreshBalances fans one balance fetch out per account under the batch
// deadline and reports partial results.
func (s *Server) refreshBalances(c *gin.Context) {
	var req struct {
		AccountIDs []string `json:"account_ids"`
	}
	if err := c.BindJSON(&req); err != nil || len(req.AccountIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "account_ids is required"})
		return
	}

	results := s.Registry.RefreshBalances(c.Request.Context(), CurrentUserID(c), req.AccountIDs, s.Cfg.BatchTimeout)
	out := make(map[string]gin.H, len(results))
	for id, res := range results {
		if res.Err != nil {
			out[id] = gin.H{"error": res.Err.Error(), "kind": common.KindOf(res.Err)}
			continue
		}
		out[id] = gin.H{"balance": res.Balance}
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (s *Server) listStrategies(c *gin.Context) {
	strategies, err := s.DB.GetActiveStrategies(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

func (s *Server) createStrategy(c *gin.Context) {
	var req struct {
		AccountID   string  `json:"account_id"`
		Symbol      string  `json:"symbol"`
		Timeframe   string  `json:"timeframe"`
		BBPeriod    int     `json:"bb_period"`
		BBDeviation float64 `json:"bb_deviation"`
		MAPeriod    int     `json:"ma_period"`
		EntryAmount float64 `json:"entry_amount"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "invalid request payload"})
		return
	}
	if req.AccountID == "" || req.Symbol == "" || req.EntryAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_STRATEGY",
			"error": "account_id, symbol and a positive entry_amount are required",
		})
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = "1H"
	}
	if req.BBPeriod <= 0 {
		req.BBPeriod = 20
	}
	if req.BBDeviation <= 0 {
		req.BBDeviation = 2
	}
	if req.MAPeriod <= 0 {
		req.MAPeriod = req.BBPeriod
	}

	strat := db.Strategy{
		ID:          uuid.NewString(),
		UserID:      CurrentUserID(c),
		AccountID:   req.AccountID,
		Symbol:      req.Symbol,
		Timeframe:   req.Timeframe,
		BBPeriod:    req.BBPeriod,
		BBDeviation: req.BBDeviation,
		MAPeriod:    req.MAPeriod,
		EntryAmount: req.EntryAmount,
		IsActive:    true,
	}
	if err := s.DB.CreateStrategy(c.Request.Context(), strat); err != nil {
		writeVenueError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"strategy_id": strat.ID})
}

// evaluateStrategy runs the indicator rule without trading.
func (s *Server) evaluateStrategy(c *gin.Context) {
	ev, err := s.Runner.Evaluate(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, strategy.ErrStrategyInactive) {
			c.JSON(http.StatusConflict, gin.H{"code": "STRATEGY_INACTIVE", "error": err.Error()})
			return
		}
		writeVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// runStrategy evaluates and, on a signal, places the order.
func (s *Server) runStrategy(c *gin.Context) {
	ev, intent, err := s.Runner.Run(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, strategy.ErrStrategyInactive) {
			c.JSON(http.StatusConflict, gin.H{"code": "STRATEGY_INACTIVE", "error": err.Error()})
			return
		}
		writeVenueError(c, err)
		return
	}
	resp := gin.H{"evaluation": ev}
	if intent != nil {
		resp["intent"] = intent
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	trades, err := s.DB.GetTradesByUser(c.Request.Context(), CurrentUserID(c), limit)
	if err != nil {
		writeVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}
