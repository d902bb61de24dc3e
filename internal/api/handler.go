package api

import (
	"net/http"
	"time"

	"exchange-core/internal/connector"
	"exchange-core/internal/events"
	"exchange-core/internal/strategy"
	"exchange-core/pkg/cache"
	"exchange-core/pkg/config"
	"exchange-core/pkg/crypto"
	"exchange-core/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires the HTTP surface around the connector registry and the
// strategy runner.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Registry  *connector.Registry
	Runner    *strategy.Runner
	Vault     *crypto.Vault
	Cfg       *config.Config
	Tickers   *cache.TickerCache
	JWTSecret string
}

func NewServer(bus *events.Bus, database *db.Database, registry *connector.Registry, runner *strategy.Runner, vault *crypto.Vault, cfg *config.Config) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Registry:  registry,
		Runner:    runner,
		Vault:     vault,
		Cfg:       cfg,
		Tickers:   cache.NewTickerCache(2 * time.Second),
		JWTSecret: cfg.JWTSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/accounts", s.listAccounts)
			protected.POST("/accounts", s.createAccount)
			protected.DELETE("/accounts/:id", s.deactivateAccount)
			protected.GET("/accounts/:id/balance", s.getBalance)
			protected.GET("/accounts/:id/ticker", s.getTicker)
			protected.GET("/accounts/:id/candles", s.getCandles)

			protected.POST("/connections/test", s.testConnection)
			protected.POST("/balances/refresh", s.refreshBalances)

			protected.GET("/strategies", s.listStrategies)
			protected.POST("/strategies", s.createStrategy)
			protected.POST("/strategies/:id/evaluate", s.evaluateStrategy)
			protected.POST("/strategies/:id/run", s.runStrategy)

			protected.GET("/trades", s.listTrades)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
