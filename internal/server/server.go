// Package server exposes the exchange over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mintbook/mintbook/internal/domain"
	"github.com/mintbook/mintbook/internal/server/handler"
	"github.com/mintbook/mintbook/internal/server/middleware"
	"github.com/mintbook/mintbook/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// OrderRateLimit bounds order placements per client IP per
	// OrderRateWindow. Zero disables rate limiting.
	OrderRateLimit  int
	OrderRateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Users     *handler.UserHandler
	Markets   *handler.MarketHandler
	Orders    *handler.OrderHandler
	Positions *handler.PositionHandler
	Admin     *handler.AdminHandler
	Bot       *handler.BotHandler
}

// Server is the headless HTTP + WebSocket API for the exchange.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// (CORS, logging, auth) applied. limiter may be nil; when present, order
// placement is rate limited per client IP.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth or rate limiting concerns beyond the chain).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Accounts.
	mux.HandleFunc("POST /api/users", handlers.Users.CreateUser)
	mux.HandleFunc("POST /api/users/{id}/deposit", handlers.Users.Deposit)

	// Markets and books.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/holders", handlers.Markets.GetHolders)
	mux.HandleFunc("GET /api/orderbook/{marketID}", handlers.Markets.GetOrderBook)

	// Orders. Placement carries the per-IP rate limit.
	placeOrder := http.Handler(http.HandlerFunc(handlers.Orders.PlaceOrder))
	if limiter != nil && cfg.OrderRateLimit > 0 {
		window := cfg.OrderRateWindow
		if window <= 0 {
			window = time.Second
		}
		placeOrder = middleware.RateLimit(limiter, cfg.OrderRateLimit, window)(placeOrder)
	}
	mux.Handle("POST /api/orders", placeOrder)
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.CancelOrder)

	// Positions.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)

	// Operator endpoints.
	mux.HandleFunc("POST /api/admin/freeze", handlers.Admin.Freeze)
	mux.HandleFunc("POST /api/admin/settle", handlers.Admin.Settle)

	// Market-maker controls.
	mux.HandleFunc("GET /api/bot/status", handlers.Bot.Status)
	mux.HandleFunc("POST /api/bot/start", handlers.Bot.Start)
	mux.HandleFunc("POST /api/bot/stop", handlers.Bot.Stop)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
