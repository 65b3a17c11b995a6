package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/server/handler"
	"github.com/alanyoungcy/auctionhouse/internal/server/middleware"
	"github.com/alanyoungcy/auctionhouse/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// ChainID binds request signatures to one deployment.
	ChainID         int64
	SignatureMaxAge time.Duration
	RateLimit       int
	RateWindow      time.Duration
	DevMode         bool
}

// Handlers aggregates all HTTP handlers that the server registers. Dev and
// Feed are optional.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Auctions *handler.AuctionHandler
	Admin    *handler.AdminHandler
	Accounts *handler.AccountHandler
	Dev      *handler.DevHandler
	Feed     *handler.FeedHandler
}

// Deps are the shared backends the middleware chain needs. Either may be nil.
type Deps struct {
	Nonces  domain.LockManager
	Limiter domain.RateLimiter
}

// Server is the HTTP + WebSocket API in front of the auction service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and builds the middleware chain. Mutating
// routes require a signed request; reads are public.
func NewServer(cfg Config, handlers Handlers, deps Deps, wsHub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	signed := chain(
		middleware.Signed(middleware.SignatureConfig{
			ChainID: cfg.ChainID,
			MaxAge:  cfg.SignatureMaxAge,
			Nonces:  deps.Nonces,
			Logger:  logger,
		}),
		middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger),
	)
	post := func(pattern string, h http.HandlerFunc) {
		mux.Handle("POST "+pattern, signed(h))
	}

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Auctions.
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.List)
	mux.HandleFunc("GET /api/auctions/derive", handlers.Auctions.Derive)
	mux.HandleFunc("GET /api/auctions/settleable", handlers.Auctions.Settleable)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.Get)
	mux.HandleFunc("GET /api/auctions/{id}/events", handlers.Auctions.Events)
	post("/api/auctions", handlers.Auctions.Create)
	post("/api/auctions/{id}/bids", handlers.Auctions.Bid)
	post("/api/auctions/{id}/settle", handlers.Auctions.Settle)
	post("/api/auctions/{id}/cancel", handlers.Auctions.Cancel)

	// Recovery admin. The engine checks the caller.
	post("/api/admin/pause", handlers.Admin.Pause)
	post("/api/admin/unpause", handlers.Admin.Unpause)
	post("/api/admin/disable-recovery", handlers.Admin.DisableRecovery)
	post("/api/admin/recover-currency", handlers.Admin.RecoverCurrency)
	post("/api/admin/recover-item/{id}", handlers.Admin.RecoverItem)

	mux.HandleFunc("GET /api/accounts/{address}", handlers.Accounts.Get)

	if handlers.Feed != nil {
		mux.HandleFunc("GET /api/events/recent", handlers.Feed.Recent)
		mux.HandleFunc("GET /api/archive", handlers.Feed.ListArchives)
		mux.HandleFunc("GET /api/archive/{path...}", handlers.Feed.GetArchive)
	}

	if cfg.DevMode && handlers.Dev != nil {
		logger.Warn("dev endpoints enabled")
		mux.HandleFunc("POST /api/dev/fund", handlers.Dev.Fund)
		mux.HandleFunc("POST /api/dev/mint", handlers.Dev.Mint)
		post("/api/dev/approve", handlers.Dev.Approve)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	h := chain(
		middleware.CORS(cfg.CORSOrigins),
		middleware.Logging(logger),
	)(mux)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// chain composes middleware so the first argument is the outermost.
func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
