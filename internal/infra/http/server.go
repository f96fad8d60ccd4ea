// Package http wires the router, middleware chain, and handlers into
// the API server.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/infra/http/handler"
	"github.com/vibescan/api/internal/infra/http/middleware"
	"github.com/vibescan/api/pkg/logger"
)

// Handlers bundles the route handlers the server mounts.
type Handlers struct {
	Scan    *handler.ScanHandler
	Finding *handler.FindingHandler
	Credit  *handler.CreditHandler
	Webhook *handler.WebhookHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// Server is the HTTP server.
type Server struct {
	httpServer   *http.Server
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// NewServer creates the server with the full middleware chain and all
// routes mounted.
func NewServer(cfg *config.Config, handlers Handlers, log *logger.Logger) *Server {
	s := &Server{
		config: cfg,
		logger: log,
	}

	rateLimitMw, rateLimitStop := middleware.RateLimit(&cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, rateLimitStop)

	router := chi.NewRouter()

	// Order matters: recovery first, identity early, auth per group.
	router.Use(
		middleware.Recovery(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.CORS(&cfg.CORS),
		middleware.BodyLimit(cfg.Server.MaxBodySize),
		rateLimitMw,
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Metrics(),
		middleware.Logger(log),
	)

	router.Get("/health", handlers.Health.Health)
	router.Get("/ready", handlers.Health.Ready)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Webhooks authenticate by signature, not by bearer token.
		r.Post("/webhooks/billing", handlers.Webhook.HandleBilling)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth.JWTSecret, log))

			r.Post("/scans", handlers.Scan.CreateScan)
			r.Get("/scans", handlers.Scan.ListScans)
			r.Get("/scans/{id}", handlers.Scan.GetScan)
			r.Get("/scans/{id}/findings", handlers.Scan.ListFindings)

			r.Patch("/findings/{id}/status", handlers.Finding.UpdateStatus)
			r.Post("/findings/{id}/feedback", handlers.Finding.SubmitFeedback)

			r.Get("/credits", handlers.Credit.GetBalance)
			r.Post("/credits/from-session", handlers.Credit.GrantFromSession)
			r.Post("/credits/coupon", handlers.Credit.RedeemCoupon)

			r.Get("/ws/scans/{id}", handlers.WS.WatchScan)
		})
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	return s
}

// Start starts the HTTP server, bounding concurrent connections when
// configured.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	listener, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if s.config.Server.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.config.Server.MaxConns)
	}

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
