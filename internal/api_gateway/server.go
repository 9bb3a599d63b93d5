package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/terra-payments-ledger/internal/api_gateway/handler"
	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/ledger_engine/components"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger          *slog.Logger
	httpServer      *http.Server
	httpRouter      *gin.Engine
	shutdownTimeout time.Duration
}

// NewServer creates and configures a new HTTP server with the given services.
// auditReader may be nil, in which case the audit trail endpoint is not mounted.
// probes back the /ready endpoint.
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	services *components.Services,
	auditReader handler.AuditReader,
	probes map[string]Probe,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	h := handlers{
		payments:       handler.NewPaymentHandler(log.With("handler", "payments"), services.Payments),
		cards:          handler.NewCardHandler(log.With("handler", "cards"), services.Cards),
		batches:        handler.NewBatchHandler(log.With("handler", "batches"), services.Batches, services.Dispatch),
		reconciliation: handler.NewReconciliationHandler(log.With("handler", "reconciliation"), services.Reconciliation),
		analytics:      handler.NewAnalyticsHandler(log.With("handler", "analytics"), services.Analytics),
	}
	if auditReader != nil {
		h.audit = handler.NewAuditHandler(log.With("handler", "audit"), auditReader)
	}

	setupRouter(log, httpRouter, h, probes)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      otelhttp.NewHandler(httpRouter, cfg.Application.Name),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Handler exposes the instrumented HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests, giving up after the configured shutdown timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
