package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/terra-payments-ledger/internal/api_gateway/handler"
	"github.com/terra-payments-ledger/internal/api_gateway/middleware"
)

// handlers groups the HTTP handlers mounted under /api/v1
type handlers struct {
	payments       *handler.PaymentHandler
	cards          *handler.CardHandler
	batches        *handler.BatchHandler
	reconciliation *handler.ReconciliationHandler
	analytics      *handler.AnalyticsHandler
	audit          *handler.AuditHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers, probes map[string]Probe) {
	// Correlation runs first so recovery and access logs can report the id.
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.ActingUser())

	v1 := r.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("", h.payments.Create)
			payments.GET("", h.payments.List)
			payments.GET("/:id", h.payments.GetByID)
			payments.PATCH("/:id", h.payments.Update)
			payments.DELETE("/:id", h.payments.Cancel)
			payments.POST("/:id/activate", h.payments.Activate)
			payments.POST("/:id/deactivate", h.payments.Deactivate)
		}

		cards := v1.Group("/cards")
		{
			cards.GET("/:id", h.cards.GetByID)
			cards.POST("/:id/recharge", h.cards.Recharge)
		}

		batches := v1.Group("/batches")
		{
			batches.POST("/generate", h.batches.Generate)
			batches.POST("", h.batches.Create)
			batches.GET("", h.batches.List)
			batches.GET("/:id", h.batches.GetByID)
			batches.PATCH("/:id", h.batches.Update)
			batches.DELETE("/:id", h.batches.Delete)
			batches.POST("/:id/send", h.batches.Send)
		}

		v1.POST("/webhooks/reconciliation", h.reconciliation.Callback)

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/dashboard", h.analytics.Dashboard)
			analytics.GET("/payments", h.analytics.PaymentsReport)
		}

		if h.audit != nil {
			v1.GET("/audit/:entity/:id", h.audit.ListByEntity)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	r.GET("/ready", readiness(logger, probes))
}
