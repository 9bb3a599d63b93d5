package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

// ReconciliationTokenHeader carries the shared secret of the document processor
const ReconciliationTokenHeader = "X-Reconciliation-Token"

// ReconciliationHandler receives document-processing callbacks
type ReconciliationHandler struct {
	reconciliationService service.ReconciliationService
	logger                *slog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(logger *slog.Logger, reconciliationService service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// Callback authenticates the caller before reading the body, then applies the callback
func (h *ReconciliationHandler) Callback(c *gin.Context) {
	if err := h.reconciliationService.Authenticate(c.GetHeader(ReconciliationTokenHeader)); err != nil {
		h.logger.Warn("Rejected reconciliation callback", "client_ip", c.ClientIP(), "error", err)
		respondError(c, h.logger, "reconciliation_callback", err)
		return
	}

	var callback reconciliation.Callback
	if err := c.ShouldBindJSON(&callback); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.reconciliationService.Process(c.Request.Context(), &callback)
	if err != nil {
		respondError(c, h.logger, "reconciliation_callback", err)
		return
	}

	h.logger.Info("Reconciliation callback processed",
		"document_id", result.DocumentID.String(),
		"payments_updated", result.PaymentsUpdated,
		"unresolved", len(result.UnresolvedCodes),
		"errors", len(result.Errors),
	)
	RespondOK(c, result)
}
