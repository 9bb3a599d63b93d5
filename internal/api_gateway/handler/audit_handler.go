package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/terra-payments-ledger/internal/domain/audit"
)

// AuditReader is the read side of the audit trail
type AuditReader interface {
	ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]*audit.Event, error)
}

var auditEntities = map[string]bool{
	audit.EntityPayment:  true,
	audit.EntityCard:     true,
	audit.EntityBatch:    true,
	audit.EntityDocument: true,
}

// AuditHandler exposes the audit trail of one entity
type AuditHandler struct {
	reader AuditReader
	logger *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *slog.Logger, reader AuditReader) *AuditHandler {
	return &AuditHandler{
		reader: reader,
		logger: logger,
	}
}

// ListByEntity returns the newest events for /audit/:entity/:id
func (h *AuditHandler) ListByEntity(c *gin.Context) {
	entity := c.Param("entity")
	if !auditEntities[entity] {
		RespondBadRequest(c, "Unknown audit entity: "+entity)
		return
	}
	id, ok := parseIDParam(c, entity)
	if !ok {
		return
	}

	var query AuditListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	events, err := h.reader.ListByEntity(c.Request.Context(), entity, id.String(), query.Limit)
	if err != nil {
		respondError(c, h.logger, "list_audit_events", err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	RespondOK(c, AuditListResponse{Events: events})
}
