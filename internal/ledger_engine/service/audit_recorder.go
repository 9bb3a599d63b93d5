package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-payments-ledger/internal/domain/audit"
)

const auditWriteTimeout = 5 * time.Second

// AuditTrail records audit events without ever failing the operation that produced them
type AuditTrail struct {
	repo   audit.Repository
	logger *slog.Logger
}

// NewAuditTrail creates a new AuditTrail
func NewAuditTrail(repo audit.Repository, logger *slog.Logger) *AuditTrail {
	return &AuditTrail{
		repo:   repo,
		logger: logger,
	}
}

// Record stores the event. The write outlives a cancelled request context.
func (a *AuditTrail) Record(ctx context.Context, event *audit.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := a.repo.Record(ctx, event); err != nil {
		a.logger.Error("Failed to record audit event",
			"event_type", string(event.EventType),
			"entity", event.Entity,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}
