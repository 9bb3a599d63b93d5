package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terra-payments-ledger/internal/domain/outbox"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

// RecordPublisher replays a queued payment snapshot to the system of record
type RecordPublisher interface {
	PublishToRecord(ctx context.Context, message *outbox.Message) error
}

// RecordPublisherImpl implements RecordPublisher
type RecordPublisherImpl struct {
	outboxRepo outbox.Repository
	sender     service.RecordSender
	logger     *slog.Logger
}

// NewRecordPublisher creates a new publisher
func NewRecordPublisher(
	outboxRepo outbox.Repository,
	sender service.RecordSender,
	logger *slog.Logger,
) RecordPublisher {
	return &RecordPublisherImpl{
		outboxRepo: outboxRepo,
		sender:     sender,
		logger:     logger,
	}
}

// PublishToRecord sends the stored event unchanged, original timestamp included,
// and marks the message PROCESSED once the system of record accepts it.
func (p *RecordPublisherImpl) PublishToRecord(ctx context.Context, message *outbox.Message) error {
	event, err := message.Event()
	if err != nil {
		p.logger.Error("Failed to decode payment event from outbox payload",
			"outbox_id", message.ID, "payment_id", message.PaymentID.String(), "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("outbox_id", message.ID, "payment_id", message.PaymentID.String(), "action", string(message.Action))
	logger.Info("Retrying system of record notification", "attempts", message.Attempts)

	if err := p.sender.Notify(ctx, event); err != nil {
		return err
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("system of record notified for %s, but failed to mark outbox %d as PROCESSED: %w", message.PaymentID, message.ID, err)
	}

	logger.Info("Outbox message delivered and marked as PROCESSED")
	return nil
}
