package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
	"github.com/terra-payments-ledger/internal/platform/messaging/producers"
)

// ReconciliationEventHandler applies document-processing callbacks read from Kafka
type ReconciliationEventHandler struct {
	reconciliationService service.ReconciliationService
	producer              producers.DeadLetterPublisher
	logger                *slog.Logger
}

// NewReconciliationEventHandler creates a new handler. producer may be nil when no DLQ is configured.
func NewReconciliationEventHandler(
	logger *slog.Logger,
	reconciliationService service.ReconciliationService,
	producer producers.DeadLetterPublisher,
) *ReconciliationEventHandler {
	return &ReconciliationEventHandler{
		reconciliationService: reconciliationService,
		producer:              producer,
		logger:                logger,
	}
}

// HandleMessage processes one callback. Messages that can never succeed go to the
// DLQ; storage failures are returned so the offset stays uncommitted.
func (h *ReconciliationEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var callback reconciliation.Callback
	if err := json.Unmarshal(value, &callback); err != nil {
		h.logger.Error("Failed to unmarshal reconciliation callback from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		if h.deadLetter(ctx, key, value, "Failed to unmarshal reconciliation callback: "+err.Error()) {
			return nil
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger.With("document_id", callback.DocumentID.String())
	logger.Info("Received reconciliation callback",
		"processing_type", string(callback.ProcessingType),
		"success", callback.Success,
		"matched", len(callback.Matched),
		"unmatched", len(callback.Unmatched),
	)

	result, err := h.reconciliationService.Process(ctx, &callback)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput{}) {
			logger.Error("Rejected invalid reconciliation callback", "error", err)
			if h.deadLetter(ctx, key, value, "Invalid reconciliation callback: "+err.Error()) {
				return nil
			}
		}
		logger.Error("Failed to process reconciliation callback", "error", err)
		return fmt.Errorf("processing reconciliation callback for document %s failed: %w", callback.DocumentID.String(), err)
	}

	logger.Info("Successfully processed reconciliation callback",
		"payments_updated", result.PaymentsUpdated,
		"unresolved_codes", len(result.UnresolvedCodes),
		"errors", len(result.Errors),
	)
	return nil
}

// deadLetter reports whether the message was parked in the DLQ
func (h *ReconciliationEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string) bool {
	if h.producer == nil {
		return false
	}
	if err := h.producer.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"message_key", string(key),
			"reason", reason,
		)
		return false
	}
	h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
	return true
}
