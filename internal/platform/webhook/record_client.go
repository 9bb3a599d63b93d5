package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/domain/payment"
)

// RecordClient pushes payment snapshots to the system of record
type RecordClient struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewRecordClient creates a client bounded by cfg.Timeout
func NewRecordClient(logger *slog.Logger, cfg config.SystemOfRecordConfig) *RecordClient {
	return &RecordClient{
		url:    cfg.URL,
		client: newHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

// Notify posts the event; any 2xx status is success
func (c *RecordClient) Notify(ctx context.Context, event *payment.Event) error {
	status, _, err := postJSON(ctx, c.client, c.url, event)
	if err != nil {
		return fmt.Errorf("failed to notify system of record: %w", err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("system of record returned status %d", status)
	}

	c.logger.Debug("System of record notified", "action", string(event.Action), "status", status)
	return nil
}
