package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/domain/delivery"
)

// DeliveryClient implements delivery.Gateway over the delivery webhook
type DeliveryClient struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewDeliveryClient creates a client bounded by cfg.Timeout
func NewDeliveryClient(logger *slog.Logger, cfg config.DeliveryConfig) *DeliveryClient {
	return &DeliveryClient{
		url:    cfg.URL,
		client: newHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

// Deliver posts the dispatch command and interprets the acknowledgement envelope.
// Transport failures and gateway statuses map to ErrServiceUnavailable. Anything
// other than a well-formed successful envelope maps to ErrDeliveryRejected.
func (c *DeliveryClient) Deliver(ctx context.Context, req *delivery.Request) (*delivery.Ack, error) {
	status, body, err := postJSON(ctx, c.client, c.url, req)
	if err != nil {
		c.logger.Error("Delivery webhook unreachable", "recipient", req.EmailInfo.Recipient, "error", err)
		return nil, delivery.ErrServiceUnavailable{Cause: err}
	}

	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		c.logger.Error("Delivery webhook unavailable", "status", status)
		return nil, delivery.ErrServiceUnavailable{Cause: fmt.Errorf("delivery webhook returned status %d", status)}
	}

	var ack delivery.Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		c.logger.Error("Delivery webhook returned an unreadable envelope", "status", status, "error", err)
		return nil, delivery.ErrDeliveryRejected{Message: "unexpected response from delivery service", StatusCode: status}
	}

	if status < 200 || status > 299 || !ack.Success {
		c.logger.Warn("Delivery rejected", "status", status, "code", ack.Code, "message", ack.Message)
		return nil, delivery.ErrDeliveryRejected{Message: ack.Message, StatusCode: status}
	}

	c.logger.Info("Delivery acknowledged", "recipient", req.EmailInfo.Recipient, "code", ack.Code)
	return &ack, nil
}
