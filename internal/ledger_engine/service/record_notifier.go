package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/terra-payments-ledger/internal/domain/outbox"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/platform/messaging/producers"
)

// RecordSender delivers one payment snapshot to the system of record
type RecordSender interface {
	Notify(ctx context.Context, event *payment.Event) error
}

// AsyncRecordNotifier pushes payment snapshots from a worker pool after commit.
// A failed system-of-record delivery is queued in the record outbox for the poller
// to retry; the lifecycle event is also published to Kafka.
type AsyncRecordNotifier struct {
	pool       *ants.Pool
	sender     RecordSender
	events     producers.MessagePublisher
	outboxRepo outbox.Repository
	timeout    time.Duration
	logger     *slog.Logger
}

// NewAsyncRecordNotifier creates a notifier backed by a pool of size workers.
// sender or events may be nil to disable that channel. The pool never makes
// Notify wait: when every worker is busy the snapshot goes straight to the outbox.
func NewAsyncRecordNotifier(
	size int,
	sender RecordSender,
	events producers.MessagePublisher,
	outboxRepo outbox.Repository,
	timeout time.Duration,
	logger *slog.Logger,
) (*AsyncRecordNotifier, error) {
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &AsyncRecordNotifier{
		pool:       pool,
		sender:     sender,
		events:     events,
		outboxRepo: outboxRepo,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// NewInlineRecordNotifier creates a notifier that delivers on the caller's goroutine.
// It serves as the fallback when the worker pool cannot be created.
func NewInlineRecordNotifier(
	sender RecordSender,
	events producers.MessagePublisher,
	outboxRepo outbox.Repository,
	timeout time.Duration,
	logger *slog.Logger,
) *AsyncRecordNotifier {
	return &AsyncRecordNotifier{
		sender:     sender,
		events:     events,
		outboxRepo: outboxRepo,
		timeout:    timeout,
		logger:     logger,
	}
}

// Notify submits the snapshot and returns immediately
func (n *AsyncRecordNotifier) Notify(ctx context.Context, action shared.RecordAction, view *payment.View) {
	if view == nil {
		return
	}
	event := payment.NewEvent(action, view)

	if n.pool == nil {
		n.deliver(event)
		return
	}
	if err := n.pool.Submit(func() { n.deliver(event) }); err != nil {
		n.logger.Warn("Record notifier saturated, queueing notification for retry",
			"payment_id", view.ID.String(),
			"action", string(action),
			"error", err,
		)
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		n.publish(ctx, event)
		cancel()
		n.enqueue(event, err)
	}
}

func (n *AsyncRecordNotifier) deliver(event *payment.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	key := event.Payment.ID.String()
	n.publish(ctx, event)

	if n.sender == nil {
		return
	}
	if err := n.sender.Notify(ctx, event); err != nil {
		n.logger.Warn("System of record notification failed, queueing for retry",
			"payment_id", key,
			"action", string(event.Action),
			"error", err,
		)
		n.enqueue(event, err)
		return
	}
	n.logger.Debug("System of record notified", "payment_id", key, "action", string(event.Action))
}

func (n *AsyncRecordNotifier) publish(ctx context.Context, event *payment.Event) {
	if n.events == nil {
		return
	}
	key := event.Payment.ID.String()
	if err := n.events.Publish(ctx, key, event); err != nil {
		n.logger.Warn("Failed to publish payment event", "payment_id", key, "action", string(event.Action), "error", err)
	}
}

// enqueue writes the retry row with the pool querier, outside any payment transaction
func (n *AsyncRecordNotifier) enqueue(event *payment.Event, cause error) {
	if n.sender == nil {
		return
	}

	msg, err := outbox.NewMessage(event, cause)
	if err != nil {
		n.logger.Error("Failed to encode record notification", "payment_id", event.Payment.ID.String(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.outboxRepo.Create(ctx, msg); err != nil {
		n.logger.Error("Failed to queue record notification for retry",
			"payment_id", event.Payment.ID.String(),
			"action", string(event.Action),
			"error", err,
		)
	}
}

// Shutdown waits up to timeout for in-flight notifications, then releases the pool
func (n *AsyncRecordNotifier) Shutdown(timeout time.Duration) error {
	if n.pool == nil {
		return nil
	}
	n.logger.Info("Shutting down record notifier", "running_workers", n.pool.Running())
	return n.pool.ReleaseTimeout(timeout)
}

// Running returns the number of running workers in the pool.
func (n *AsyncRecordNotifier) Running() int {
	if n.pool == nil {
		return 0
	}
	return n.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (n *AsyncRecordNotifier) Capacity() int {
	if n.pool == nil {
		return 0
	}
	return n.pool.Cap()
}
