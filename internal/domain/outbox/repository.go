package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// Repository stores system-of-record notifications that still owe a delivery
type Repository interface {
	Create(ctx context.Context, message *Message) error

	// GetPending returns the oldest pending messages first
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64, lastError string) error

	// CountByStatus reports queue depth per state. States with no rows are absent.
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)

	// Requeue returns up to limit parked messages, oldest first, to PENDING with
	// their attempt counter reset. It reports how many moved.
	Requeue(ctx context.Context, limit int) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return fmt.Sprintf("record outbox message %d not found", e.ID)
}
