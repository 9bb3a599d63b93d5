package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

const DefaultListLimit = 100

// Repository defines notification batch persistence operations
type Repository interface {
	// Create inserts the batch and one detail row per payment
	Create(ctx context.Context, batch *Batch, paymentIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Batch, error)
	Update(ctx context.Context, batch *Batch) error

	// Delete removes the detail rows, then the batch
	Delete(ctx context.Context, id uuid.UUID) error
	PaymentIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	List(ctx context.Context, filter ListFilter) ([]*Batch, error)
	WithTx(tx pgx.Tx) Repository
}

// ListFilter narrows batch listings; nil fields are ignored
type ListFilter struct {
	State      *shared.BatchState
	ProviderID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

// Normalize applies the default page size
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ErrBatchNotFound indicates missing batch
type ErrBatchNotFound struct {
	BatchID uuid.UUID
}

func (e ErrBatchNotFound) Error() string {
	return "notification batch not found: " + e.BatchID.String()
}

// Is implements the errors.Is interface for ErrBatchNotFound
func (e ErrBatchNotFound) Is(target error) bool {
	t, ok := target.(ErrBatchNotFound)
	if !ok {
		return false
	}
	if t.BatchID == uuid.Nil {
		return true
	}
	return e.BatchID == t.BatchID
}

// ErrNotDraft indicates an edit, delete or send of a batch that already left DRAFT
type ErrNotDraft struct {
	BatchID uuid.UUID
	State   shared.BatchState
}

func (e ErrNotDraft) Error() string {
	return "notification batch " + e.BatchID.String() + " is not a draft (state " + string(e.State) + ")"
}

// Is implements the errors.Is interface for ErrNotDraft
func (e ErrNotDraft) Is(target error) bool {
	t, ok := target.(ErrNotDraft)
	if !ok {
		return false
	}
	if t.BatchID == uuid.Nil {
		return true
	}
	return e.BatchID == t.BatchID
}

// ErrInvalidSelection indicates an address or payment that does not fit a manual batch
type ErrInvalidSelection struct {
	Reason string
}

func (e ErrInvalidSelection) Error() string {
	return "invalid selection: " + e.Reason
}

// Is implements the errors.Is interface for ErrInvalidSelection
func (e ErrInvalidSelection) Is(target error) bool {
	_, ok := target.(ErrInvalidSelection)
	return ok
}
