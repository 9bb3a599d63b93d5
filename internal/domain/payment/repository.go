package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Repository defines payment persistence operations
type Repository interface {
	// Create inserts the payment and its client links
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetView(ctx context.Context, id uuid.UUID) (*View, error)

	// LockForUpdate acquires a row lock for the rest of the transaction
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	ReplaceClients(ctx context.Context, paymentID uuid.UUID, clientIDs []uuid.UUID) error

	// ExistsActiveReservationCode ignores excludeID so an update does not collide with itself
	ExistsActiveReservationCode(ctx context.Context, code string, excludeID uuid.UUID) (bool, error)

	// FindActiveByReservationCode skips cancelled payments and prefers an active one
	FindActiveByReservationCode(ctx context.Context, code string) (*Payment, error)
	MarkVerified(ctx context.Context, id uuid.UUID, documentID uuid.UUID) error
	IsInSentBatch(ctx context.Context, id uuid.UUID) (bool, error)

	// ListEligibleForNotification returns active, paid, unnotified payments oldest first
	ListEligibleForNotification(ctx context.Context, providerID *uuid.UUID) ([]*View, error)
	GetViewsByIDs(ctx context.Context, ids []uuid.UUID) ([]*View, error)
	MarkNotified(ctx context.Context, ids []uuid.UUID) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]*View, error)
	WithTx(tx pgx.Tx) Repository
}

// ListFilter narrows payment listings; nil fields are ignored
type ListFilter struct {
	ProviderID      *uuid.UUID
	Paid            *bool
	Verified        *bool
	Notified        *bool
	Active          *bool
	ReservationCode string
	Limit           int
	Offset          int
}

// Normalize applies the default and maximum page size
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ErrPaymentNotFound indicates missing payment
type ErrPaymentNotFound struct {
	PaymentID uuid.UUID
}

func (e ErrPaymentNotFound) Error() string {
	return "payment not found: " + e.PaymentID.String()
}

// Is implements the errors.Is interface for ErrPaymentNotFound
func (e ErrPaymentNotFound) Is(target error) bool {
	t, ok := target.(ErrPaymentNotFound)
	if !ok {
		return false
	}
	// If the target PaymentID is empty, consider it a match for any ErrPaymentNotFound
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}

// ErrAlreadyVerified indicates a mutation of a verified payment
type ErrAlreadyVerified struct {
	PaymentID uuid.UUID
}

func (e ErrAlreadyVerified) Error() string {
	return "payment already verified: " + e.PaymentID.String()
}

// Is implements the errors.Is interface for ErrAlreadyVerified
func (e ErrAlreadyVerified) Is(target error) bool {
	t, ok := target.(ErrAlreadyVerified)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}

// ErrAlreadyNotified indicates the provider has already been told about the payment
type ErrAlreadyNotified struct {
	PaymentID uuid.UUID
}

func (e ErrAlreadyNotified) Error() string {
	return "payment already notified to provider: " + e.PaymentID.String()
}

// Is implements the errors.Is interface for ErrAlreadyNotified
func (e ErrAlreadyNotified) Is(target error) bool {
	t, ok := target.(ErrAlreadyNotified)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}

// ErrPaymentCancelled indicates an attempt to reactivate a cancelled payment
type ErrPaymentCancelled struct {
	PaymentID uuid.UUID
}

func (e ErrPaymentCancelled) Error() string {
	return "payment is cancelled: " + e.PaymentID.String()
}

// ErrDuplicateReservationCode indicates reservation code uniqueness violation among active payments
type ErrDuplicateReservationCode struct {
	Code string
}

func (e ErrDuplicateReservationCode) Error() string {
	return "reservation code already in use: " + e.Code
}

// Is implements the errors.Is interface for ErrDuplicateReservationCode
func (e ErrDuplicateReservationCode) Is(target error) bool {
	t, ok := target.(ErrDuplicateReservationCode)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code
}
