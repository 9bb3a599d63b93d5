package funding

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// Repository defines funding source persistence operations
type Repository interface {
	GetCard(ctx context.Context, id uuid.UUID) (*Card, error)

	// LockCardForUpdate acquires a row lock so concurrent debits on one card serialize
	LockCardForUpdate(ctx context.Context, id uuid.UUID) (*Card, error)
	UpdateCardBalance(ctx context.Context, card *Card) error

	GetAccount(ctx context.Context, id uuid.UUID) (*BankAccount, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrInsufficientFunds carries the current balance so callers can display it
type ErrInsufficientFunds struct {
	CardID    uuid.UUID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e ErrInsufficientFunds) Error() string {
	return "insufficient funds on card " + e.CardID.String() +
		": available " + e.Available.StringFixed(2) + ", requested " + e.Requested.StringFixed(2)
}

// Is implements the errors.Is interface for ErrInsufficientFunds
func (e ErrInsufficientFunds) Is(target error) bool {
	t, ok := target.(ErrInsufficientFunds)
	if !ok {
		return false
	}
	if t.CardID == uuid.Nil {
		return true
	}
	return e.CardID == t.CardID
}

// ErrCardNotFound indicates missing card
type ErrCardNotFound struct {
	CardID uuid.UUID
}

func (e ErrCardNotFound) Error() string {
	return "card not found: " + e.CardID.String()
}

// Is implements the errors.Is interface for ErrCardNotFound
func (e ErrCardNotFound) Is(target error) bool {
	t, ok := target.(ErrCardNotFound)
	if !ok {
		return false
	}
	if t.CardID == uuid.Nil {
		return true
	}
	return e.CardID == t.CardID
}

// ErrAccountNotFound indicates missing bank account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "bank account not found: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}

// ErrFundingInactive indicates the referenced card or account is deactivated
type ErrFundingInactive struct {
	Type shared.FundingType
	ID   uuid.UUID
}

func (e ErrFundingInactive) Error() string {
	return "funding source is inactive: " + string(e.Type) + " " + e.ID.String()
}

// Is implements the errors.Is interface for ErrFundingInactive
func (e ErrFundingInactive) Is(target error) bool {
	t, ok := target.(ErrFundingInactive)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return t.Type == "" || t.Type == e.Type
	}
	return e.ID == t.ID
}

// ErrCurrencyMismatch indicates a payment currency differing from its funding source
type ErrCurrencyMismatch struct {
	Payment shared.Currency
	Funding shared.Currency
}

func (e ErrCurrencyMismatch) Error() string {
	return "currency mismatch: payment " + string(e.Payment) + ", funding source " + string(e.Funding)
}
