// Package reference exposes the read side of provider, address and user data owned by
// the reference-data service.
package reference

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// Provider is a service provider paid on behalf of clients
type Provider struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Language string    `json:"language"`
	Active   bool      `json:"active"`
}

// TemplateLanguage resolves the provider's language to a notification template
func (p *Provider) TemplateLanguage() shared.Language {
	return shared.ParseLanguage(p.Language)
}

// ProviderAddress is an outgoing notification address of a provider
type ProviderAddress struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Email      string    `json:"email"`
	Primary    bool      `json:"primary"`
	Active     bool      `json:"active"`
}

// User is an operator acting on payments and batches
type User struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Active bool      `json:"active"`
}

// Repository reads reference data
type Repository interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// FirstActiveAddress returns the primary address first, then the lowest id
	FirstActiveAddress(ctx context.Context, providerID uuid.UUID) (*ProviderAddress, error)
	FindProviderAddress(ctx context.Context, providerID uuid.UUID, email string) (*ProviderAddress, error)

	// CountClients returns how many of ids exist
	CountClients(ctx context.Context, ids []uuid.UUID) (int, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing or unusable reference row
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.ID
}

// Is implements the errors.Is interface for ErrNotFound
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	if t.Entity == "" {
		return true
	}
	return e.Entity == t.Entity && (t.ID == "" || e.ID == t.ID)
}

// ErrInactive indicates a reference row that exists but is deactivated
type ErrInactive struct {
	Entity string
	ID     string
}

func (e ErrInactive) Error() string {
	return e.Entity + " is inactive: " + e.ID
}

// Is implements the errors.Is interface for ErrInactive
func (e ErrInactive) Is(target error) bool {
	t, ok := target.(ErrInactive)
	if !ok {
		return false
	}
	if t.Entity == "" {
		return true
	}
	return e.Entity == t.Entity && (t.ID == "" || e.ID == t.ID)
}
