package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/reference"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

// ReferenceRepository reads providers, provider addresses, users and clients.
// The rows are owned by the reference-data service; this side never writes them.
type ReferenceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewReferenceRepository creates a new PostgreSQL reference data repository
func NewReferenceRepository(logger *slog.Logger, db *persistence.PostgresDB) reference.Repository {
	return &ReferenceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *ReferenceRepository) WithTx(tx pgx.Tx) reference.Repository {
	return &ReferenceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetProvider retrieves a provider by id
func (r *ReferenceRepository) GetProvider(ctx context.Context, id uuid.UUID) (*reference.Provider, error) {
	query := `SELECT id, name, language, active FROM providers WHERE id = $1`

	var p reference.Provider
	err := r.querier.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Language, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reference.ErrNotFound{Entity: "provider", ID: id.String()}
		}
		r.logger.Error("Failed to get provider", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}

// GetUser retrieves a user by id
func (r *ReferenceRepository) GetUser(ctx context.Context, id uuid.UUID) (*reference.User, error) {
	query := `SELECT id, name, active FROM users WHERE id = $1`

	var u reference.User
	err := r.querier.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reference.ErrNotFound{Entity: "user", ID: id.String()}
		}
		r.logger.Error("Failed to get user", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// FirstActiveAddress picks the primary active address, falling back to the lowest id
func (r *ReferenceRepository) FirstActiveAddress(ctx context.Context, providerID uuid.UUID) (*reference.ProviderAddress, error) {
	query := `
		SELECT id, provider_id, email, is_primary, active
		FROM provider_addresses
		WHERE provider_id = $1 AND active
		ORDER BY is_primary DESC, id
		LIMIT 1
	`

	addr, err := scanAddress(r.querier.QueryRow(ctx, query, providerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reference.ErrNotFound{Entity: "provider address", ID: providerID.String()}
		}
		r.logger.Error("Failed to get provider address", "provider_id", providerID.String(), "error", err)
		return nil, fmt.Errorf("failed to get provider address: %w", err)
	}
	return addr, nil
}

// FindProviderAddress looks up one of the provider's addresses by email, active or not
func (r *ReferenceRepository) FindProviderAddress(ctx context.Context, providerID uuid.UUID, email string) (*reference.ProviderAddress, error) {
	query := `
		SELECT id, provider_id, email, is_primary, active
		FROM provider_addresses
		WHERE provider_id = $1 AND lower(email) = lower($2)
	`

	email = strings.TrimSpace(email)
	addr, err := scanAddress(r.querier.QueryRow(ctx, query, providerID, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reference.ErrNotFound{Entity: "provider address", ID: email}
		}
		r.logger.Error("Failed to find provider address", "provider_id", providerID.String(), "error", err)
		return nil, fmt.Errorf("failed to find provider address: %w", err)
	}
	return addr, nil
}

// CountClients returns how many of ids exist in clients
func (r *ReferenceRepository) CountClients(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `SELECT COUNT(*) FROM clients WHERE id = ANY($1::uuid[])`

	var count int
	if err := r.querier.QueryRow(ctx, query, uuidStrings(ids)).Scan(&count); err != nil {
		r.logger.Error("Failed to count clients", "error", err)
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return count, nil
}

func scanAddress(row pgx.Row) (*reference.ProviderAddress, error) {
	var a reference.ProviderAddress
	if err := row.Scan(&a.ID, &a.ProviderID, &a.Email, &a.Primary, &a.Active); err != nil {
		return nil, err
	}
	return &a, nil
}
