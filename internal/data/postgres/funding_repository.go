// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository accepts either the pool or a transaction through persistence.Querier
// so that ledger changes and payment rows commit together.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

const cardColumns = `id, holder_name, last4, currency, card_type, assigned_limit, available_balance, active, created_at, updated_at`

// FundingRepository implements the funding.Repository interface for PostgreSQL
type FundingRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewFundingRepository creates a new PostgreSQL funding source repository
func NewFundingRepository(logger *slog.Logger, db *persistence.PostgresDB) funding.Repository {
	return &FundingRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *FundingRepository) WithTx(tx pgx.Tx) funding.Repository {
	return &FundingRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetCard retrieves a card without locking it
func (r *FundingRepository) GetCard(ctx context.Context, id uuid.UUID) (*funding.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	card, err := scanCard(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, funding.ErrCardNotFound{CardID: id}
		}
		r.logger.Error("Failed to get card", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// LockCardForUpdate obtains a row lock on the card and returns its current state.
// Must run inside a transaction.
func (r *FundingRepository) LockCardForUpdate(ctx context.Context, id uuid.UUID) (*funding.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 FOR UPDATE`

	card, err := scanCard(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, funding.ErrCardNotFound{CardID: id}
		}
		r.logger.Error("Failed to lock card for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock card for update: %w", err)
	}
	return card, nil
}

// UpdateCardBalance persists the limit and balance computed by the ledger
func (r *FundingRepository) UpdateCardBalance(ctx context.Context, card *funding.Card) error {
	query := `
		UPDATE cards
		SET assigned_limit = $1, available_balance = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, card.AssignedLimit, card.AvailableBalance, card.UpdatedAt, card.ID)
	if err != nil {
		r.logger.Error("Failed to update card balance", "id", card.ID.String(), "error", err)
		return fmt.Errorf("failed to update card balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return funding.ErrCardNotFound{CardID: card.ID}
	}
	return nil
}

// GetAccount retrieves a bank account
func (r *FundingRepository) GetAccount(ctx context.Context, id uuid.UUID) (*funding.BankAccount, error) {
	query := `
		SELECT id, holder_name, bank_name, last4, currency, active, created_at, updated_at
		FROM bank_accounts
		WHERE id = $1
	`

	var acc funding.BankAccount
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&acc.ID,
		&acc.HolderName,
		&acc.BankName,
		&acc.Last4,
		&acc.Currency,
		&acc.Active,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, funding.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get bank account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}
	return &acc, nil
}

func scanCard(row pgx.Row) (*funding.Card, error) {
	var card funding.Card
	err := row.Scan(
		&card.ID,
		&card.HolderName,
		&card.Last4,
		&card.Currency,
		&card.CardType,
		&card.AssignedLimit,
		&card.AvailableBalance,
		&card.Active,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}
