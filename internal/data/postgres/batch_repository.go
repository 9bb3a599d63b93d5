package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

const batchColumns = `id, provider_id, selected_email, sender_user_id, subject, body, state,
	payment_count, total_amount, generated_at, sent_at`

// BatchRepository implements the batch.Repository interface for PostgreSQL
type BatchRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBatchRepository creates a new PostgreSQL notification batch repository
func NewBatchRepository(logger *slog.Logger, db *persistence.PostgresDB) batch.Repository {
	return &BatchRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *BatchRepository) WithTx(tx pgx.Tx) batch.Repository {
	return &BatchRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores the draft and its batch_details rows
func (r *BatchRepository) Create(ctx context.Context, b *batch.Batch, paymentIDs []uuid.UUID) error {
	query := `
		INSERT INTO notification_batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		b.ID,
		b.ProviderID,
		b.SelectedEmail,
		b.SenderUserID,
		b.Subject,
		b.Body,
		b.State,
		b.PaymentCount,
		b.TotalAmount,
		b.GeneratedAt,
		b.SentAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification batch", "provider_id", b.ProviderID.String(), "error", err)
		return fmt.Errorf("failed to create notification batch: %w", err)
	}

	detail := `INSERT INTO batch_details (batch_id, payment_id) VALUES ($1, $2)`
	for _, paymentID := range paymentIDs {
		if _, err := r.querier.Exec(ctx, detail, b.ID, paymentID); err != nil {
			r.logger.Error("Failed to add batch detail", "batch_id", b.ID.String(), "payment_id", paymentID.String(), "error", err)
			return fmt.Errorf("failed to add batch detail: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a batch
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM notification_batches WHERE id = $1`

	b, err := scanBatch(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, batch.ErrBatchNotFound{BatchID: id}
		}
		r.logger.Error("Failed to get notification batch", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get notification batch: %w", err)
	}
	return b, nil
}

// LockForUpdate obtains a row lock on the batch so concurrent sends serialize
func (r *BatchRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM notification_batches WHERE id = $1 FOR UPDATE`

	b, err := scanBatch(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, batch.ErrBatchNotFound{BatchID: id}
		}
		r.logger.Error("Failed to lock notification batch", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock notification batch: %w", err)
	}
	return b, nil
}

// Update persists the editable fields and the state transition
func (r *BatchRepository) Update(ctx context.Context, b *batch.Batch) error {
	query := `
		UPDATE notification_batches
		SET selected_email = $1, subject = $2, body = $3, state = $4, sent_at = $5
		WHERE id = $6
	`

	result, err := r.querier.Exec(ctx, query, b.SelectedEmail, b.Subject, b.Body, b.State, b.SentAt, b.ID)
	if err != nil {
		r.logger.Error("Failed to update notification batch", "id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to update notification batch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return batch.ErrBatchNotFound{BatchID: b.ID}
	}
	return nil
}

// Delete removes the detail rows, then the batch itself
func (r *BatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.querier.Exec(ctx, `DELETE FROM batch_details WHERE batch_id = $1`, id); err != nil {
		r.logger.Error("Failed to delete batch details", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete batch details: %w", err)
	}

	result, err := r.querier.Exec(ctx, `DELETE FROM notification_batches WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete notification batch", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete notification batch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return batch.ErrBatchNotFound{BatchID: id}
	}
	return nil
}

// PaymentIDs returns the payments covered by the batch
func (r *BatchRepository) PaymentIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.querier.Query(ctx, `SELECT payment_id FROM batch_details WHERE batch_id = $1 ORDER BY payment_id`, id)
	if err != nil {
		r.logger.Error("Failed to list batch payments", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to list batch payments: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var paymentID uuid.UUID
		if err := rows.Scan(&paymentID); err != nil {
			return nil, fmt.Errorf("failed to scan batch payment: %w", err)
		}
		ids = append(ids, paymentID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list batch payments: %w", err)
	}
	return ids, nil
}

// List returns batches matching the filter, most recently generated first
func (r *BatchRepository) List(ctx context.Context, filter batch.ListFilter) ([]*batch.Batch, error) {
	filter.Normalize()

	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.State != nil {
		add("state = $%d", *filter.State)
	}
	if filter.ProviderID != nil {
		add("provider_id = $%d", *filter.ProviderID)
	}
	if filter.DateFrom != nil {
		add("generated_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("generated_at <= $%d", *filter.DateTo)
	}

	query := `SELECT ` + batchColumns + ` FROM notification_batches`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY generated_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notification batches", "error", err)
		return nil, fmt.Errorf("failed to list notification batches: %w", err)
	}
	defer rows.Close()

	batches := []*batch.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notification batches: %w", err)
	}
	return batches, nil
}

func scanBatch(row pgx.Row) (*batch.Batch, error) {
	var b batch.Batch
	err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.SelectedEmail,
		&b.SenderUserID,
		&b.Subject,
		&b.Body,
		&b.State,
		&b.PaymentCount,
		&b.TotalAmount,
		&b.GeneratedAt,
		&b.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
