package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

// DocumentRepository implements reconciliation.DocumentRepository for PostgreSQL
type DocumentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewDocumentRepository creates a new PostgreSQL document repository
func NewDocumentRepository(logger *slog.Logger, db *persistence.PostgresDB) reconciliation.DocumentRepository {
	return &DocumentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *DocumentRepository) WithTx(tx pgx.Tx) reconciliation.DocumentRepository {
	return &DocumentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// UpdateStatus records the outcome of external document processing
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.DocumentStatus, message string) error {
	query := `
		UPDATE documents
		SET processing_status = $1, processing_message = $2, processed_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, status, message, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update document status", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return reconciliation.ErrDocumentNotFound{DocumentID: id}
	}
	return nil
}
