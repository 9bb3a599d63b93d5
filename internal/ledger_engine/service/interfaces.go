// Package service implements the payment lifecycle, batch composition, dispatch and
// reconciliation operations on top of the domain repositories.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/analytics"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/domain/delivery"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// TxRunner runs fn in one database transaction, rolling back when fn fails
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// PaymentService defines payment lifecycle operations
type PaymentService interface {
	// Create validates references, inserts the payment and debits a funding card in one transaction
	Create(ctx context.Context, in payment.CreateInput) (*payment.View, error)

	// Update applies a partial patch
	// Returns ErrAlreadyVerified unless the patch only touches the active or notified flags
	Update(ctx context.Context, id uuid.UUID, patch payment.Patch, actorID *uuid.UUID) (*payment.View, error)

	// Cancel marks the payment cancelled and restores a card debit
	// Returns ErrAlreadyNotified once the provider has been told about the payment
	Cancel(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*CancelResult, error)

	SetActive(ctx context.Context, id uuid.UUID, active bool, actorID *uuid.UUID) (*payment.View, error)
	Get(ctx context.Context, id uuid.UUID) (*payment.View, error)
	List(ctx context.Context, filter payment.ListFilter) ([]*payment.View, error)
}

// CancelResult reports how much was credited back to the funding card
type CancelResult struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	RestoredAmount decimal.Decimal `json:"restored_amount"`
}

// CardService defines card reads and the standalone recharge entry point
type CardService interface {
	Get(ctx context.Context, id uuid.UUID) (*funding.Card, error)
	Recharge(ctx context.Context, id uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID) (*funding.Card, error)
}

// BatchService defines notification batch composition and draft maintenance
type BatchService interface {
	// Generate drafts one batch per provider with eligible payments
	Generate(ctx context.Context, senderUserID uuid.UUID, providerID *uuid.UUID) (*GenerateResult, error)
	CreateManual(ctx context.Context, in ManualBatchInput) (*batch.View, error)
	Update(ctx context.Context, id uuid.UUID, patch batch.Patch) (*batch.View, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*batch.View, error)
	List(ctx context.Context, filter batch.ListFilter) ([]*batch.Batch, error)
}

// GenerateResult lists the drafts created by one Generate call
type GenerateResult struct {
	Count   int           `json:"count"`
	Batches []*batch.View `json:"batches"`
}

// ManualBatchInput is an operator-assembled batch
type ManualBatchInput struct {
	ProviderID    uuid.UUID
	SenderUserID  uuid.UUID
	SelectedEmail string
	Subject       string
	Body          string
	PaymentIDs    []uuid.UUID
}

// DispatchService sends drafts through the delivery boundary
type DispatchService interface {
	Send(ctx context.Context, id uuid.UUID, edits SendEdits, actorID *uuid.UUID) (*SendResult, error)
}

// SendEdits are last-minute changes applied before delivery; they persist even if delivery fails
type SendEdits struct {
	Subject *string
	Body    *string
}

// SendResult is the sent batch and the boundary acknowledgement
type SendResult struct {
	Batch            *batch.View   `json:"batch"`
	Ack              *delivery.Ack `json:"ack"`
	PaymentsNotified int64         `json:"payments_notified"`
}

// ReconciliationService applies document-processing callbacks to payments
type ReconciliationService interface {
	// Authenticate checks the shared secret presented by the caller
	Authenticate(token string) error
	Process(ctx context.Context, callback *reconciliation.Callback) (*reconciliation.Result, error)
}

// AnalyticsService serves the read-only ledger summaries
type AnalyticsService interface {
	Dashboard(ctx context.Context) (*analytics.Dashboard, error)

	// PaymentsReport rejects an inverted date range before querying
	PaymentsReport(ctx context.Context, filter analytics.ReportFilter) (*analytics.Report, error)
}

// RecordNotifier pushes payment snapshots to the system of record after commit.
// It never blocks the caller and never fails the operation.
type RecordNotifier interface {
	Notify(ctx context.Context, action shared.RecordAction, view *payment.View)
}

// AuditRecorder writes audit events; failures are logged and swallowed
type AuditRecorder interface {
	Record(ctx context.Context, event *audit.Event)
}
