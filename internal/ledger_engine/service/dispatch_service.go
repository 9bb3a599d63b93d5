package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/domain/delivery"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reference"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/terra-payments-ledger/internal/ledger_engine/service"

// ErrDispatchCommitGap indicates the delivery boundary acknowledged a batch whose
// SENT state could not be committed. The provider has been notified but the
// ledger still shows the batch as a draft.
type ErrDispatchCommitGap struct {
	BatchID uuid.UUID
	Cause   error
}

func (e ErrDispatchCommitGap) Error() string {
	return "batch " + e.BatchID.String() + " was delivered but could not be recorded as sent: " + e.Cause.Error()
}

func (e ErrDispatchCommitGap) Unwrap() error {
	return e.Cause
}

// DispatchServiceImpl implements the DispatchService interface
type DispatchServiceImpl struct {
	db          TxRunner
	batchRepo   batch.Repository
	paymentRepo payment.Repository
	refRepo     reference.Repository
	gateway     delivery.Gateway
	audit       AuditRecorder
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(
	db TxRunner,
	batchRepo batch.Repository,
	paymentRepo payment.Repository,
	refRepo reference.Repository,
	gateway delivery.Gateway,
	audit AuditRecorder,
	logger *slog.Logger,
) DispatchService {
	return &DispatchServiceImpl{
		db:          db,
		batchRepo:   batchRepo,
		paymentRepo: paymentRepo,
		refRepo:     refRepo,
		gateway:     gateway,
		audit:       audit,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// Send delivers a draft and, once acknowledged, marks it SENT and its payments
// notified in one transaction. The batch row stays locked across the delivery
// call so concurrent sends of one batch deliver at most once.
func (s *DispatchServiceImpl) Send(ctx context.Context, id uuid.UUID, edits SendEdits, actorID *uuid.UUID) (*SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch.send", trace.WithAttributes(attribute.String("batch.id", id.String())))
	defer span.End()

	if edits.Subject != nil || edits.Body != nil {
		if err := s.applyEdits(ctx, id, edits); err != nil {
			return nil, s.fail(span, id, err)
		}
	}

	var (
		result    *SendResult
		delivered bool
	)
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		batchRepo := s.batchRepo.WithTx(tx)
		paymentRepo := s.paymentRepo.WithTx(tx)

		b, err := batchRepo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := b.EnsureDraft(); err != nil {
			return err
		}

		paymentIDs, err := batchRepo.PaymentIDs(ctx, id)
		if err != nil {
			return err
		}
		views, err := paymentRepo.GetViewsByIDs(ctx, paymentIDs)
		if err != nil {
			return err
		}
		provider, err := s.refRepo.GetProvider(ctx, b.ProviderID)
		if err != nil {
			return err
		}

		ack, err := s.deliver(ctx, buildDeliveryRequest(b, provider, views))
		if err != nil {
			return err
		}
		delivered = true

		if err := b.MarkSent(s.now()); err != nil {
			return err
		}
		if err := batchRepo.Update(ctx, b); err != nil {
			return err
		}
		notified, err := paymentRepo.MarkNotified(ctx, paymentIDs)
		if err != nil {
			return err
		}

		result = &SendResult{
			Batch:            &batch.View{Batch: b, ProviderName: provider.Name, PaymentIDs: paymentIDs},
			Ack:              ack,
			PaymentsNotified: notified,
		}
		return nil
	})
	if err != nil {
		if delivered {
			return nil, s.commitGap(ctx, span, id, actorID, err)
		}
		return nil, s.fail(span, id, err)
	}

	span.SetAttributes(attribute.Int64("batch.payments_notified", result.PaymentsNotified))
	s.logger.Info("Notification batch sent",
		"batch_id", id.String(),
		"recipient", result.Batch.SelectedEmail,
		"payments_notified", result.PaymentsNotified,
	)

	actor := actorID
	if actor == nil {
		actor = &result.Batch.SenderUserID
	}
	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeSendEmail, audit.EntityBatch, id, actor, map[string]interface{}{
		"recipient":         result.Batch.SelectedEmail,
		"payment_count":     result.Batch.PaymentCount,
		"payments_notified": result.PaymentsNotified,
		"ack_message":       result.Ack.Message,
	}))
	return result, nil
}

func (s *DispatchServiceImpl) applyEdits(ctx context.Context, id uuid.UUID, edits SendEdits) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.batchRepo.WithTx(tx)

		b, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := b.ApplyPatch(batch.Patch{Subject: edits.Subject, Body: edits.Body}); err != nil {
			return err
		}
		return repo.Update(ctx, b)
	})
}

func (s *DispatchServiceImpl) deliver(ctx context.Context, req *delivery.Request) (*delivery.Ack, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch.deliver", trace.WithAttributes(
		attribute.String("delivery.recipient", req.EmailInfo.Recipient),
		attribute.Int("delivery.payments", len(req.Payments)),
	))
	defer span.End()

	ack, err := s.gateway.Deliver(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return nil, err
	}
	return ack, nil
}

// commitGap reports a delivered batch whose SENT state was lost
func (s *DispatchServiceImpl) commitGap(ctx context.Context, span trace.Span, id uuid.UUID, actorID *uuid.UUID, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "delivery acknowledged but commit failed")

	s.logger.Error("Delivery acknowledged but batch commit failed; provider was notified while the batch remains a draft",
		"batch_id", id.String(),
		"error", cause,
	)
	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeDispatchCommitGap, audit.EntityBatch, id, actorID, map[string]interface{}{
		"error": cause.Error(),
	}))
	return ErrDispatchCommitGap{BatchID: id, Cause: cause}
}

func (s *DispatchServiceImpl) fail(span trace.Span, id uuid.UUID, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("Notification batch not sent", "batch_id", id.String(), "error", err)
	return err
}

func buildDeliveryRequest(b *batch.Batch, provider *reference.Provider, views []*payment.View) *delivery.Request {
	lines := make([]delivery.PaymentLine, 0, len(views))
	for _, v := range views {
		line := delivery.PaymentLine{
			ID:              v.ID,
			ReservationCode: v.ReservationCode,
			Amount:          v.Amount.StringFixed(2),
			Currency:        string(v.Currency),
			ClientNames:     v.ClientNames,
		}
		if line.ClientNames == nil {
			line.ClientNames = []string{}
		}
		if v.Description != nil {
			line.Description = *v.Description
		}
		lines = append(lines, line)
	}

	return &delivery.Request{
		EmailInfo: delivery.EmailInfo{
			Recipient: b.SelectedEmail,
			Subject:   b.Subject,
			Body:      b.Body,
			Provider: delivery.Provider{
				Name:     provider.Name,
				Language: string(provider.TemplateLanguage()),
			},
			UserID: b.SenderUserID,
		},
		Payments: lines,
	}
}
