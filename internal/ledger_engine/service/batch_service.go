package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reference"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// BatchServiceImpl implements the BatchService interface
type BatchServiceImpl struct {
	db          TxRunner
	batchRepo   batch.Repository
	paymentRepo payment.Repository
	refRepo     reference.Repository
	audit       AuditRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewBatchService creates a new notification batch service
func NewBatchService(
	db TxRunner,
	batchRepo batch.Repository,
	paymentRepo payment.Repository,
	refRepo reference.Repository,
	audit AuditRecorder,
	logger *slog.Logger,
) BatchService {
	return &BatchServiceImpl{
		db:          db,
		batchRepo:   batchRepo,
		paymentRepo: paymentRepo,
		refRepo:     refRepo,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

// Generate drafts one batch per provider holding active, paid and unnotified
// payments. Providers without an active address are skipped. All drafts are
// stored in one transaction; no eligible payments is a success with count 0.
func (s *BatchServiceImpl) Generate(ctx context.Context, senderUserID uuid.UUID, providerID *uuid.UUID) (*GenerateResult, error) {
	if err := s.validateSender(ctx, senderUserID); err != nil {
		return nil, err
	}

	eligible, err := s.paymentRepo.ListEligibleForNotification(ctx, providerID)
	if err != nil {
		s.logger.Error("Failed to list payments eligible for notification", "error", err)
		return nil, err
	}

	result := &GenerateResult{Batches: []*batch.View{}}
	if len(eligible) == 0 {
		s.logger.Info("No payments eligible for notification")
		return result, nil
	}

	// Group by provider, keeping the created_at order of first appearance
	var order []uuid.UUID
	groups := make(map[uuid.UUID][]*payment.View)
	for _, v := range eligible {
		if _, ok := groups[v.ProviderID]; !ok {
			order = append(order, v.ProviderID)
		}
		groups[v.ProviderID] = append(groups[v.ProviderID], v)
	}

	drafts := make([]*batch.View, 0, len(order))
	for _, pid := range order {
		group := groups[pid]

		draft, err := s.draftForProvider(ctx, pid, senderUserID, group)
		if err != nil {
			if errors.Is(err, reference.ErrNotFound{}) {
				s.logger.Warn("Skipping provider without an active notification address or record",
					"provider_id", pid.String(),
					"payments", len(group),
					"error", err,
				)
				continue
			}
			return nil, err
		}
		drafts = append(drafts, draft)
	}

	if len(drafts) == 0 {
		return result, nil
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.batchRepo.WithTx(tx)
		for _, d := range drafts {
			if err := repo.Create(ctx, d.Batch, d.PaymentIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store generated batches", "batches", len(drafts), "error", err)
		return nil, err
	}

	s.logger.Info("Generated notification batches", "batches", len(drafts), "payments", len(eligible))
	result.Count = len(drafts)
	result.Batches = drafts
	return result, nil
}

func (s *BatchServiceImpl) draftForProvider(ctx context.Context, providerID, senderUserID uuid.UUID, group []*payment.View) (*batch.View, error) {
	provider, err := s.refRepo.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	address, err := s.refRepo.FirstActiveAddress(ctx, providerID)
	if err != nil {
		return nil, err
	}

	subject := truncateRunes(composeSubject(provider.Name, len(group), s.now()), batch.MaxSubjectLength)
	body := composeBody(provider.TemplateLanguage(), provider.Name, group)

	b, err := batch.NewDraft(providerID, senderUserID, address.Email, subject, body)
	if err != nil {
		return nil, err
	}
	b.PaymentCount = len(group)
	b.TotalAmount = sumAmounts(group)

	ids := make([]uuid.UUID, 0, len(group))
	for _, v := range group {
		ids = append(ids, v.ID)
	}
	return &batch.View{Batch: b, ProviderName: provider.Name, PaymentIDs: ids}, nil
}

// CreateManual stores an operator-assembled draft. The address must be an active
// address of the provider, and every payment must belong to the provider and be
// paid and active.
func (s *BatchServiceImpl) CreateManual(ctx context.Context, in ManualBatchInput) (*batch.View, error) {
	ids := uniqueIDs(in.PaymentIDs)
	if len(ids) == 0 {
		return nil, shared.ErrInvalidInput{Field: "payment_ids", Reason: "must contain at least one payment"}
	}
	if err := s.validateSender(ctx, in.SenderUserID); err != nil {
		return nil, err
	}

	provider, err := s.refRepo.GetProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}
	if err := s.validateAddress(ctx, in.ProviderID, in.SelectedEmail); err != nil {
		return nil, err
	}

	views, err := s.paymentRepo.GetViewsByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load selected payments", "error", err)
		return nil, err
	}
	if len(views) != len(ids) {
		return nil, batch.ErrInvalidSelection{Reason: "one or more payments do not exist"}
	}
	for _, v := range views {
		if v.ProviderID != in.ProviderID {
			return nil, batch.ErrInvalidSelection{Reason: "payment " + v.ReservationCode + " belongs to another provider"}
		}
		if !v.Paid || !v.Active {
			return nil, batch.ErrInvalidSelection{Reason: "payment " + v.ReservationCode + " is not paid and active"}
		}
	}

	body := in.Body
	if body == "" {
		body = composeBody(provider.TemplateLanguage(), provider.Name, views)
	}

	b, err := batch.NewDraft(in.ProviderID, in.SenderUserID, in.SelectedEmail, in.Subject, body)
	if err != nil {
		return nil, err
	}
	b.PaymentCount = len(views)
	b.TotalAmount = sumAmounts(views)

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.batchRepo.WithTx(tx).Create(ctx, b, ids)
	})
	if err != nil {
		s.logger.Error("Failed to store manual batch", "provider_id", in.ProviderID.String(), "error", err)
		return nil, err
	}

	s.logger.Info("Manual notification batch created", "batch_id", b.ID.String(), "payments", len(ids))
	return &batch.View{Batch: b, ProviderName: provider.Name, PaymentIDs: ids}, nil
}

// Update edits a draft under a row lock
func (s *BatchServiceImpl) Update(ctx context.Context, id uuid.UUID, patch batch.Patch) (*batch.View, error) {
	if patch.IsEmpty() {
		return nil, shared.ErrInvalidInput{Reason: "no fields to update"}
	}

	var updated *batch.Batch
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.batchRepo.WithTx(tx)

		b, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := b.EnsureDraft(); err != nil {
			return err
		}
		if patch.SelectedEmail != nil {
			if err := s.validateAddress(ctx, b.ProviderID, *patch.SelectedEmail); err != nil {
				return err
			}
		}
		if err := b.ApplyPatch(patch); err != nil {
			return err
		}
		if err := repo.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		s.logger.Warn("Batch update refused", "batch_id", id.String(), "error", err)
		return nil, err
	}
	return s.view(ctx, updated)
}

// Delete removes a draft and its details
func (s *BatchServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.batchRepo.WithTx(tx)

		b, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := b.EnsureDraft(); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		s.logger.Warn("Batch deletion refused", "batch_id", id.String(), "error", err)
		return err
	}

	s.logger.Info("Notification batch deleted", "batch_id", id.String())
	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeDelete, audit.EntityBatch, id, nil, nil))
	return nil
}

// Get returns the batch with its payment ids
func (s *BatchServiceImpl) Get(ctx context.Context, id uuid.UUID) (*batch.View, error) {
	b, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, b)
}

// List returns batches matching filter, newest first
func (s *BatchServiceImpl) List(ctx context.Context, filter batch.ListFilter) ([]*batch.Batch, error) {
	filter.Normalize()
	batches, err := s.batchRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list notification batches", "error", err)
		return nil, err
	}
	return batches, nil
}

func (s *BatchServiceImpl) view(ctx context.Context, b *batch.Batch) (*batch.View, error) {
	ids, err := s.batchRepo.PaymentIDs(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	view := &batch.View{Batch: b, PaymentIDs: ids}
	provider, err := s.refRepo.GetProvider(ctx, b.ProviderID)
	if err != nil {
		s.logger.Warn("Failed to resolve batch provider name", "batch_id", b.ID.String(), "provider_id", b.ProviderID.String(), "error", err)
	} else {
		view.ProviderName = provider.Name
	}
	return view, nil
}

func (s *BatchServiceImpl) validateSender(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return shared.ErrInvalidInput{Field: "sender_user_id", Reason: "is required"}
	}
	user, err := s.refRepo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Active {
		return reference.ErrInactive{Entity: "user", ID: userID.String()}
	}
	return nil
}

// validateAddress checks the trimmed address, the same form the draft stores
func (s *BatchServiceImpl) validateAddress(ctx context.Context, providerID uuid.UUID, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return shared.ErrInvalidInput{Field: "selected_email", Reason: "must not be empty"}
	}
	address, err := s.refRepo.FindProviderAddress(ctx, providerID, email)
	if err != nil {
		if errors.Is(err, reference.ErrNotFound{}) {
			return batch.ErrInvalidSelection{Reason: "address does not belong to the provider"}
		}
		return fmt.Errorf("failed to check provider address: %w", err)
	}
	if !address.Active {
		return batch.ErrInvalidSelection{Reason: "address is inactive"}
	}
	return nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
