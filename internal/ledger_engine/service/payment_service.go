package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reference"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	db          TxRunner
	paymentRepo payment.Repository
	fundingRepo funding.Repository
	refRepo     reference.Repository
	ledger      *FundingLedger
	notifier    RecordNotifier
	audit       AuditRecorder
	logger      *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	db TxRunner,
	paymentRepo payment.Repository,
	fundingRepo funding.Repository,
	refRepo reference.Repository,
	ledger *FundingLedger,
	notifier RecordNotifier,
	audit AuditRecorder,
	logger *slog.Logger,
) PaymentService {
	return &PaymentServiceImpl{
		db:          db,
		paymentRepo: paymentRepo,
		fundingRepo: fundingRepo,
		refRepo:     refRepo,
		ledger:      ledger,
		notifier:    notifier,
		audit:       audit,
		logger:      logger,
	}
}

// Create validates the input and its references, then inserts the payment, its
// client links and the card debit in one transaction.
func (s *PaymentServiceImpl) Create(ctx context.Context, in payment.CreateInput) (*payment.View, error) {
	p, err := payment.New(in)
	if err != nil {
		s.logger.Warn("Invalid payment input", "reservation_code", in.ReservationCode, "error", err)
		return nil, err
	}
	p.ClientIDs = uniqueIDs(p.ClientIDs)

	if err := s.validateReferences(ctx, p); err != nil {
		return nil, err
	}
	if err := s.validateFunding(ctx, p); err != nil {
		return nil, err
	}
	if err := s.validateClients(ctx, p.ClientIDs); err != nil {
		return nil, err
	}

	exists, err := s.paymentRepo.ExistsActiveReservationCode(ctx, p.ReservationCode, uuid.Nil)
	if err != nil {
		s.logger.Error("Failed to check reservation code", "reservation_code", p.ReservationCode, "error", err)
		return nil, err
	}
	if exists {
		return nil, payment.ErrDuplicateReservationCode{Code: p.ReservationCode}
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.paymentRepo.WithTx(tx).Create(ctx, p); err != nil {
			return err
		}
		if p.FundingType == shared.FundingTypeCard {
			if _, err := s.ledger.Debit(ctx, tx, *p.CardID, p.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Payment creation rolled back", "reservation_code", p.ReservationCode, "error", err)
		return nil, err
	}

	s.logger.Info("Payment created",
		"payment_id", p.ID.String(),
		"reservation_code", p.ReservationCode,
		"amount", p.Amount.String(),
		"funding_type", string(p.FundingType),
	)

	view := s.loadView(ctx, p)
	s.notifier.Notify(ctx, shared.RecordActionCreate, view)
	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeCreate, audit.EntityPayment, p.ID, &p.UserID, map[string]interface{}{
		"reservation_code": p.ReservationCode,
		"amount":           p.Amount.StringFixed(2),
		"currency":         string(p.Currency),
		"funding_type":     string(p.FundingType),
	}))
	return view, nil
}

// Update applies patch under a row lock
func (s *PaymentServiceImpl) Update(ctx context.Context, id uuid.UUID, patch payment.Patch, actorID *uuid.UUID) (*payment.View, error) {
	if patch.ClientIDs != nil {
		ids := uniqueIDs(*patch.ClientIDs)
		patch.ClientIDs = &ids
	}

	var updated *payment.Payment
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.paymentRepo.WithTx(tx)

		p, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		wasActive := p.Active

		if err := p.ApplyPatch(patch); err != nil {
			return err
		}
		if patch.ClientIDs != nil {
			if err := s.validateClients(ctx, p.ClientIDs); err != nil {
				return err
			}
		}
		if p.Active && !wasActive {
			if err := s.ensureCodeAvailable(ctx, repo, p); err != nil {
				return err
			}
		}

		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		if patch.ClientIDs != nil {
			if err := repo.ReplaceClients(ctx, p.ID, p.ClientIDs); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		s.logger.Warn("Payment update refused", "payment_id", id.String(), "error", err)
		return nil, err
	}

	s.logger.Info("Payment updated", "payment_id", id.String(), "status", string(updated.Status))

	view := s.loadView(ctx, updated)
	s.notifier.Notify(ctx, shared.RecordActionUpdate, view)
	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeUpdate, audit.EntityPayment, id, actorID, patchDetails(patch)))
	return view, nil
}

// Cancel marks the payment cancelled and credits a card debit back in the same transaction
func (s *PaymentServiceImpl) Cancel(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*CancelResult, error) {
	result := &CancelResult{PaymentID: id, RestoredAmount: decimal.Zero}

	var cancelled *payment.Payment
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.paymentRepo.WithTx(tx)

		p, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		inSentBatch, err := repo.IsInSentBatch(ctx, id)
		if err != nil {
			return err
		}

		alreadyCancelled := p.Status == shared.PaymentStatusCancelled
		credit, err := p.Cancel(inSentBatch)
		if err != nil {
			return err
		}
		if alreadyCancelled {
			return nil
		}

		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		if credit {
			restored, err := s.ledger.Credit(ctx, tx, *p.CardID, p.Amount)
			if err != nil {
				return err
			}
			result.RestoredAmount = restored
		}
		cancelled = p
		return nil
	})
	if err != nil {
		s.logger.Warn("Payment cancellation refused", "payment_id", id.String(), "error", err)
		return nil, err
	}

	if cancelled == nil {
		s.logger.Info("Payment already cancelled", "payment_id", id.String())
		return result, nil
	}

	s.logger.Info("Payment cancelled", "payment_id", id.String(), "restored_amount", result.RestoredAmount.String())

	view := s.loadView(ctx, cancelled)
	s.notifier.Notify(ctx, shared.RecordActionDelete, view)
	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeDelete, audit.EntityPayment, id, actorID, map[string]interface{}{
		"reservation_code": cancelled.ReservationCode,
		"restored_amount":  result.RestoredAmount.StringFixed(2),
	}))
	return result, nil
}

// SetActive flips the active flag of an unverified payment
func (s *PaymentServiceImpl) SetActive(ctx context.Context, id uuid.UUID, active bool, actorID *uuid.UUID) (*payment.View, error) {
	var updated *payment.Payment
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.paymentRepo.WithTx(tx)

		p, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		wasActive := p.Active

		if err := p.SetActive(active); err != nil {
			return err
		}
		if active && !wasActive {
			if err := s.ensureCodeAvailable(ctx, repo, p); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		s.logger.Warn("Payment activation change refused", "payment_id", id.String(), "active", active, "error", err)
		return nil, err
	}

	view := s.loadView(ctx, updated)
	s.notifier.Notify(ctx, shared.RecordActionUpdate, view)
	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeUpdate, audit.EntityPayment, id, actorID, map[string]interface{}{
		"active": active,
	}))
	return view, nil
}

// Get returns the payment with its display fields
func (s *PaymentServiceImpl) Get(ctx context.Context, id uuid.UUID) (*payment.View, error) {
	view, err := s.paymentRepo.GetView(ctx, id)
	if err != nil {
		if !errors.Is(err, payment.ErrPaymentNotFound{}) {
			s.logger.Error("Failed to get payment", "payment_id", id.String(), "error", err)
		}
		return nil, err
	}
	return view, nil
}

// List returns payments matching filter
func (s *PaymentServiceImpl) List(ctx context.Context, filter payment.ListFilter) ([]*payment.View, error) {
	filter.Normalize()
	views, err := s.paymentRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list payments", "error", err)
		return nil, err
	}
	return views, nil
}

func (s *PaymentServiceImpl) validateReferences(ctx context.Context, p *payment.Payment) error {
	provider, err := s.refRepo.GetProvider(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !provider.Active {
		return reference.ErrInactive{Entity: "provider", ID: p.ProviderID.String()}
	}

	user, err := s.refRepo.GetUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	if !user.Active {
		return reference.ErrInactive{Entity: "user", ID: p.UserID.String()}
	}
	return nil
}

func (s *PaymentServiceImpl) validateFunding(ctx context.Context, p *payment.Payment) error {
	switch p.FundingType {
	case shared.FundingTypeCard:
		card, err := s.fundingRepo.GetCard(ctx, *p.CardID)
		if err != nil {
			return err
		}
		if !card.Active {
			return funding.ErrFundingInactive{Type: p.FundingType, ID: card.ID}
		}
		if card.Currency != p.Currency {
			return funding.ErrCurrencyMismatch{Payment: p.Currency, Funding: card.Currency}
		}
	case shared.FundingTypeBankAccount:
		account, err := s.fundingRepo.GetAccount(ctx, *p.AccountID)
		if err != nil {
			return err
		}
		if !account.Active {
			return funding.ErrFundingInactive{Type: p.FundingType, ID: account.ID}
		}
		if account.Currency != p.Currency {
			return funding.ErrCurrencyMismatch{Payment: p.Currency, Funding: account.Currency}
		}
	}
	return nil
}

func (s *PaymentServiceImpl) validateClients(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	count, err := s.refRepo.CountClients(ctx, ids)
	if err != nil {
		return err
	}
	if count != len(ids) {
		return shared.ErrInvalidInput{Field: "client_ids", Reason: "references unknown clients"}
	}
	return nil
}

func (s *PaymentServiceImpl) ensureCodeAvailable(ctx context.Context, repo payment.Repository, p *payment.Payment) error {
	exists, err := repo.ExistsActiveReservationCode(ctx, p.ReservationCode, p.ID)
	if err != nil {
		return fmt.Errorf("failed to check reservation code: %w", err)
	}
	if exists {
		return payment.ErrDuplicateReservationCode{Code: p.ReservationCode}
	}
	return nil
}

// loadView re-reads the committed payment with its display fields. A failed read
// falls back to the bare payment; the change itself is already committed.
func (s *PaymentServiceImpl) loadView(ctx context.Context, p *payment.Payment) *payment.View {
	view, err := s.paymentRepo.GetView(ctx, p.ID)
	if err != nil {
		s.logger.Error("Failed to load payment view after commit", "payment_id", p.ID.String(), "error", err)
		return &payment.View{Payment: *p, ClientNames: []string{}}
	}
	return view
}

func patchDetails(patch payment.Patch) map[string]interface{} {
	details := map[string]interface{}{}
	if patch.Amount != nil {
		details["amount"] = patch.Amount.StringFixed(2)
	}
	if patch.Description != nil {
		details["description"] = *patch.Description
	}
	if patch.ExpectedDebitDate != nil {
		details["expected_debit_date"] = *patch.ExpectedDebitDate
	}
	if patch.ClientIDs != nil {
		details["client_ids"] = len(*patch.ClientIDs)
	}
	if patch.Paid != nil {
		details["paid"] = *patch.Paid
	}
	if patch.Verified != nil {
		details["verified"] = *patch.Verified
	}
	if patch.Notified != nil {
		details["notified"] = *patch.Notified
	}
	if patch.Active != nil {
		details["active"] = *patch.Active
	}
	return details
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
