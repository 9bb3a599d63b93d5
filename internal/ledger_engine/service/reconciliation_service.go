package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

// ReconciliationServiceImpl implements the ReconciliationService interface
type ReconciliationServiceImpl struct {
	db           TxRunner
	paymentRepo  payment.Repository
	documentRepo reconciliation.DocumentRepository
	audit        AuditRecorder
	token        []byte
	logger       *slog.Logger
}

// NewReconciliationService creates a new reconciliation service expecting token on every callback
func NewReconciliationService(
	db TxRunner,
	paymentRepo payment.Repository,
	documentRepo reconciliation.DocumentRepository,
	audit AuditRecorder,
	token string,
	logger *slog.Logger,
) ReconciliationService {
	return &ReconciliationServiceImpl{
		db:           db,
		paymentRepo:  paymentRepo,
		documentRepo: documentRepo,
		audit:        audit,
		token:        []byte(token),
		logger:       logger,
	}
}

// Authenticate compares the presented token in constant time
func (s *ReconciliationServiceImpl) Authenticate(token string) error {
	if token == "" {
		return reconciliation.ErrUnauthorized
	}
	if len(s.token) == 0 || subtle.ConstantTimeCompare([]byte(token), s.token) != 1 {
		return reconciliation.ErrForbidden
	}
	return nil
}

// Process applies one callback in a single transaction. Each matched code runs
// in its own savepoint so one failing code never aborts the others.
func (s *ReconciliationServiceImpl) Process(ctx context.Context, callback *reconciliation.Callback) (*reconciliation.Result, error) {
	if err := callback.Validate(); err != nil {
		return nil, err
	}

	logger := s.logger.With("document_id", callback.DocumentID.String(), "processing_type", string(callback.ProcessingType))

	var result *reconciliation.Result
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		result = reconciliation.NewResult(callback.DocumentID)

		err := s.documentRepo.WithTx(tx).UpdateStatus(ctx, callback.DocumentID, callback.DocumentStatus(), callback.Message)
		switch {
		case err == nil:
			result.DocumentUpdated = true
		case errors.Is(err, reconciliation.ErrDocumentNotFound{}):
			logger.Warn("Reconciliation target document not found")
			result.Errors = append(result.Errors, reconciliation.CodeError{Error: err.Error()})
		default:
			return err
		}

		// Only a successful callback for an existing document verifies payments;
		// payments.document_id references the document row.
		switch {
		case !callback.Success:
			if len(callback.Matched) > 0 {
				logger.Warn("Ignoring matched codes of a failed callback", "matched", len(callback.Matched))
			}
		case !result.DocumentUpdated:
			logger.Warn("Ignoring matched codes of an unknown document", "matched", len(callback.Matched))
		default:
			for _, m := range callback.Matched {
				if !m.Found {
					result.AddUnresolved(m.ReservationCode)
					continue
				}
				s.applyMatch(ctx, tx, callback, m, result, logger)
			}
		}
		for _, code := range callback.Unmatched {
			if code != "" {
				result.AddUnresolved(code)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to process reconciliation callback", "error", err)
		return nil, err
	}

	logger.Info("Reconciliation callback processed",
		"success", callback.Success,
		"payments_updated", result.PaymentsUpdated,
		"unresolved", len(result.UnresolvedCodes),
		"errors", len(result.Errors),
	)

	for _, id := range result.PaymentIDs {
		s.audit.Record(ctx, audit.NewEvent(audit.EventTypeVerifyPayment, audit.EntityPayment, id, nil, map[string]interface{}{
			"document_id":     callback.DocumentID.String(),
			"processing_type": string(callback.ProcessingType),
		}))
	}
	if len(result.UnresolvedCodes) > 0 {
		s.audit.Record(ctx, audit.NewEvent(audit.EventTypeCodesNotFound, audit.EntityDocument, callback.DocumentID, nil, map[string]interface{}{
			"codes":           result.UnresolvedCodes,
			"processing_type": string(callback.ProcessingType),
		}))
	}
	return result, nil
}

func (s *ReconciliationServiceImpl) applyMatch(
	ctx context.Context,
	tx pgx.Tx,
	callback *reconciliation.Callback,
	m reconciliation.MatchedCode,
	result *reconciliation.Result,
	logger *slog.Logger,
) {
	var (
		updated  *payment.Payment
		notFound bool
	)
	err := persistence.WithSavepoint(ctx, tx, func(sp pgx.Tx) error {
		repo := s.paymentRepo.WithTx(sp)

		p, err := repo.FindActiveByReservationCode(ctx, m.ReservationCode)
		if err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound{}) {
				notFound = true
				return nil
			}
			return err
		}
		if m.PaymentID != nil && *m.PaymentID != p.ID {
			return errors.New("payment_id does not match the payment holding this reservation code")
		}
		if err := repo.MarkVerified(ctx, p.ID, callback.DocumentID); err != nil {
			return err
		}
		updated = p
		return nil
	})

	switch {
	case err != nil:
		logger.Warn("Reconciliation of reservation code failed", "reservation_code", m.ReservationCode, "error", err)
		result.Errors = append(result.Errors, reconciliation.CodeError{ReservationCode: m.ReservationCode, Error: err.Error()})
	case notFound:
		result.AddUnresolved(m.ReservationCode)
	case updated != nil:
		for _, id := range result.PaymentIDs {
			if id == updated.ID {
				return
			}
		}
		result.PaymentsUpdated++
		result.PaymentIDs = append(result.PaymentIDs, updated.ID)
	}
}
