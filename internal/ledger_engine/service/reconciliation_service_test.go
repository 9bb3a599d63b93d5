package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

const testReconciliationToken = "s3cret-token"

type reconciliationFixture struct {
	db        *stubTxRunner
	payments  *MockPaymentRepo
	documents *MockDocumentRepo
	audit     *MockAuditRecorder
	svc       ReconciliationService
}

func newReconciliationFixture() *reconciliationFixture {
	f := &reconciliationFixture{
		db:        &stubTxRunner{},
		payments:  &MockPaymentRepo{},
		documents: &MockDocumentRepo{},
		audit:     &MockAuditRecorder{},
	}
	f.svc = NewReconciliationService(f.db, f.payments, f.documents, f.audit, testReconciliationToken, testLogger())
	return f
}

func TestReconciliationService_Authenticate(t *testing.T) {
	svc := newReconciliationFixture().svc

	testCases := []struct {
		name        string
		token       string
		expectedErr error
	}{
		{"valid token", testReconciliationToken, nil},
		{"missing token", "", reconciliation.ErrUnauthorized},
		{"wrong token", "guess", reconciliation.ErrForbidden},
		{"token prefix", testReconciliationToken[:4], reconciliation.ErrForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authenticate(tc.token)
			if tc.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}

	t.Run("unconfigured token refuses everything", func(t *testing.T) {
		svc := NewReconciliationService(&stubTxRunner{}, nil, nil, nil, "", testLogger())
		assert.ErrorIs(t, svc.Authenticate("anything"), reconciliation.ErrForbidden)
	})
}

func invoiceCallback(matched []reconciliation.MatchedCode, unmatched []string) *reconciliation.Callback {
	return &reconciliation.Callback{
		DocumentID:     uuid.New(),
		ProcessingType: shared.ProcessingTypeInvoice,
		Success:        true,
		Message:        "processed",
		Matched:        matched,
		Unmatched:      unmatched,
	}
}

func TestReconciliationService_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("matched code verifies payment and unmatched code is reported", func(t *testing.T) {
		f := newReconciliationFixture()
		p := &payment.Payment{ID: uuid.New(), ReservationCode: "RES-1", Active: true, Paid: true}
		cb := invoiceCallback(
			[]reconciliation.MatchedCode{{ReservationCode: "RES-1", Found: true}},
			[]string{"RES-404"},
		)

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, shared.DocumentStatusCompleted, "processed").Return(nil)
		f.payments.On("FindActiveByReservationCode", ctx, "RES-1").Return(p, nil)
		f.payments.On("MarkVerified", ctx, p.ID, cb.DocumentID).Return(nil)
		f.audit.On("Record", ctx, mock.MatchedBy(func(e *audit.Event) bool {
			return e.EventType == audit.EventTypeVerifyPayment && e.EntityID == p.ID.String()
		})).Return().Once()
		f.audit.On("Record", ctx, mock.MatchedBy(func(e *audit.Event) bool {
			return e.EventType == audit.EventTypeCodesNotFound && e.EntityID == cb.DocumentID.String()
		})).Return().Once()

		result, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.True(t, result.DocumentUpdated)
		assert.Equal(t, 1, result.PaymentsUpdated)
		assert.Equal(t, []uuid.UUID{p.ID}, result.PaymentIDs)
		assert.Equal(t, []string{"RES-404"}, result.UnresolvedCodes)
		assert.Empty(t, result.Errors)
		f.audit.AssertExpectations(t)
	})

	t.Run("replaying a callback yields the same result", func(t *testing.T) {
		f := newReconciliationFixture()
		p := &payment.Payment{ID: uuid.New(), ReservationCode: "RES-1", Active: true}
		cb := invoiceCallback([]reconciliation.MatchedCode{{ReservationCode: "RES-1", Found: true}}, nil)

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, shared.DocumentStatusCompleted, "processed").Return(nil)
		f.payments.On("FindActiveByReservationCode", ctx, "RES-1").Return(p, nil)
		f.payments.On("MarkVerified", ctx, p.ID, cb.DocumentID).Return(nil)
		f.audit.On("Record", ctx, mock.Anything).Return()

		first, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		second, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("code reported twice counts once", func(t *testing.T) {
		f := newReconciliationFixture()
		p := &payment.Payment{ID: uuid.New(), ReservationCode: "RES-1", Active: true}
		cb := invoiceCallback([]reconciliation.MatchedCode{
			{ReservationCode: "RES-1", Found: true},
			{ReservationCode: "RES-1", Found: true},
		}, nil)

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, mock.Anything, mock.Anything).Return(nil)
		f.payments.On("FindActiveByReservationCode", ctx, "RES-1").Return(p, nil)
		f.payments.On("MarkVerified", ctx, p.ID, cb.DocumentID).Return(nil)
		f.audit.On("Record", ctx, mock.Anything).Return()

		result, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, 1, result.PaymentsUpdated)
		f.audit.AssertNumberOfCalls(t, "Record", 1)
	})

	t.Run("failed callback verifies nothing but reports unmatched codes", func(t *testing.T) {
		f := newReconciliationFixture()
		cb := invoiceCallback([]reconciliation.MatchedCode{{ReservationCode: "RES-1", Found: true}}, []string{"RES-404"})
		cb.Success = false
		cb.Message = "extraction failed"

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, shared.DocumentStatusError, "extraction failed").Return(nil)
		f.audit.On("Record", ctx, mock.MatchedBy(func(e *audit.Event) bool {
			return e.EventType == audit.EventTypeCodesNotFound
		})).Return().Once()

		result, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.True(t, result.DocumentUpdated)
		assert.Equal(t, 0, result.PaymentsUpdated)
		assert.Empty(t, result.PaymentIDs)
		assert.Equal(t, []string{"RES-404"}, result.UnresolvedCodes)
		f.payments.AssertNotCalled(t, "FindActiveByReservationCode", mock.Anything, mock.Anything)
		f.payments.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
		f.audit.AssertExpectations(t)
	})

	t.Run("missing document leaves matched payments untouched", func(t *testing.T) {
		f := newReconciliationFixture()
		cb := invoiceCallback([]reconciliation.MatchedCode{{ReservationCode: "RES-1", Found: true}}, nil)

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, shared.DocumentStatusCompleted, "processed").
			Return(reconciliation.ErrDocumentNotFound{DocumentID: cb.DocumentID})

		result, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.False(t, result.DocumentUpdated)
		assert.Equal(t, 0, result.PaymentsUpdated)
		require.Len(t, result.Errors, 1)
		assert.Empty(t, result.Errors[0].ReservationCode)
		f.payments.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown and not-found codes are unresolved", func(t *testing.T) {
		f := newReconciliationFixture()
		cb := invoiceCallback([]reconciliation.MatchedCode{
			{ReservationCode: "RES-GONE", Found: true},
			{ReservationCode: "RES-SKIP", Found: false},
		}, []string{"RES-SKIP", ""})

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, mock.Anything, mock.Anything).Return(nil)
		f.payments.On("FindActiveByReservationCode", ctx, "RES-GONE").Return(nil, payment.ErrPaymentNotFound{})
		f.audit.On("Record", ctx, mock.MatchedBy(func(e *audit.Event) bool {
			return e.EventType == audit.EventTypeCodesNotFound
		})).Return()

		result, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, 0, result.PaymentsUpdated)
		assert.Equal(t, []string{"RES-GONE", "RES-SKIP"}, result.UnresolvedCodes)
		f.payments.AssertNotCalled(t, "FindActiveByReservationCode", mock.Anything, "RES-SKIP")
	})

	t.Run("payment id hint mismatch is a per-code error", func(t *testing.T) {
		f := newReconciliationFixture()
		p := &payment.Payment{ID: uuid.New(), ReservationCode: "RES-1", Active: true}
		other := uuid.New()
		q := &payment.Payment{ID: uuid.New(), ReservationCode: "RES-2", Active: true}
		cb := invoiceCallback([]reconciliation.MatchedCode{
			{ReservationCode: "RES-1", Found: true, PaymentID: &other},
			{ReservationCode: "RES-2", Found: true},
		}, nil)

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, mock.Anything, mock.Anything).Return(nil)
		f.payments.On("FindActiveByReservationCode", ctx, "RES-1").Return(p, nil)
		f.payments.On("FindActiveByReservationCode", ctx, "RES-2").Return(q, nil)
		f.payments.On("MarkVerified", ctx, q.ID, cb.DocumentID).Return(nil)
		f.audit.On("Record", ctx, mock.Anything).Return()

		result, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{q.ID}, result.PaymentIDs)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "RES-1", result.Errors[0].ReservationCode)
		f.payments.AssertNotCalled(t, "MarkVerified", mock.Anything, p.ID, mock.Anything)
	})

	t.Run("storage error on one code leaves the others", func(t *testing.T) {
		f := newReconciliationFixture()
		p := &payment.Payment{ID: uuid.New(), ReservationCode: "RES-1", Active: true}
		cb := invoiceCallback([]reconciliation.MatchedCode{
			{ReservationCode: "RES-BAD", Found: true},
			{ReservationCode: "RES-1", Found: true},
		}, nil)

		f.documents.On("UpdateStatus", ctx, cb.DocumentID, mock.Anything, mock.Anything).Return(nil)
		f.payments.On("FindActiveByReservationCode", ctx, "RES-BAD").Return(nil, errors.New("statement timeout"))
		f.payments.On("FindActiveByReservationCode", ctx, "RES-1").Return(p, nil)
		f.payments.On("MarkVerified", ctx, p.ID, cb.DocumentID).Return(nil)
		f.audit.On("Record", ctx, mock.Anything).Return()

		result, err := f.svc.Process(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, 1, result.PaymentsUpdated)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "RES-BAD", result.Errors[0].ReservationCode)
	})

	t.Run("invalid callback", func(t *testing.T) {
		f := newReconciliationFixture()
		cb := invoiceCallback(nil, nil)
		cb.ProcessingType = "RECEIPT"

		_, err := f.svc.Process(ctx, cb)
		assert.ErrorIs(t, err, shared.ErrInvalidInput{Field: "processing_type"})
		assert.Equal(t, 0, f.db.calls)
	})

	t.Run("document storage failure aborts", func(t *testing.T) {
		f := newReconciliationFixture()
		cb := invoiceCallback(nil, []string{"RES-1"})
		f.documents.On("UpdateStatus", ctx, cb.DocumentID, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := f.svc.Process(ctx, cb)
		assert.EqualError(t, err, "connection reset")
		f.audit.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})
}
