package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/domain/delivery"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/domain/reference"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

// respondError maps a service error onto the HTTP error contract.
// Anything unrecognised is logged and answered with a generic 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var (
		insufficient funding.ErrInsufficientFunds
		mismatch     funding.ErrCurrencyMismatch
		unavailable  delivery.ErrServiceUnavailable
		rejected     delivery.ErrDeliveryRejected
		commitGap    service.ErrDispatchCommitGap
		cancelled    payment.ErrPaymentCancelled
	)

	switch {
	// A commit gap wraps whatever failed after delivery, so it must win over every other mapping.
	case errors.As(err, &commitGap):
		logger.Error("Batch delivered but state not persisted", "op", op, "batch_id", commitGap.BatchID.String(), "error", err)
		RespondWithError(c, http.StatusInternalServerError, "DISPATCH_COMMIT_GAP",
			"Notification was delivered but the batch state could not be saved; contact support before resending")

	case errors.Is(err, payment.ErrPaymentNotFound{}),
		errors.Is(err, batch.ErrBatchNotFound{}),
		errors.Is(err, funding.ErrCardNotFound{}),
		errors.Is(err, funding.ErrAccountNotFound{}),
		errors.Is(err, reference.ErrNotFound{}),
		errors.Is(err, reconciliation.ErrDocumentNotFound{}):
		RespondNotFound(c, err.Error())

	case errors.Is(err, shared.ErrInvalidInput{}),
		errors.Is(err, funding.ErrInvalidAmount),
		errors.Is(err, batch.ErrInvalidSelection{}),
		errors.Is(err, reference.ErrInactive{}),
		errors.Is(err, funding.ErrFundingInactive{}),
		errors.As(err, &mismatch):
		RespondBadRequest(c, err.Error())

	case errors.As(err, &insufficient):
		RespondWithErrorDetails(c, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error(),
			map[string]interface{}{
				"available_balance": insufficient.Available.StringFixed(2),
				"requested_amount":  insufficient.Requested.StringFixed(2),
			})

	case errors.Is(err, payment.ErrAlreadyVerified{}):
		RespondConflict(c, "ALREADY_VERIFIED", err.Error())
	case errors.Is(err, payment.ErrAlreadyNotified{}):
		RespondConflict(c, "ALREADY_NOTIFIED", err.Error())
	case errors.As(err, &cancelled):
		RespondConflict(c, "PAYMENT_CANCELLED", err.Error())
	case errors.Is(err, payment.ErrDuplicateReservationCode{}):
		RespondConflict(c, "DUPLICATE_RESERVATION_CODE", err.Error())
	case errors.Is(err, batch.ErrNotDraft{}):
		RespondConflict(c, "NOT_DRAFT", err.Error())

	case errors.Is(err, reconciliation.ErrUnauthorized):
		RespondUnauthorized(c, "")
	case errors.Is(err, reconciliation.ErrForbidden):
		RespondForbidden(c, "")

	case errors.As(err, &unavailable):
		logger.Warn("Delivery service unavailable", "op", op, "error", err)
		RespondServiceUnavailable(c, "Notification delivery service is unavailable")
	case errors.As(err, &rejected):
		RespondBadGateway(c, rejected.Error())

	default:
		logger.Error("Request failed", "op", op, "error", err)
		RespondInternalError(c)
	}
}
