package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/terra-payments-ledger/internal/api_gateway/middleware"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

// PaymentHandler handles HTTP requests for payment operations
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Create registers a payment and debits its funding card
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	in, err := req.toInput()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.paymentService.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, "create_payment", err)
		return
	}
	RespondCreated(c, mapPaymentToResponse(view))
}

// List returns payments matching the query filters
func (h *PaymentHandler) List(c *gin.Context) {
	var query PaymentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := payment.ListFilter{
		Paid:            query.Paid,
		Verified:        query.Verified,
		Notified:        query.Notified,
		Active:          query.Active,
		ReservationCode: query.ReservationCode,
		Limit:           query.Limit,
		Offset:          query.Offset,
	}
	providerID, err := parseOptionalUUID("provider_id", &query.ProviderID)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	filter.ProviderID = providerID

	views, err := h.paymentService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "list_payments", err)
		return
	}

	payments := make([]PaymentResponse, 0, len(views))
	for _, v := range views {
		payments = append(payments, mapPaymentToResponse(v))
	}
	RespondWithPage(c, PaymentListResponse{Payments: payments}, query.Limit, query.Offset, len(payments))
}

// GetByID retrieves a payment with its display fields
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "payment")
	if !ok {
		return
	}

	view, err := h.paymentService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get_payment", err)
		return
	}
	RespondOK(c, mapPaymentToResponse(view))
}

// Update applies a partial patch to a payment
func (h *PaymentHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "payment")
	if !ok {
		return
	}

	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.paymentService.Update(c.Request.Context(), id, patch, middleware.GetActingUserID(c))
	if err != nil {
		respondError(c, h.logger, "update_payment", err)
		return
	}
	RespondOK(c, mapPaymentToResponse(view))
}

// Cancel cancels a payment and restores any card debit
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "payment")
	if !ok {
		return
	}

	result, err := h.paymentService.Cancel(c.Request.Context(), id, middleware.GetActingUserID(c))
	if err != nil {
		respondError(c, h.logger, "cancel_payment", err)
		return
	}
	RespondOK(c, CancelPaymentResponse{
		PaymentID:      result.PaymentID.String(),
		RestoredAmount: result.RestoredAmount.StringFixed(2),
	})
}

// Activate marks a payment active
func (h *PaymentHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate marks a payment inactive
func (h *PaymentHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *PaymentHandler) setActive(c *gin.Context, active bool) {
	id, ok := parseIDParam(c, "payment")
	if !ok {
		return
	}

	view, err := h.paymentService.SetActive(c.Request.Context(), id, active, middleware.GetActingUserID(c))
	if err != nil {
		respondError(c, h.logger, "set_payment_active", err)
		return
	}
	RespondOK(c, mapPaymentToResponse(view))
}

func (r CreatePaymentRequest) toInput() (payment.CreateInput, error) {
	in := payment.CreateInput{
		ReservationCode:   r.ReservationCode,
		Amount:            r.Amount,
		Currency:          shared.Currency(r.Currency),
		FundingType:       shared.FundingType(r.FundingType),
		Description:       r.Description,
		ExpectedDebitDate: r.ExpectedDebitDate,
	}

	var err error
	if in.ProviderID, err = uuid.Parse(r.ProviderID); err != nil {
		return in, shared.ErrInvalidInput{Field: "provider_id", Reason: "must be a UUID"}
	}
	if in.UserID, err = uuid.Parse(r.UserID); err != nil {
		return in, shared.ErrInvalidInput{Field: "user_id", Reason: "must be a UUID"}
	}
	if in.CardID, err = parseOptionalUUID("card_id", r.CardID); err != nil {
		return in, err
	}
	if in.AccountID, err = parseOptionalUUID("account_id", r.AccountID); err != nil {
		return in, err
	}
	if in.ClientIDs, err = parseUUIDs("client_ids", r.ClientIDs); err != nil {
		return in, err
	}
	return in, nil
}

func (r UpdatePaymentRequest) toPatch() (payment.Patch, error) {
	patch := payment.Patch{
		Amount:            r.Amount,
		Description:       r.Description,
		ExpectedDebitDate: r.ExpectedDebitDate,
		Paid:              r.Paid,
		Verified:          r.Verified,
		Notified:          r.Notified,
		Active:            r.Active,
	}
	if r.ClientIDs != nil {
		ids, err := parseUUIDs("client_ids", *r.ClientIDs)
		if err != nil {
			return patch, err
		}
		patch.ClientIDs = &ids
	}
	return patch, nil
}

// mapPaymentToResponse maps a payment view to a payment response DTO
func mapPaymentToResponse(v *payment.View) PaymentResponse {
	resp := PaymentResponse{
		ID:                v.ID.String(),
		ProviderID:        v.ProviderID.String(),
		ProviderName:      v.ProviderName,
		UserID:            v.UserID.String(),
		UserName:          v.UserName,
		ReservationCode:   v.ReservationCode,
		Amount:            v.Amount.StringFixed(2),
		Currency:          string(v.Currency),
		FundingType:       string(v.FundingType),
		FundingLabel:      v.FundingLabel,
		ClientIDs:         make([]string, 0, len(v.ClientIDs)),
		ClientNames:       v.ClientNames,
		Description:       v.Description,
		ExpectedDebitDate: v.ExpectedDebitDate,
		Status:            string(v.Status),
		Paid:              v.Paid,
		Verified:          v.Verified,
		Notified:          v.Notified,
		Active:            v.Active,
		CreatedAt:         v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         v.UpdatedAt.Format(time.RFC3339),
	}
	if resp.ClientNames == nil {
		resp.ClientNames = []string{}
	}
	for _, id := range v.ClientIDs {
		resp.ClientIDs = append(resp.ClientIDs, id.String())
	}
	switch {
	case v.CardID != nil:
		resp.FundingID = v.CardID.String()
	case v.AccountID != nil:
		resp.FundingID = v.AccountID.String()
	}
	if v.DocumentID != nil {
		resp.DocumentID = v.DocumentID.String()
	}
	return resp
}

// parseIDParam reads the :id path parameter, answering 400 when it is not a UUID
func parseIDParam(c *gin.Context, resource string) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid "+resource+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, shared.ErrInvalidInput{Field: field, Reason: "must be a UUID"}
	}
	return &id, nil
}

func parseUUIDs(field string, raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, shared.ErrInvalidInput{Field: field, Reason: "must contain UUIDs"}
		}
		ids = append(ids, id)
	}
	return ids, nil
}
