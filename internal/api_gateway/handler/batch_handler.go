package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/terra-payments-ledger/internal/api_gateway/middleware"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

const batchDateLayout = "2006-01-02"

// BatchHandler handles HTTP requests for notification batches
type BatchHandler struct {
	batchService    service.BatchService
	dispatchService service.DispatchService
	logger          *slog.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(logger *slog.Logger, batchService service.BatchService, dispatchService service.DispatchService) *BatchHandler {
	return &BatchHandler{
		batchService:    batchService,
		dispatchService: dispatchService,
		logger:          logger,
	}
}

// Generate drafts one batch per provider with eligible payments
func (h *BatchHandler) Generate(c *gin.Context) {
	var req GenerateBatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	senderID, err := uuid.Parse(req.SenderUserID)
	if err != nil {
		RespondBadRequest(c, "Invalid sender_user_id")
		return
	}
	providerID, err := parseOptionalUUID("provider_id", req.ProviderID)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.batchService.Generate(c.Request.Context(), senderID, providerID)
	if err != nil {
		respondError(c, h.logger, "generate_batches", err)
		return
	}

	resp := GenerateBatchesResponse{Count: result.Count, Batches: make([]BatchResponse, 0, len(result.Batches))}
	for _, v := range result.Batches {
		resp.Batches = append(resp.Batches, mapBatchViewToResponse(v))
	}
	RespondCreated(c, resp)
}

// Create assembles a batch from operator-chosen payments
func (h *BatchHandler) Create(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	in := service.ManualBatchInput{
		SelectedEmail: req.SelectedEmail,
		Subject:       req.Subject,
		Body:          req.Body,
	}
	var err error
	if in.ProviderID, err = uuid.Parse(req.ProviderID); err != nil {
		RespondBadRequest(c, "Invalid provider_id")
		return
	}
	if in.SenderUserID, err = uuid.Parse(req.SenderUserID); err != nil {
		RespondBadRequest(c, "Invalid sender_user_id")
		return
	}
	if in.PaymentIDs, err = parseUUIDs("payment_ids", req.PaymentIDs); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.batchService.CreateManual(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, "create_batch", err)
		return
	}
	RespondCreated(c, mapBatchViewToResponse(view))
}

// List returns batch headers matching the query filters
func (h *BatchHandler) List(c *gin.Context) {
	var query BatchListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := batch.ListFilter{Limit: query.Limit, Offset: query.Offset}
	if query.State != "" {
		state := shared.BatchState(query.State)
		filter.State = &state
	}
	var err error
	if filter.ProviderID, err = parseOptionalUUID("provider_id", &query.ProviderID); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if filter.DateFrom, err = parseOptionalDate("date_from", query.DateFrom); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if filter.DateTo, err = parseOptionalDate("date_to", query.DateTo); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	batches, err := h.batchService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "list_batches", err)
		return
	}

	resp := BatchListResponse{Batches: make([]BatchResponse, 0, len(batches))}
	for _, b := range batches {
		resp.Batches = append(resp.Batches, mapBatchToResponse(b))
	}
	RespondWithPage(c, resp, query.Limit, query.Offset, len(resp.Batches))
}

// GetByID returns a batch with its payment ids
func (h *BatchHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "batch")
	if !ok {
		return
	}

	view, err := h.batchService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get_batch", err)
		return
	}
	RespondOK(c, mapBatchViewToResponse(view))
}

// Update edits a draft
func (h *BatchHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "batch")
	if !ok {
		return
	}

	var req UpdateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.batchService.Update(c.Request.Context(), id, batch.Patch{
		SelectedEmail: req.SelectedEmail,
		Subject:       req.Subject,
		Body:          req.Body,
	})
	if err != nil {
		respondError(c, h.logger, "update_batch", err)
		return
	}
	RespondOK(c, mapBatchViewToResponse(view))
}

// Delete removes a draft and its payment links
func (h *BatchHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "batch")
	if !ok {
		return
	}

	if err := h.batchService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "delete_batch", err)
		return
	}
	RespondNoContent(c)
}

// Send delivers a draft to its provider. The body is optional.
func (h *BatchHandler) Send(c *gin.Context) {
	id, ok := parseIDParam(c, "batch")
	if !ok {
		return
	}

	var req SendBatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	result, err := h.dispatchService.Send(c.Request.Context(), id,
		service.SendEdits{Subject: req.Subject, Body: req.Body},
		middleware.GetActingUserID(c),
	)
	if err != nil {
		respondError(c, h.logger, "send_batch", err)
		return
	}

	resp := SendBatchResponse{
		Batch:            mapBatchViewToResponse(result.Batch),
		PaymentsNotified: result.PaymentsNotified,
	}
	if result.Ack != nil {
		resp.DeliveryMessage = result.Ack.Message
	}
	RespondOK(c, resp)
}

func mapBatchToResponse(b *batch.Batch) BatchResponse {
	resp := BatchResponse{
		ID:            b.ID.String(),
		ProviderID:    b.ProviderID.String(),
		SelectedEmail: b.SelectedEmail,
		SenderUserID:  b.SenderUserID.String(),
		Subject:       b.Subject,
		Body:          b.Body,
		State:         string(b.State),
		PaymentCount:  b.PaymentCount,
		TotalAmount:   b.TotalAmount.StringFixed(2),
		GeneratedAt:   b.GeneratedAt.Format(time.RFC3339),
	}
	if b.SentAt != nil {
		resp.SentAt = b.SentAt.Format(time.RFC3339)
	}
	return resp
}

func mapBatchViewToResponse(v *batch.View) BatchResponse {
	resp := mapBatchToResponse(v.Batch)
	resp.ProviderName = v.ProviderName
	resp.PaymentIDs = make([]string, 0, len(v.PaymentIDs))
	for _, id := range v.PaymentIDs {
		resp.PaymentIDs = append(resp.PaymentIDs, id.String())
	}
	return resp
}

func parseOptionalDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(batchDateLayout, raw)
	if err != nil {
		return nil, shared.ErrInvalidInput{Field: field, Reason: "must be YYYY-MM-DD"}
	}
	return &t, nil
}
