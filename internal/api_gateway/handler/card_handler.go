package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/terra-payments-ledger/internal/api_gateway/middleware"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

// CardHandler handles HTTP requests for funding card operations
type CardHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewCardHandler creates a new card handler
func NewCardHandler(logger *slog.Logger, cardService service.CardService) *CardHandler {
	return &CardHandler{
		cardService: cardService,
		logger:      logger,
	}
}

// GetByID returns a card with its limit and available balance
func (h *CardHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "card")
	if !ok {
		return
	}

	card, err := h.cardService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get_card", err)
		return
	}
	RespondOK(c, mapCardToResponse(card))
}

// Recharge grows both the assigned limit and the available balance
func (h *CardHandler) Recharge(c *gin.Context) {
	id, ok := parseIDParam(c, "card")
	if !ok {
		return
	}

	var req RechargeCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	card, err := h.cardService.Recharge(c.Request.Context(), id, req.Amount, middleware.GetActingUserID(c))
	if err != nil {
		respondError(c, h.logger, "recharge_card", err)
		return
	}
	RespondOK(c, mapCardToResponse(card))
}

func mapCardToResponse(card *funding.Card) CardResponse {
	return CardResponse{
		ID:               card.ID.String(),
		Label:            card.Label(),
		HolderName:       card.HolderName,
		Currency:         string(card.Currency),
		AssignedLimit:    card.AssignedLimit.StringFixed(2),
		AvailableBalance: card.AvailableBalance.StringFixed(2),
		Active:           card.Active,
	}
}
