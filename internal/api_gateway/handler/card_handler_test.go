package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/api_gateway/middleware"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

func cardRouter(svc *MockCardService) *gin.Engine {
	h := NewCardHandler(testLogger(), svc)
	r := setupTestRouter()
	r.GET("/cards/:id", h.GetByID)
	r.POST("/cards/:id/recharge", h.Recharge)
	return r
}

func sampleCard() *funding.Card {
	return &funding.Card{
		ID:               uuid.New(),
		HolderName:       "Terra Canada",
		Last4:            "1234",
		Currency:         shared.CurrencyCAD,
		CardType:         funding.DefaultCardType,
		AssignedLimit:    decimal.NewFromInt(6000),
		AvailableBalance: decimal.NewFromInt(5500),
		Active:           true,
	}
}

func TestCardHandler_GetByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockCardService)
		card := sampleCard()
		svc.On("Get", mock.Anything, card.ID).Return(card, nil)

		rr := doJSON(t, cardRouter(svc), http.MethodGet, "/cards/"+card.ID.String(), nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got CardResponse
		decodeData(t, rr, &got)
		assert.Equal(t, "Visa ****1234", got.Label)
		assert.Equal(t, "6000.00", got.AssignedLimit)
		assert.Equal(t, "5500.00", got.AvailableBalance)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockCardService)
		id := uuid.New()
		svc.On("Get", mock.Anything, id).Return(nil, funding.ErrCardNotFound{CardID: id})

		rr := doJSON(t, cardRouter(svc), http.MethodGet, "/cards/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCardHandler_Recharge(t *testing.T) {
	actor := uuid.New()
	headers := map[string]string{middleware.ActingUserHeader: actor.String()}

	t.Run("Success", func(t *testing.T) {
		svc := new(MockCardService)
		card := sampleCard()
		svc.On("Recharge", mock.Anything, card.ID, mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.NewFromInt(1000))
		}), &actor).Return(card, nil)

		rr := doJSON(t, cardRouter(svc), http.MethodPost, "/cards/"+card.ID.String()+"/recharge",
			`{"amount": 1000}`, headers)

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		svc := new(MockCardService)
		id := uuid.New()
		svc.On("Recharge", mock.Anything, id, mock.Anything, &actor).Return(nil, funding.ErrInvalidAmount)

		rr := doJSON(t, cardRouter(svc), http.MethodPost, "/cards/"+id.String()+"/recharge",
			`{"amount": "-5"}`, headers)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeData(t, rr, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		svc := new(MockCardService)

		rr := doJSON(t, cardRouter(svc), http.MethodPost, "/cards/"+uuid.NewString()+"/recharge",
			`{"amount": "lots"}`, headers)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Recharge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
