package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/api_gateway/middleware"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/shared"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

func paymentRouter(svc *MockPaymentService) *gin.Engine {
	h := NewPaymentHandler(testLogger(), svc)
	r := setupTestRouter()
	r.POST("/payments", h.Create)
	r.GET("/payments", h.List)
	r.GET("/payments/:id", h.GetByID)
	r.PATCH("/payments/:id", h.Update)
	r.DELETE("/payments/:id", h.Cancel)
	r.POST("/payments/:id/activate", h.Activate)
	r.POST("/payments/:id/deactivate", h.Deactivate)
	return r
}

func samplePaymentView() *payment.View {
	cardID := uuid.New()
	now := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
	return &payment.View{
		Payment: payment.Payment{
			ID:              uuid.New(),
			ProviderID:      uuid.New(),
			UserID:          uuid.New(),
			ReservationCode: "RES-001",
			Amount:          decimal.RequireFromString("150.50"),
			Currency:        shared.CurrencyUSD,
			FundingType:     shared.FundingTypeCard,
			CardID:          &cardID,
			ClientIDs:       []uuid.UUID{uuid.New()},
			Status:          shared.PaymentStatusPending,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		ProviderName: "Hotel Maya",
		UserName:     "Ana Ruiz",
		FundingLabel: "Visa ****1234",
		ClientNames:  []string{"Grupo Sol"},
	}
}

func TestPaymentHandler_Create(t *testing.T) {
	view := samplePaymentView()
	validBody := map[string]interface{}{
		"provider_id":      view.ProviderID.String(),
		"user_id":          view.UserID.String(),
		"reservation_code": "RES-001",
		"amount":           "150.50",
		"currency":         "USD",
		"funding_type":     "CARD",
		"card_id":          view.CardID.String(),
		"client_ids":       []string{view.ClientIDs[0].String()},
	}

	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Create", mock.Anything, mock.MatchedBy(func(in payment.CreateInput) bool {
			return in.ProviderID == view.ProviderID &&
				in.Amount.Equal(decimal.RequireFromString("150.50")) &&
				in.FundingType == shared.FundingTypeCard &&
				in.CardID != nil && *in.CardID == *view.CardID &&
				in.AccountID == nil &&
				len(in.ClientIDs) == 1
		})).Return(view, nil)

		rr := doJSON(t, paymentRouter(svc), http.MethodPost, "/payments", validBody, nil)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var got PaymentResponse
		resp := decodeData(t, rr, &got)
		assert.Nil(t, resp.Error)
		assert.NotEmpty(t, resp.CorrelationID)
		assert.Equal(t, view.ID.String(), got.ID)
		assert.Equal(t, "150.50", got.Amount)
		assert.Equal(t, view.CardID.String(), got.FundingID)
		assert.Equal(t, "Visa ****1234", got.FundingLabel)
		assert.Equal(t, []string{"Grupo Sol"}, got.ClientNames)
		assert.Equal(t, "2025-01-15T10:00:00Z", got.CreatedAt)
		svc.AssertExpectations(t)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		svc := new(MockPaymentService)
		body := map[string]interface{}{}
		for k, v := range validBody {
			body[k] = v
		}
		body["currency"] = "EUR"

		rr := doJSON(t, paymentRouter(svc), http.MethodPost, "/payments", body, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "insufficient funds",
			serviceErr: funding.ErrInsufficientFunds{
				CardID:    *view.CardID,
				Available: decimal.NewFromInt(100),
				Requested: decimal.RequireFromString("150.50"),
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "INSUFFICIENT_FUNDS",
		},
		{
			name:           "duplicate reservation code",
			serviceErr:     payment.ErrDuplicateReservationCode{Code: "RES-001"},
			expectedStatus: http.StatusConflict,
			expectedCode:   "DUPLICATE_RESERVATION_CODE",
		},
		{
			name:           "validation failure",
			serviceErr:     shared.ErrInvalidInput{Field: "client_ids", Reason: "unknown client"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:           "inactive card",
			serviceErr:     funding.ErrFundingInactive{Type: shared.FundingTypeCard, ID: *view.CardID},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:           "missing card",
			serviceErr:     funding.ErrCardNotFound{CardID: *view.CardID},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("Create", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)

			rr := doJSON(t, paymentRouter(svc), http.MethodPost, "/payments", validBody, nil)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			resp := decodeData(t, rr, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			if tt.expectedCode == "INSUFFICIENT_FUNDS" {
				assert.Equal(t, "100.00", resp.Error.Details["available_balance"])
			}
		})
	}
}

func TestPaymentHandler_GetByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		view := samplePaymentView()
		svc.On("Get", mock.Anything, view.ID).Return(view, nil)

		rr := doJSON(t, paymentRouter(svc), http.MethodGet, "/payments/"+view.ID.String(), nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got PaymentResponse
		decodeData(t, rr, &got)
		assert.Equal(t, "RES-001", got.ReservationCode)
		assert.Equal(t, "Hotel Maya", got.ProviderName)
	})

	t.Run("InvalidID", func(t *testing.T) {
		svc := new(MockPaymentService)

		rr := doJSON(t, paymentRouter(svc), http.MethodGet, "/payments/not-a-uuid", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockPaymentService)
		id := uuid.New()
		svc.On("Get", mock.Anything, id).Return(nil, payment.ErrPaymentNotFound{PaymentID: id})

		rr := doJSON(t, paymentRouter(svc), http.MethodGet, "/payments/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPaymentHandler_List(t *testing.T) {
	svc := new(MockPaymentService)
	view := samplePaymentView()
	svc.On("List", mock.Anything, mock.MatchedBy(func(f payment.ListFilter) bool {
		return f.Paid != nil && *f.Paid &&
			f.Verified == nil &&
			f.ProviderID != nil && *f.ProviderID == view.ProviderID &&
			f.Limit == 10 && f.Offset == 20
	})).Return([]*payment.View{view}, nil)

	path := "/payments?paid=true&limit=10&offset=20&provider_id=" + view.ProviderID.String()
	rr := doJSON(t, paymentRouter(svc), http.MethodGet, path, nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got PaymentListResponse
	resp := decodeData(t, rr, &got)
	require.Len(t, got.Payments, 1)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, MetaInfo{Limit: 10, Offset: 20, Count: 1}, *resp.Meta)
	svc.AssertExpectations(t)

	t.Run("LimitOutOfRange", func(t *testing.T) {
		svc := new(MockPaymentService)

		rr := doJSON(t, paymentRouter(svc), http.MethodGet, "/payments?limit=1000", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_Update(t *testing.T) {
	actor := uuid.New()
	headers := map[string]string{middleware.ActingUserHeader: actor.String()}

	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		view := samplePaymentView()
		view.Paid = true
		svc.On("Update", mock.Anything, view.ID, mock.MatchedBy(func(p payment.Patch) bool {
			return p.Paid != nil && *p.Paid && p.Amount == nil && p.ClientIDs == nil
		}), &actor).Return(view, nil)

		rr := doJSON(t, paymentRouter(svc), http.MethodPatch, "/payments/"+view.ID.String(),
			map[string]interface{}{"paid": true}, headers)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got PaymentResponse
		decodeData(t, rr, &got)
		assert.True(t, got.Paid)
		svc.AssertExpectations(t)
	})

	t.Run("NotifiedFlag", func(t *testing.T) {
		svc := new(MockPaymentService)
		view := samplePaymentView()
		view.Paid, view.Notified = true, true
		svc.On("Update", mock.Anything, view.ID, mock.MatchedBy(func(p payment.Patch) bool {
			return p.Notified != nil && *p.Notified && p.OnlyFlags()
		}), &actor).Return(view, nil)

		rr := doJSON(t, paymentRouter(svc), http.MethodPatch, "/payments/"+view.ID.String(),
			map[string]interface{}{"notified": true}, headers)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got PaymentResponse
		decodeData(t, rr, &got)
		assert.True(t, got.Notified)
		svc.AssertExpectations(t)
	})

	t.Run("AlreadyVerified", func(t *testing.T) {
		svc := new(MockPaymentService)
		id := uuid.New()
		svc.On("Update", mock.Anything, id, mock.Anything, &actor).Return(nil, payment.ErrAlreadyVerified{PaymentID: id})

		rr := doJSON(t, paymentRouter(svc), http.MethodPatch, "/payments/"+id.String(),
			map[string]interface{}{"description": "late fee"}, headers)

		assert.Equal(t, http.StatusConflict, rr.Code)
		resp := decodeData(t, rr, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "ALREADY_VERIFIED", resp.Error.Code)
	})

	t.Run("InvalidClientID", func(t *testing.T) {
		svc := new(MockPaymentService)
		id := uuid.New()

		rr := doJSON(t, paymentRouter(svc), http.MethodPatch, "/payments/"+id.String(),
			map[string]interface{}{"client_ids": []string{"nope"}}, headers)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_Cancel(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		id := uuid.New()
		svc.On("Cancel", mock.Anything, id, (*uuid.UUID)(nil)).Return(&service.CancelResult{
			PaymentID:      id,
			RestoredAmount: decimal.RequireFromString("150.5"),
		}, nil)

		rr := doJSON(t, paymentRouter(svc), http.MethodDelete, "/payments/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got CancelPaymentResponse
		decodeData(t, rr, &got)
		assert.Equal(t, id.String(), got.PaymentID)
		assert.Equal(t, "150.50", got.RestoredAmount)
	})

	t.Run("AlreadyNotified", func(t *testing.T) {
		svc := new(MockPaymentService)
		id := uuid.New()
		svc.On("Cancel", mock.Anything, id, (*uuid.UUID)(nil)).Return(nil, payment.ErrAlreadyNotified{PaymentID: id})

		rr := doJSON(t, paymentRouter(svc), http.MethodDelete, "/payments/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusConflict, rr.Code)
		resp := decodeData(t, rr, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "ALREADY_NOTIFIED", resp.Error.Code)
	})
}

func TestPaymentHandler_SetActive(t *testing.T) {
	t.Run("Deactivate", func(t *testing.T) {
		svc := new(MockPaymentService)
		view := samplePaymentView()
		view.Active = false
		svc.On("SetActive", mock.Anything, view.ID, false, (*uuid.UUID)(nil)).Return(view, nil)

		rr := doJSON(t, paymentRouter(svc), http.MethodPost, "/payments/"+view.ID.String()+"/deactivate", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got PaymentResponse
		decodeData(t, rr, &got)
		assert.False(t, got.Active)
	})

	t.Run("ActivateCancelled", func(t *testing.T) {
		svc := new(MockPaymentService)
		id := uuid.New()
		svc.On("SetActive", mock.Anything, id, true, (*uuid.UUID)(nil)).Return(nil, payment.ErrPaymentCancelled{PaymentID: id})

		rr := doJSON(t, paymentRouter(svc), http.MethodPost, "/payments/"+id.String()+"/activate", nil, nil)

		assert.Equal(t, http.StatusConflict, rr.Code)
		resp := decodeData(t, rr, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "PAYMENT_CANCELLED", resp.Error.Code)
	})
}
