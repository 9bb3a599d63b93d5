package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/api_gateway/middleware"
	"github.com/terra-payments-ledger/internal/domain/analytics"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Create(ctx context.Context, in payment.CreateInput) (*payment.View, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.View), args.Error(1)
}

func (m *MockPaymentService) Update(ctx context.Context, id uuid.UUID, patch payment.Patch, actorID *uuid.UUID) (*payment.View, error) {
	args := m.Called(ctx, id, patch, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.View), args.Error(1)
}

func (m *MockPaymentService) Cancel(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*service.CancelResult, error) {
	args := m.Called(ctx, id, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CancelResult), args.Error(1)
}

func (m *MockPaymentService) SetActive(ctx context.Context, id uuid.UUID, active bool, actorID *uuid.UUID) (*payment.View, error) {
	args := m.Called(ctx, id, active, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.View), args.Error(1)
}

func (m *MockPaymentService) Get(ctx context.Context, id uuid.UUID) (*payment.View, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.View), args.Error(1)
}

func (m *MockPaymentService) List(ctx context.Context, filter payment.ListFilter) ([]*payment.View, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.View), args.Error(1)
}

type MockCardService struct {
	mock.Mock
}

func (m *MockCardService) Get(ctx context.Context, id uuid.UUID) (*funding.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*funding.Card), args.Error(1)
}

func (m *MockCardService) Recharge(ctx context.Context, id uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID) (*funding.Card, error) {
	args := m.Called(ctx, id, amount, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*funding.Card), args.Error(1)
}

type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) Generate(ctx context.Context, senderUserID uuid.UUID, providerID *uuid.UUID) (*service.GenerateResult, error) {
	args := m.Called(ctx, senderUserID, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.GenerateResult), args.Error(1)
}

func (m *MockBatchService) CreateManual(ctx context.Context, in service.ManualBatchInput) (*batch.View, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.View), args.Error(1)
}

func (m *MockBatchService) Update(ctx context.Context, id uuid.UUID, patch batch.Patch) (*batch.View, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.View), args.Error(1)
}

func (m *MockBatchService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBatchService) Get(ctx context.Context, id uuid.UUID) (*batch.View, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.View), args.Error(1)
}

func (m *MockBatchService) List(ctx context.Context, filter batch.ListFilter) ([]*batch.Batch, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.Batch), args.Error(1)
}

type MockDispatchService struct {
	mock.Mock
}

func (m *MockDispatchService) Send(ctx context.Context, id uuid.UUID, edits service.SendEdits, actorID *uuid.UUID) (*service.SendResult, error) {
	args := m.Called(ctx, id, edits, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SendResult), args.Error(1)
}

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Authenticate(token string) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockReconciliationService) Process(ctx context.Context, callback *reconciliation.Callback) (*reconciliation.Result, error) {
	args := m.Called(ctx, callback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]*audit.Event, error) {
	args := m.Called(ctx, entity, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Event), args.Error(1)
}

type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) Dashboard(ctx context.Context) (*analytics.Dashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Dashboard), args.Error(1)
}

func (m *MockAnalyticsService) PaymentsReport(ctx context.Context, filter analytics.ReportFilter) (*analytics.Report, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Report), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.Use(middleware.ActingUser())
	return r
}

// doJSON sends body (marshalled unless it is already a string) and returns the recorder
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// decodeData unmarshals the data envelope of a successful response into out
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) *Response {
	t.Helper()

	var envelope struct {
		Data          json.RawMessage `json:"data"`
		Error         *ErrorInfo      `json:"error"`
		CorrelationID string          `json:"correlation_id"`
		Meta          *MetaInfo       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return &Response{Error: envelope.Error, CorrelationID: envelope.CorrelationID, Meta: envelope.Meta}
}

func ptr[T any](v T) *T {
	return &v
}
