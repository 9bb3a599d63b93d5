package producers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestPaymentEventProducer_Publish(t *testing.T) {
	ctx := context.Background()
	topic := "payment_events"

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &PaymentEventProducer{logger: testLogger(), writer: mockWriter, topic: topic}

		view := &payment.View{Payment: payment.Payment{
			ID:              uuid.New(),
			ReservationCode: "RES-9",
			Amount:          decimal.RequireFromString("99.90"),
			Currency:        shared.CurrencyCAD,
		}}
		event := payment.NewEvent(shared.RecordActionCreate, view)
		key := view.ID.String()

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != key {
				return false
			}
			var decoded payment.Event
			if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
				return false
			}
			return decoded.Action == shared.RecordActionCreate && decoded.Payment.ReservationCode == "RES-9"
		})).Return(nil).Once()

		require.NoError(t, producer.Publish(ctx, key, event))
		mockWriter.AssertExpectations(t)
	})

	t.Run("PublishReturnsErrorOnWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &PaymentEventProducer{logger: testLogger(), writer: mockWriter, topic: topic}
		writerError := errors.New("kafka write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := producer.Publish(ctx, "key", map[string]string{"data": "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, writerError)
		mockWriter.AssertExpectations(t)
	})

	t.Run("UnencodableValue", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &PaymentEventProducer{logger: testLogger(), writer: mockWriter, topic: topic}

		err := producer.Publish(ctx, "key", make(chan int))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to marshal payment event")
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})
}

func TestPaymentEventProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := &PaymentEventProducer{logger: testLogger(), writer: mockWriter, topic: "payment_events"}
	closeError := errors.New("kafka close error")

	mockWriter.On("Close").Return(closeError).Once()

	err := producer.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, closeError)
	mockWriter.AssertExpectations(t)
}

func TestNewPaymentEventProducer_RequiresTopic(t *testing.T) {
	_, err := NewPaymentEventProducer(context.Background(), testLogger(), &config.KafkaConfig{Brokers: "localhost:9092"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment events topic is not configured")
}

var _ KafkaWriter = (*MockKafkaWriter)(nil)
