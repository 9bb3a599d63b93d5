package producers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/config"
)

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulPublishToDLQ", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{
			logger:      testLogger(),
			writer:      mockWriter,
			dlqTopic:    "reconciliation_callbacks_dlq",
			sourceTopic: "reconciliation_callbacks",
		}

		original := []byte(`{"document_id":"not-a-uuid"}`)
		reason := "invalid callback payload"

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "doc-1" {
				return false
			}
			var dl DeadLetter
			if err := json.Unmarshal(msgs[0].Value, &dl); err != nil {
				return false
			}
			return dl.OriginalValue == string(original) &&
				dl.SourceTopic == "reconciliation_callbacks" &&
				dl.DLQReason == reason &&
				dl.Timestamp != "" &&
				len(msgs[0].Headers) == 1 && string(msgs[0].Headers[0].Value) == reason
		})).Return(nil).Once()

		require.NoError(t, producer.PublishToDLQ(ctx, "doc-1", original, reason))
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{logger: testLogger(), writer: mockWriter, dlqTopic: "dlq"}
		writerError := errors.New("kafka DLQ write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := producer.PublishToDLQ(ctx, "k", []byte("x"), "r")
		assert.ErrorIs(t, err, writerError)
		mockWriter.AssertExpectations(t)
	})

	t.Run("NilProducerIsDisabled", func(t *testing.T) {
		var producer *DLQProducer
		err := producer.PublishToDLQ(ctx, "k", []byte("x"), "r")
		assert.ErrorIs(t, err, ErrDLQDisabled)
		assert.NoError(t, producer.Close())
	})
}

func TestDLQProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := &DLQProducer{logger: testLogger(), writer: mockWriter, dlqTopic: "dlq"}

	mockWriter.On("Close").Return(nil).Once()
	require.NoError(t, producer.Close())
	mockWriter.AssertExpectations(t)
}

func TestNewDLQProducer_DisabledWithoutTopic(t *testing.T) {
	producer, err := NewDLQProducer(context.Background(), testLogger(), &config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, producer)
}
