package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

// Message queues a system-of-record notification that could not be delivered on the first try
type Message struct {
	ID            int64               `json:"id"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	Action        shared.RecordAction `json:"action"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"last_error,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage captures the event as sent, including its original timestamp.
// The first failed delivery counts as one attempt.
func NewMessage(event *payment.Event, cause error) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &Message{
		Action:        event.Action,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      1,
		CreatedAt:     now,
		LastAttemptAt: &now,
	}
	if event.Payment != nil {
		msg.PaymentID = event.Payment.ID
	}
	if cause != nil {
		msg.LastError = cause.Error()
	}
	return msg, nil
}

func (m *Message) IncrementAttempts(cause error) {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
	if cause != nil {
		m.LastError = cause.Error()
	}
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// Exhausted reports whether another failure should park the message
func (m *Message) Exhausted(maxAttempts int) bool {
	return m.Attempts >= maxAttempts
}

// Event decodes the queued payment event
func (m *Message) Event() (*payment.Event, error) {
	var event payment.Event
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
