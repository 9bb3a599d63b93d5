// Package audit records operator-facing facts about payments, cards, batches and documents.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event
type EventType string

const (
	EventTypeCreate            EventType = "CREATE"
	EventTypeUpdate            EventType = "UPDATE"
	EventTypeDelete            EventType = "DELETE"
	EventTypeVerifyPayment     EventType = "VERIFY_PAYMENT"
	EventTypeCardRecharge      EventType = "CARD_RECHARGE"
	EventTypeSendEmail         EventType = "SEND_EMAIL"
	EventTypeCodesNotFound     EventType = "CODES_NOT_FOUND"
	EventTypeDispatchCommitGap EventType = "DISPATCH_COMMIT_GAP"
)

// Entity names used on audit events
const (
	EntityPayment  = "payment"
	EntityCard     = "card"
	EntityBatch    = "notification_batch"
	EntityDocument = "document"
)

// Event is one audit trail entry
type Event struct {
	ID        string                 `json:"id" bson:"_id"`
	EventType EventType              `json:"event_type" bson:"event_type"`
	Entity    string                 `json:"entity" bson:"entity"`
	EntityID  string                 `json:"entity_id" bson:"entity_id"`
	UserID    string                 `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
}

// NewEvent stamps an event with a fresh id and the current time
func NewEvent(eventType EventType, entity string, entityID uuid.UUID, userID *uuid.UUID, details map[string]interface{}) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		Entity:    entity,
		EntityID:  entityID.String(),
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if userID != nil {
		e.UserID = userID.String()
	}
	return e
}

// Repository stores and queries audit events
type Repository interface {
	Record(ctx context.Context, event *Event) error

	// ListByEntity returns the newest events first
	ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]*Event, error)
}
