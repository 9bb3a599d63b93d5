// Package delivery describes the external boundary that transports notification batches.
package delivery

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// Provider identifies the notified provider to the delivery boundary
type Provider struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// EmailInfo is the message part of a dispatch command
type EmailInfo struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Provider  Provider  `json:"provider"`
	UserID    uuid.UUID `json:"user_id"`
}

// PaymentLine is one payment listed in a dispatch command
type PaymentLine struct {
	ID              uuid.UUID `json:"id"`
	ReservationCode string    `json:"reservation_code"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	ClientNames     []string  `json:"client_names"`
	Description     string    `json:"description,omitempty"`
}

// Request is the dispatch command sent to the delivery boundary
type Request struct {
	EmailInfo EmailInfo     `json:"email_info"`
	Payments  []PaymentLine `json:"payments"`
}

// Ack is the application-level envelope returned by the delivery boundary
type Ack struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Gateway sends a dispatch command and waits for its acknowledgement.
// A nil error means the boundary confirmed delivery.
type Gateway interface {
	Deliver(ctx context.Context, req *Request) (*Ack, error)
}

// ErrServiceUnavailable indicates the delivery boundary could not be reached
type ErrServiceUnavailable struct {
	Cause error
}

func (e ErrServiceUnavailable) Error() string {
	if e.Cause == nil {
		return "delivery service unavailable"
	}
	return "delivery service unavailable: " + e.Cause.Error()
}

func (e ErrServiceUnavailable) Unwrap() error {
	return e.Cause
}

// ErrDeliveryRejected carries the boundary's negative answer verbatim
type ErrDeliveryRejected struct {
	Message    string
	StatusCode int
}

func (e ErrDeliveryRejected) Error() string {
	if e.Message == "" {
		return "delivery rejected (status " + strconv.Itoa(e.StatusCode) + ")"
	}
	return e.Message
}
