// Package reconciliation models document-processing callbacks that confirm reservation codes.
package reconciliation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

var (
	ErrUnauthorized = errors.New("reconciliation token missing")
	ErrForbidden    = errors.New("reconciliation token invalid")
)

// MatchedCode is a reservation code the extractor found in the document
type MatchedCode struct {
	ReservationCode string     `json:"reservation_code"`
	Found           bool       `json:"found"`
	PaymentID       *uuid.UUID `json:"payment_id,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// Callback is the transient result of processing one document
type Callback struct {
	DocumentID     uuid.UUID             `json:"document_id"`
	ProcessingType shared.ProcessingType `json:"processing_type"`
	Success        bool                  `json:"success"`
	Message        string                `json:"message,omitempty"`
	Matched        []MatchedCode         `json:"matched"`
	Unmatched      []string              `json:"unmatched"`
	Timestamp      time.Time             `json:"timestamp"`
}

// Validate checks the callback shape before any state changes
func (c *Callback) Validate() error {
	if c.DocumentID == uuid.Nil {
		return shared.ErrInvalidInput{Field: "document_id", Reason: "is required"}
	}
	switch c.ProcessingType {
	case shared.ProcessingTypeInvoice, shared.ProcessingTypeBankDocument:
	default:
		return shared.ErrInvalidInput{Field: "processing_type", Reason: "must be INVOICE or BANK_DOCUMENT"}
	}
	for i := range c.Matched {
		c.Matched[i].ReservationCode = strings.TrimSpace(c.Matched[i].ReservationCode)
		if c.Matched[i].ReservationCode == "" {
			return shared.ErrInvalidInput{Field: "matched", Reason: "reservation_code is required"}
		}
	}
	return nil
}

// DocumentStatus derives the document's processing status from the callback outcome
func (c *Callback) DocumentStatus() shared.DocumentStatus {
	if c.Success {
		return shared.DocumentStatusCompleted
	}
	return shared.DocumentStatusError
}

// CodeError is a failure confined to one reservation code
type CodeError struct {
	ReservationCode string `json:"reservation_code"`
	Error           string `json:"error"`
}

// Result summarizes one processed callback
type Result struct {
	DocumentID      uuid.UUID   `json:"document_id"`
	DocumentUpdated bool        `json:"document_updated"`
	PaymentsUpdated int         `json:"payments_updated"`
	PaymentIDs      []uuid.UUID `json:"payment_ids"`
	UnresolvedCodes []string    `json:"unresolved_codes"`
	Errors          []CodeError `json:"errors"`
}

// NewResult returns an empty result with non-nil slices
func NewResult(documentID uuid.UUID) *Result {
	return &Result{
		DocumentID:      documentID,
		PaymentIDs:      []uuid.UUID{},
		UnresolvedCodes: []string{},
		Errors:          []CodeError{},
	}
}

// AddUnresolved appends code once
func (r *Result) AddUnresolved(code string) {
	for _, c := range r.UnresolvedCodes {
		if c == code {
			return
		}
	}
	r.UnresolvedCodes = append(r.UnresolvedCodes, code)
}

// DocumentRepository updates documents targeted by callbacks
type DocumentRepository interface {
	// UpdateStatus returns ErrDocumentNotFound when no row matches
	UpdateStatus(ctx context.Context, id uuid.UUID, status shared.DocumentStatus, message string) error
	WithTx(tx pgx.Tx) DocumentRepository
}

// ErrDocumentNotFound indicates missing document
type ErrDocumentNotFound struct {
	DocumentID uuid.UUID
}

func (e ErrDocumentNotFound) Error() string {
	return "document not found: " + e.DocumentID.String()
}

// Is implements the errors.Is interface for ErrDocumentNotFound
func (e ErrDocumentNotFound) Is(target error) bool {
	t, ok := target.(ErrDocumentNotFound)
	if !ok {
		return false
	}
	if t.DocumentID == uuid.Nil {
		return true
	}
	return e.DocumentID == t.DocumentID
}
