// Package batch models provider notification drafts and their DRAFT to SENT state machine.
package batch

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

const MaxSubjectLength = 255

// Batch is a notification to one provider covering a set of payments
type Batch struct {
	ID            uuid.UUID         `json:"id"`
	ProviderID    uuid.UUID         `json:"provider_id"`
	SelectedEmail string            `json:"selected_email"`
	SenderUserID  uuid.UUID         `json:"sender_user_id"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	State         shared.BatchState `json:"state"`
	PaymentCount  int               `json:"payment_count"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	GeneratedAt   time.Time         `json:"generated_at"`
	SentAt        *time.Time        `json:"sent_at,omitempty"`
}

// NewDraft builds a DRAFT batch; payment count and total are filled by the caller
func NewDraft(providerID, senderUserID uuid.UUID, email, subject, body string) (*Batch, error) {
	b := &Batch{
		ID:            uuid.New(),
		ProviderID:    providerID,
		SelectedEmail: strings.TrimSpace(email),
		SenderUserID:  senderUserID,
		Subject:       strings.TrimSpace(subject),
		Body:          body,
		State:         shared.BatchStateDraft,
		TotalAmount:   decimal.Zero,
		GeneratedAt:   time.Now(),
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Batch) validate() error {
	if b.ProviderID == uuid.Nil {
		return shared.ErrInvalidInput{Field: "provider_id", Reason: "is required"}
	}
	if b.SenderUserID == uuid.Nil {
		return shared.ErrInvalidInput{Field: "sender_user_id", Reason: "is required"}
	}
	if b.SelectedEmail == "" {
		return shared.ErrInvalidInput{Field: "selected_email", Reason: "is required"}
	}
	return validateSubject(b.Subject)
}

// EnsureDraft fails with ErrNotDraft once the batch has been sent
func (b *Batch) EnsureDraft() error {
	if b.State != shared.BatchStateDraft {
		return ErrNotDraft{BatchID: b.ID, State: b.State}
	}
	return nil
}

// Patch holds optional edits to a draft; nil fields are left untouched
type Patch struct {
	SelectedEmail *string
	Subject       *string
	Body          *string
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.SelectedEmail == nil && p.Subject == nil && p.Body == nil
}

// ApplyPatch edits a draft in place
func (b *Batch) ApplyPatch(p Patch) error {
	if err := b.EnsureDraft(); err != nil {
		return err
	}
	if p.Subject != nil {
		subject := strings.TrimSpace(*p.Subject)
		if err := validateSubject(subject); err != nil {
			return err
		}
		b.Subject = subject
	}
	if p.SelectedEmail != nil {
		email := strings.TrimSpace(*p.SelectedEmail)
		if email == "" {
			return shared.ErrInvalidInput{Field: "selected_email", Reason: "must not be empty"}
		}
		b.SelectedEmail = email
	}
	if p.Body != nil {
		b.Body = *p.Body
	}
	return nil
}

// MarkSent moves the batch to SENT. There is no way back to DRAFT.
func (b *Batch) MarkSent(at time.Time) error {
	if err := b.EnsureDraft(); err != nil {
		return err
	}
	b.State = shared.BatchStateSent
	b.SentAt = &at
	return nil
}

// View is a batch with its payments resolved
type View struct {
	*Batch
	ProviderName string      `json:"provider_name"`
	PaymentIDs   []uuid.UUID `json:"payment_ids"`
}

func validateSubject(subject string) error {
	if subject == "" {
		return shared.ErrInvalidInput{Field: "subject", Reason: "is required"}
	}
	if len([]rune(subject)) > MaxSubjectLength {
		return shared.ErrInvalidInput{Field: "subject", Reason: "must be at most 255 characters"}
	}
	return nil
}
