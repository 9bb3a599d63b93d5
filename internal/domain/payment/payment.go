// Package payment holds the payment aggregate and the rules that guard its flags.
package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

const (
	MaxReservationCodeLength = 50
	MaxDescriptionLength     = 500
	DateLayout               = "2006-01-02"
)

// Payment is a payment made to a provider on behalf of clients.
// Exactly one of CardID and AccountID is set, matching FundingType.
type Payment struct {
	ID                uuid.UUID            `json:"id"`
	ProviderID        uuid.UUID            `json:"provider_id"`
	UserID            uuid.UUID            `json:"user_id"`
	ReservationCode   string               `json:"reservation_code"`
	Amount            decimal.Decimal      `json:"amount"`
	Currency          shared.Currency      `json:"currency"`
	FundingType       shared.FundingType   `json:"funding_type"`
	CardID            *uuid.UUID           `json:"card_id,omitempty"`
	AccountID         *uuid.UUID           `json:"account_id,omitempty"`
	ClientIDs         []uuid.UUID          `json:"client_ids"`
	Description       *string              `json:"description,omitempty"`
	ExpectedDebitDate *string              `json:"expected_debit_date,omitempty"`
	Status            shared.PaymentStatus `json:"status"`
	Paid              bool                 `json:"paid"`
	Verified          bool                 `json:"verified"`
	Notified          bool                 `json:"notified"`
	Active            bool                 `json:"active"`
	DocumentID        *uuid.UUID           `json:"document_id,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// View is a payment joined with the display fields callers render
type View struct {
	Payment
	ProviderName string   `json:"provider_name"`
	UserName     string   `json:"user_name"`
	FundingLabel string   `json:"funding_label"`
	ClientNames  []string `json:"client_names"`
}

// CreateInput carries the caller-supplied fields of a new payment
type CreateInput struct {
	ProviderID        uuid.UUID
	UserID            uuid.UUID
	ReservationCode   string
	Amount            decimal.Decimal
	Currency          shared.Currency
	FundingType       shared.FundingType
	CardID            *uuid.UUID
	AccountID         *uuid.UUID
	ClientIDs         []uuid.UUID
	Description       *string
	ExpectedDebitDate *string
}

// Validate checks the input schema. It does not touch storage.
func (in *CreateInput) Validate() error {
	in.ReservationCode = strings.TrimSpace(in.ReservationCode)

	if in.ProviderID == uuid.Nil {
		return shared.ErrInvalidInput{Field: "provider_id", Reason: "is required"}
	}
	if in.UserID == uuid.Nil {
		return shared.ErrInvalidInput{Field: "user_id", Reason: "is required"}
	}
	if err := validateReservationCode(in.ReservationCode); err != nil {
		return err
	}
	if !in.Amount.IsPositive() {
		return shared.ErrInvalidInput{Field: "amount", Reason: "must be greater than 0"}
	}
	if !in.Currency.PaymentCurrency() {
		return shared.ErrInvalidInput{Field: "currency", Reason: "must be USD or CAD"}
	}

	switch in.FundingType {
	case shared.FundingTypeCard:
		if in.CardID == nil || *in.CardID == uuid.Nil {
			return shared.ErrInvalidInput{Field: "card_id", Reason: "is required for CARD funding"}
		}
		if in.AccountID != nil {
			return shared.ErrInvalidInput{Field: "account_id", Reason: "must be empty for CARD funding"}
		}
	case shared.FundingTypeBankAccount:
		if in.AccountID == nil || *in.AccountID == uuid.Nil {
			return shared.ErrInvalidInput{Field: "account_id", Reason: "is required for BANK_ACCOUNT funding"}
		}
		if in.CardID != nil {
			return shared.ErrInvalidInput{Field: "card_id", Reason: "must be empty for BANK_ACCOUNT funding"}
		}
	default:
		return shared.ErrInvalidInput{Field: "funding_type", Reason: "must be CARD or BANK_ACCOUNT"}
	}

	for _, id := range in.ClientIDs {
		if id == uuid.Nil {
			return shared.ErrInvalidInput{Field: "client_ids", Reason: "contains an empty id"}
		}
	}
	if err := validateDescription(in.Description); err != nil {
		return err
	}
	return validateDate(in.ExpectedDebitDate)
}

// New builds a pending, active payment from validated input
func New(in CreateInput) (*Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	clientIDs := in.ClientIDs
	if clientIDs == nil {
		clientIDs = []uuid.UUID{}
	}

	return &Payment{
		ID:                uuid.New(),
		ProviderID:        in.ProviderID,
		UserID:            in.UserID,
		ReservationCode:   in.ReservationCode,
		Amount:            in.Amount.Round(2),
		Currency:          in.Currency,
		FundingType:       in.FundingType,
		CardID:            in.CardID,
		AccountID:         in.AccountID,
		ClientIDs:         clientIDs,
		Description:       in.Description,
		ExpectedDebitDate: in.ExpectedDebitDate,
		Status:            shared.PaymentStatusPending,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Patch holds optional updates; nil fields are left untouched
type Patch struct {
	Amount            *decimal.Decimal
	Description       *string
	ExpectedDebitDate *string
	ClientIDs         *[]uuid.UUID
	Paid              *bool
	Verified          *bool
	Notified          *bool
	Active            *bool
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.Amount == nil && p.Description == nil && p.ExpectedDebitDate == nil &&
		p.ClientIDs == nil && p.Paid == nil && p.Verified == nil && p.Notified == nil && p.Active == nil
}

// OnlyFlags reports whether the patch touches the active or notified flags and nothing else
func (p Patch) OnlyFlags() bool {
	if p.Active == nil && p.Notified == nil {
		return false
	}
	rest := p
	rest.Active, rest.Notified = nil, nil
	return rest.IsEmpty()
}

func (p Patch) paidAfter(current bool) bool {
	if p.Verified != nil && *p.Verified {
		return true
	}
	if p.Paid != nil {
		return *p.Paid
	}
	return current
}

// ApplyPatch mutates the payment, enforcing the verified and card-amount rules
func (p *Payment) ApplyPatch(patch Patch) error {
	if patch.IsEmpty() {
		return shared.ErrInvalidInput{Reason: "no fields to update"}
	}
	if p.Verified && !patch.OnlyFlags() {
		return ErrAlreadyVerified{PaymentID: p.ID}
	}
	if patch.Active != nil && *patch.Active && p.Status == shared.PaymentStatusCancelled {
		return ErrPaymentCancelled{PaymentID: p.ID}
	}

	if patch.Amount != nil {
		if !patch.Amount.IsPositive() {
			return shared.ErrInvalidInput{Field: "amount", Reason: "must be greater than 0"}
		}
		if p.FundingType == shared.FundingTypeCard && !patch.Amount.Equal(p.Amount) {
			return shared.ErrInvalidInput{Field: "amount", Reason: "cannot change on a card-funded payment"}
		}
	}
	if err := validateDescription(patch.Description); err != nil {
		return err
	}
	if err := validateDate(patch.ExpectedDebitDate); err != nil {
		return err
	}
	if patch.Notified != nil && *patch.Notified && !patch.paidAfter(p.Paid) {
		return shared.ErrInvalidInput{Field: "notified", Reason: "an unpaid payment cannot be notified"}
	}
	if patch.ClientIDs != nil {
		for _, id := range *patch.ClientIDs {
			if id == uuid.Nil {
				return shared.ErrInvalidInput{Field: "client_ids", Reason: "contains an empty id"}
			}
		}
	}

	if patch.Amount != nil {
		p.Amount = patch.Amount.Round(2)
	}
	if patch.Description != nil {
		p.Description = patch.Description
	}
	if patch.ExpectedDebitDate != nil {
		p.ExpectedDebitDate = patch.ExpectedDebitDate
	}
	if patch.ClientIDs != nil {
		p.ClientIDs = *patch.ClientIDs
	}
	if patch.Paid != nil {
		p.Paid = *patch.Paid
	}
	if patch.Verified != nil {
		p.Verified = *patch.Verified
		if p.Verified {
			p.Paid = true
		}
	}
	if patch.Notified != nil {
		p.Notified = *patch.Notified
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}

	if p.Status != shared.PaymentStatusCancelled {
		if p.Paid {
			p.Status = shared.PaymentStatusCompleted
		} else {
			p.Status = shared.PaymentStatusPending
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

// Cancel marks the payment cancelled and inactive. It reports whether the
// amount should be credited back to the funding card; a payment already
// cancelled is never credited twice.
func (p *Payment) Cancel(inSentBatch bool) (bool, error) {
	if p.Notified || inSentBatch {
		return false, ErrAlreadyNotified{PaymentID: p.ID}
	}
	if p.Status == shared.PaymentStatusCancelled {
		return false, nil
	}

	p.Status = shared.PaymentStatusCancelled
	p.Active = false
	p.UpdatedAt = time.Now()
	return p.FundingType == shared.FundingTypeCard && p.CardID != nil, nil
}

// SetActive flips the active flag
func (p *Payment) SetActive(active bool) error {
	if p.Verified {
		return ErrAlreadyVerified{PaymentID: p.ID}
	}
	if active && p.Status == shared.PaymentStatusCancelled {
		return ErrPaymentCancelled{PaymentID: p.ID}
	}

	p.Active = active
	p.UpdatedAt = time.Now()
	return nil
}

// Event is the snapshot sent to the system of record and to the payment events topic
type Event struct {
	Action    shared.RecordAction `json:"action"`
	Timestamp time.Time           `json:"timestamp"`
	Payment   *View               `json:"payment"`
}

// NewEvent stamps a snapshot with the current time
func NewEvent(action shared.RecordAction, view *View) *Event {
	return &Event{
		Action:    action,
		Timestamp: time.Now().UTC(),
		Payment:   view,
	}
}

func validateReservationCode(code string) error {
	if code == "" {
		return shared.ErrInvalidInput{Field: "reservation_code", Reason: "is required"}
	}
	if len([]rune(code)) > MaxReservationCodeLength {
		return shared.ErrInvalidInput{Field: "reservation_code", Reason: "must be at most 50 characters"}
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && len([]rune(*description)) > MaxDescriptionLength {
		return shared.ErrInvalidInput{Field: "description", Reason: "must be at most 500 characters"}
	}
	return nil
}

func validateDate(date *string) error {
	if date == nil {
		return nil
	}
	if _, err := time.Parse(DateLayout, *date); err != nil {
		return shared.ErrInvalidInput{Field: "expected_debit_date", Reason: "must be YYYY-MM-DD"}
	}
	return nil
}
