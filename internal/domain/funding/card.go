// Package funding models the sources that pay for a payment. Only cards carry a balance.
package funding

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

const DefaultCardType = "Visa"

var (
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Card is a credit-card-like funding source with an assigned limit and an available balance.
// 0 <= AvailableBalance <= AssignedLimit holds after every operation below.
type Card struct {
	ID               uuid.UUID       `json:"id"`
	HolderName       string          `json:"holder_name"`
	Last4            string          `json:"last4"`
	Currency         shared.Currency `json:"currency"`
	CardType         string          `json:"card_type"`
	AssignedLimit    decimal.Decimal `json:"assigned_limit"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Debit subtracts amount from the available balance
func (c *Card) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if c.AvailableBalance.LessThan(amount) {
		return ErrInsufficientFunds{CardID: c.ID, Available: c.AvailableBalance, Requested: amount}
	}

	c.AvailableBalance = c.AvailableBalance.Sub(amount)
	c.UpdatedAt = time.Now()
	return nil
}

// Credit adds amount back, never past the assigned limit. It returns what was actually credited.
func (c *Card) Credit(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	next := decimal.Min(c.AvailableBalance.Add(amount), c.AssignedLimit)
	credited := next.Sub(c.AvailableBalance)
	c.AvailableBalance = next
	c.UpdatedAt = time.Now()
	return credited, nil
}

// Recharge grows both the limit and the balance by amount
func (c *Card) Recharge(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	c.AssignedLimit = c.AssignedLimit.Add(amount)
	c.AvailableBalance = c.AvailableBalance.Add(amount)
	c.UpdatedAt = time.Now()
	return nil
}

// Label renders the card for display, e.g. "Visa ****1234"
func (c *Card) Label() string {
	cardType := c.CardType
	if cardType == "" {
		cardType = DefaultCardType
	}
	return cardType + " ****" + c.Last4
}

// BankAccount is a funding source without a balance
type BankAccount struct {
	ID         uuid.UUID       `json:"id"`
	HolderName string          `json:"holder_name"`
	BankName   string          `json:"bank_name"`
	Last4      string          `json:"last4"`
	Currency   shared.Currency `json:"currency"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Label renders the account for display, e.g. "BBVA ****9876"
func (a *BankAccount) Label() string {
	return a.BankName + " ****" + a.Last4
}
