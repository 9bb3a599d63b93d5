package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/funding"
)

// FundingLedger is the only writer of card balances. Every method runs inside the
// caller's transaction and locks the card row first, so concurrent changes to one
// card serialize.
type FundingLedger struct {
	fundingRepo funding.Repository
	logger      *slog.Logger
}

// NewFundingLedger creates a new FundingLedger
func NewFundingLedger(fundingRepo funding.Repository, logger *slog.Logger) *FundingLedger {
	return &FundingLedger{
		fundingRepo: fundingRepo,
		logger:      logger,
	}
}

// Debit subtracts amount from the card's available balance.
// Returns funding.ErrInsufficientFunds carrying the current balance when it does not cover amount.
func (l *FundingLedger) Debit(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, amount decimal.Decimal) (*funding.Card, error) {
	return l.apply(ctx, tx, cardID, "debit", func(card *funding.Card) error {
		if err := card.Debit(amount); err != nil {
			l.logger.Warn("Card debit refused", "card_id", cardID.String(), "amount", amount.String(), "available", card.AvailableBalance.String(), "error", err)
			return err
		}
		return nil
	})
}

// Credit adds amount back to the card, capped at the assigned limit, and returns
// what was actually credited.
func (l *FundingLedger) Credit(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var credited decimal.Decimal
	_, err := l.apply(ctx, tx, cardID, "credit", func(card *funding.Card) error {
		var err error
		credited, err = card.Credit(amount)
		if err == nil && credited.LessThan(amount) {
			l.logger.Warn("Card credit capped at assigned limit", "card_id", cardID.String(), "requested", amount.String(), "credited", credited.String())
		}
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return credited, nil
}

// Recharge grows both the assigned limit and the available balance
func (l *FundingLedger) Recharge(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, amount decimal.Decimal) (*funding.Card, error) {
	if !amount.IsPositive() {
		return nil, funding.ErrInvalidAmount
	}
	return l.apply(ctx, tx, cardID, "recharge", func(card *funding.Card) error {
		return card.Recharge(amount)
	})
}

func (l *FundingLedger) apply(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, op string, change func(card *funding.Card) error) (*funding.Card, error) {
	repo := l.fundingRepo.WithTx(tx)

	card, err := repo.LockCardForUpdate(ctx, cardID)
	if err != nil {
		if errors.Is(err, funding.ErrCardNotFound{CardID: cardID}) {
			l.logger.Warn("Card not found for lock", "card_id", cardID.String(), "op", op)
			return nil, err
		}
		l.logger.Error("Failed to lock card", "card_id", cardID.String(), "op", op, "error", err)
		return nil, fmt.Errorf("failed to lock card %s: %w", cardID.String(), err)
	}

	if err := change(card); err != nil {
		return nil, err
	}

	if err := repo.UpdateCardBalance(ctx, card); err != nil {
		l.logger.Error("Failed to persist card balance", "card_id", cardID.String(), "op", op, "error", err)
		return nil, err
	}

	l.logger.Info("Card balance updated", "card_id", cardID.String(), "op", op,
		"assigned_limit", card.AssignedLimit.String(), "available_balance", card.AvailableBalance.String())
	return card, nil
}
