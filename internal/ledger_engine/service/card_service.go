package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/funding"
)

// CardServiceImpl implements the CardService interface
type CardServiceImpl struct {
	db          TxRunner
	fundingRepo funding.Repository
	ledger      *FundingLedger
	audit       AuditRecorder
	logger      *slog.Logger
}

// NewCardService creates a new card service
func NewCardService(db TxRunner, fundingRepo funding.Repository, ledger *FundingLedger, audit AuditRecorder, logger *slog.Logger) CardService {
	return &CardServiceImpl{
		db:          db,
		fundingRepo: fundingRepo,
		ledger:      ledger,
		audit:       audit,
		logger:      logger,
	}
}

// Get retrieves a card by its ID
func (s *CardServiceImpl) Get(ctx context.Context, id uuid.UUID) (*funding.Card, error) {
	card, err := s.fundingRepo.GetCard(ctx, id)
	if err != nil {
		if !errors.Is(err, funding.ErrCardNotFound{}) {
			s.logger.Error("Failed to get card", "card_id", id.String(), "error", err)
		}
		return nil, err
	}
	return card, nil
}

// Recharge wraps the ledger recharge in its own transaction
func (s *CardServiceImpl) Recharge(ctx context.Context, id uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID) (*funding.Card, error) {
	if !amount.IsPositive() {
		return nil, funding.ErrInvalidAmount
	}

	var card *funding.Card
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		card, err = s.ledger.Recharge(ctx, tx, id, amount)
		return err
	})
	if err != nil {
		s.logger.Warn("Card recharge failed", "card_id", id.String(), "amount", amount.String(), "error", err)
		return nil, err
	}

	s.audit.Record(ctx, audit.NewEvent(audit.EventTypeCardRecharge, audit.EntityCard, id, actorID, map[string]interface{}{
		"amount":            amount.StringFixed(2),
		"assigned_limit":    card.AssignedLimit.StringFixed(2),
		"available_balance": card.AvailableBalance.StringFixed(2),
	}))
	return card, nil
}
