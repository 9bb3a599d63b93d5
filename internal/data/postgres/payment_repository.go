package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

const uniqueViolation = "23505"

const paymentColumns = `
	p.id, p.provider_id, p.user_id, p.reservation_code, p.amount, p.currency, p.funding_type,
	p.card_id, p.account_id, p.description, to_char(p.expected_debit_date, 'YYYY-MM-DD'),
	p.status, p.is_paid, p.is_verified, p.is_notified, p.active, p.document_id,
	p.created_at, p.updated_at,
	ARRAY(SELECT pc.client_id::text FROM payment_clients pc WHERE pc.payment_id = p.id ORDER BY pc.client_id)`

const paymentSelect = `SELECT ` + paymentColumns + ` FROM payments p`

const paymentViewSelect = `SELECT ` + paymentColumns + `,
	pr.name, u.name,
	COALESCE(CASE WHEN p.funding_type = 'CARD' THEN c.card_type || ' ****' || c.last4
	              ELSE b.bank_name || ' ****' || b.last4 END, ''),
	ARRAY(SELECT cl.name FROM payment_clients pc JOIN clients cl ON cl.id = pc.client_id
	      WHERE pc.payment_id = p.id ORDER BY cl.name)
	FROM payments p
	JOIN providers pr ON pr.id = p.provider_id
	JOIN users u ON u.id = p.user_id
	LEFT JOIN cards c ON c.id = p.card_id
	LEFT JOIN bank_accounts b ON b.id = p.account_id`

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment repository
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *PaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &PaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores the payment row and one payment_clients row per client.
// The partial unique index on active reservation codes surfaces as ErrDuplicateReservationCode.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (id, provider_id, user_id, reservation_code, amount, currency, funding_type,
			card_id, account_id, description, expected_debit_date, status, is_paid, is_verified,
			is_notified, active, document_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::date, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.ProviderID,
		p.UserID,
		p.ReservationCode,
		p.Amount,
		p.Currency,
		p.FundingType,
		p.CardID,
		p.AccountID,
		p.Description,
		p.ExpectedDebitDate,
		p.Status,
		p.Paid,
		p.Verified,
		p.Notified,
		p.Active,
		p.DocumentID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return payment.ErrDuplicateReservationCode{Code: p.ReservationCode}
		}
		r.logger.Error("Failed to create payment", "reservation_code", p.ReservationCode, "error", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return r.insertClients(ctx, p.ID, p.ClientIDs)
}

// GetByID retrieves a payment without its display fields
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := scanPayment(r.querier.QueryRow(ctx, paymentSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{PaymentID: id}
		}
		r.logger.Error("Failed to get payment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetView retrieves a payment joined with provider, user, funding and client names
func (r *PaymentRepository) GetView(ctx context.Context, id uuid.UUID) (*payment.View, error) {
	v, err := scanPaymentView(r.querier.QueryRow(ctx, paymentViewSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{PaymentID: id}
		}
		r.logger.Error("Failed to get payment view", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment view: %w", err)
	}
	return v, nil
}

// LockForUpdate obtains a row lock on the payment. Must run inside a transaction.
func (r *PaymentRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := scanPayment(r.querier.QueryRow(ctx, paymentSelect+` WHERE p.id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{PaymentID: id}
		}
		r.logger.Error("Failed to lock payment for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock payment for update: %w", err)
	}
	return p, nil
}

// Update persists the mutable columns of a payment. Client links are replaced separately.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET amount = $1, description = $2, expected_debit_date = $3::date, status = $4,
			is_paid = $5, is_verified = $6, is_notified = $7, active = $8, document_id = $9, updated_at = $10
		WHERE id = $11
	`

	result, err := r.querier.Exec(ctx, query,
		p.Amount,
		p.Description,
		p.ExpectedDebitDate,
		p.Status,
		p.Paid,
		p.Verified,
		p.Notified,
		p.Active,
		p.DocumentID,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return payment.ErrDuplicateReservationCode{Code: p.ReservationCode}
		}
		r.logger.Error("Failed to update payment", "id", p.ID.String(), "error", err)
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound{PaymentID: p.ID}
	}
	return nil
}

// ReplaceClients swaps the client links of a payment for clientIDs
func (r *PaymentRepository) ReplaceClients(ctx context.Context, paymentID uuid.UUID, clientIDs []uuid.UUID) error {
	if _, err := r.querier.Exec(ctx, `DELETE FROM payment_clients WHERE payment_id = $1`, paymentID); err != nil {
		r.logger.Error("Failed to clear payment clients", "id", paymentID.String(), "error", err)
		return fmt.Errorf("failed to clear payment clients: %w", err)
	}
	return r.insertClients(ctx, paymentID, clientIDs)
}

func (r *PaymentRepository) insertClients(ctx context.Context, paymentID uuid.UUID, clientIDs []uuid.UUID) error {
	query := `INSERT INTO payment_clients (payment_id, client_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, clientID := range clientIDs {
		if _, err := r.querier.Exec(ctx, query, paymentID, clientID); err != nil {
			r.logger.Error("Failed to link payment client", "id", paymentID.String(), "client_id", clientID.String(), "error", err)
			return fmt.Errorf("failed to link payment client: %w", err)
		}
	}
	return nil
}

// ExistsActiveReservationCode reports whether another active payment already uses code
func (r *PaymentRepository) ExistsActiveReservationCode(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE reservation_code = $1 AND active AND id <> $2)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, code, excludeID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check reservation code", "reservation_code", code, "error", err)
		return false, fmt.Errorf("failed to check reservation code: %w", err)
	}
	return exists, nil
}

// FindActiveByReservationCode looks up the non-cancelled payment carrying code.
// A deactivated payment still matches; an active one wins when both exist.
func (r *PaymentRepository) FindActiveByReservationCode(ctx context.Context, code string) (*payment.Payment, error) {
	query := paymentSelect + ` WHERE p.reservation_code = $1 AND p.status <> 'CANCELLED'
		ORDER BY p.active DESC, p.created_at DESC LIMIT 1`

	p, err := scanPayment(r.querier.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{}
		}
		r.logger.Error("Failed to find payment by reservation code", "reservation_code", code, "error", err)
		return nil, fmt.Errorf("failed to find payment by reservation code: %w", err)
	}
	return p, nil
}

// MarkVerified sets the paid and verified flags and links the reconciling document
func (r *PaymentRepository) MarkVerified(ctx context.Context, id uuid.UUID, documentID uuid.UUID) error {
	query := `
		UPDATE payments
		SET is_verified = TRUE, is_paid = TRUE, status = 'COMPLETED', document_id = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, documentID, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark payment verified", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark payment verified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound{PaymentID: id}
	}
	return nil
}

// IsInSentBatch reports whether the payment belongs to a batch that was already sent
func (r *PaymentRepository) IsInSentBatch(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM batch_details bd
			JOIN notification_batches nb ON nb.id = bd.batch_id
			WHERE bd.payment_id = $1 AND nb.state = 'SENT'
		)
	`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		r.logger.Error("Failed to check sent batches", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to check sent batches: %w", err)
	}
	return exists, nil
}

// ListEligibleForNotification returns payments ready to be announced, oldest first
func (r *PaymentRepository) ListEligibleForNotification(ctx context.Context, providerID *uuid.UUID) ([]*payment.View, error) {
	query := paymentViewSelect + ` WHERE p.active AND p.is_paid AND NOT p.is_notified`
	args := []interface{}{}
	if providerID != nil {
		query += ` AND p.provider_id = $1`
		args = append(args, *providerID)
	}
	query += ` ORDER BY p.created_at, p.id`

	return r.queryViews(ctx, "list eligible payments", query, args...)
}

// GetViewsByIDs returns the views for ids that exist, oldest first
func (r *PaymentRepository) GetViewsByIDs(ctx context.Context, ids []uuid.UUID) ([]*payment.View, error) {
	if len(ids) == 0 {
		return []*payment.View{}, nil
	}
	query := paymentViewSelect + ` WHERE p.id = ANY($1::uuid[]) ORDER BY p.created_at, p.id`
	return r.queryViews(ctx, "get payments by ids", query, uuidStrings(ids))
}

// MarkNotified flags every still-unnotified payment in ids and returns how many changed
func (r *PaymentRepository) MarkNotified(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE payments SET is_notified = TRUE, updated_at = $1 WHERE id = ANY($2::uuid[]) AND NOT is_notified`

	result, err := r.querier.Exec(ctx, query, time.Now(), uuidStrings(ids))
	if err != nil {
		r.logger.Error("Failed to mark payments notified", "count", len(ids), "error", err)
		return 0, fmt.Errorf("failed to mark payments notified: %w", err)
	}
	return result.RowsAffected(), nil
}

// List returns payment views matching the filter, newest first
func (r *PaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.View, error) {
	filter.Normalize()

	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ProviderID != nil {
		add("p.provider_id = $%d", *filter.ProviderID)
	}
	if filter.Paid != nil {
		add("p.is_paid = $%d", *filter.Paid)
	}
	if filter.Verified != nil {
		add("p.is_verified = $%d", *filter.Verified)
	}
	if filter.Notified != nil {
		add("p.is_notified = $%d", *filter.Notified)
	}
	if filter.Active != nil {
		add("p.active = $%d", *filter.Active)
	}
	if code := strings.TrimSpace(filter.ReservationCode); code != "" {
		add("p.reservation_code ILIKE $%d", "%"+code+"%")
	}

	query := paymentViewSelect
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryViews(ctx, "list payments", query, args...)
}

func (r *PaymentRepository) queryViews(ctx context.Context, op, query string, args ...interface{}) ([]*payment.View, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	views := []*payment.View{}
	for rows.Next() {
		v, err := scanPaymentView(rows)
		if err != nil {
			r.logger.Error("Failed to scan payment view", "error", err)
			return nil, fmt.Errorf("failed to scan payment view: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return views, nil
}

func paymentDest(p *payment.Payment, clientIDs *[]string) []interface{} {
	return []interface{}{
		&p.ID,
		&p.ProviderID,
		&p.UserID,
		&p.ReservationCode,
		&p.Amount,
		&p.Currency,
		&p.FundingType,
		&p.CardID,
		&p.AccountID,
		&p.Description,
		&p.ExpectedDebitDate,
		&p.Status,
		&p.Paid,
		&p.Verified,
		&p.Notified,
		&p.Active,
		&p.DocumentID,
		&p.CreatedAt,
		&p.UpdatedAt,
		clientIDs,
	}
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	var clientIDs []string
	if err := row.Scan(paymentDest(&p, &clientIDs)...); err != nil {
		return nil, err
	}
	ids, err := parseUUIDs(clientIDs)
	if err != nil {
		return nil, err
	}
	p.ClientIDs = ids
	return &p, nil
}

func scanPaymentView(row pgx.Row) (*payment.View, error) {
	var v payment.View
	var clientIDs []string
	dest := append(paymentDest(&v.Payment, &clientIDs),
		&v.ProviderName,
		&v.UserName,
		&v.FundingLabel,
		&v.ClientNames,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	ids, err := parseUUIDs(clientIDs)
	if err != nil {
		return nil, err
	}
	v.ClientIDs = ids
	if v.ClientNames == nil {
		v.ClientNames = []string{}
	}
	return &v, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
