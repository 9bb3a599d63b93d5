package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/terra-payments-ledger/internal/domain/analytics"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

// AnalyticsRepository implements the analytics.Repository interface for PostgreSQL
type AnalyticsRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
	now     func() time.Time
}

// NewAnalyticsRepository creates a new PostgreSQL analytics repository
func NewAnalyticsRepository(logger *slog.Logger, db *persistence.PostgresDB) analytics.Repository {
	return &AnalyticsRepository{
		querier: db.Pool(),
		logger:  logger,
		now:     time.Now,
	}
}

// Dashboard counts payments by flag and sums active card balances per currency
func (r *AnalyticsRepository) Dashboard(ctx context.Context) (*analytics.Dashboard, error) {
	d := &analytics.Dashboard{GeneratedAt: r.now().UTC()}

	statsQuery := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'CANCELLED'),
			COUNT(*) FILTER (WHERE is_verified),
			COUNT(*) FILTER (WHERE is_notified)
		FROM payments
	`
	s := &d.Payments
	err := r.querier.QueryRow(ctx, statsQuery).Scan(&s.Total, &s.Pending, &s.Completed, &s.Cancelled, &s.Verified, &s.Notified)
	if err != nil {
		r.logger.Error("Failed to count payments", "error", err)
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	totals, err := r.currencyTotals(ctx, `
		SELECT currency, SUM(amount) FROM payments
		WHERE status <> 'CANCELLED'
		GROUP BY currency ORDER BY currency
	`)
	if err != nil {
		return nil, err
	}
	d.Payments.Totals = totals

	if d.Cards, err = r.cardBalances(ctx); err != nil {
		return nil, err
	}

	countsQuery := `SELECT (SELECT COUNT(*) FROM providers WHERE active), (SELECT COUNT(*) FROM clients)`
	if err := r.querier.QueryRow(ctx, countsQuery).Scan(&d.ActiveProviders, &d.Clients); err != nil {
		r.logger.Error("Failed to count providers and clients", "error", err)
		return nil, fmt.Errorf("failed to count providers and clients: %w", err)
	}
	return d, nil
}

// PaymentsReport returns one page of the filtered payments, newest first, with
// the count and non-cancelled totals of every row the filter matches
func (r *AnalyticsRepository) PaymentsReport(ctx context.Context, filter analytics.ReportFilter) (*analytics.Report, error) {
	filter.Normalize()

	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.DateFrom != nil {
		add("p.created_at >= $%d", *filter.DateFrom)
	}
	if until := filter.Until(); until != nil {
		add("p.created_at < $%d", *until)
	}
	if filter.ProviderID != nil {
		add("p.provider_id = $%d", *filter.ProviderID)
	}
	where := ""
	if len(conditions) > 0 {
		where = ` WHERE ` + strings.Join(conditions, " AND ")
	}

	report := &analytics.Report{Rows: []analytics.ReportRow{}}

	countQuery := `SELECT COUNT(*) FROM payments p` + where
	if err := r.querier.QueryRow(ctx, countQuery, args...).Scan(&report.Count); err != nil {
		r.logger.Error("Failed to count report payments", "error", err)
		return nil, fmt.Errorf("failed to count report payments: %w", err)
	}

	totalsWhere := where + " AND "
	if where == "" {
		totalsWhere = " WHERE "
	}
	totals, err := r.currencyTotals(ctx, `SELECT p.currency, SUM(p.amount) FROM payments p`+
		totalsWhere+`p.status <> 'CANCELLED' GROUP BY p.currency ORDER BY p.currency`, args...)
	if err != nil {
		return nil, err
	}
	report.Totals = totals

	pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
	rowsQuery := `
		SELECT p.id, p.reservation_code, p.amount, p.currency, p.funding_type, p.status, p.created_at,
			COALESCE(pr.name, ''), COALESCE(u.name, ''), COALESCE(c.holder_name, b.holder_name, '')
		FROM payments p
		LEFT JOIN providers pr ON pr.id = p.provider_id
		LEFT JOIN users u ON u.id = p.user_id
		LEFT JOIN cards c ON c.id = p.card_id
		LEFT JOIN bank_accounts b ON b.id = p.account_id` + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d`, len(pageArgs)-1, len(pageArgs))

	rows, err := r.querier.Query(ctx, rowsQuery, pageArgs...)
	if err != nil {
		r.logger.Error("Failed to query report payments", "error", err)
		return nil, fmt.Errorf("failed to query report payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row analytics.ReportRow
		if err := rows.Scan(
			&row.PaymentID,
			&row.ReservationCode,
			&row.Amount,
			&row.Currency,
			&row.FundingType,
			&row.Status,
			&row.CreatedAt,
			&row.ProviderName,
			&row.UserName,
			&row.HolderName,
		); err != nil {
			r.logger.Error("Failed to scan report row", "error", err)
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		report.Rows = append(report.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query report payments: %w", err)
	}
	return report, nil
}

func (r *AnalyticsRepository) currencyTotals(ctx context.Context, query string, args ...interface{}) ([]analytics.CurrencyTotal, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to sum payment amounts", "error", err)
		return nil, fmt.Errorf("failed to sum payment amounts: %w", err)
	}
	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.CurrencyTotal, error) {
		var t analytics.CurrencyTotal
		err := row.Scan(&t.Currency, &t.Amount)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum payment amounts: %w", err)
	}
	return totals, nil
}

func (r *AnalyticsRepository) cardBalances(ctx context.Context) ([]analytics.CardBalance, error) {
	query := `
		SELECT currency, COUNT(*), SUM(assigned_limit), SUM(available_balance)
		FROM cards WHERE active
		GROUP BY currency ORDER BY currency
	`
	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to sum card balances", "error", err)
		return nil, fmt.Errorf("failed to sum card balances: %w", err)
	}
	balances, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.CardBalance, error) {
		var b analytics.CardBalance
		err := row.Scan(&b.Currency, &b.Cards, &b.Assigned, &b.Available)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum card balances: %w", err)
	}
	return balances, nil
}
