// Package analytics holds the read-only ledger summaries: the dashboard
// counters and the filtered payments report.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

const (
	DefaultReportLimit = 100
	MaxReportLimit     = 500
)

// Repository computes the summaries straight from the ledger tables
type Repository interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	PaymentsReport(ctx context.Context, filter ReportFilter) (*Report, error)
}

// CurrencyTotal is a sum of amounts in one currency. Amounts are never added across currencies.
type CurrencyTotal struct {
	Currency shared.Currency `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// PaymentStats counts payments by lifecycle flag. Totals leave cancelled payments out.
type PaymentStats struct {
	Total     int64           `json:"total"`
	Pending   int64           `json:"pending"`
	Completed int64           `json:"completed"`
	Cancelled int64           `json:"cancelled"`
	Verified  int64           `json:"verified"`
	Notified  int64           `json:"notified"`
	Totals    []CurrencyTotal `json:"totals"`
}

// CardBalance sums the active cards of one currency
type CardBalance struct {
	Currency  shared.Currency `json:"currency"`
	Cards     int64           `json:"cards"`
	Assigned  decimal.Decimal `json:"assigned"`
	Available decimal.Decimal `json:"available"`
}

// Committed is the part of the assigned limit already spent on payments
func (b CardBalance) Committed() decimal.Decimal {
	return b.Assigned.Sub(b.Available)
}

// Dashboard is the landing summary of the ledger
type Dashboard struct {
	Payments        PaymentStats  `json:"payments"`
	Cards           []CardBalance `json:"cards"`
	ActiveProviders int64         `json:"active_providers"`
	Clients         int64         `json:"clients"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// ReportFilter narrows the payments report. DateFrom and DateTo are calendar
// days and both are inclusive.
type ReportFilter struct {
	DateFrom   *time.Time
	DateTo     *time.Time
	ProviderID *uuid.UUID
	Limit      int
	Offset     int
}

// Validate rejects an inverted date range
func (f ReportFilter) Validate() error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return shared.ErrInvalidInput{Field: "date_to", Reason: "must not be before date_from"}
	}
	return nil
}

// Normalize applies the default and maximum page size
func (f *ReportFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultReportLimit
	}
	if f.Limit > MaxReportLimit {
		f.Limit = MaxReportLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Until is the exclusive upper bound matching an inclusive DateTo
func (f ReportFilter) Until() *time.Time {
	if f.DateTo == nil {
		return nil
	}
	t := f.DateTo.AddDate(0, 0, 1)
	return &t
}

// ReportRow is one payment of the report with its display names
type ReportRow struct {
	PaymentID       uuid.UUID            `json:"payment_id"`
	ReservationCode string               `json:"reservation_code"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        shared.Currency      `json:"currency"`
	FundingType     shared.FundingType   `json:"funding_type"`
	Status          shared.PaymentStatus `json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
	ProviderName    string               `json:"provider_name"`
	UserName        string               `json:"user_name"`
	HolderName      string               `json:"holder_name"`
}

// Report is one page of rows plus the count and totals of the whole filtered set
type Report struct {
	Rows   []ReportRow     `json:"rows"`
	Count  int64           `json:"count"`
	Totals []CurrencyTotal `json:"totals"`
}
