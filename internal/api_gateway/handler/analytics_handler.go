package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/terra-payments-ledger/internal/domain/analytics"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

// AnalyticsHandler handles HTTP requests for the ledger summaries
type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	logger           *slog.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(logger *slog.Logger, analyticsService service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// Dashboard returns payment counters, per-currency totals and card balances
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	d, err := h.analyticsService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "dashboard", err)
		return
	}
	RespondOK(c, mapDashboardToResponse(d))
}

// PaymentsReport returns payments created in a date range, optionally for one provider
func (h *AnalyticsHandler) PaymentsReport(c *gin.Context) {
	var query PaymentsReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := analytics.ReportFilter{Limit: query.Limit, Offset: query.Offset}
	var err error
	if filter.ProviderID, err = parseOptionalUUID("provider_id", &query.ProviderID); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if filter.DateFrom, err = parseOptionalDate("date_from", query.DateFrom); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if filter.DateTo, err = parseOptionalDate("date_to", query.DateTo); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	report, err := h.analyticsService.PaymentsReport(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "payments_report", err)
		return
	}

	rows := make([]ReportRowResponse, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, ReportRowResponse{
			PaymentID:       r.PaymentID.String(),
			ReservationCode: r.ReservationCode,
			Amount:          r.Amount.StringFixed(2),
			Currency:        string(r.Currency),
			FundingType:     string(r.FundingType),
			Status:          string(r.Status),
			CreatedAt:       r.CreatedAt,
			ProviderName:    r.ProviderName,
			UserName:        r.UserName,
			HolderName:      r.HolderName,
		})
	}
	RespondWithPage(c, PaymentsReportResponse{
		Payments: rows,
		Matched:  report.Count,
		Totals:   mapCurrencyTotals(report.Totals),
	}, query.Limit, query.Offset, len(rows))
}

func mapDashboardToResponse(d *analytics.Dashboard) DashboardResponse {
	cards := make([]CardBalanceResponse, 0, len(d.Cards))
	for _, b := range d.Cards {
		cards = append(cards, CardBalanceResponse{
			Currency:  string(b.Currency),
			Cards:     b.Cards,
			Assigned:  b.Assigned.StringFixed(2),
			Available: b.Available.StringFixed(2),
			Committed: b.Committed().StringFixed(2),
		})
	}
	return DashboardResponse{
		Payments: PaymentStatsResponse{
			Total:     d.Payments.Total,
			Pending:   d.Payments.Pending,
			Completed: d.Payments.Completed,
			Cancelled: d.Payments.Cancelled,
			Verified:  d.Payments.Verified,
			Notified:  d.Payments.Notified,
			Totals:    mapCurrencyTotals(d.Payments.Totals),
		},
		Cards:           cards,
		ActiveProviders: d.ActiveProviders,
		Clients:         d.Clients,
		GeneratedAt:     d.GeneratedAt,
	}
}

func mapCurrencyTotals(totals []analytics.CurrencyTotal) []CurrencyTotalResponse {
	out := make([]CurrencyTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, CurrencyTotalResponse{Currency: string(t.Currency), Amount: t.Amount.StringFixed(2)})
	}
	return out
}
