package service

import (
	"context"
	"log/slog"

	"github.com/terra-payments-ledger/internal/domain/analytics"
)

// AnalyticsServiceImpl implements the AnalyticsService interface
type AnalyticsServiceImpl struct {
	repo   analytics.Repository
	logger *slog.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repo analytics.Repository, logger *slog.Logger) AnalyticsService {
	return &AnalyticsServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

// Dashboard returns the ledger counters and balances
func (s *AnalyticsServiceImpl) Dashboard(ctx context.Context) (*analytics.Dashboard, error) {
	d, err := s.repo.Dashboard(ctx)
	if err != nil {
		s.logger.Error("Failed to build dashboard", "error", err)
		return nil, err
	}
	return d, nil
}

// PaymentsReport returns one page of payments matching filter
func (s *AnalyticsServiceImpl) PaymentsReport(ctx context.Context, filter analytics.ReportFilter) (*analytics.Report, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	filter.Normalize()

	report, err := s.repo.PaymentsReport(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to build payments report", "error", err)
		return nil, err
	}
	s.logger.Debug("Payments report built", "rows", len(report.Rows), "count", report.Count)
	return report, nil
}
