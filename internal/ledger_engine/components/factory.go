// Package components assembles the ledger services shared by the gateway, the relay and the CLI.
package components

import (
	"log/slog"

	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/data/postgres"
	"github.com/terra-payments-ledger/internal/domain/analytics"
	"github.com/terra-payments-ledger/internal/domain/audit"
	"github.com/terra-payments-ledger/internal/domain/batch"
	"github.com/terra-payments-ledger/internal/domain/delivery"
	"github.com/terra-payments-ledger/internal/domain/funding"
	"github.com/terra-payments-ledger/internal/domain/outbox"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/reconciliation"
	"github.com/terra-payments-ledger/internal/domain/reference"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
	"github.com/terra-payments-ledger/internal/platform/messaging/producers"
	"github.com/terra-payments-ledger/internal/platform/persistence"
	"github.com/terra-payments-ledger/internal/platform/webhook"
)

// Repositories groups the stores the services share
type Repositories struct {
	Payments  payment.Repository
	Funding   funding.Repository
	Reference reference.Repository
	Batches   batch.Repository
	Documents reconciliation.DocumentRepository
	Outbox    outbox.Repository
	Analytics analytics.Repository
	Audit     audit.Repository
}

// NewRepositories builds the PostgreSQL repositories; the audit trail lives elsewhere
func NewRepositories(logger *slog.Logger, pgDB *persistence.PostgresDB, auditRepo audit.Repository) *Repositories {
	return &Repositories{
		Payments:  postgres.NewPaymentRepository(logger, pgDB),
		Funding:   postgres.NewFundingRepository(logger, pgDB),
		Reference: postgres.NewReferenceRepository(logger, pgDB),
		Batches:   postgres.NewBatchRepository(logger, pgDB),
		Documents: postgres.NewDocumentRepository(logger, pgDB),
		Outbox:    postgres.NewOutboxRepository(logger, pgDB),
		Analytics: postgres.NewAnalyticsRepository(logger, pgDB),
		Audit:     auditRepo,
	}
}

// Services is every ledger operation exposed by the binaries
type Services struct {
	Payments       service.PaymentService
	Cards          service.CardService
	Batches        service.BatchService
	Dispatch       service.DispatchService
	Reconciliation service.ReconciliationService
	Analytics      service.AnalyticsService
}

// CreateRecordSender returns the system-of-record client, or nil when the webhook is disabled
func CreateRecordSender(logger *slog.Logger, cfg *config.Config) service.RecordSender {
	if !cfg.SystemOfRecord.Enabled || cfg.SystemOfRecord.URL == "" {
		logger.Info("System of record notifications disabled")
		return nil
	}
	return webhook.NewRecordClient(logger, cfg.SystemOfRecord)
}

// CreateRecordNotifier creates the pooled notifier. It falls back to inline
// delivery if the pool cannot be created.
func CreateRecordNotifier(
	sender service.RecordSender,
	events producers.MessagePublisher,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) *service.AsyncRecordNotifier {
	notifierLogger := logger.With("component", "record_notifier")

	notifier, err := service.NewAsyncRecordNotifier(
		cfg.WorkerPool.Size,
		sender,
		events,
		outboxRepo,
		cfg.SystemOfRecord.Timeout,
		notifierLogger,
	)
	if err != nil {
		logger.Error("Failed to create record notifier worker pool, falling back to inline delivery", "error", err)
		return service.NewInlineRecordNotifier(sender, events, outboxRepo, cfg.SystemOfRecord.Timeout, notifierLogger)
	}

	logger.Info("Created record notifier worker pool", "pool_size", cfg.WorkerPool.Size)
	return notifier
}

// CreateServices wires the services over repos. gateway may be nil for
// binaries that never send batches.
func CreateServices(
	pgDB service.TxRunner,
	repos *Repositories,
	gateway delivery.Gateway,
	notifier service.RecordNotifier,
	logger *slog.Logger,
	cfg *config.Config,
) *Services {
	auditTrail := service.NewAuditTrail(repos.Audit, logger.With("component", "audit"))
	ledger := service.NewFundingLedger(repos.Funding, logger)

	return &Services{
		Payments: service.NewPaymentService(
			pgDB,
			repos.Payments,
			repos.Funding,
			repos.Reference,
			ledger,
			notifier,
			auditTrail,
			logger.With("component", "payments"),
		),
		Cards: service.NewCardService(
			pgDB,
			repos.Funding,
			ledger,
			auditTrail,
			logger.With("component", "cards"),
		),
		Batches: service.NewBatchService(
			pgDB,
			repos.Batches,
			repos.Payments,
			repos.Reference,
			auditTrail,
			logger.With("component", "batches"),
		),
		Dispatch: service.NewDispatchService(
			pgDB,
			repos.Batches,
			repos.Payments,
			repos.Reference,
			gateway,
			auditTrail,
			logger.With("component", "dispatch"),
		),
		Reconciliation: service.NewReconciliationService(
			pgDB,
			repos.Payments,
			repos.Documents,
			auditTrail,
			cfg.Reconciliation.Token,
			logger.With("component", "reconciliation"),
		),
		Analytics: service.NewAnalyticsService(
			repos.Analytics,
			logger.With("component", "analytics"),
		),
	}
}

// CreateDeliveryGateway returns the HTTP client for the delivery boundary
func CreateDeliveryGateway(logger *slog.Logger, cfg *config.Config) delivery.Gateway {
	return webhook.NewDeliveryClient(logger, cfg.Delivery)
}
