package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/terra-payments-ledger/internal/api_gateway"
	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/data/mongo"
	"github.com/terra-payments-ledger/internal/ledger_engine/components"
	"github.com/terra-payments-ledger/internal/logger"
	"github.com/terra-payments-ledger/internal/platform/messaging/producers"
	"github.com/terra-payments-ledger/internal/platform/persistence"
	"github.com/terra-payments-ledger/internal/platform/tracing"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	shutdownTracer, err := tracing.InitTracer(appCtx, log, cfg.Application, cfg.Tracing)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())
	if err := auditRepo.EnsureIndexes(appCtx); err != nil {
		// Lookups still work without the index, only slower.
		log.Warn("Failed to ensure audit indexes", "error", err)
	}

	// Payment lifecycle events are optional; an empty topic disables them.
	var events producers.MessagePublisher
	var eventProducer *producers.PaymentEventProducer
	if cfg.Kafka.PaymentEventsTopic != "" {
		eventProducer, err = producers.NewPaymentEventProducer(appCtx, log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize payment events Kafka producer", "error", err)
			os.Exit(1)
		}
		events = eventProducer
	} else {
		log.Info("Payment events topic not configured, lifecycle events disabled")
	}

	repos := components.NewRepositories(log, postgresDB, auditRepo)
	sender := components.CreateRecordSender(log, cfg)
	notifier := components.CreateRecordNotifier(sender, events, repos.Outbox, log, cfg)
	gateway := components.CreateDeliveryGateway(log, cfg)
	services := components.CreateServices(postgresDB, repos, gateway, notifier, log, cfg)

	server := api_gateway.NewServer(log, cfg, services, auditRepo, map[string]api_gateway.Probe{
		"postgres": postgresDB,
		"mongodb":  mongoDB,
	})
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before draining the notifier they feed.
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	log.Info("Draining record notifier", "running_workers", notifier.Running())
	if err = notifier.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		log.Error("Record notifier did not drain in time", "error", err)
	}

	if eventProducer != nil {
		if err = eventProducer.Close(); err != nil {
			log.Error("Error closing Kafka producer", "error", err)
		}
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if err = shutdownTracer(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed")
}
