package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/data/mongo"
	"github.com/terra-payments-ledger/internal/ledger_engine/components"
	"github.com/terra-payments-ledger/internal/ledger_engine/consumer"
	"github.com/terra-payments-ledger/internal/ledger_engine/outbox_poller"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
	"github.com/terra-payments-ledger/internal/logger"
	"github.com/terra-payments-ledger/internal/platform/messaging/consumers"
	"github.com/terra-payments-ledger/internal/platform/messaging/producers"
	"github.com/terra-payments-ledger/internal/platform/persistence"
	"github.com/terra-payments-ledger/internal/platform/tracing"
)

// The relay consumes reconciliation callbacks from Kafka and retries queued
// system-of-record notifications from the record outbox.
func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("notification_relay")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Notification Relay",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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
	repos := components.NewRepositories(log, postgresDB, auditRepo)
	sender := components.CreateRecordSender(log, cfg)

	// The relay never sends batches, so it needs no delivery gateway and no worker pool.
	notifier := service.NewInlineRecordNotifier(sender, nil, repos.Outbox, cfg.SystemOfRecord.Timeout, log.With("component", "record_notifier"))
	services := components.CreateServices(postgresDB, repos, nil, notifier, log, cfg)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	reconciliationHandler := consumer.NewReconciliationEventHandler(
		log.With("component", "reconciliation_consumer"),
		services.Reconciliation,
		deadLetters,
	)

	var kafkaConsumer *consumers.KafkaConsumer
	if cfg.Kafka.ReconciliationTopic != "" {
		kafkaConsumer = consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.ReconciliationTopic)
	} else {
		log.Info("Reconciliation topic not configured, Kafka consumer disabled")
	}

	var poller *outbox_poller.Poller
	if sender != nil {
		recordPublisher := outbox_poller.NewRecordPublisher(repos.Outbox, sender, log.With("component", "record_publisher"))
		poller = outbox_poller.NewPoller(&cfg.Outbox, repos.Outbox, recordPublisher, log.With("component", "outbox_poller"))
	} else {
		log.Info("System of record disabled, outbox poller not started")
	}

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	if kafkaConsumer != nil {
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.ReconciliationTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, reconciliationHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}

	if poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Start(appCtx)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if kafkaConsumer != nil {
		if err = kafkaConsumer.Close(); err != nil {
			log.Error("Error closing Kafka consumer", "error", err)
		}
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if err = shutdownTracer(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	if serviceErr != nil {
		log.Error("Notification Relay shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Notification Relay shutdown completed")
}
