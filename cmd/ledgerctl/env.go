package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/terra-payments-ledger/internal/config"
	"github.com/terra-payments-ledger/internal/data/mongo"
	"github.com/terra-payments-ledger/internal/domain/outbox"
	"github.com/terra-payments-ledger/internal/ledger_engine/components"
	"github.com/terra-payments-ledger/internal/ledger_engine/outbox_poller"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
	"github.com/terra-payments-ledger/internal/logger"
	"github.com/terra-payments-ledger/internal/platform/persistence"
)

// ledgerEnv is what a subcommand needs once connections are open
type ledgerEnv struct {
	services *components.Services
	outbox   outbox.Repository
	// poller is nil when the system of record is disabled
	poller *outbox_poller.Poller
	logger *slog.Logger
	close  func()
}

type envOpener func(ctx context.Context, configName string) (*ledgerEnv, error)

// openEnv connects to the stores and wires the services the same way the gateway does,
// except that record notifications are delivered inline so they finish before exit.
func openEnv(ctx context.Context, configName string) (*ledgerEnv, error) {
	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(cfg)

	// Only `ledgerctl migrate up` changes the schema.
	cfg.Postgres.RunMigrations = false

	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	mongoDB, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
	if err != nil {
		postgresDB.Close()
		return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	repos := components.NewRepositories(log, postgresDB, mongo.NewAuditRepository(log, mongoDB.Database()))
	sender := components.CreateRecordSender(log, cfg)
	notifier := service.NewInlineRecordNotifier(sender, nil, repos.Outbox, cfg.SystemOfRecord.Timeout, log)
	services := components.CreateServices(postgresDB, repos, components.CreateDeliveryGateway(log, cfg), notifier, log, cfg)

	env := &ledgerEnv{
		services: services,
		outbox:   repos.Outbox,
		logger:   log,
		close: func() {
			postgresDB.Close()
			if err := mongoDB.Close(context.Background()); err != nil {
				log.Error("Error closing MongoDB connection", "error", err)
			}
		},
	}
	if sender != nil {
		publisher := outbox_poller.NewRecordPublisher(repos.Outbox, sender, log)
		env.poller = outbox_poller.NewPoller(&cfg.Outbox, repos.Outbox, publisher, log)
	}
	return env, nil
}

// withEnv opens the environment for one command and always closes it
func withEnv(cmd *cobra.Command, open envOpener, fn func(env *ledgerEnv) error) error {
	configName, _ := cmd.Flags().GetString("config")
	env, err := open(cmd.Context(), configName)
	if err != nil {
		return err
	}
	defer env.close()
	return fn(env)
}

// actingUser reads the persistent --as flag
func actingUser(cmd *cobra.Command) (*uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("as")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --as user id %q: %w", raw, err)
	}
	return &id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
