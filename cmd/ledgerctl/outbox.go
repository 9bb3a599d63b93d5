package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

var errRecordDisabled = errors.New("system of record is disabled; nothing to retry")

func outboxCmd(open envOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the system-of-record outbox",
	}
	cmd.AddCommand(outboxStatusCmd(open))
	cmd.AddCommand(outboxRetryCmd(open))
	cmd.AddCommand(outboxRequeueCmd(open))
	return cmd
}

func outboxStatusCmd(open envOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many messages are pending, processed and parked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(env *ledgerEnv) error {
				counts, err := env.outbox.CountByStatus(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, status := range []shared.OutboxStatus{
					shared.OutboxStatusPending,
					shared.OutboxStatusProcessed,
					shared.OutboxStatusFailedToPublish,
				} {
					fmt.Fprintf(out, "%-18s %d\n", status, counts[status])
				}
				return nil
			})
		},
	}
}

func outboxRetryCmd(open envOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Run one delivery pass over pending outbox messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(env *ledgerEnv) error {
				if env.poller == nil {
					return errRecordDisabled
				}
				delivered, err := env.poller.ProcessPending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "delivered %d outbox message(s)\n", delivered)
				return nil
			})
		},
	}
}

func outboxRequeueCmd(open envOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Give messages parked as FAILED_TO_PUBLISH another round of retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			return withEnv(cmd, open, func(env *ledgerEnv) error {
				n, err := env.outbox.Requeue(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d outbox message(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 100, "Maximum number of parked messages to requeue")
	return cmd
}
