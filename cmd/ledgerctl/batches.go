package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/terra-payments-ledger/internal/ledger_engine/service"
)

func batchesCmd(open envOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Generate and send provider notification batches",
	}
	cmd.AddCommand(batchesGenerateCmd(open))
	cmd.AddCommand(batchesSendCmd(open))
	return cmd
}

func batchesGenerateCmd(open envOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draft one batch per provider with paid, unnotified payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawSender, _ := cmd.Flags().GetString("sender")
			senderID, err := uuid.Parse(rawSender)
			if err != nil {
				return fmt.Errorf("invalid --sender user id %q: %w", rawSender, err)
			}

			var providerID *uuid.UUID
			if rawProvider, _ := cmd.Flags().GetString("provider"); rawProvider != "" {
				id, err := uuid.Parse(rawProvider)
				if err != nil {
					return fmt.Errorf("invalid --provider id %q: %w", rawProvider, err)
				}
				providerID = &id
			}

			return withEnv(cmd, open, func(env *ledgerEnv) error {
				result, err := env.services.Batches.Generate(cmd.Context(), senderID, providerID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().String("sender", "", "User id that will appear as the sender (required)")
	cmd.Flags().String("provider", "", "Restrict generation to one provider id")
	_ = cmd.MarkFlagRequired("sender")
	return cmd
}

func batchesSendCmd(open envOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <batch-id>",
		Short: "Deliver a draft batch to its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid batch id %q: %w", args[0], err)
			}
			actor, err := actingUser(cmd)
			if err != nil {
				return err
			}

			var edits service.SendEdits
			if cmd.Flags().Changed("subject") {
				subject, _ := cmd.Flags().GetString("subject")
				edits.Subject = &subject
			}
			if cmd.Flags().Changed("body") {
				body, _ := cmd.Flags().GetString("body")
				edits.Body = &body
			}

			return withEnv(cmd, open, func(env *ledgerEnv) error {
				result, err := env.services.Dispatch.Send(cmd.Context(), batchID, edits, actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().String("subject", "", "Replace the subject before sending")
	cmd.Flags().String("body", "", "Replace the body before sending")
	return cmd
}
