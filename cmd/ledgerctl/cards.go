package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func cardsCmd(open envOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage funding cards",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "recharge <card-id> <amount>",
		Short: "Grow a card's assigned limit and available balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid card id %q: %w", args[0], err)
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			actor, err := actingUser(cmd)
			if err != nil {
				return err
			}

			return withEnv(cmd, open, func(env *ledgerEnv) error {
				card, err := env.services.Cards.Recharge(cmd.Context(), cardID, amount, actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), card)
			})
		},
	})
	return cmd
}
