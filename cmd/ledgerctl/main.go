// Command ledgerctl runs ledger operations from the shell: batch generation and
// sending, card recharges, record outbox maintenance and schema migrations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd(openEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open envOpener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the payments ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "ledgerctl", "Config file base name, looked up as <name>.env in ./configs and .")
	rootCmd.PersistentFlags().String("as", "", "Acting user id recorded on audit events")

	rootCmd.AddCommand(batchesCmd(open))
	rootCmd.AddCommand(cardsCmd(open))
	rootCmd.AddCommand(outboxCmd(open))
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}
