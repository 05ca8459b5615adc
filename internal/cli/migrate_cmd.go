package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema for the configured SQL driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Ledger.Driver == "" || cfg.Ledger.Driver == driverMemory {
				return fmt.Errorf("ledger driver %q has no schema to migrate", driverMemory)
			}

			// openStorage applies migrations for SQL drivers as part of connecting.
			st, err := openStorage(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Ledger schema up to date (%s)\n", cfg.Ledger.Driver)
			return nil
		},
	}
}
