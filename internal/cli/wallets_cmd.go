package cli

import (
	"context"
	"fmt"
	"io"

	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/internal/core/ports"

	"github.com/spf13/cobra"
)

func newWalletsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "wallets",
		Short: "Print payer and payee balances from the wallet provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			return printWallets(cmd.Context(), cmd.OutOrStdout(), newWalletClient(cfg, log))
		},
	}
}

func printWallets(ctx context.Context, w io.Writer, provider ports.WalletProvider) error {
	for _, role := range []domain.AccountRole{domain.AccountRolePayer, domain.AccountRolePayee} {
		acc, err := provider.GetBalance(ctx, role)
		if err != nil {
			return fmt.Errorf("%s wallet: %w", role, err)
		}
		fmt.Fprintf(w, "%-6s %-24s %-20s %d sat\n", role, acc.Name, acc.ID, acc.Balance)
	}
	return nil
}
