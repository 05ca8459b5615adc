package cli

import (
	"lightning-timesheet/config"
	"lightning-timesheet/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
}

// NewRootCmd creates the top-level "timesheet" command. Running it without a
// subcommand starts the HTTP server.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "timesheet",
		Short:         "Pay-per-interval work timer settling over Lightning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ./config.yaml)")

	serve := newServeCmd(opts)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newMigrateCmd(opts),
		newWalletsCmd(opts),
	)

	return root
}

// load reads config and builds the process logger.
func (o *options) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}), nil
}
