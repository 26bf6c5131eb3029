package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/layer-3/scryptex/config"
	"github.com/layer-3/scryptex/internal/logger"
)

var (
	configPath string

	cfg *config.Config
	log *slog.Logger
)

// Execute runs the scryptex command line
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scryptex",
		Short:         "Wallet signature authentication and session service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			log, err = logger.New(os.Stderr, cfg.Logger.Level, cfg.Logger.Format)
			if err != nil {
				return err
			}
			slog.SetDefault(log)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a yaml config file (env SCRYPTEX_* overrides)")

	root.AddCommand(serveCmd(), grantAdminCmd())
	return root
}
