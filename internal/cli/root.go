// Package cli implements ecmctl, the maintenance command for an ECM
// installation: master migrations, system snapshots and host monitoring.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/config"
	"github.com/ecmcloud/ecm/internal/logger"
	"github.com/ecmcloud/ecm/internal/notify"
)

// env carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	notifier notify.Notifier
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "ecmctl",
		Short:         "ECM maintenance tool",
		Long:          "Maintenance commands for an ECM installation. Configuration is read from the same environment as the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			log, err := logger.New(cfg.LogLevel, "development")
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = log
			e.notifier = notify.New(cfg.SMTP, log.Named("notify"))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newMigrateCmd(e))
	rootCmd.AddCommand(newBackupCmd(e))
	rootCmd.AddCommand(newRestoreCmd(e))
	rootCmd.AddCommand(newCheckDiskCmd(e))
	rootCmd.AddCommand(newMonitorCmd(e))

	return rootCmd
}
