package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nucleus/provision-core/internal/config"
	"github.com/nucleus/provision-core/internal/logging"
)

type VersionInfo struct {
	Version string
	Commit  string
}

// app is the state shared by subcommands after the root pre-run.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

var current = &app{}

func NewRootCommand(info VersionInfo) *cobra.Command {
	var (
		path     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:           "provision",
		Short:         "Storage backend provisioning and verification",
		Long:          "Validates backend settings, tests connectivity to relational gateways, object stores, hosted platforms and databases, checks the expected schema and renders migration scripts.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			current.cfg = cfg
			current.logger, current.logCloser = logging.New(cfg.Log, cmd.ErrOrStderr())
			slog.SetDefault(current.logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if current.logCloser != nil {
				return current.logCloser.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&path, "config", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)
	return cmd
}
