package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nucleus/provision-core/internal/config"
)

func NewStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show or change the saved backend configuration",
	}
	cmd.AddCommand(newStateShowCommand(), newStateSetCommand())
	return cmd
}

func newStateShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(current.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg, err := svc.LoadState()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"kind":     cfg.Kind,
				"template": cfg.Template,
				"params":   svc.Redact(cfg),
			})
		},
	}
}

func newStateSetCommand() *cobra.Command {
	var flags backendFlags

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save a backend configuration without testing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.kind == "" && flags.template == "" {
				return fmt.Errorf("--kind or --template is required")
			}
			svc, cleanup, err := buildService(current.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg, err := flags.resolve(svc)
			if err != nil {
				return err
			}
			if err := svc.SaveState(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), current.cfg.State.Path)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Print a config file with every default",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Generate()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
