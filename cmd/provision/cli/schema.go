package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/schema"
)

func NewSchemaCommand() *cobra.Command {
	var (
		flags  backendFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Report which expected tables exist on a backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(current.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg, err := flags.resolve(svc)
			if err != nil {
				return err
			}
			status, err := svc.CheckSchema(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, status)
			}
			fmt.Fprintf(out, "state:    %s\n", status.State)
			fmt.Fprintf(out, "existing: %s\n", joinOrDash(status.ExistingTables))
			fmt.Fprintf(out, "missing:  %s\n", joinOrDash(status.MissingTables))
			if status.Message != "" {
				fmt.Fprintln(out, status.Message)
			}
			if !status.Verified {
				return errCheckFailed
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func NewMigrateCommand() *cobra.Command {
	var (
		flags   backendFlags
		outDir  string
		stdout  bool
		offline bool
		columns bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Write the SQL script that creates or completes the schema",
		Long:  "Inspects the backend and writes a migration script for the missing tables. With --offline the full schema script is written without contacting the backend; --kind or --param still select the target schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(current.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var cfg endpoint.BackendConfig
			if !offline || flags.kind != "" || flags.template != "" {
				if cfg, err = flags.resolve(svc); err != nil {
					return err
				}
			}

			status := schema.Classify(svc.Catalog().Names(), nil)
			if !offline {
				status, err = svc.CheckSchema(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				if status.State == schema.Complete && !columns {
					fmt.Fprintln(cmd.ErrOrStderr(), "schema is complete; nothing to migrate")
					return nil
				}
			}

			generate := svc.GenerateMigrationArtifactFor
			if columns {
				generate = svc.GenerateColumnDeltaFor
			}
			artifact, err := generate(cfg, status)
			if err != nil {
				return err
			}
			if stdout {
				_, err := fmt.Fprint(cmd.OutOrStdout(), artifact.Script)
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(outDir, artifact.Filename)
			if err := os.WriteFile(path, []byte(artifact.Script), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the script to")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the script instead of writing a file")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip inspection and render the full schema")
	cmd.Flags().BoolVar(&columns, "columns", false, "also add delta columns to tables that already exist")
	return cmd
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
