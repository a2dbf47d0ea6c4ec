package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nucleus/provision-core/internal/tester"
)

var errCheckFailed = errors.New("check failed")

func NewTestCommand() *cobra.Command {
	var (
		flags  backendFlags
		save   bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test connectivity to a backend",
		Example: `  provision test --kind relational-gateway -p url=https://db.example.com
  provision test --kind relational-direct -p driver=mysql -p host=db -p port=3306 -p database=app -p username=app -p password=secret`,
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

			out := cmd.OutOrStdout()
			var onProgress func(tester.Progress)
			if !asJSON {
				onProgress = func(p tester.Progress) { printProgress(out, p) }
			}
			res := svc.TestConnection(cmd.Context(), cfg, onProgress)

			if asJSON {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, res.Message)
				if v := res.Validation; v != nil && !v.Valid {
					fmt.Fprintf(out, "warning: %s\n", v.Message)
				}
			}
			if !res.Success {
				return errCheckFailed
			}
			if save {
				if err := svc.SaveState(cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "configuration saved")
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "persist the configuration when the test succeeds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printProgress(w io.Writer, p tester.Progress) {
	mark := "ok"
	if !p.Result.Success {
		mark = "FAIL"
	}
	fmt.Fprintf(w, "[%d/%d] %-22s %-4s %s\n", p.Step, p.Total, p.Label, mark, p.Result.Message)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
