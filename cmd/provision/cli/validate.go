package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
)

func NewValidateCommand() *cobra.Command {
	var (
		asJSON bool
		driver string
	)

	cmd := &cobra.Command{
		Use:   "validate <kind> <field> <value>",
		Short: "Validate one connection field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := endpoint.ParseKind(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := buildService(current.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			res := svc.ValidateField(cmd.Context(), kind, driver, args[1], args[2])
			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, res.Message)
			}
			if !res.IsValid {
				return errCheckFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&driver, "driver", "", "relational-direct driver (postgres|mysql)")
	return cmd
}

func NewSecretCommand() *cobra.Command {
	var (
		kind   string
		length int
	)

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a password, access key or secret key",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				value string
				err   error
			)
			switch kind {
			case "password":
				value, err = credentials.GenerateSecurePassword(length)
			case "access-key":
				value, err = credentials.GenerateAccessKey(length)
			case "secret-key":
				value, err = credentials.GenerateSecretKey(length)
			default:
				return fmt.Errorf("unknown secret type %q (password, access-key, secret-key)", kind)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			if kind == "password" {
				s := credentials.PasswordStrength(value)
				fmt.Fprintf(cmd.ErrOrStderr(), "strength: %s (%d/6)\n", s.Level, s.Score)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", "password", "password, access-key or secret-key")
	cmd.Flags().IntVarP(&length, "length", "l", 0, "length (0 uses the type default)")
	return cmd
}
