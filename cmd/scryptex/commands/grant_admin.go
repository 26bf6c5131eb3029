package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/internal/app"
)

func grantAdminCmd() *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "grant-admin <wallet-address>",
		Short: "Give an existing user the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := core.NormalizeAddress(args[0])
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			role := core.RoleAdmin
			if revoke {
				role = core.RoleUser
			}
			if err := a.Users.SetRole(cmd.Context(), address, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", address, role)
			return nil
		},
	}

	cmd.Flags().BoolVar(&revoke, "revoke", false, "demote the user back to the user role")
	return cmd
}
