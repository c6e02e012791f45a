package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	dig_container "github.com/trezcool/masomo-lms/apps/api/di/dig"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.c.Invoke(func(res dig_container.Resources, repo user.Repository) error {
				defer func() { _ = res.Close() }()

				if err := resetPassword(cmd.Context(), repo, uname, pwd); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "password updated")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username or email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func resetPassword(ctx context.Context, repo user.Repository, uname, pwd string) error {
	usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.Now()
	if _, err := repo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
