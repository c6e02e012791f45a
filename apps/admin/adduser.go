package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	dig_container "github.com/trezcool/masomo-lms/apps/api/di/dig"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

type newAccount struct {
	name     string
	username string
	email    string
	roles    []string
	isAdmin  bool
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var acc newAccount
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user account; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.c.Invoke(func(res dig_container.Resources, repo user.Repository) error {
				defer func() { _ = res.Close() }()

				usr, err := addUser(cmd.Context(), repo, acc, pwd)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved user %s (%s)\n", usr.Username, usr.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&acc.name, "name", "", "full name")
	cmd.Flags().StringVar(&acc.username, "username", "", "username")
	cmd.Flags().StringVar(&acc.email, "email", "", "email address")
	cmd.Flags().StringSliceVar(&acc.roles, "role", []string{user.RoleStudent}, "role(s), e.g. student: or instructor:")
	cmd.Flags().BoolVar(&acc.isAdmin, "admin", false, "grant every role")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user.User
func addUser(ctx context.Context, repo user.Repository, acc newAccount, pwd string) (user.User, error) {
	uname := core.CleanString(acc.username, true /* lower */)
	email := core.CleanString(acc.email, true /* lower */)

	roles := user.AllRoles
	if !acc.isAdmin {
		for _, r := range acc.roles {
			if !slices.Contains(user.AllRoles, r) {
				return user.User{}, errors.Errorf("unknown role %q", r)
			}
		}
		roles = acc.roles
	}

	usr, err := repo.GetUser(ctx, user.GetFilter{Username: uname})
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = repo.GetUser(ctx, user.GetFilter{Email: email})
	}
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		usr = user.User{ID: core.NewID(), CreatedAt: core.Now()}
	case err != nil:
		return user.User{}, errors.Wrap(err, "finding user")
	}

	usr.Username = uname
	usr.Email = email
	if name := core.CleanString(acc.name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = core.Now()
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	return repo.UpdateOrCreateUser(ctx, usr)
}
