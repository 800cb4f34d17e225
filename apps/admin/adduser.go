package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var email, name string
	var roles []string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user or update an existing one; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if core.CleanString(email) == "" {
				_ = cmd.Usage()
				return errHelp
			}
			for _, r := range roles {
				if user.RoleName(core.CleanString(r, true /* lower */)) == "" {
					return fmt.Errorf("unknown role %q", r)
				}
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, email, pwd, roles)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "user %s saved with roles %v\n", usr.Email, usr.Roles)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&name, "name", "", "The user's full name")
	cmd.Flags().StringSliceVar(&roles, "role", []string{user.RoleAdmin}, "Roles granted to the user")
	return cmd
}

// addUser updates or creates a user.User, granting it `roles`.
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd string, roles []string) (user.User, error) {
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	exists := err == nil
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		usr = user.User{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: now,
		}
	}
	if name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = email
	}
	for _, r := range roles {
		usr.AddRole(core.CleanString(r, true /* lower */))
	}
	usr.SetActive(true)
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		return cli.usrRepo.UpdateUser(ctx, usr)
	}
	return cli.usrRepo.CreateUser(ctx, usr)
}
