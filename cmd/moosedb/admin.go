package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moosedb/moosedb/internal/app"
)

func (c *cli) upsuperCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "upsuper",
		Short: "Change a super admin's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Auth().UpdateSuperUser(cmd.Context(), email, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "super admin email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) createAdminCmd() *cobra.Command {
	var name, email, password, confirm string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an additional super admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Auth().CreateSuperAdmin(cmd.Context(), name, email, password, confirm); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Super admin %s created\n", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email used to log in")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "password confirmation")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("confirm")
	return cmd
}

func (c *cli) rotateSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-secret",
		Short: "Replace the token signing secret, signing out every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Settings().RotateSecret(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Secret rotated; existing tokens are no longer valid")
				return nil
			})
		},
	}
}
