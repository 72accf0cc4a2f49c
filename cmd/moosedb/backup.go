package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/moosedb/moosedb/internal/app"
)

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database to the configured backup target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				backups, err := a.Backups(cmd.Context())
				if err != nil {
					return err
				}
				snap, err := backups.Create(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s (%d bytes, %d compressed)\n",
					snap.Key, snap.RawBytes, snap.CompressedSize)
				return nil
			})
		},
	}
	cmd.AddCommand(c.backupListCmd(), c.backupRestoreCmd())
	return cmd
}

func (c *cli) backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				backups, err := a.Backups(cmd.Context())
				if err != nil {
					return err
				}
				snapshots, err := backups.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(snapshots) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No snapshots")
					return nil
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"Key", "Size", "Created"})
				table.SetAutoFormatHeaders(false)
				for _, s := range snapshots {
					table.Append([]string{s.Path, fmt.Sprintf("%d", s.Size), s.LastModified.Format("2006-01-02 15:04:05")})
				}
				table.Render()
				return nil
			})
		},
	}
}

func (c *cli) backupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key> <dest>",
		Short: "Download a snapshot and write it as a database file at dest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				backups, err := a.Backups(cmd.Context())
				if err != nil {
					return err
				}
				if err := backups.Restore(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
