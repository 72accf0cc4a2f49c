package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/moosedb/moosedb/internal/app"
)

func (c *cli) collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				collections, err := a.Registry().ListCollections(cmd.Context())
				if err != nil {
					return err
				}
				if len(collections) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No collections")
					return nil
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"ID", "Name", "Fields"})
				table.SetAutoFormatHeaders(false)
				for _, col := range collections {
					table.Append([]string{col.ID, col.Name, strconv.Itoa(col.FieldCount)})
				}
				table.Render()
				return nil
			})
		},
	}
}

func (c *cli) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Report collections whose catalog entries and tables disagree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Registry().Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Catalog collections: %d, user tables: %d\n",
					report.TotalCatalogCollections, report.TotalTables)
				if !report.HasIssues() {
					fmt.Fprintln(out, "Catalog is consistent")
					return nil
				}

				table := tablewriter.NewWriter(out)
				table.SetHeader([]string{"Problem", "ID", "Name"})
				table.SetAutoFormatHeaders(false)
				for _, d := range report.DanglingEntries {
					table.Append([]string{"missing table", d.ID, d.Name})
				}
				for _, name := range report.OrphanedTables {
					table.Append([]string{"not in catalog", "", name})
				}
				table.Render()
				return nil
			})
		},
	}
}
