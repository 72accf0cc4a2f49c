package main

import (
	"fmt"

	"github.com/spf13/cobra"

	httpapi "github.com/moosedb/moosedb/internal/api/http"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the MooseDB version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := httpapi.CurrentVersion(version)
			fmt.Fprintf(cmd.OutOrStdout(), "moosedb %s (commit: %s, %s, sqlite %s)\n",
				info.Version, commit, info.GoVersion, info.SQLite)
		},
	}
}
