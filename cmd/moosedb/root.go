package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/moosedb/moosedb/internal/app"
	"github.com/moosedb/moosedb/internal/config"
)

// cli holds the global flags shared by every subcommand.
type cli struct {
	configFile string
	dataDir    string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "moosedb",
		Short: "MooseDB is a self-hosted collection database on SQLite",
		Long: `MooseDB lets administrators define collections of typed fields at runtime
and read and write their records over a JSON HTTP API.

Configuration is read from --config (YAML or JSON), then MOOSEDB_* environment
variables, then command line flags.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "path to configuration file (YAML or JSON)")
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "directory holding database.sqlite and local backups")

	root.AddCommand(
		c.serveCmd(),
		c.upsuperCmd(),
		c.createAdminCmd(),
		c.rotateSecretCmd(),
		c.collectionsCmd(),
		c.reconcileCmd(),
		c.backupCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig layers defaults, the config file, the environment and flags.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return nil, err
	}
	if c.dataDir != "" {
		if cfg.Backup.Path == filepath.Join(cfg.DataDir, "backups") {
			cfg.Backup.Path = ""
		}
		cfg.DataDir = c.dataDir
		cfg.Resolve()
	}
	return cfg, nil
}

// withApp opens the database for a one-shot command and closes it afterwards.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, version)
	if err != nil {
		return err
	}
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
