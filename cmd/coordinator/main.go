package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arnac-io/multisig-coordinator/pkg/app"
	"github.com/arnac-io/multisig-coordinator/pkg/config"
	"github.com/arnac-io/multisig-coordinator/pkg/dbstorage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "coordinator",
	Short:         "N-of-M multisig coordination service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the blockchain client runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

// migrateCmd only applies pending schema migrations, which NewDbStorage does
// on open.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log := app.Logger(cfg.App.LogLevel)
		storage, err := dbstorage.NewDbStorage(cmd.Context(), log, cfg.DB.URL)
		if err != nil {
			return err
		}
		log.Info("database is up to date")
		return storage.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "coordinator:", err)
		os.Exit(1)
	}
}
