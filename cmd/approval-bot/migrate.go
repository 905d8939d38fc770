package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sahanuj/telegram-post-approve/internal/config"
	"github.com/Sahanuj/telegram-post-approve/internal/logging"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the SQLite store",
	Long: `migrate opens the SQLite database and applies the embedded migrations.
serve does the same on startup; run this ahead of a deploy to surface
schema errors early. Other backends need no migration.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().String("sqlite-path", "approvals.db", "SQLite database file")
	mustBind(v, migrateCmd.Flags(), "store.sqlite_path", "sqlite-path")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	logging.Init()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	if backend := v.GetString("store.backend"); backend != config.BackendSQLite {
		log.Info().Str("backend", backend).Msg("Store backend needs no migration")
		return nil
	}

	path := v.GetString("store.sqlite_path")
	s, err := store.OpenSQLite(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer s.Close()

	schema, err := s.Version(cmd.Context())
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int64("version", schema).Msg("SQLite schema up to date")
	return nil
}
