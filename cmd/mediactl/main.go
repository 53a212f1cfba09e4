// Package main provides the mediactl CLI for inspecting and maintaining the
// media cache.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/mediacache/internal/config"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/mediadb"
	"github.com/cesargomez89/mediacache/internal/store"
)

var (
	// dbPath is set by the --db flag and overrides DB_PATH.
	dbPath string

	cfg   *config.Config
	log   *logger.Logger
	db    *store.DB
	cache *mediadb.MediaDB
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mediactl",
	Short: "mediactl manages the media cache database",
	Long: `mediactl inspects and maintains the SQLite media cache: schema
management, persisted state, library syncs from a local music folder,
table statistics and pruning.`,
	SilenceUsage:      true,
	PersistentPreRunE: openCache,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeCache()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default: DB_PATH or the config file)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(itemsCmd)
}

// openCache loads config and opens the database every command works on
func openCache(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	db, err = store.Open(store.Options{
		Path:              cfg.DBPath,
		BusyRetryInterval: cfg.BusyRetryInterval,
		BusyMaxAttempts:   cfg.BusyMaxAttempts,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	cache = mediadb.New(db, log, nil)
	return nil
}

func closeCache() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
