package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/mediacache/internal/mediadb"
)

var initPurge bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the cache schema",
	Long: `Init creates every cache table that does not exist yet. With --purge
all tables are dropped first, discarding the cached data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cache.Initialize(cmd.Context(), mediadb.InitOptions{Purge: initPurge}); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", db.Path())
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the database file and start empty",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cache.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", db.Path())
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every table",
	Long:  `Purge drops every table. Run init to recreate the schema.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cache.Purge(cmd.Context()); err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", db.Path())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initPurge, "purge", false, "drop all tables before creating them")
}
