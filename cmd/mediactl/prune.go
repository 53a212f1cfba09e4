package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached entities outside the library and history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		before, err := cache.Stats(ctx)
		if err != nil {
			return err
		}
		if err := cache.PruneNonLibrary(ctx); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		after, err := cache.Stats(ctx)
		if err != nil {
			return err
		}

		removed := 0
		for table, n := range before {
			removed += n - after[table]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s rows\n", humanize.Comma(int64(removed)))
		return nil
	},
}
