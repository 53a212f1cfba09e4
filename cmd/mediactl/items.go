package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/mediacache/internal/app"
	"github.com/cesargomez89/mediacache/internal/catalog"
)

var (
	itemsStart int
	itemsCount int
)

var itemsCmd = &cobra.Command{
	Use:   "items <uri>",
	Short: "List the cached tracks of an album or playlist",
	Long: `Items reads a collection from the cache and lists its tracks, loading
them in chunks of CHUNK_SIZE.

Example:
  mediactl items localfiles:album:Band/Record --start 0 --count 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := app.NewCollectionReader(cache, catalog.NewManager(log), cfg.ChunkSize, log)
		tracks, err := reader.Tracks(cmd.Context(), args[0], itemsStart, itemsCount, true)
		if err != nil {
			return fmt.Errorf("items: %w", err)
		}
		for i, t := range tracks {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", itemsStart+i, t.URI, t.Name)
		}
		return nil
	},
}

func init() {
	itemsCmd.Flags().IntVar(&itemsStart, "start", 0, "first index")
	itemsCmd.Flags().IntVar(&itemsCount, "count", 50, "number of items")
}
