package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/mediacache/internal/app"
	"github.com/cesargomez89/mediacache/internal/catalog"
	"github.com/cesargomez89/mediacache/internal/constants"
)

var syncPageSize int

var syncCmd = &cobra.Command{
	Use:   "sync <dir>",
	Short: "Sync the library from a local music folder",
	Long: `Sync scans dir for tagged audio files and caches them as the library of
the localfiles provider. An interrupted sync resumes after the last
committed page.

Example:
  mediactl sync ~/Music`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().IntVar(&syncPageSize, "page-size", catalog.DefaultLocalPageSize, "tracks per committed page")
}

func runSync(cmd *cobra.Command, args []string) error {
	providers := catalog.NewManager(log)
	providers.Register(catalog.NewLocalProvider(args[0], syncPageSize, log))
	syncer := app.NewLibrarySyncer(cache, providers, log, nil)

	out := cmd.OutOrStdout()
	err := syncer.Sync(cmd.Context(), constants.ProviderLocalFiles, func(p float64) error {
		fmt.Fprintf(out, "\rSyncing %s: %3.0f%%", args[0], p*100)
		return nil
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	tracks, err := cache.GetSavedTracksCount(cmd.Context(), constants.ProviderLocalFiles)
	if err != nil {
		return err
	}
	albums, err := cache.GetSavedAlbumsCount(cmd.Context(), constants.ProviderLocalFiles)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Library has %d tracks on %d albums\n", tracks, albums)
	return nil
}
