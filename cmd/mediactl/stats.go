package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cesargomez89/mediacache/internal/app"
	"github.com/cesargomez89/mediacache/internal/catalog"
	"github.com/cesargomez89/mediacache/internal/constants"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show table sizes and sync status",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stats, err := cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	tables := make([]string, 0, len(stats))
	for table := range stats {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if info, err := os.Stat(db.Path()); err == nil {
		fmt.Fprintf(tw, "database\t%s\t%s\n", db.Path(), humanize.Bytes(uint64(info.Size()))) //nolint:gosec // file sizes are non-negative
	}
	for _, table := range tables {
		fmt.Fprintf(tw, "%s\t%s\n", table, humanize.Comma(int64(stats[table])))
	}

	syncer := app.NewLibrarySyncer(cache, catalog.NewManager(log), log, nil)
	for _, provider := range []string{constants.ProviderLocalFiles, constants.ProviderMock} {
		finished, ok, err := syncer.LastFinished(ctx, provider)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(tw, "last sync (%s)\t%s\n", provider, humanize.Time(finished))
		}
	}

	jobs, err := app.NewJobService(db, log).GetJobStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "finished jobs\t%d completed, %d failed, %d cancelled\n", jobs.Completed, jobs.Failed, jobs.Cancelled)
	return tw.Flush()
}
