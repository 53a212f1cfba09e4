package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cesargomez89/mediacache/internal/catalog"
	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/mediadb"
	"github.com/cesargomez89/mediacache/internal/metrics"
)

// LibrarySyncer pulls a provider's library into the cache page by page.
// Each page is committed together with the resume data that follows it,
// so an interrupted sync restarts after the last committed page.
type LibrarySyncer struct {
	Cache     *mediadb.MediaDB
	Providers *catalog.Manager
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

func NewLibrarySyncer(cache *mediadb.MediaDB, providers *catalog.Manager, log *logger.Logger, m *metrics.Metrics) *LibrarySyncer {
	if log == nil {
		log = logger.Default()
	}
	return &LibrarySyncer{Cache: cache, Providers: providers, Logger: log.WithComponent("sync"), Metrics: m}
}

func resumeKey(provider string) string {
	return constants.SyncResumeDataKeyPrefix + provider
}

func lastFinishedKey(provider string) string {
	return constants.SyncLastFinishedPrefix + provider
}

// Sync walks the library of the named provider. progress is called after
// every committed page; an error from it stops the walk.
func (s *LibrarySyncer) Sync(ctx context.Context, name string, progress func(float64) error) error {
	provider, err := s.Providers.Get(name)
	if err != nil {
		return err
	}
	log := s.Logger.WithProvider(name)

	resume, err := s.Cache.GetStateValue(ctx, resumeKey(name), "")
	if err != nil {
		return fmt.Errorf("failed to read sync state: %w", err)
	}
	if resume != "" {
		log.Info("Resuming library sync", "resume", resume)
	} else {
		log.Info("Starting library sync")
	}

	pages := 0
	err = provider.GenerateLibrary(ctx, resume, func(page *catalog.LibraryPage) error {
		state := map[string]string{resumeKey(name): page.ResumeData}
		if page.Done {
			state[resumeKey(name)] = ""
			state[lastFinishedKey(name)] = time.Now().UTC().Format(time.RFC3339)
		}
		if err := s.Cache.CacheLibraryPage(ctx, page.Items, mediadb.CacheOptions{DBState: state}); err != nil {
			return fmt.Errorf("failed to cache library page: %w", err)
		}
		pages++
		s.Metrics.SyncPage(name)
		log.Debug("Cached library page", "items", len(page.Items), "progress", page.Progress)
		if progress != nil {
			return progress(page.Progress)
		}
		return nil
	})
	if err != nil {
		log.Error("Library sync stopped", "pages", pages, "error", err)
		return err
	}
	log.Info("Library sync finished", "pages", pages)
	return nil
}

// LastFinished returns when the last complete sync of the named provider
// committed its final page
func (s *LibrarySyncer) LastFinished(ctx context.Context, name string) (time.Time, bool, error) {
	v, err := s.Cache.GetStateValue(ctx, lastFinishedKey(name), "")
	if err != nil || v == "" {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse sync time %q: %w", v, err)
	}
	return t, true, nil
}
