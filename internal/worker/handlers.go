package worker

import (
	"context"
	"log/slog"

	"github.com/cesargomez89/mediacache/internal/app"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/mediadb"
)

// LibrarySyncHandler syncs the provider named by the job's source id
type LibrarySyncHandler struct {
	Syncer *app.LibrarySyncer
}

func (h *LibrarySyncHandler) Handle(ctx context.Context, job *domain.Job, progress Progress, logger *slog.Logger) error {
	logger.Info("Syncing library", "provider", job.SourceID)
	return h.Syncer.Sync(ctx, job.SourceID, progress)
}

// PruneHandler drops cached entities outside the library
type PruneHandler struct {
	Cache *mediadb.MediaDB
}

func (h *PruneHandler) Handle(ctx context.Context, job *domain.Job, progress Progress, logger *slog.Logger) error {
	if err := h.Cache.PruneNonLibrary(ctx); err != nil {
		return err
	}
	stats, err := h.Cache.Stats(ctx)
	if err != nil {
		logger.Warn("Failed to read cache stats after prune", "error", err)
		return progress(1)
	}
	logger.Info("Pruned cache", "stats", stats)
	return progress(1)
}
