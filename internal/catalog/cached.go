package catalog

import (
	"context"
	"fmt"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/mediadb"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
)

// Cache is the local store a CachedLoader reads offline loads from and
// persists remote loads to
type Cache interface {
	domain.ItemsLoader
	CacheTrackCollectionItems(ctx context.Context, collection domain.TrackCollection, r *sqlbuild.IndexRange, opts mediadb.CacheOptions) error
}

// CachedLoader loads collection items from the cache when offline and
// from the provider otherwise, caching what the provider returned
type CachedLoader struct {
	provider Provider
	cache    Cache
	logger   *logger.Logger
}

func NewCachedLoader(provider Provider, cache Cache, log *logger.Logger) *CachedLoader {
	if log == nil {
		log = logger.Default()
	}
	return &CachedLoader{
		provider: provider,
		cache:    cache,
		logger:   log.WithProvider(provider.Name()),
	}
}

func (c *CachedLoader) LoadAlbumItems(ctx context.Context, album *domain.Album, m *asynclist.Mutator[*domain.AlbumItem], index, count int, opts asynclist.LoadOptions) error {
	if opts.Offline {
		return c.cache.LoadAlbumItems(ctx, album, m, index, count, opts)
	}
	if err := c.provider.LoadAlbumItems(ctx, album, m, index, count, opts); err != nil {
		return err
	}
	return c.persist(ctx, album, index, count)
}

func (c *CachedLoader) LoadPlaylistItems(ctx context.Context, playlist *domain.Playlist, m *asynclist.Mutator[*domain.PlaylistItem], index, count int, opts asynclist.LoadOptions) error {
	if opts.Offline {
		return c.cache.LoadPlaylistItems(ctx, playlist, m, index, count, opts)
	}
	if err := c.provider.LoadPlaylistItems(ctx, playlist, m, index, count, opts); err != nil {
		return err
	}
	return c.persist(ctx, playlist, index, count)
}

func (c *CachedLoader) persist(ctx context.Context, collection domain.TrackCollection, index, count int) error {
	uri := collection.Media().URI
	if err := c.cache.CacheTrackCollectionItems(ctx, collection, sqlbuild.Range(index, index+count), mediadb.CacheOptions{}); err != nil {
		c.logger.Error("Failed to cache collection items", "uri", uri, "error", err)
		return fmt.Errorf("failed to cache items of %s: %w", uri, err)
	}
	c.logger.Debug("Cached collection items", "uri", uri, "index", index, "count", count)
	return nil
}

var _ domain.ItemsLoader = (*CachedLoader)(nil)
