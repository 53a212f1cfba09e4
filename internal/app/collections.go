package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/catalog"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/mediadb"
)

// CollectionReader opens cached collections with a lazy item list. Items
// are loaded from the owning provider and written back to the cache, or
// read from the cache alone when the provider is not registered or the
// read is offline.
type CollectionReader struct {
	Cache     *mediadb.MediaDB
	Providers *catalog.Manager
	ChunkSize int
	Logger    *logger.Logger
}

func NewCollectionReader(cache *mediadb.MediaDB, providers *catalog.Manager, chunkSize int, log *logger.Logger) *CollectionReader {
	if log == nil {
		log = logger.Default()
	}
	return &CollectionReader{Cache: cache, Providers: providers, ChunkSize: chunkSize, Logger: log.WithComponent("collections")}
}

func (r *CollectionReader) loader(uri string) domain.ItemsLoader {
	name, _, _ := strings.Cut(uri, ":")
	provider, err := r.Providers.Get(name)
	if err != nil {
		r.Logger.Debug("No provider for collection, reading cache only", "uri", uri)
		return r.Cache
	}
	return catalog.NewCachedLoader(provider, r.Cache, r.Logger)
}

// Open parses the cached collection without any items
func (r *CollectionReader) Open(ctx context.Context, uri string) (domain.TrackCollection, error) {
	obj, err := r.Cache.GetTrackCollectionJSON(ctx, uri, nil)
	if err != nil {
		return nil, err
	}
	parser := domain.Parser{Options: domain.CollectionOptions{Loader: r.loader(uri), ChunkSize: r.ChunkSize}}
	item, err := parser.Parse(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", uri, err)
	}
	c, ok := item.(domain.TrackCollection)
	if !ok {
		return nil, fmt.Errorf("%s is a %s, not a collection", uri, item.Kind())
	}
	return c, nil
}

// Tracks returns up to count tracks of the collection starting at start
func (r *CollectionReader) Tracks(ctx context.Context, uri string, start, count int, offline bool) ([]*domain.Track, error) {
	c, err := r.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	opts := asynclist.LoadOptions{Offline: offline}

	var tracks []*domain.Track
	switch c := c.(type) {
	case *domain.Album:
		items, err := c.Items().GetItems(ctx, start, count, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to load items of %s: %w", uri, err)
		}
		for _, item := range items {
			tracks = append(tracks, item.Track())
		}
	case *domain.Playlist:
		items, err := c.Items().GetItems(ctx, start, count, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to load items of %s: %w", uri, err)
		}
		for _, item := range items {
			tracks = append(tracks, item.Track())
		}
	}
	return tracks, nil
}
