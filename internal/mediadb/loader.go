package mediadb

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
	"github.com/cesargomez89/mediacache/internal/transform"
)

const loadSource = "cache"

// LoadAlbumItems fills album slots in [index, index+count) from the cache.
// Slots with no stored item are left untouched.
func (m *MediaDB) LoadAlbumItems(ctx context.Context, album *domain.Album, mu *asynclist.Mutator[*domain.AlbumItem], index, count int, _ asynclist.LoadOptions) (err error) {
	defer func() { m.metrics.CollectionLoad(loadSource, err) }()

	var parser domain.Parser
	items, total, err := loadItems(ctx, m, album.URI, index, count, func(obj transform.Object) (*domain.AlbumItem, error) {
		return parser.AlbumItem(album, obj)
	})
	if err != nil {
		return err
	}
	applyRuns(mu, items, total)
	return nil
}

// LoadPlaylistItems fills playlist slots in [index, index+count) from the
// cache
func (m *MediaDB) LoadPlaylistItems(ctx context.Context, playlist *domain.Playlist, mu *asynclist.Mutator[*domain.PlaylistItem], index, count int, _ asynclist.LoadOptions) (err error) {
	defer func() { m.metrics.CollectionLoad(loadSource, err) }()

	var parser domain.Parser
	items, total, err := loadItems(ctx, m, playlist.URI, index, count, func(obj transform.Object) (*domain.PlaylistItem, error) {
		return parser.PlaylistItem(playlist, obj)
	})
	if err != nil {
		return err
	}
	applyRuns(mu, items, total)
	return nil
}

// loadItems reads the collection row and its items in one transaction.
// A collection that was never cached yields no items.
func loadItems[I any](ctx context.Context, m *MediaDB, uri string, index, count int, parse func(transform.Object) (I, error)) (map[int]I, *int, error) {
	coll, err := m.GetTrackCollectionJSON(ctx, uri, sqlbuild.Range(index, index+count))
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var total *int
	if n, ok := transform.Int(coll, "itemCount"); ok {
		total = &n
	}

	stored, _ := coll["items"].(transform.Object)
	items := make(map[int]I, len(stored))
	for key, value := range stored {
		i, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		obj, ok := value.(transform.Object)
		if !ok {
			return nil, nil, fmt.Errorf("%w: item %d of %s is not an object", transform.ErrShape, i, uri)
		}
		item, err := parse(obj)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse item %d of %s: %w", i, uri, err)
		}
		items[i] = item
	}
	return items, total, nil
}

// applyRuns writes each contiguous run of items with one Apply, all under
// a single lock. A stored item count fixes an unknown size first.
func applyRuns[I asynclist.Mergeable[I]](mu *asynclist.Mutator[I], items map[int]I, total *int) {
	indexes := slices.Sorted(maps.Keys(items))
	mu.Lock(func() {
		if total != nil && !mu.SizeKnown() {
			mu.Resize(*total)
		}
		for start := 0; start < len(indexes); {
			end := start + 1
			for end < len(indexes) && indexes[end] == indexes[end-1]+1 {
				end++
			}
			run := make([]I, 0, end-start)
			for _, i := range indexes[start:end] {
				run = append(run, items[i])
			}
			mu.Apply(indexes[start], run)
			start = end
		}
	})
}
