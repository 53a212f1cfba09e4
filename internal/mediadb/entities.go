package mediadb

import (
	"context"
	"fmt"

	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
	"github.com/cesargomez89/mediacache/internal/store"
	"github.com/cesargomez89/mediacache/internal/transform"
)

func (m *MediaDB) CacheTracks(ctx context.Context, tracks []*domain.Track, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		b.AddTracks(tracks...)
		return nil
	})
}

func (m *MediaDB) CacheArtists(ctx context.Context, artists []*domain.Artist, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		b.AddArtists(artists...)
		return nil
	})
}

func (m *MediaDB) CacheUserAccounts(ctx context.Context, users []*domain.UserAccount, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		b.AddUserAccounts(users...)
		return nil
	})
}

// CacheTrackCollections writes collections without their items. A stored
// versionId is kept.
func (m *MediaDB) CacheTrackCollections(ctx context.Context, collections []domain.TrackCollection, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		b.AddTrackCollections(collections...)
		return nil
	})
}

// UpdateTrackCollectionVersionID writes collection and overwrites its
// stored versionId
func (m *MediaDB) UpdateTrackCollectionVersionID(ctx context.Context, collection domain.TrackCollection, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{UpdateVersionID: true}, opts, func(b *sqlbuild.Batch) error {
		b.AddTrackCollections(collection)
		return nil
	})
}

// CacheTrackCollectionItems writes the loaded items of collection within
// r, or every loaded item when r is nil
func (m *MediaDB) CacheTrackCollectionItems(ctx context.Context, collection domain.TrackCollection, r *sqlbuild.IndexRange, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		return b.AddTrackCollectionItems(collection, r)
	})
}

func (m *MediaDB) CachePlaybackHistoryItems(ctx context.Context, items []*domain.PlaybackHistoryItem, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		return b.AddPlaybackHistoryItems(items...)
	})
}

// GetTracksJSON returns one object per uri, nil where nothing is stored
func (m *MediaDB) GetTracksJSON(ctx context.Context, uris []string) ([]transform.Object, error) {
	return m.getByURI(ctx, uris, sqlbuild.SelectTracks)
}

func (m *MediaDB) GetTrackJSON(ctx context.Context, uri string) (transform.Object, error) {
	return m.getOne(ctx, "track", uri, sqlbuild.SelectTracks)
}

func (m *MediaDB) GetTrackCount(ctx context.Context) (int, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		sqlbuild.CountTracks(tx, "count")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count(results, "count"), nil
}

func (m *MediaDB) GetArtistsJSON(ctx context.Context, uris []string) ([]transform.Object, error) {
	return m.getByURI(ctx, uris, sqlbuild.SelectArtists)
}

func (m *MediaDB) GetArtistJSON(ctx context.Context, uri string) (transform.Object, error) {
	return m.getOne(ctx, "artist", uri, sqlbuild.SelectArtists)
}

func (m *MediaDB) GetUserAccountsJSON(ctx context.Context, uris []string) ([]transform.Object, error) {
	return m.getByURI(ctx, uris, sqlbuild.SelectUserAccounts)
}

func (m *MediaDB) GetUserAccountJSON(ctx context.Context, uri string) (transform.Object, error) {
	return m.getOne(ctx, "user account", uri, sqlbuild.SelectUserAccounts)
}

// GetTrackCollectionsJSON returns collections with owners, without items
func (m *MediaDB) GetTrackCollectionsJSON(ctx context.Context, uris []string) ([]transform.Object, error) {
	return m.getByURI(ctx, uris, sqlbuild.SelectTrackCollections)
}

// GetTrackCollectionJSON returns one collection. When r is set, the
// stored items in r are nested under "items" keyed by decimal index.
func (m *MediaDB) GetTrackCollectionJSON(ctx context.Context, uri string, r *sqlbuild.IndexRange) (transform.Object, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		sqlbuild.SelectTrackCollections(tx, "collection", []string{uri})
		if r != nil {
			sqlbuild.SelectTrackCollectionItems(tx, "items", uri, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	collections := objects(results, "collection")
	if len(collections) == 0 {
		return nil, fmt.Errorf("collection %s: %w", uri, ErrNotFound)
	}
	if r == nil {
		return collections[0], nil
	}
	return transform.CombineCollectionAndItems(collections[0], objects(results, "items")), nil
}

// GetTrackCollectionItemsJSON returns the stored items of uri in r by index
func (m *MediaDB) GetTrackCollectionItemsJSON(ctx context.Context, uri string, r sqlbuild.IndexRange) (map[int]transform.Object, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		sqlbuild.SelectTrackCollectionItems(tx, "items", uri, &r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return itemsByIndex(objects(results, "items")), nil
}

func itemsByIndex(items []transform.Object) map[int]transform.Object {
	out := make(map[int]transform.Object, len(items))
	for _, item := range items {
		if index, ok := transform.IndexNum(item); ok {
			out[index] = item
		}
	}
	return out
}

type uriSelect func(tx *store.Tx, outKey string, uris []string)

func (m *MediaDB) getByURI(ctx context.Context, uris []string, sel uriSelect) ([]transform.Object, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		sel(tx, "rows", uris)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inOrder(objects(results, "rows"), uris), nil
}

func (m *MediaDB) getOne(ctx context.Context, what, uri string, sel uriSelect) (transform.Object, error) {
	objs, err := m.getByURI(ctx, []string{uri}, sel)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 || objs[0] == nil {
		return nil, fmt.Errorf("%s %s: %w", what, uri, ErrNotFound)
	}
	return objs[0], nil
}
