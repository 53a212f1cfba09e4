package mediadb

import (
	"context"
	"fmt"

	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
	"github.com/cesargomez89/mediacache/internal/store"
	"github.com/cesargomez89/mediacache/internal/transform"
)

// CacheLibraryItems writes saved tracks, albums and playlists and followed
// artists and users together with their entities
func (m *MediaDB) CacheLibraryItems(ctx context.Context, items []*domain.LibraryItem, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		return b.AddLibraryItems(items...)
	})
}

// CacheLibraryPage writes library items like CacheLibraryItems and also
// the loaded items of every saved album and playlist, in one transaction
func (m *MediaDB) CacheLibraryPage(ctx context.Context, items []*domain.LibraryItem, opts CacheOptions) error {
	return m.write(ctx, sqlbuild.Options{}, opts, func(b *sqlbuild.Batch) error {
		if err := b.AddLibraryItems(items...); err != nil {
			return err
		}
		for _, item := range items {
			if c, ok := item.MediaItem.(domain.TrackCollection); ok {
				if err := b.AddTrackCollectionItems(c, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetLibraryItemsJSON returns one page of kind and the total count, read
// in the same transaction
func (m *MediaDB) GetLibraryItemsJSON(ctx context.Context, kind sqlbuild.LibraryKind, opts sqlbuild.LibraryItemSelectOptions) (*Page, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		if err := sqlbuild.CountLibraryItems(tx, "count", kind, opts.LibraryProvider); err != nil {
			return err
		}
		return sqlbuild.SelectLibraryItems(tx, "items", kind, opts)
	})
	if err != nil {
		return nil, err
	}
	return &Page{Items: objects(results, "items"), Total: count(results, "count")}, nil
}

func (m *MediaDB) GetLibraryItemCount(ctx context.Context, kind sqlbuild.LibraryKind, provider string) (int, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		return sqlbuild.CountLibraryItems(tx, "count", kind, provider)
	})
	if err != nil {
		return 0, err
	}
	return count(results, "count"), nil
}

// GetLibraryItemJSON returns the library entries for uri, one per library
// provider unless provider is set
func (m *MediaDB) GetLibraryItemJSON(ctx context.Context, kind sqlbuild.LibraryKind, uri, provider string) ([]transform.Object, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		return sqlbuild.SelectLibraryItem(tx, "items", kind, uri, provider)
	})
	if err != nil {
		return nil, err
	}
	items := objects(results, "items")
	if len(items) == 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, uri, ErrNotFound)
	}
	return items, nil
}

// HasLibraryItems reports, per uri, whether it is in the library
func (m *MediaDB) HasLibraryItems(ctx context.Context, kind sqlbuild.LibraryKind, uris []string, provider string) ([]bool, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		return sqlbuild.SelectSavedURIs(tx, "uris", kind, uris, provider)
	})
	if err != nil {
		return nil, err
	}
	saved := make(map[string]bool)
	for _, row := range results.Rows("uris") {
		if uri, ok := row["uri"].(string); ok {
			saved[uri] = true
		}
	}
	out := make([]bool, len(uris))
	for i, uri := range uris {
		out[i] = saved[uri]
	}
	return out, nil
}

// DeleteLibraryItems removes library entries for uris. Entities stay
// cached until PruneNonLibrary.
func (m *MediaDB) DeleteLibraryItems(ctx context.Context, kind sqlbuild.LibraryKind, uris []string, provider string, opts CacheOptions) error {
	tx := store.NewTx()
	if err := sqlbuild.DeleteLibraryItems(tx, kind, uris, provider); err != nil {
		return err
	}
	b := sqlbuild.NewBatch(sqlbuild.Options{})
	b.SetState(opts.DBState)
	if err := b.Build(tx); err != nil {
		return err
	}
	if tx.Len() == 0 {
		return nil
	}
	if _, err := m.db.Transaction(ctx, tx, store.TxOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return nil
}

func (m *MediaDB) GetSavedTracksJSON(ctx context.Context, opts sqlbuild.LibraryItemSelectOptions) (*Page, error) {
	return m.GetLibraryItemsJSON(ctx, sqlbuild.SavedTracks, opts)
}

func (m *MediaDB) GetSavedAlbumsJSON(ctx context.Context, opts sqlbuild.LibraryItemSelectOptions) (*Page, error) {
	return m.GetLibraryItemsJSON(ctx, sqlbuild.SavedAlbums, opts)
}

func (m *MediaDB) GetSavedPlaylistsJSON(ctx context.Context, opts sqlbuild.LibraryItemSelectOptions) (*Page, error) {
	return m.GetLibraryItemsJSON(ctx, sqlbuild.SavedPlaylists, opts)
}

func (m *MediaDB) GetFollowedArtistsJSON(ctx context.Context, opts sqlbuild.LibraryItemSelectOptions) (*Page, error) {
	return m.GetLibraryItemsJSON(ctx, sqlbuild.FollowedArtists, opts)
}

func (m *MediaDB) GetFollowedUserAccountsJSON(ctx context.Context, opts sqlbuild.LibraryItemSelectOptions) (*Page, error) {
	return m.GetLibraryItemsJSON(ctx, sqlbuild.FollowedUserAccounts, opts)
}

func (m *MediaDB) GetSavedTracksCount(ctx context.Context, provider string) (int, error) {
	return m.GetLibraryItemCount(ctx, sqlbuild.SavedTracks, provider)
}

func (m *MediaDB) GetSavedAlbumsCount(ctx context.Context, provider string) (int, error) {
	return m.GetLibraryItemCount(ctx, sqlbuild.SavedAlbums, provider)
}

func (m *MediaDB) GetSavedPlaylistsCount(ctx context.Context, provider string) (int, error) {
	return m.GetLibraryItemCount(ctx, sqlbuild.SavedPlaylists, provider)
}

func (m *MediaDB) GetFollowedArtistsCount(ctx context.Context, provider string) (int, error) {
	return m.GetLibraryItemCount(ctx, sqlbuild.FollowedArtists, provider)
}

func (m *MediaDB) GetFollowedUserAccountsCount(ctx context.Context, provider string) (int, error) {
	return m.GetLibraryItemCount(ctx, sqlbuild.FollowedUserAccounts, provider)
}

func (m *MediaDB) GetSavedTrackJSON(ctx context.Context, uri, provider string) ([]transform.Object, error) {
	return m.GetLibraryItemJSON(ctx, sqlbuild.SavedTracks, uri, provider)
}

func (m *MediaDB) GetSavedAlbumJSON(ctx context.Context, uri, provider string) ([]transform.Object, error) {
	return m.GetLibraryItemJSON(ctx, sqlbuild.SavedAlbums, uri, provider)
}

func (m *MediaDB) GetSavedPlaylistJSON(ctx context.Context, uri, provider string) ([]transform.Object, error) {
	return m.GetLibraryItemJSON(ctx, sqlbuild.SavedPlaylists, uri, provider)
}

func (m *MediaDB) HasSavedTracks(ctx context.Context, uris []string, provider string) ([]bool, error) {
	return m.HasLibraryItems(ctx, sqlbuild.SavedTracks, uris, provider)
}

func (m *MediaDB) HasSavedAlbums(ctx context.Context, uris []string, provider string) ([]bool, error) {
	return m.HasLibraryItems(ctx, sqlbuild.SavedAlbums, uris, provider)
}

func (m *MediaDB) HasSavedPlaylists(ctx context.Context, uris []string, provider string) ([]bool, error) {
	return m.HasLibraryItems(ctx, sqlbuild.SavedPlaylists, uris, provider)
}

func (m *MediaDB) DeleteSavedTracks(ctx context.Context, uris []string, provider string, opts CacheOptions) error {
	return m.DeleteLibraryItems(ctx, sqlbuild.SavedTracks, uris, provider, opts)
}

func (m *MediaDB) DeleteSavedAlbums(ctx context.Context, uris []string, provider string, opts CacheOptions) error {
	return m.DeleteLibraryItems(ctx, sqlbuild.SavedAlbums, uris, provider, opts)
}

func (m *MediaDB) DeleteSavedPlaylists(ctx context.Context, uris []string, provider string, opts CacheOptions) error {
	return m.DeleteLibraryItems(ctx, sqlbuild.SavedPlaylists, uris, provider, opts)
}

func (m *MediaDB) DeleteFollowedArtists(ctx context.Context, uris []string, provider string, opts CacheOptions) error {
	return m.DeleteLibraryItems(ctx, sqlbuild.FollowedArtists, uris, provider, opts)
}

func (m *MediaDB) DeleteFollowedUserAccounts(ctx context.Context, uris []string, provider string, opts CacheOptions) error {
	return m.DeleteLibraryItems(ctx, sqlbuild.FollowedUserAccounts, uris, provider, opts)
}

// GetLibraryArtistsJSON returns the artists of saved tracks by name
func (m *MediaDB) GetLibraryArtistsJSON(ctx context.Context, opts sqlbuild.LibraryItemSelectOptions) (*Page, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		sqlbuild.CountLibraryArtists(tx, "count", opts.LibraryProvider)
		sqlbuild.SelectLibraryArtists(tx, "items", opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Page{Items: objects(results, "items"), Total: count(results, "count")}, nil
}

func (m *MediaDB) GetPlaybackHistoryItemsJSON(ctx context.Context, opts sqlbuild.HistorySelectOptions) (*Page, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		sqlbuild.CountPlaybackHistoryItems(tx, "count")
		sqlbuild.SelectPlaybackHistoryItems(tx, "items", opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Page{Items: objects(results, "items"), Total: count(results, "count")}, nil
}
