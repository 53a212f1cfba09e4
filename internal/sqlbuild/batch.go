package sqlbuild

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/store"
)

// entitySet keeps one entity per URI in first-seen order. A full entity
// is never replaced by a partial one.
type entitySet[T domain.MediaItem] struct {
	order []string
	items map[string]T
}

func (s *entitySet[T]) add(item T) {
	uri := item.Media().URI
	if s.items == nil {
		s.items = make(map[string]T)
	}
	if old, ok := s.items[uri]; ok {
		if item.NeedsData() && !old.NeedsData() {
			return
		}
	} else {
		s.order = append(s.order, uri)
	}
	s.items[uri] = item
}

func (s *entitySet[T]) has(uri string) bool {
	_, ok := s.items[uri]
	return ok
}

func (s *entitySet[T]) len() int {
	return len(s.order)
}

// partition splits the set into full and partial entities
func (s *entitySet[T]) partition() (full, partial []T) {
	for _, uri := range s.order {
		item := s.items[uri]
		if item.NeedsData() {
			partial = append(partial, item)
		} else {
			full = append(full, item)
		}
	}
	return full, partial
}

type itemEntry struct {
	index  int
	record domain.ItemRecord
}

type itemRun struct {
	collectionURI string
	// deleteFrom drops stored items at or past this index when set
	deleteFrom *int
	entries    []itemEntry
}

// Batch collects entities and writes them in dependency order. Nothing
// is queued until Build.
type Batch struct {
	opts        Options
	artists     entitySet[*domain.Artist]
	users       entitySet[*domain.UserAccount]
	collections entitySet[domain.TrackCollection]
	tracks      entitySet[*domain.Track]

	// albums seeded from track references, keyed by album URI
	derivedAlbums     map[string]*domain.Track
	derivedAlbumOrder []string
	albumItems        []*domain.Track

	items   []itemRun
	library []*domain.LibraryItem
	history []*domain.PlaybackHistoryItem
	state   map[string]string
}

func NewBatch(opts Options) *Batch {
	return &Batch{opts: opts, derivedAlbums: make(map[string]*domain.Track)}
}

// Empty reports whether Build would queue nothing
func (b *Batch) Empty() bool {
	return b.artists.len() == 0 && b.users.len() == 0 && b.collections.len() == 0 &&
		b.tracks.len() == 0 && len(b.items) == 0 && len(b.library) == 0 &&
		len(b.history) == 0 && len(b.state) == 0
}

func (b *Batch) AddArtists(artists ...*domain.Artist) {
	for _, a := range artists {
		b.artists.add(a)
	}
}

func (b *Batch) AddUserAccounts(users ...*domain.UserAccount) {
	for _, u := range users {
		b.users.add(u)
	}
}

// AddTracks adds tracks with their artists, and seeds each track's album
// and album slot when the track carries them
func (b *Batch) AddTracks(tracks ...*domain.Track) {
	for _, t := range tracks {
		b.addTrack(t, true)
	}
}

func (b *Batch) addTrack(t *domain.Track, withAlbum bool) {
	b.tracks.add(t)
	for _, a := range t.Artists {
		b.artists.add(a)
	}
	if !withAlbum || !t.HasAlbum() {
		return
	}
	if _, ok := b.derivedAlbums[t.AlbumURI]; !ok {
		b.derivedAlbums[t.AlbumURI] = t
		b.derivedAlbumOrder = append(b.derivedAlbumOrder, t.AlbumURI)
	}
	if _, ok := t.AlbumIndex(); ok {
		b.albumItems = append(b.albumItems, t)
	}
}

// AddTrackCollections adds albums and playlists with their artists and
// owners. Items are not written.
func (b *Batch) AddTrackCollections(collections ...domain.TrackCollection) {
	for _, c := range collections {
		b.collections.add(c)
		info := c.CollectionInfo()
		for _, a := range info.Artists {
			b.artists.add(a)
		}
		if info.Owner != nil {
			b.users.add(info.Owner)
		}
	}
}

// AddTrackCollectionItems adds the loaded items of collection in r, or
// all loaded items when r is nil. A known item count drops stored items
// past the end.
func (b *Batch) AddTrackCollectionItems(collection domain.TrackCollection, r *IndexRange) error {
	uri := collection.Media().URI
	_, isAlbum := collection.(*domain.Album)
	info := collection.CollectionInfo()

	run := itemRun{collectionURI: uri, deleteFrom: info.ItemCount}
	start, end := 0, -1
	if r != nil {
		start, end = r.Start, r.End
	}
	var err error
	collection.ForEachItem(start, end, func(item domain.TrackCollectionItem, index int) {
		if err != nil {
			return
		}
		contextURI, ok := item.ContextURI()
		if !ok || contextURI != uri {
			err = fmt.Errorf("%w: item %d is not attached to %s", ErrInvalidArgument, index, uri)
			return
		}
		record := item.Record()
		if record.Track == nil {
			err = fmt.Errorf("%w: item %d of %s has no track", ErrInvalidArgument, index, uri)
			return
		}
		run.entries = append(run.entries, itemEntry{index: index, record: record})
	})
	if err != nil {
		return err
	}

	b.AddTrackCollections(collection)
	for _, e := range run.entries {
		b.addTrack(e.record.Track, !isAlbum)
		if e.record.AddedBy != nil {
			b.users.add(e.record.AddedBy)
		}
	}
	b.items = append(b.items, run)
	return nil
}

// AddLibraryItems adds saved or followed entries and their entities
func (b *Batch) AddLibraryItems(items ...*domain.LibraryItem) error {
	for _, item := range items {
		switch m := item.MediaItem.(type) {
		case *domain.Track:
			b.addTrack(m, true)
		case *domain.Album:
			b.AddTrackCollections(m)
		case *domain.Playlist:
			b.AddTrackCollections(m)
		case *domain.Artist:
			b.artists.add(m)
		case *domain.UserAccount:
			b.users.add(m)
		default:
			return fmt.Errorf("%w: library item has no media item", ErrInvalidArgument)
		}
		if item.LibraryProvider == "" {
			return fmt.Errorf("%w: library item %s has no library provider", ErrInvalidArgument, item.MediaItem.Media().URI)
		}
		b.library = append(b.library, item)
	}
	return nil
}

func (b *Batch) AddPlaybackHistoryItems(items ...*domain.PlaybackHistoryItem) error {
	for _, item := range items {
		if item.Track == nil {
			return fmt.Errorf("%w: history item at %s has no track", ErrInvalidArgument, item.StartTime)
		}
		b.addTrack(item.Track, true)
		b.history = append(b.history, item)
	}
	return nil
}

// SetState stores DBState values in the same transaction
func (b *Batch) SetState(state map[string]string) {
	if len(state) == 0 {
		return
	}
	if b.state == nil {
		b.state = make(map[string]string, len(state))
	}
	maps.Copy(b.state, state)
}

// Build queues the batch on tx
func (b *Batch) Build(tx *store.Tx) error {
	steps := []func(*store.Tx) error{
		b.buildArtists,
		b.buildUsers,
		b.buildCollections,
		b.buildCollectionArtists,
		b.buildTracks,
		b.buildTrackArtists,
		b.buildItems,
		b.buildLibrary,
		b.buildHistory,
		b.buildState,
	}
	for _, step := range steps {
		if err := step(tx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) buildArtists(tx *store.Tx) error {
	return buildAccounts(tx, constants.TableArtist, &b.artists)
}

func (b *Batch) buildUsers(tx *store.Tx) error {
	return buildAccounts(tx, constants.TableUserAccount, &b.users)
}

func buildAccounts[T domain.MediaItem](tx *store.Tx, table string, set *entitySet[T]) error {
	full, partial := set.partition()
	for _, group := range []struct {
		items    []T
		coalesce bool
	}{{full, false}, {partial, true}} {
		u := newUpsert(table, withUpdateTime(artistColumns)...)
		for _, item := range group.items {
			accountRow(u, item.Media(), group.coalesce)
		}
		if err := u.addTo(tx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) buildCollections(tx *store.Tx) error {
	full, partial := b.collections.partition()
	for _, group := range []struct {
		items    []domain.TrackCollection
		coalesce bool
	}{{full, false}, {partial, true}} {
		u := newUpsert(constants.TableTrackCollection, withUpdateTime(collectionColumns)...)
		for _, c := range group.items {
			collectionRow(u, c, group.coalesce, b.opts.UpdateVersionID)
		}
		if err := u.addTo(tx); err != nil {
			return err
		}
	}

	u := newUpsert(constants.TableTrackCollection, withUpdateTime(collectionColumns)...)
	for _, uri := range b.derivedAlbumOrder {
		if b.collections.has(uri) {
			continue
		}
		albumFromTrackRow(u, b.derivedAlbums[uri])
	}
	return u.addTo(tx)
}

func (b *Batch) buildCollectionArtists(tx *store.Tx) error {
	u := newUpsert(constants.TableTrackCollectionArtist, "collectionURI", "artistURI", updateTimeColumn)
	for _, uri := range b.collections.order {
		for _, a := range b.collections.items[uri].CollectionInfo().Artists {
			linkRow(u, uri, a.URI)
		}
	}
	return u.addTo(tx)
}

func (b *Batch) buildTracks(tx *store.Tx) error {
	full, partial := b.tracks.partition()
	for _, group := range []struct {
		items    []*domain.Track
		coalesce bool
	}{{full, false}, {partial, true}} {
		u := newUpsert(constants.TableTrack, withUpdateTime(trackColumns)...)
		for _, t := range group.items {
			trackRow(u, t, group.coalesce)
		}
		if err := u.addTo(tx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) buildTrackArtists(tx *store.Tx) error {
	u := newUpsert(constants.TableTrackArtist, "trackURI", "artistURI", updateTimeColumn)
	for _, uri := range b.tracks.order {
		for _, a := range b.tracks.items[uri].Artists {
			linkRow(u, uri, a.URI)
		}
	}
	return u.addTo(tx)
}

func (b *Batch) buildItems(tx *store.Tx) error {
	written := make(map[string]bool, len(b.items))
	u := newUpsert(constants.TableTrackCollectionItem, withUpdateTime(itemColumns)...)
	for _, run := range b.items {
		written[run.collectionURI] = true
		if run.deleteFrom != nil {
			tx.AddSQL("DELETE FROM TrackCollectionItem WHERE collectionURI = ? AND indexNum >= ?",
				[]any{run.collectionURI, *run.deleteFrom})
		}
		for _, e := range run.entries {
			itemRow(u, run.collectionURI, e.index, e.record)
		}
	}
	if err := u.addTo(tx); err != nil {
		return err
	}

	albums := newUpsert(constants.TableTrackCollectionItem, withUpdateTime(albumItemColumns)...)
	for _, t := range b.albumItems {
		if written[t.AlbumURI] {
			continue
		}
		albumItemRow(albums, t)
	}
	return albums.addTo(tx)
}

func (b *Batch) buildLibrary(tx *store.Tx) error {
	upserts := make(map[LibraryKind]*upsert)
	for _, item := range b.library {
		kind, ok := KindForTable(item.LibraryTable())
		if !ok {
			return fmt.Errorf("%w: no library table for %s", ErrInvalidArgument, item.MediaItem.Kind())
		}
		u, ok := upserts[kind]
		if !ok {
			info := libraryKinds[kind]
			u = newUpsert(info.table, withUpdateTime(libraryColumns(info.column))...)
			upserts[kind] = u
		}
		libraryRow(u, item)
	}
	for _, kind := range slices.Sorted(maps.Keys(upserts)) {
		if err := upserts[kind].addTo(tx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) buildHistory(tx *store.Tx) error {
	u := newUpsert(constants.TablePlaybackHistoryItem, withUpdateTime(historyColumns)...)
	for _, item := range b.history {
		historyRow(u, item)
	}
	return u.addTo(tx)
}

func (b *Batch) buildState(tx *store.Tx) error {
	u := newUpsert(constants.TableDBState, withUpdateTime(stateColumns)...)
	for _, key := range slices.Sorted(maps.Keys(b.state)) {
		v := u.row("")
		v.bind(key)
		v.bind(b.state[key])
		v.raw(currentTimestamp)
	}
	return u.addTo(tx)
}
