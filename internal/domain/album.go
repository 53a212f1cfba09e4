package domain

import (
	"context"
	"weak"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/constants"
)

// ItemsLoader fills collection slots on demand
type ItemsLoader interface {
	LoadAlbumItems(ctx context.Context, album *Album, m *asynclist.Mutator[*AlbumItem], index, count int, opts asynclist.LoadOptions) error
	LoadPlaylistItems(ctx context.Context, playlist *Playlist, m *asynclist.Mutator[*PlaylistItem], index, count int, opts asynclist.LoadOptions) error
}

// AlbumItem is one track slot on an album
type AlbumItem struct {
	album weak.Pointer[Album]
	track *Track
}

// Context returns the owning album, or false once it has been collected
func (i *AlbumItem) Context() (*Album, bool) {
	a := i.album.Value()
	return a, a != nil
}

// ContextURI returns the owning album's URI
func (i *AlbumItem) ContextURI() (string, bool) {
	a, ok := i.Context()
	if !ok {
		return "", false
	}
	return a.URI, true
}

// IndexInContext returns the item's current position on its album
func (i *AlbumItem) IndexInContext() (int, bool) {
	a, ok := i.Context()
	if !ok {
		return -1, false
	}
	return a.items.IndexOfItemInstance(i)
}

func (i *AlbumItem) Track() *Track {
	return i.track
}

func (i *AlbumItem) Record() ItemRecord {
	return ItemRecord{Track: i.track}
}

func (i *AlbumItem) MatchesItem(other *AlbumItem) bool {
	return i.track.URI == other.track.URI
}

func (i *AlbumItem) MergeFrom(other *AlbumItem) {
	if i.track == other.track {
		return
	}
	_ = i.track.ApplyData(other.track)
}

// AlbumData describes an album and an optional initial run of its tracks
type AlbumData struct {
	MediaBase
	VersionID   string
	Artists     Artists
	ItemCount   *int
	ItemsOffset int
	Tracks      []*Track
}

type Album struct {
	MediaBase
	VersionID string
	Artists   Artists
	loader    ItemsLoader
	items     *CollectionItems[*AlbumItem]
}

// NewAlbum builds an album. Items whose storage cannot be satisfied from
// data are loaded through opts.Loader.
func NewAlbum(data AlbumData, opts CollectionOptions) *Album {
	a := &Album{MediaBase: data.MediaBase, VersionID: data.VersionID, Artists: data.Artists, loader: opts.Loader}
	if a.Type == "" {
		a.Type = constants.TypeAlbum
	}
	var delegate asynclist.Delegate[*AlbumItem]
	if opts.Loader != nil {
		delegate = asynclist.DelegateFunc[*AlbumItem](a.loadItems)
	}
	a.items = newCollectionItems(opts.chunkSize(), delegate)

	items := make([]*AlbumItem, len(data.Tracks))
	for i, t := range data.Tracks {
		items[i] = a.NewItem(t)
	}
	a.items.construct(data.ItemCount, data.ItemsOffset, items)
	return a
}

func (a *Album) loadItems(ctx context.Context, m *asynclist.Mutator[*AlbumItem], index, count int, opts asynclist.LoadOptions) error {
	return a.loader.LoadAlbumItems(ctx, a, m, index, count, opts)
}

// NewItem wraps track as an item of this album
func (a *Album) NewItem(track *Track) *AlbumItem {
	return &AlbumItem{album: weak.Make(a), track: track}
}

// Items returns the album's item storage
func (a *Album) Items() *CollectionItems[*AlbumItem] {
	return a.items
}

func (a *Album) Kind() string { return constants.TypeAlbum }

func (a *Album) NeedsData() bool {
	if a.Partial {
		return true
	}
	_, known := a.items.ItemCount()
	return !known
}

func (a *Album) ApplyData(other MediaItem) error {
	o, ok := other.(*Album)
	if !ok {
		return &ErrKindMismatch{Want: a.Kind(), Got: other.Kind()}
	}
	a.applyBase(&o.MediaBase)
	if o.VersionID != "" {
		a.VersionID = o.VersionID
	}
	if len(o.Artists) > 0 {
		a.Artists = o.Artists
	}
	total, known := o.items.ItemCount()
	if !known {
		return nil
	}
	var tracks []*AlbumItem
	offset := -1
	o.items.ForEach(func(item *AlbumItem, index int) {
		if offset < 0 {
			offset = index
		}
		if index == offset+len(tracks) {
			tracks = append(tracks, a.NewItem(item.track))
		}
	})
	if offset < 0 {
		offset = 0
	}
	a.items.Apply(ItemsPage[*AlbumItem]{Offset: offset, Total: total, Items: tracks})
	return nil
}

func (*Album) mediaItem() {}

// CollectionInfo implements TrackCollection
func (a *Album) CollectionInfo() CollectionInfo {
	info := CollectionInfo{VersionID: a.VersionID, Artists: a.Artists}
	if n, ok := a.items.ItemCount(); ok {
		info.ItemCount = &n
	}
	return info
}

// ForEachItem implements TrackCollection
func (a *Album) ForEachItem(start, end int, fn func(item TrackCollectionItem, index int)) {
	a.items.ForEachInRange(start, end, func(item *AlbumItem, index int) { fn(item, index) })
}

// AlbumFromTrack seeds a partial album from a track's album reference
func AlbumFromTrack(track *Track) *Album {
	return NewAlbum(AlbumData{
		MediaBase: MediaBase{
			Type:     constants.TypeAlbum,
			URI:      track.AlbumURI,
			Provider: track.Provider,
			Name:     track.AlbumName,
			Partial:  true,
		},
		Artists: track.Artists,
	}, CollectionOptions{})
}
