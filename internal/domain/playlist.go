package domain

import (
	"context"
	"weak"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/constants"
)

// TrackCollection is implemented by *Album and *Playlist
type TrackCollection interface {
	MediaItem
	CollectionInfo() CollectionInfo
	ForEachItem(start, end int, fn func(item TrackCollectionItem, index int))
}

// CollectionInfo carries the cacheable collection columns. A nil
// ItemCount means the count is unknown.
type CollectionInfo struct {
	VersionID string
	ItemCount *int
	Artists   Artists
	Owner     *UserAccount
}

// TrackCollectionItem is implemented by *AlbumItem and *PlaylistItem
type TrackCollectionItem interface {
	Track() *Track
	ContextURI() (string, bool)
	Record() ItemRecord
}

// ItemRecord carries the cacheable item columns
type ItemRecord struct {
	Track    *Track
	UniqueID string
	AddedAt  string
	AddedBy  *UserAccount
}

// PlaylistItemData describes one playlist entry
type PlaylistItemData struct {
	Track    *Track
	UniqueID string
	AddedAt  string
	AddedBy  *UserAccount
}

// PlaylistItem is one entry of a playlist
type PlaylistItem struct {
	playlist weak.Pointer[Playlist]
	track    *Track
	UniqueID string
	AddedAt  string
	AddedBy  *UserAccount
}

// Context returns the owning playlist, or false once it has been collected
func (i *PlaylistItem) Context() (*Playlist, bool) {
	p := i.playlist.Value()
	return p, p != nil
}

// ContextURI returns the owning playlist's URI
func (i *PlaylistItem) ContextURI() (string, bool) {
	p, ok := i.Context()
	if !ok {
		return "", false
	}
	return p.URI, true
}

// IndexInContext returns the item's current position in its playlist
func (i *PlaylistItem) IndexInContext() (int, bool) {
	p, ok := i.Context()
	if !ok {
		return -1, false
	}
	return p.items.IndexOfItemInstance(i)
}

func (i *PlaylistItem) Track() *Track {
	return i.track
}

func (i *PlaylistItem) Record() ItemRecord {
	return ItemRecord{Track: i.track, UniqueID: i.UniqueID, AddedAt: i.AddedAt, AddedBy: i.AddedBy}
}

// MatchesItem compares unique ids when both sides have one, and the
// track, add time and adder otherwise.
func (i *PlaylistItem) MatchesItem(other *PlaylistItem) bool {
	if i.UniqueID != "" && other.UniqueID != "" {
		return i.UniqueID == other.UniqueID
	}
	if i.track.URI != other.track.URI || i.AddedAt != other.AddedAt {
		return false
	}
	if i.AddedBy == nil || other.AddedBy == nil {
		return i.AddedBy == other.AddedBy
	}
	return i.AddedBy.URI == other.AddedBy.URI
}

func (i *PlaylistItem) MergeFrom(other *PlaylistItem) {
	if i.track != other.track {
		_ = i.track.ApplyData(other.track)
	}
	if other.UniqueID != "" {
		i.UniqueID = other.UniqueID
	}
	if other.AddedAt != "" {
		i.AddedAt = other.AddedAt
	}
	if other.AddedBy != nil {
		i.AddedBy = other.AddedBy
	}
}

// PlaylistData describes a playlist and an optional initial run of items
type PlaylistData struct {
	MediaBase
	VersionID   string
	Owner       *UserAccount
	ItemCount   *int
	ItemsOffset int
	Items       []PlaylistItemData
}

type Playlist struct {
	MediaBase
	VersionID string
	Owner     *UserAccount
	loader    ItemsLoader
	items     *CollectionItems[*PlaylistItem]
}

// NewPlaylist builds a playlist
func NewPlaylist(data PlaylistData, opts CollectionOptions) *Playlist {
	p := &Playlist{MediaBase: data.MediaBase, VersionID: data.VersionID, Owner: data.Owner, loader: opts.Loader}
	if p.Type == "" {
		p.Type = constants.TypePlaylist
	}
	var delegate asynclist.Delegate[*PlaylistItem]
	if opts.Loader != nil {
		delegate = asynclist.DelegateFunc[*PlaylistItem](p.loadItems)
	}
	p.items = newCollectionItems(opts.chunkSize(), delegate)

	items := make([]*PlaylistItem, len(data.Items))
	for i, d := range data.Items {
		items[i] = p.NewItem(d)
	}
	p.items.construct(data.ItemCount, data.ItemsOffset, items)
	return p
}

func (p *Playlist) loadItems(ctx context.Context, m *asynclist.Mutator[*PlaylistItem], index, count int, opts asynclist.LoadOptions) error {
	return p.loader.LoadPlaylistItems(ctx, p, m, index, count, opts)
}

// NewItem wraps data as an item of this playlist
func (p *Playlist) NewItem(data PlaylistItemData) *PlaylistItem {
	return &PlaylistItem{
		playlist: weak.Make(p),
		track:    data.Track,
		UniqueID: data.UniqueID,
		AddedAt:  data.AddedAt,
		AddedBy:  data.AddedBy,
	}
}

// Items returns the playlist's item storage
func (p *Playlist) Items() *CollectionItems[*PlaylistItem] {
	return p.items
}

func (p *Playlist) Kind() string { return constants.TypePlaylist }

func (p *Playlist) NeedsData() bool {
	if p.Partial {
		return true
	}
	_, known := p.items.ItemCount()
	return !known
}

func (p *Playlist) ApplyData(other MediaItem) error {
	o, ok := other.(*Playlist)
	if !ok {
		return &ErrKindMismatch{Want: p.Kind(), Got: other.Kind()}
	}
	p.applyBase(&o.MediaBase)
	if o.VersionID != "" {
		p.VersionID = o.VersionID
	}
	if o.Owner != nil {
		p.Owner = o.Owner
	}
	total, known := o.items.ItemCount()
	if !known {
		return nil
	}
	var items []*PlaylistItem
	offset := -1
	o.items.ForEach(func(item *PlaylistItem, index int) {
		if offset < 0 {
			offset = index
		}
		if index == offset+len(items) {
			r := item.Record()
			items = append(items, p.NewItem(PlaylistItemData(r)))
		}
	})
	if offset < 0 {
		offset = 0
	}
	p.items.Apply(ItemsPage[*PlaylistItem]{Offset: offset, Total: total, Items: items})
	return nil
}

func (*Playlist) mediaItem() {}

// CollectionInfo implements TrackCollection
func (p *Playlist) CollectionInfo() CollectionInfo {
	info := CollectionInfo{VersionID: p.VersionID, Owner: p.Owner}
	if n, ok := p.items.ItemCount(); ok {
		info.ItemCount = &n
	}
	return info
}

// ForEachItem implements TrackCollection
func (p *Playlist) ForEachItem(start, end int, fn func(item TrackCollectionItem, index int)) {
	p.items.ForEachInRange(start, end, func(item *PlaylistItem, index int) { fn(item, index) })
}
