package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cesargomez89/mediacache/internal/constants"
)

// ErrInvalidJSON is returned when a cached object cannot be turned into
// an entity
var ErrInvalidJSON = errors.New("invalid media json")

// flexBool accepts JSON booleans and the 0/1 integers SQLite stores
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("%w: cannot read %s as bool", ErrInvalidJSON, data)
	}
	return nil
}

func (t *Track) UnmarshalJSON(data []byte) error {
	type plain Track
	aux := struct {
		*plain
		Playable flexBool `json:"playable"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.Playable = bool(aux.Playable)
	if t.Type == "" {
		t.Type = constants.TypeTrack
	}
	return nil
}

// Parser builds entities from cached JSON objects. Collections it creates
// load missing items through Options.Loader.
type Parser struct {
	Options CollectionOptions
}

// Parse dispatches on the object's type field
func (p *Parser) Parse(obj map[string]any) (MediaItem, error) {
	kind, _ := obj["type"].(string)
	switch kind {
	case constants.TypeTrack:
		return p.Track(obj)
	case constants.TypeArtist, constants.TypeLabel:
		return p.Artist(obj)
	case constants.TypeUser:
		return p.UserAccount(obj)
	case constants.TypeAlbum:
		return p.Album(obj)
	case constants.TypePlaylist:
		return p.Playlist(obj)
	}
	return nil, fmt.Errorf("%w: unknown media type %q", ErrInvalidJSON, kind)
}

func (p *Parser) Track(obj map[string]any) (*Track, error) {
	t := &Track{}
	if err := decode(obj, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Parser) Artist(obj map[string]any) (*Artist, error) {
	a := &Artist{}
	if err := decode(obj, a); err != nil {
		return nil, err
	}
	if a.Type == "" {
		a.Type = constants.TypeArtist
	}
	return a, nil
}

func (p *Parser) UserAccount(obj map[string]any) (*UserAccount, error) {
	u := &UserAccount{}
	if err := decode(obj, u); err != nil {
		return nil, err
	}
	if u.Type == "" {
		u.Type = constants.TypeUser
	}
	return u, nil
}

type collectionJSON struct {
	MediaBase
	VersionID string                     `json:"versionId,omitempty"`
	ItemCount *int                       `json:"itemCount,omitempty"`
	Artists   Artists                    `json:"artists,omitempty"`
	Owner     *UserAccount               `json:"owner,omitempty"`
	Items     map[string]json.RawMessage `json:"items,omitempty"`
}

type itemJSON struct {
	Track    *Track       `json:"track"`
	UniqueID string       `json:"uniqueId,omitempty"`
	AddedAt  string       `json:"addedAt,omitempty"`
	AddedBy  *UserAccount `json:"addedBy,omitempty"`
}

func (p *Parser) Album(obj map[string]any) (*Album, error) {
	var c collectionJSON
	if err := decode(obj, &c); err != nil {
		return nil, err
	}
	items, err := parseItems(c.Items)
	if err != nil {
		return nil, err
	}
	a := NewAlbum(AlbumData{MediaBase: c.MediaBase, VersionID: c.VersionID, Artists: c.Artists, ItemCount: c.ItemCount}, p.Options)
	if len(items) > 0 {
		byIndex := make(map[int]*AlbumItem, len(items))
		for i, item := range items {
			byIndex[i] = a.NewItem(item.Track)
		}
		a.items.constructSparse(c.ItemCount, byIndex)
	}
	return a, nil
}

func (p *Parser) Playlist(obj map[string]any) (*Playlist, error) {
	var c collectionJSON
	if err := decode(obj, &c); err != nil {
		return nil, err
	}
	items, err := parseItems(c.Items)
	if err != nil {
		return nil, err
	}
	pl := NewPlaylist(PlaylistData{MediaBase: c.MediaBase, VersionID: c.VersionID, Owner: c.Owner, ItemCount: c.ItemCount}, p.Options)
	if len(items) > 0 {
		byIndex := make(map[int]*PlaylistItem, len(items))
		for i, item := range items {
			byIndex[i] = pl.NewItem(PlaylistItemData(item))
		}
		pl.items.constructSparse(c.ItemCount, byIndex)
	}
	return pl, nil
}

// AlbumItem builds an item of album from a cached item object
func (p *Parser) AlbumItem(album *Album, obj map[string]any) (*AlbumItem, error) {
	var item itemJSON
	if err := decode(obj, &item); err != nil {
		return nil, err
	}
	if item.Track == nil {
		return nil, fmt.Errorf("%w: album item has no track", ErrInvalidJSON)
	}
	return album.NewItem(item.Track), nil
}

// PlaylistItem builds an item of playlist from a cached item object
func (p *Parser) PlaylistItem(playlist *Playlist, obj map[string]any) (*PlaylistItem, error) {
	var item itemJSON
	if err := decode(obj, &item); err != nil {
		return nil, err
	}
	if item.Track == nil {
		return nil, fmt.Errorf("%w: playlist item has no track", ErrInvalidJSON)
	}
	return playlist.NewItem(PlaylistItemData(item)), nil
}

// LibraryItem builds a library entry from a saved or followed row object
func (p *Parser) LibraryItem(obj map[string]any) (*LibraryItem, error) {
	mediaObj, ok := obj["mediaItem"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: library item has no mediaItem", ErrInvalidJSON)
	}
	item, err := p.Parse(mediaObj)
	if err != nil {
		return nil, err
	}
	provider, _ := obj["libraryProvider"].(string)
	addedAt, _ := obj["addedAt"].(string)
	return &LibraryItem{LibraryProvider: provider, MediaItem: item, AddedAt: addedAt}, nil
}

// PlaybackHistoryItem builds a history entry from a cached row object
func (p *Parser) PlaybackHistoryItem(obj map[string]any) (*PlaybackHistoryItem, error) {
	var aux struct {
		PlaybackHistoryItem
		ChosenByUser flexBool `json:"chosenByUser"`
	}
	if err := decode(obj, &aux); err != nil {
		return nil, err
	}
	if aux.Track == nil {
		return nil, fmt.Errorf("%w: history item has no track", ErrInvalidJSON)
	}
	item := aux.PlaybackHistoryItem
	item.ChosenByUser = bool(aux.ChosenByUser)
	return &item, nil
}

func parseItems(raw map[string]json.RawMessage) (map[int]itemJSON, error) {
	items := make(map[int]itemJSON, len(raw))
	for key, data := range raw {
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("%w: bad item index %q", ErrInvalidJSON, key)
		}
		var item itemJSON
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidJSON, index, err)
		}
		if item.Track == nil {
			return nil, fmt.Errorf("%w: item %d has no track", ErrInvalidJSON, index)
		}
		items[index] = item
	}
	return items, nil
}

func decode(obj any, out any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

func (a *Album) MarshalJSON() ([]byte, error) {
	out := collectionJSON{MediaBase: a.MediaBase, VersionID: a.VersionID, Artists: a.Artists}
	if n, ok := a.items.ItemCount(); ok {
		out.ItemCount = &n
	}
	items := map[string]itemJSON{}
	a.items.ForEach(func(item *AlbumItem, index int) {
		items[strconv.Itoa(index)] = itemJSON{Track: item.track}
	})
	return marshalCollection(out, items)
}

func (p *Playlist) MarshalJSON() ([]byte, error) {
	out := collectionJSON{MediaBase: p.MediaBase, VersionID: p.VersionID, Owner: p.Owner}
	if n, ok := p.items.ItemCount(); ok {
		out.ItemCount = &n
	}
	items := map[string]itemJSON{}
	p.items.ForEach(func(item *PlaylistItem, index int) {
		items[strconv.Itoa(index)] = itemJSON(item.Record())
	})
	return marshalCollection(out, items)
}

func marshalCollection(out collectionJSON, items map[string]itemJSON) ([]byte, error) {
	if len(items) > 0 {
		out.Items = make(map[string]json.RawMessage, len(items))
		for key, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return nil, err
			}
			out.Items[key] = data
		}
	}
	return json.Marshal(out)
}
