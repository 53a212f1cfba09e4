package domain

import (
	"fmt"

	"github.com/cesargomez89/mediacache/internal/constants"
)

// MediaBase holds the fields every cached entity shares
type MediaBase struct {
	Type     string `json:"type"`
	URI      string `json:"uri"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Images   Images `json:"images,omitempty"`
	// Partial forces NeedsData to report true
	Partial bool `json:"-"`
}

func (m *MediaBase) Media() *MediaBase {
	return m
}

func (m *MediaBase) applyBase(other *MediaBase) {
	if other.Type != "" {
		m.Type = other.Type
	}
	if other.Provider != "" {
		m.Provider = other.Provider
	}
	if other.Name != "" {
		m.Name = other.Name
	}
	if other.Images != nil {
		m.Images = other.Images
	}
	m.Partial = m.Partial && other.Partial
}

// MediaItem is implemented by *Track, *Artist, *UserAccount, *Album and
// *Playlist only.
type MediaItem interface {
	Media() *MediaBase
	Kind() string
	// NeedsData reports whether the entity only carries a reference and
	// should be stored with coalesced columns
	NeedsData() bool
	ApplyData(other MediaItem) error
	mediaItem()
}

type ErrKindMismatch struct {
	Want, Got string
}

func (e *ErrKindMismatch) Error() string {
	return fmt.Sprintf("cannot apply %s data to %s", e.Got, e.Want)
}

type Artist struct {
	MediaBase
}

func NewArtist(provider, uri, name string) *Artist {
	return &Artist{MediaBase: MediaBase{Type: constants.TypeArtist, URI: uri, Provider: provider, Name: name}}
}

func (a *Artist) Kind() string { return constants.TypeArtist }

func (a *Artist) NeedsData() bool {
	return a.Partial || a.Images == nil
}

func (a *Artist) ApplyData(other MediaItem) error {
	o, ok := other.(*Artist)
	if !ok {
		return &ErrKindMismatch{Want: a.Kind(), Got: other.Kind()}
	}
	a.applyBase(&o.MediaBase)
	return nil
}

func (*Artist) mediaItem() {}

type UserAccount struct {
	MediaBase
}

func NewUserAccount(provider, uri, name string) *UserAccount {
	return &UserAccount{MediaBase: MediaBase{Type: constants.TypeUser, URI: uri, Provider: provider, Name: name}}
}

func (u *UserAccount) Kind() string { return constants.TypeUser }

func (u *UserAccount) NeedsData() bool {
	return u.Partial || u.Images == nil
}

func (u *UserAccount) ApplyData(other MediaItem) error {
	o, ok := other.(*UserAccount)
	if !ok {
		return &ErrKindMismatch{Want: u.Kind(), Got: other.Kind()}
	}
	u.applyBase(&o.MediaBase)
	return nil
}

func (*UserAccount) mediaItem() {}

type Track struct {
	MediaBase
	AlbumName   string   `json:"albumName,omitempty"`
	AlbumURI    string   `json:"albumURI,omitempty"`
	Artists     Artists  `json:"artists,omitempty"`
	DiscNumber  *int     `json:"discNumber,omitempty"`
	TrackNumber *int     `json:"trackNumber,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Playable    bool     `json:"playable"`
}

func (t *Track) Kind() string { return constants.TypeTrack }

func (t *Track) NeedsData() bool {
	return t.Partial || t.Duration == nil
}

func (t *Track) ApplyData(other MediaItem) error {
	o, ok := other.(*Track)
	if !ok {
		return &ErrKindMismatch{Want: t.Kind(), Got: other.Kind()}
	}
	t.applyBase(&o.MediaBase)
	if o.AlbumName != "" {
		t.AlbumName = o.AlbumName
	}
	if o.AlbumURI != "" {
		t.AlbumURI = o.AlbumURI
	}
	if len(o.Artists) > 0 {
		t.Artists = o.Artists
	}
	if o.DiscNumber != nil {
		t.DiscNumber = o.DiscNumber
	}
	if o.TrackNumber != nil {
		t.TrackNumber = o.TrackNumber
	}
	if o.Duration != nil {
		t.Duration = o.Duration
	}
	t.Playable = o.Playable
	return nil
}

func (*Track) mediaItem() {}

// HasAlbum reports whether the track references an album it can seed
func (t *Track) HasAlbum() bool {
	return t.AlbumURI != ""
}

// AlbumIndex returns the track's zero-based position on its album
func (t *Track) AlbumIndex() (int, bool) {
	if t.TrackNumber == nil || *t.TrackNumber < 1 {
		return 0, false
	}
	return *t.TrackNumber - 1, true
}
