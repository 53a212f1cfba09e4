package sqlbuild

import (
	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
)

// accountRow writes an Artist or UserAccount row. A reference keeps the
// stored name when it carries none.
func accountRow(u *upsert, m *domain.MediaBase, coalesce bool) {
	v := u.row(m.URI)
	v.bind(m.URI)
	v.bind(m.Provider)
	v.bind(m.Type)
	v.nameOrStored(coalesce, m.Name)
	v.maybeCoalesce(coalesce, "images", m.Images)
	v.raw(currentTimestamp)
}

func trackRow(u *upsert, t *domain.Track, coalesce bool) {
	v := u.row(t.URI)
	v.bind(t.URI)
	v.bind(t.Provider)
	v.nameOrStored(coalesce, t.Name)
	v.maybeCoalesce(coalesce, "albumName", nullString(t.AlbumName))
	v.maybeCoalesce(coalesce, "albumURI", nullString(t.AlbumURI))
	v.maybeCoalesce(coalesce, "artists", t.Artists)
	v.maybeCoalesce(coalesce, "images", t.Images)
	v.maybeCoalesce(coalesce, "duration", nullFloat(t.Duration))
	// a reference only ever knows a track is playable, never that it is not
	if coalesce && !t.Playable {
		v.coalesceOr("playable", false)
	} else {
		v.bind(t.Playable)
	}
	v.raw(currentTimestamp)
}

func collectionRow(u *upsert, c domain.TrackCollection, coalesce, updateVersionID bool) {
	m := c.Media()
	info := c.CollectionInfo()
	v := u.row(m.URI)
	v.bind(m.URI)
	v.bind(m.Provider)
	v.bind(c.Kind())
	v.bind(m.Name)
	if updateVersionID {
		v.bind(nullString(info.VersionID))
	} else {
		v.coalesce("versionId")
	}
	v.maybeCoalesce(coalesce, "itemCount", nullInt(info.ItemCount))
	var ownerURI any
	if info.Owner != nil {
		ownerURI = info.Owner.URI
	}
	v.maybeCoalesce(coalesce, "ownerURI", ownerURI)
	v.maybeCoalesce(coalesce, "artists", info.Artists)
	v.maybeCoalesce(coalesce, "images", m.Images)
	v.raw(currentTimestamp)
}

// albumFromTrackRow seeds an album from a track's album reference,
// keeping every stored collection column
func albumFromTrackRow(u *upsert, t *domain.Track) {
	v := u.row(t.AlbumURI)
	v.bind(t.AlbumURI)
	v.bind(t.Provider)
	v.bind(constants.TypeAlbum)
	if t.AlbumName != "" {
		v.bind(t.AlbumName)
	} else {
		v.coalesceOr("name", "")
	}
	v.coalesce("versionId")
	v.coalesce("itemCount")
	v.coalesce("ownerURI")
	v.coalesce("artists")
	v.coalesce("images")
	v.raw(currentTimestamp)
}

func itemRow(u *upsert, collectionURI string, index int, record domain.ItemRecord) {
	v := u.row(collectionURI)
	v.bind(collectionURI)
	v.bind(index)
	v.bind(record.Track.URI)
	v.bind(nullString(record.UniqueID))
	v.bind(nullString(record.AddedAt))
	if record.AddedBy != nil {
		v.bind(domain.JSONValue{V: record.AddedBy})
	} else {
		v.bind(nil)
	}
	v.raw(currentTimestamp)
}

// albumItemRow places a track on its album at trackNumber - 1
func albumItemRow(u *upsert, t *domain.Track) {
	index, _ := t.AlbumIndex()
	v := u.row(t.AlbumURI)
	v.bind(t.AlbumURI)
	v.bind(index)
	v.bind(t.URI)
	v.raw(currentTimestamp)
}

func linkRow(u *upsert, from, artistURI string) {
	v := u.row(from)
	v.bind(from)
	v.bind(artistURI)
	v.raw(currentTimestamp)
}

func libraryRow(u *upsert, item *domain.LibraryItem) {
	uri := item.MediaItem.Media().URI
	v := u.row(uri)
	v.bind(uri)
	v.bind(item.LibraryProvider)
	v.bind(nullString(item.AddedAt))
	v.raw(currentTimestamp)
}

func historyRow(u *upsert, item *domain.PlaybackHistoryItem) {
	v := u.row(item.Track.URI)
	v.bind(item.StartTime)
	v.bind(item.Track.URI)
	v.bind(nullString(item.ContextURI))
	v.bind(nullFloat(item.Duration))
	v.bind(item.ChosenByUser)
	v.raw(currentTimestamp)
}
