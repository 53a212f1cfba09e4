package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/store"
	"github.com/cesargomez89/mediacache/internal/transform"
)

var (
	artistColumns     = []string{"uri", "provider", "type", "name", "images"}
	trackColumns      = []string{"uri", "provider", "name", "albumName", "albumURI", "artists", "images", "duration", "playable"}
	collectionColumns = []string{"uri", "provider", "type", "name", "versionId", "itemCount", "ownerURI", "artists", "images"}
	itemColumns       = []string{"collectionURI", "indexNum", "trackURI", "uniqueId", "addedAt", "addedBy"}
	albumItemColumns  = []string{"collectionURI", "indexNum", "trackURI"}
	historyColumns    = []string{"startTime", "trackURI", "contextURI", "duration", "chosenByUser"}
	stateColumns      = []string{"stateKey", "stateValue"}
)

func withUpdateTime(columns []string) []string {
	out := make([]string, len(columns), len(columns)+1)
	copy(out, columns)
	return append(out, updateTimeColumn)
}

func libraryColumns(column string) []string {
	return []string{column, "libraryProvider", "addedAt"}
}

// LibraryKind names one of the saved/followed membership tables
type LibraryKind int

const (
	SavedTracks LibraryKind = iota
	SavedAlbums
	SavedPlaylists
	FollowedArtists
	FollowedUserAccounts
)

type libraryKind struct {
	name         string
	table        string
	column       string
	media        string
	mediaColumns []string
	// owner joins the collection owner as a third table
	owner     bool
	transform func(parts []transform.Object) (transform.Object, error)
}

var libraryKinds = map[LibraryKind]libraryKind{
	SavedTracks: {
		name: "tracks", table: constants.TableSavedTrack, column: "trackURI",
		media: constants.TableTrack, mediaColumns: trackColumns,
		transform: func(p []transform.Object) (transform.Object, error) { return transform.SavedTrack(p[0], p[1]) },
	},
	SavedAlbums: {
		name: "albums", table: constants.TableSavedAlbum, column: "albumURI",
		media: constants.TableTrackCollection, mediaColumns: collectionColumns,
		transform: func(p []transform.Object) (transform.Object, error) { return transform.SavedAlbum(p[0], p[1]) },
	},
	SavedPlaylists: {
		name: "playlists", table: constants.TableSavedPlaylist, column: "playlistURI",
		media: constants.TableTrackCollection, mediaColumns: collectionColumns, owner: true,
		transform: func(p []transform.Object) (transform.Object, error) {
			return transform.SavedPlaylist(p[0], p[1], p[2])
		},
	},
	FollowedArtists: {
		name: "artists", table: constants.TableFollowedArtist, column: "artistURI",
		media: constants.TableArtist, mediaColumns: artistColumns,
		transform: func(p []transform.Object) (transform.Object, error) { return transform.FollowedArtist(p[0], p[1]) },
	},
	FollowedUserAccounts: {
		name: "users", table: constants.TableFollowedUserAccount, column: "userURI",
		media: constants.TableUserAccount, mediaColumns: artistColumns,
		transform: func(p []transform.Object) (transform.Object, error) {
			return transform.FollowedUserAccount(p[0], p[1])
		},
	},
}

func (k LibraryKind) String() string {
	if info, ok := libraryKinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("LibraryKind(%d)", int(k))
}

// Table returns the membership table name
func (k LibraryKind) Table() string {
	return libraryKinds[k].table
}

// ParseLibraryKind reads "tracks", "albums", "playlists", "artists" or
// "users"
func ParseLibraryKind(s string) (LibraryKind, error) {
	for kind, info := range libraryKinds {
		if strings.EqualFold(info.name, s) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown library kind %q", ErrInvalidArgument, s)
}

// KindForTable maps a membership table name back to its kind
func KindForTable(table string) (LibraryKind, bool) {
	for kind, info := range libraryKinds {
		if info.table == table {
			return kind, true
		}
	}
	return 0, false
}

func lookupKind(k LibraryKind) (libraryKind, error) {
	info, ok := libraryKinds[k]
	if !ok {
		return libraryKind{}, fmt.Errorf("%w: unknown library kind %d", ErrInvalidArgument, int(k))
	}
	return info, nil
}

// selectColumns renders Table.col AS prefix+col for every joined table
func selectColumns(tables []transform.JoinTable) string {
	var cols []string
	for _, table := range tables {
		for _, column := range table.Columns {
			cols = append(cols, fmt.Sprintf("%s.%s AS %s%s", table.Name, column, table.Prefix, column))
		}
	}
	return strings.Join(cols, ", ")
}

func plainColumns(table string, columns []string) string {
	cols := make([]string, len(columns))
	for i, column := range columns {
		cols[i] = fmt.Sprintf("%s.%s AS %s", table, column, column)
	}
	return strings.Join(cols, ", ")
}

func joinedMapper(tables []transform.JoinTable, fn func(parts []transform.Object) (transform.Object, error)) store.Mapper {
	return func(row store.Row) (any, error) {
		return fn(transform.SplitJoined(tables, row))
	}
}

func rowMapper(fn func(map[string]any) (transform.Object, error)) store.Mapper {
	return func(row store.Row) (any, error) {
		return fn(row)
	}
}
