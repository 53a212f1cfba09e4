package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/cesargomez89/mediacache/internal/store"
)

// DeleteLibraryItems removes saved or followed entries for uris. The
// entities themselves stay until pruned.
func DeleteLibraryItems(tx *store.Tx, kind LibraryKind, uris []string, provider string) error {
	k, err := lookupKind(kind)
	if err != nil {
		return err
	}
	if len(uris) == 0 {
		return nil
	}
	cond, args := k.where(libraryFilter{uris: uris, provider: provider})
	tx.AddSQL(fmt.Sprintf("DELETE FROM %s WHERE %s", k.table, cond), args)
	return nil
}

// prune deletes rows of table whose column matches none of keep. Every
// keep subquery must not yield NULL.
type prune struct {
	table  string
	column string
	keep   []string
}

func (p prune) sql() string {
	conds := make([]string, len(p.keep))
	for i, k := range p.keep {
		conds[i] = fmt.Sprintf("%s NOT IN (%s)", p.column, k)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", p.table, strings.Join(conds, " AND "))
}

// pruneSteps run in order: each step only removes rows that no earlier
// surviving row references.
var pruneSteps = []prune{
	{table: "TrackCollectionItem", column: "collectionURI", keep: []string{
		"SELECT albumURI FROM SavedAlbum",
		"SELECT playlistURI FROM SavedPlaylist",
	}},
	{table: "Track", column: "uri", keep: []string{
		"SELECT trackURI FROM SavedTrack",
		"SELECT trackURI FROM TrackCollectionItem",
		"SELECT trackURI FROM PlaybackHistoryItem",
	}},
	{table: "TrackArtist", column: "trackURI", keep: []string{
		"SELECT uri FROM Track",
	}},
	{table: "TrackCollection", column: "uri", keep: []string{
		"SELECT albumURI FROM SavedAlbum",
		"SELECT playlistURI FROM SavedPlaylist",
		"SELECT albumURI FROM Track WHERE albumURI IS NOT NULL",
	}},
	{table: "TrackCollectionArtist", column: "collectionURI", keep: []string{
		"SELECT uri FROM TrackCollection",
	}},
	{table: "Artist", column: "uri", keep: []string{
		"SELECT artistURI FROM FollowedArtist",
		"SELECT artistURI FROM TrackArtist",
		"SELECT artistURI FROM TrackCollectionArtist",
	}},
	{table: "UserAccount", column: "uri", keep: []string{
		"SELECT userURI FROM FollowedUserAccount",
		"SELECT ownerURI FROM TrackCollection WHERE ownerURI IS NOT NULL",
	}},
}

// PruneNonLibrary deletes entities that are not reachable from the
// library or playback history
func PruneNonLibrary(tx *store.Tx) {
	for _, step := range pruneSteps {
		tx.AddSQL(step.sql(), nil)
	}
}
