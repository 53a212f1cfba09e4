package sqlbuild

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/store"
)

func intPtr(n int) *int            { return &n }
func floatPtr(f float64) *float64  { return &f }
func countQ(sql string) int        { return strings.Count(sql, "?") }
func tableOf(sql string) string    { return strings.Fields(sql)[4] }
func hasPrefix(sql, p string) bool { return strings.HasPrefix(sql, p) }

func fullTrack(uri string, number int) *domain.Track {
	return &domain.Track{
		MediaBase:   domain.MediaBase{Type: "track", URI: uri, Provider: "mock", Name: "Track " + uri, Images: domain.Images{}},
		AlbumName:   "Album",
		AlbumURI:    "mock:album:1",
		Artists:     domain.Artists{domain.NewArtist("mock", "mock:artist:1", "Artist")},
		TrackNumber: intPtr(number),
		Duration:    floatPtr(180),
		Playable:    true,
	}
}

func build(t *testing.T, b *Batch) []store.Statement {
	t.Helper()
	tx := store.NewTx()
	if err := b.Build(tx); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tx.Statements()
}

func checkParamCount(t *testing.T, stmts []store.Statement) {
	t.Helper()
	for _, s := range stmts {
		if countQ(s.SQL) != len(s.Params) {
			t.Errorf("Expected %d params, got %d: %s", countQ(s.SQL), len(s.Params), s.SQL)
		}
	}
}

func TestEmptyBatchQueuesNothing(t *testing.T) {
	b := NewBatch(Options{})
	if !b.Empty() {
		t.Error("Expected a new batch to be empty")
	}
	if stmts := build(t, b); len(stmts) != 0 {
		t.Errorf("Expected no statements, got %d", len(stmts))
	}

	b.SetState(nil)
	if !b.Empty() {
		t.Error("Expected a nil state to keep the batch empty")
	}
}

func TestTracksWriteInDependencyOrder(t *testing.T) {
	b := NewBatch(Options{})
	b.AddTracks(fullTrack("mock:track:1", 1), fullTrack("mock:track:2", 2))
	b.SetState(map[string]string{"b": "2", "a": "1"})

	stmts := build(t, b)
	checkParamCount(t, stmts)
	var tables []string
	for _, s := range stmts {
		tables = append(tables, tableOf(s.SQL))
	}
	want := []string{"Artist", "TrackCollection", "Track", "TrackArtist", "TrackCollectionItem", "DBState"}
	if !slices.Equal(tables, want) {
		t.Fatalf("Expected tables %v, got %v", want, tables)
	}

	// track artists are references, so they coalesce images
	if !strings.Contains(stmts[0].SQL, "(SELECT images FROM Artist WHERE uri = ?)") {
		t.Errorf("Expected artist images to coalesce: %s", stmts[0].SQL)
	}
	// derived album keeps stored collection columns
	for _, field := range []string{"versionId", "itemCount"} {
		if !strings.Contains(stmts[1].SQL, "(SELECT "+field+" FROM TrackCollection WHERE uri = ?)") {
			t.Errorf("Expected derived album to keep %s: %s", field, stmts[1].SQL)
		}
	}
	// album slots at trackNumber - 1
	if want := []any{"mock:album:1", 0, "mock:track:1", "mock:album:1", 1, "mock:track:2"}; !slices.Equal(stmts[4].Params, want) {
		t.Errorf("Expected album items %v, got %v", want, stmts[4].Params)
	}
	// state keys sorted
	if want := []any{"a", "1", "b", "2"}; !slices.Equal(stmts[5].Params, want) {
		t.Errorf("Expected state %v, got %v", want, stmts[5].Params)
	}
}

func TestPartialAndFullNeverShareAStatement(t *testing.T) {
	b := NewBatch(Options{})
	full := domain.NewArtist("mock", "mock:artist:full", "Full")
	full.Images = domain.Images{}
	partial := domain.NewArtist("mock", "mock:artist:partial", "Partial")
	b.AddArtists(partial, full)

	stmts := build(t, b)
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d", len(stmts))
	}
	if strings.Contains(stmts[0].SQL, "SELECT images") || !slices.Contains(stmts[0].Params, any("mock:artist:full")) {
		t.Errorf("Expected the full artist first without coalescing: %s %v", stmts[0].SQL, stmts[0].Params)
	}
	if !strings.Contains(stmts[1].SQL, "SELECT images") || !slices.Contains(stmts[1].Params, any("mock:artist:partial")) {
		t.Errorf("Expected the partial artist second with coalescing: %s %v", stmts[1].SQL, stmts[1].Params)
	}
}

func TestFullEntityWinsOverLaterPartial(t *testing.T) {
	b := NewBatch(Options{})
	full := domain.NewArtist("mock", "mock:artist:1", "Full")
	full.Images = domain.Images{}
	b.AddArtists(full, domain.NewArtist("mock", "mock:artist:1", "Ref"))

	stmts := build(t, b)
	if len(stmts) != 1 {
		t.Fatalf("Expected 1 statement, got %d", len(stmts))
	}
	if !slices.Contains(stmts[0].Params, any("Full")) || slices.Contains(stmts[0].Params, any("Ref")) {
		t.Errorf("Expected the full artist's name only, got %v", stmts[0].Params)
	}
}

func TestPartialTrackCoalescesMissingFields(t *testing.T) {
	b := NewBatch(Options{})
	b.AddTracks(&domain.Track{MediaBase: domain.MediaBase{URI: "mock:track:9", Provider: "mock", Name: "Ref"}})

	stmts := build(t, b)
	if len(stmts) != 1 {
		t.Fatalf("Expected 1 statement, got %d", len(stmts))
	}
	sql := stmts[0].SQL
	for _, field := range []string{"albumName", "albumURI", "artists", "images", "duration", "playable"} {
		if !strings.Contains(sql, "(SELECT "+field+" FROM Track WHERE uri = ?)") {
			t.Errorf("Expected %s to coalesce: %s", field, sql)
		}
	}
	if strings.Contains(sql, "SELECT name") {
		t.Errorf("Expected a named reference to bind its name: %s", sql)
	}
	checkParamCount(t, stmts)
}

func TestReferenceWithoutNameKeepsStoredName(t *testing.T) {
	b := NewBatch(Options{})
	b.AddArtists(domain.NewArtist("mock", "mock:artist:1", ""))
	b.AddTracks(&domain.Track{MediaBase: domain.MediaBase{URI: "mock:track:1", Provider: "mock"}, Playable: true})

	stmts := build(t, b)
	checkParamCount(t, stmts)
	for _, s := range stmts {
		table := tableOf(s.SQL)
		if !strings.Contains(s.SQL, "COALESCE((SELECT name FROM "+table+" WHERE uri = ?), ?)") {
			t.Errorf("Expected %s name to coalesce: %s", table, s.SQL)
		}
		if table == "Track" && strings.Contains(s.SQL, "SELECT playable") {
			t.Errorf("Expected a playable reference to bind playable: %s", s.SQL)
		}
	}

	// full rows always bind the name they carry
	full := domain.NewArtist("mock", "mock:artist:2", "")
	full.Images = domain.Images{}
	b = NewBatch(Options{})
	b.AddArtists(full)
	if stmts = build(t, b); strings.Contains(stmts[0].SQL, "SELECT name") {
		t.Errorf("Expected a full artist to bind its name: %s", stmts[0].SQL)
	}
}

func TestFullTrackBindsEmptyStringsAsNull(t *testing.T) {
	tr := fullTrack("mock:track:1", 0)
	tr.AlbumName = ""
	tr.AlbumURI = ""
	b := NewBatch(Options{})
	b.AddTracks(tr)

	stmts := build(t, b)
	var track store.Statement
	for _, s := range stmts {
		if tableOf(s.SQL) == "Track" {
			track = s
		}
	}
	if track.SQL == "" {
		t.Fatal("Expected a Track statement")
	}
	if strings.Contains(track.SQL, "SELECT") {
		t.Errorf("Expected a full track not to coalesce: %s", track.SQL)
	}
	if track.Params[3] != nil || track.Params[4] != nil {
		t.Errorf("Expected empty album fields to bind NULL, got %v %v", track.Params[3], track.Params[4])
	}
}

func TestCollectionVersionID(t *testing.T) {
	album := domain.NewAlbum(domain.AlbumData{
		MediaBase: domain.MediaBase{URI: "mock:album:1", Provider: "mock", Name: "A", Images: domain.Images{}},
		VersionID: "v2",
		ItemCount: intPtr(0),
	}, domain.CollectionOptions{})

	b := NewBatch(Options{})
	b.AddTrackCollections(album)
	stmts := build(t, b)
	if !strings.Contains(stmts[0].SQL, "(SELECT versionId FROM TrackCollection WHERE uri = ?)") {
		t.Errorf("Expected versionId to be kept: %s", stmts[0].SQL)
	}
	if slices.Contains(stmts[0].Params, any("v2")) {
		t.Errorf("Expected v2 not to be written, got %v", stmts[0].Params)
	}

	b = NewBatch(Options{UpdateVersionID: true})
	b.AddTrackCollections(album)
	stmts = build(t, b)
	if strings.Contains(stmts[0].SQL, "SELECT versionId") {
		t.Errorf("Expected versionId to bind: %s", stmts[0].SQL)
	}
	if !slices.Contains(stmts[0].Params, any("v2")) {
		t.Errorf("Expected v2 to be written, got %v", stmts[0].Params)
	}
}

func TestCollectionItemsDeletePastCount(t *testing.T) {
	owner := domain.NewUserAccount("mock", "mock:user:1", "Owner")
	playlist := domain.NewPlaylist(domain.PlaylistData{
		MediaBase: domain.MediaBase{URI: "mock:playlist:1", Provider: "mock", Name: "P"},
		Owner:     owner,
		ItemCount: intPtr(2),
		Items: []domain.PlaylistItemData{
			{Track: fullTrack("mock:track:1", 1), UniqueID: "u1", AddedBy: owner},
			{Track: fullTrack("mock:track:2", 2), UniqueID: "u2"},
		},
	}, domain.CollectionOptions{})

	b := NewBatch(Options{})
	if err := b.AddTrackCollectionItems(playlist, nil); err != nil {
		t.Fatalf("AddTrackCollectionItems failed: %v", err)
	}
	stmts := build(t, b)
	checkParamCount(t, stmts)

	deleteIdx, itemIdx := -1, -1
	for i, s := range stmts {
		if hasPrefix(s.SQL, "DELETE FROM TrackCollectionItem") {
			deleteIdx = i
			if want := []any{"mock:playlist:1", 2}; !slices.Equal(s.Params, want) {
				t.Errorf("Expected delete params %v, got %v", want, s.Params)
			}
		}
		if hasPrefix(s.SQL, "INSERT OR REPLACE INTO TrackCollectionItem (collectionURI, indexNum, trackURI, uniqueId") {
			itemIdx = i
			addedBy := `{"type":"user","uri":"mock:user:1","provider":"mock","name":"Owner"}`
			if !slices.Contains(s.Params, any(addedBy)) {
				t.Errorf("Expected addedBy JSON in %v", s.Params)
			}
		}
	}
	if deleteIdx == -1 || itemIdx == -1 {
		t.Fatalf("Expected both a tail delete and an item insert, got %d %d", deleteIdx, itemIdx)
	}
	if deleteIdx >= itemIdx {
		t.Errorf("Expected the tail delete before the items, got %d >= %d", deleteIdx, itemIdx)
	}
}

func TestAlbumItemsSkipDerivedAlbums(t *testing.T) {
	album := domain.NewAlbum(domain.AlbumData{
		MediaBase: domain.MediaBase{URI: "mock:album:1", Provider: "mock", Name: "Album"},
		ItemCount: intPtr(2),
		Tracks:    []*domain.Track{fullTrack("mock:track:1", 1), fullTrack("mock:track:2", 2)},
	}, domain.CollectionOptions{})

	b := NewBatch(Options{})
	if err := b.AddTrackCollectionItems(album, Range(0, 1)); err != nil {
		t.Fatalf("AddTrackCollectionItems failed: %v", err)
	}
	stmts := build(t, b)

	collections := 0
	for _, s := range stmts {
		if tableOf(s.SQL) == "TrackCollection" {
			collections++
		}
		if hasPrefix(s.SQL, "INSERT OR REPLACE INTO TrackCollectionItem") {
			if s.Params[2] != "mock:track:1" || slices.Contains(s.Params, any("mock:track:2")) {
				t.Errorf("Expected only mock:track:1 in range, got %v", s.Params)
			}
		}
	}
	if collections != 1 {
		t.Errorf("Expected 1 collection row, got %d", collections)
	}
}

func TestDetachedItemIsInvalid(t *testing.T) {
	a := domain.NewPlaylist(domain.PlaylistData{
		MediaBase: domain.MediaBase{URI: "mock:playlist:a", Provider: "mock", Name: "A"},
		ItemCount: intPtr(1),
	}, domain.CollectionOptions{})
	other := domain.NewPlaylist(domain.PlaylistData{
		MediaBase: domain.MediaBase{URI: "mock:playlist:b", Provider: "mock", Name: "B"},
	}, domain.CollectionOptions{})
	foreign := other.NewItem(domain.PlaylistItemData{Track: fullTrack("mock:track:1", 1)})
	a.Items().Mutate(func(m *asynclist.Mutator[*domain.PlaylistItem]) {
		m.Set(0, []*domain.PlaylistItem{foreign})
	})

	b := NewBatch(Options{})
	if err := b.AddTrackCollectionItems(a, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	if !b.Empty() {
		t.Error("Expected a rejected collection to leave the batch empty")
	}
}

func TestLibraryAndHistoryRows(t *testing.T) {
	b := NewBatch(Options{})
	err := b.AddLibraryItems(
		&domain.LibraryItem{LibraryProvider: "mock", MediaItem: fullTrack("mock:track:1", 1), AddedAt: "2024-01-01"},
		&domain.LibraryItem{LibraryProvider: "mock", MediaItem: domain.NewArtist("mock", "mock:artist:2", "B")},
	)
	if err != nil {
		t.Fatalf("AddLibraryItems failed: %v", err)
	}
	err = b.AddPlaybackHistoryItems(&domain.PlaybackHistoryItem{
		Track: fullTrack("mock:track:1", 1), StartTime: "2024-01-02", ChosenByUser: true,
	})
	if err != nil {
		t.Fatalf("AddPlaybackHistoryItems failed: %v", err)
	}

	stmts := build(t, b)
	var tables []string
	for _, s := range stmts {
		tables = append(tables, tableOf(s.SQL))
	}
	for _, want := range []string{"SavedTrack", "FollowedArtist", "PlaybackHistoryItem"} {
		if !slices.Contains(tables, want) {
			t.Errorf("Expected a %s statement in %v", want, tables)
		}
	}
	if tables[len(tables)-1] != "PlaybackHistoryItem" {
		t.Errorf("Expected history last, got %v", tables)
	}

	if err := NewBatch(Options{}).AddLibraryItems(&domain.LibraryItem{MediaItem: fullTrack("x", 1)}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument without a provider, got %v", err)
	}
	if err := NewBatch(Options{}).AddPlaybackHistoryItems(&domain.PlaybackHistoryItem{StartTime: "s"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument without a track, got %v", err)
	}
}

func TestLargeBatchesSplitStatements(t *testing.T) {
	b := NewBatch(Options{})
	for i := 0; i < maxRowsPerStatement+5; i++ {
		a := domain.NewArtist("mock", "mock:artist:"+strings.Repeat("x", i+1), "A")
		a.Images = domain.Images{}
		b.AddArtists(a)
	}
	stmts := build(t, b)
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d", len(stmts))
	}
	if len(stmts[1].Params) != 5*5 {
		t.Errorf("Expected 25 params in the remainder, got %d", len(stmts[1].Params))
	}
}
