package transform

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitJoined(t *testing.T) {
	tables := []JoinTable{
		{Name: "TrackCollectionItem", Prefix: "r1_", Columns: []string{"collectionURI", "indexNum", "addedAt"}},
		{Name: "Track", Prefix: "r2_", Columns: []string{"uri", "name"}},
	}
	row := map[string]any{
		"r1_collectionURI": "c",
		"r1_indexNum":      int64(2),
		"r1_addedAt":       nil,
		"r2_uri":           "t",
		"r2_name":          "Song",
	}

	split := SplitJoined(tables, row)
	if len(split) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(split))
	}
	if want := (Object{"collectionURI": "c", "indexNum": int64(2)}); !reflect.DeepEqual(split[0], want) {
		t.Errorf("Expected %v, got %v", want, split[0])
	}
	if want := (Object{"uri": "t", "name": "Song"}); !reflect.DeepEqual(split[1], want) {
		t.Errorf("Expected %v, got %v", want, split[1])
	}
}

func TestTrackDefaultsAndParses(t *testing.T) {
	row := map[string]any{
		"uri":      "mock:track:1",
		"artists":  `[{"type":"artist","uri":"mock:artist:1","provider":"mock","name":"A"}]`,
		"images":   `[{"url":"http://img","size":"small"}]`,
		"playable": int64(1),
	}

	obj, err := Track(row)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if obj["type"] != "track" {
		t.Errorf("Expected type track, got %v", obj["type"])
	}
	if obj["playable"] != true {
		t.Errorf("Expected playable true, got %v", obj["playable"])
	}
	artists, ok := obj["artists"].([]any)
	if !ok || len(artists) != 1 {
		t.Errorf("Expected one parsed artist, got %v", obj["artists"])
	}
	if _, ok := obj["images"].([]any); !ok {
		t.Errorf("Expected parsed images, got %T", obj["images"])
	}

	// input row is left alone
	if _, ok := row["artists"].(string); !ok {
		t.Errorf("Expected the input row untouched, got %T", row["artists"])
	}

	typed, err := Track(map[string]any{"uri": "x", "type": "video"})
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if typed["type"] != "video" {
		t.Errorf("Expected type video, got %v", typed["type"])
	}
}

func TestParseFailureIsShapeError(t *testing.T) {
	if _, err := Track(map[string]any{"uri": "x", "artists": "{not json"}); !errors.Is(err, ErrShape) {
		t.Errorf("Track: expected ErrShape, got %v", err)
	}
	if _, err := TrackCollectionItem(map[string]any{"addedBy": "nope"}, map[string]any{"uri": "t"}); !errors.Is(err, ErrShape) {
		t.Errorf("TrackCollectionItem: expected ErrShape, got %v", err)
	}
	if _, err := Artist(map[string]any{"images": "["}); !errors.Is(err, ErrShape) {
		t.Errorf("Artist: expected ErrShape, got %v", err)
	}
}

func TestTrackCollectionOwner(t *testing.T) {
	coll := map[string]any{"uri": "mock:playlist:1", "type": "playlist", "images": "[]"}

	withOwner, err := TrackCollection(coll, map[string]any{"uri": "mock:user:1", "name": "Owner"})
	if err != nil {
		t.Fatalf("TrackCollection failed: %v", err)
	}
	owner, ok := withOwner["owner"].(Object)
	if !ok {
		t.Fatalf("Expected an owner object, got %T", withOwner["owner"])
	}
	if owner["name"] != "Owner" {
		t.Errorf("Expected owner name Owner, got %v", owner["name"])
	}
	if !reflect.DeepEqual(withOwner["images"], []any{}) {
		t.Errorf("Expected empty images, got %v", withOwner["images"])
	}

	for _, ownerRow := range []map[string]any{{"uri": nil}, nil} {
		noOwner, err := TrackCollection(coll, ownerRow)
		if err != nil {
			t.Fatalf("TrackCollection failed: %v", err)
		}
		if _, ok := noOwner["owner"]; ok {
			t.Errorf("Expected no owner for %v", ownerRow)
		}
	}
}

func TestCombineCollectionAndItems(t *testing.T) {
	items := []Object{
		{"indexNum": int64(0), "trackURI": "a"},
		{"indexNum": int64(1), "trackURI": "b"},
		{"indexNum": 2.0, "trackURI": "c"},
		{"indexNum": "bad", "trackURI": "d"},
		{"trackURI": "e"},
	}

	obj := CombineCollectionAndItems(Object{"uri": "c"}, items)
	byIndex, ok := obj["items"].(Object)
	if !ok {
		t.Fatalf("Expected an items object, got %T", obj["items"])
	}
	if len(byIndex) != 3 {
		t.Errorf("Expected 3 items, got %d", len(byIndex))
	}
	for _, key := range []string{"0", "1", "2"} {
		if _, ok := byIndex[key]; !ok {
			t.Errorf("Expected item %s", key)
		}
	}
}

func TestLibraryNesting(t *testing.T) {
	saved, err := SavedTrack(map[string]any{"trackURI": "t", "libraryProvider": "mock"}, map[string]any{"uri": "t"})
	if err != nil {
		t.Fatalf("SavedTrack failed: %v", err)
	}
	media, ok := saved["mediaItem"].(Object)
	if !ok || media["type"] != "track" {
		t.Errorf("Expected a nested track, got %v", saved["mediaItem"])
	}

	followed, err := FollowedArtist(map[string]any{"artistURI": "a"}, map[string]any{"uri": "a", "images": `[]`})
	if err != nil {
		t.Fatalf("FollowedArtist failed: %v", err)
	}
	if _, ok := followed["mediaItem"]; !ok {
		t.Error("Expected a nested artist")
	}

	playlist, err := SavedPlaylist(map[string]any{"playlistURI": "p"}, map[string]any{"uri": "p"}, map[string]any{"uri": "u"})
	if err != nil {
		t.Fatalf("SavedPlaylist failed: %v", err)
	}
	media, ok = playlist["mediaItem"].(Object)
	if !ok {
		t.Fatalf("Expected a nested playlist, got %T", playlist["mediaItem"])
	}
	if _, ok := media["owner"]; !ok {
		t.Error("Expected the playlist owner")
	}

	hist, err := PlaybackHistoryItem(map[string]any{"startTime": "s", "chosenByUser": int64(0)}, map[string]any{"uri": "t"})
	if err != nil {
		t.Fatalf("PlaybackHistoryItem failed: %v", err)
	}
	if hist["chosenByUser"] != false {
		t.Errorf("Expected chosenByUser false, got %v", hist["chosenByUser"])
	}
	if _, ok := hist["track"]; !ok {
		t.Error("Expected a nested track")
	}
}
