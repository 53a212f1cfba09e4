package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/cesargomez89/mediacache/internal/asynclist"
)

func testTrack(n int) *Track {
	num := n + 1
	duration := 180.0
	return &Track{
		MediaBase:   MediaBase{Type: "track", URI: fmt.Sprintf("mock:track:%d", n), Provider: "mock", Name: fmt.Sprintf("Track %d", n)},
		AlbumURI:    "mock:album:1",
		AlbumName:   "Album",
		TrackNumber: &num,
		Duration:    &duration,
		Playable:    true,
	}
}

func testTracks(n int) []*Track {
	out := make([]*Track, n)
	for i := range out {
		out[i] = testTrack(i)
	}
	return out
}

func intPtr(n int) *int { return &n }

type fakeLoader struct {
	mu    sync.Mutex
	calls [][2]int
	total int
}

func (f *fakeLoader) LoadAlbumItems(_ context.Context, album *Album, m *asynclist.Mutator[*AlbumItem], index, count int, _ asynclist.LoadOptions) error {
	f.mu.Lock()
	f.calls = append(f.calls, [2]int{index, count})
	f.mu.Unlock()
	items := make([]*AlbumItem, 0, count)
	for i := index; i < index+count && i < f.total; i++ {
		items = append(items, album.NewItem(testTrack(i)))
	}
	m.ApplyAndResize(index, f.total, items)
	return nil
}

func (f *fakeLoader) LoadPlaylistItems(_ context.Context, playlist *Playlist, m *asynclist.Mutator[*PlaylistItem], index, count int, _ asynclist.LoadOptions) error {
	items := make([]*PlaylistItem, 0, count)
	for i := index; i < index+count && i < f.total; i++ {
		items = append(items, playlist.NewItem(PlaylistItemData{Track: testTrack(i), UniqueID: fmt.Sprintf("u%d", i)}))
	}
	m.ApplyAndResize(index, f.total, items)
	return nil
}

func TestCollectionStorageVariants(t *testing.T) {
	base := MediaBase{URI: "mock:album:1", Provider: "mock", Name: "Album"}

	unknown := NewAlbum(AlbumData{MediaBase: base}, CollectionOptions{})
	if got := unknown.Items().State(); got != StorageUnknown {
		t.Errorf("Expected unknown storage, got %v", got)
	}
	if !unknown.NeedsData() {
		t.Error("Expected an album without items to need data")
	}

	countOnly := NewAlbum(AlbumData{MediaBase: base, ItemCount: intPtr(12)}, CollectionOptions{})
	if got := countOnly.Items().State(); got != StorageCountOnly {
		t.Errorf("Expected count-only storage, got %v", got)
	}
	if n, ok := countOnly.Items().ItemCount(); !ok || n != 12 {
		t.Errorf("Expected item count 12, got %d (ok=%v)", n, ok)
	}

	full := NewAlbum(AlbumData{MediaBase: base, ItemCount: intPtr(3), Tracks: testTracks(3)}, CollectionOptions{})
	if got := full.Items().State(); got != StorageMaterialized {
		t.Errorf("Expected materialized storage, got %v", got)
	}
	if full.NeedsData() {
		t.Error("Expected a complete album not to need data")
	}

	partial := NewAlbum(AlbumData{MediaBase: base, ItemCount: intPtr(10), ItemsOffset: 4, Tracks: testTracks(2)}, CollectionOptions{})
	if got := partial.Items().State(); got != StorageAsync {
		t.Errorf("Expected async storage, got %v", got)
	}
	item, ok := partial.Items().ItemAt(4)
	if !ok {
		t.Fatal("Expected an item at index 4")
	}
	if item.Track().URI != "mock:track:0" {
		t.Errorf("Expected mock:track:0 at index 4, got %s", item.Track().URI)
	}
}

func TestCollectionPromotesOnWatchAndIsIdempotent(t *testing.T) {
	album := NewAlbum(AlbumData{
		MediaBase: MediaBase{URI: "mock:album:1"},
		ItemCount: intPtr(3),
		Tracks:    testTracks(3),
	}, CollectionOptions{})
	first, _ := album.Items().ItemAt(1)

	marker := album.Items().WatchIndex(1)
	if got := album.Items().State(); got != StorageAsync {
		t.Errorf("Expected watching to promote to async, got %v", got)
	}

	album.Items().Mutate(func(m *asynclist.Mutator[*AlbumItem]) {
		m.Insert(0, []*AlbumItem{album.NewItem(testTrack(9))})
	})
	if marker.Index() != 2 {
		t.Errorf("Expected marker at 2, got %d", marker.Index())
	}

	// promoting again keeps the same list and items
	got, ok := album.Items().ItemAt(2)
	if !ok || got != first {
		t.Error("Expected the original item to move to index 2")
	}
	if n, _ := album.Items().ItemCount(); n != 4 {
		t.Errorf("Expected 4 items, got %d", n)
	}
}

func TestCollectionApplyPages(t *testing.T) {
	album := NewAlbum(AlbumData{MediaBase: MediaBase{URI: "mock:album:1"}}, CollectionOptions{})
	items := func(start, n int) []*AlbumItem {
		out := make([]*AlbumItem, n)
		for i := range out {
			out[i] = album.NewItem(testTrack(start + i))
		}
		return out
	}

	album.Items().Apply(ItemsPage[*AlbumItem]{Offset: 0, Total: 3, Items: items(0, 3)})
	if got := album.Items().State(); got != StorageMaterialized {
		t.Errorf("Expected materialized storage, got %v", got)
	}
	kept, _ := album.Items().ItemAt(0)

	// same size: merged in place
	album.Items().Apply(ItemsPage[*AlbumItem]{Offset: 0, Total: 3, Items: items(0, 3)})
	if got, _ := album.Items().ItemAt(0); got != kept {
		t.Error("Expected a same-size page to merge into the existing item")
	}

	// partial page: becomes async and resized
	album.Items().Apply(ItemsPage[*AlbumItem]{Offset: 3, Total: 5, Items: items(3, 2)})
	if got := album.Items().State(); got != StorageAsync {
		t.Errorf("Expected async storage, got %v", got)
	}
	if n, _ := album.Items().ItemCount(); n != 5 {
		t.Errorf("Expected 5 items, got %d", n)
	}
	if got, _ := album.Items().ItemAt(0); got != kept {
		t.Error("Expected item 0 to survive the resize")
	}
}

func TestCollectionApplyWhileWatching(t *testing.T) {
	for i := 0; i < 200; i++ {
		album := NewAlbum(AlbumData{MediaBase: MediaBase{URI: "mock:album:1"}}, CollectionOptions{})
		page := ItemsPage[*AlbumItem]{Offset: 0, Total: 5, Items: []*AlbumItem{
			album.NewItem(testTrack(0)),
			album.NewItem(testTrack(1)),
		}}

		var (
			wg     sync.WaitGroup
			marker *asynclist.Marker
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			album.Items().Apply(page)
		}()
		go func() {
			defer wg.Done()
			marker = album.Items().WatchIndex(1)
		}()
		wg.Wait()

		album.Items().Mutate(func(m *asynclist.Mutator[*AlbumItem]) {
			m.Insert(0, []*AlbumItem{album.NewItem(testTrack(9))})
		})
		if marker.Index() != 2 {
			t.Fatalf("iteration %d: expected the marker to follow the insert to 2, got %d", i, marker.Index())
		}
		if n, _ := album.Items().ItemCount(); n != 6 {
			t.Fatalf("iteration %d: expected 6 items, got %d", i, n)
		}
	}
}

func TestCollectionLoadsThroughLoader(t *testing.T) {
	loader := &fakeLoader{total: 40}
	album := NewAlbum(AlbumData{MediaBase: MediaBase{URI: "mock:album:1"}, ItemCount: intPtr(40)}, CollectionOptions{Loader: loader, ChunkSize: 18})

	items, err := album.Items().GetItems(context.Background(), 20, 3, asynclist.LoadOptions{})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].Track().URI != "mock:track:20" {
		t.Errorf("Expected mock:track:20, got %s", items[0].Track().URI)
	}
	if len(loader.calls) != 1 || loader.calls[0] != [2]int{18, 18} {
		t.Errorf("Expected one chunk load at 18, got %v", loader.calls)
	}

	if idx, ok := items[1].IndexInContext(); !ok || idx != 21 {
		t.Errorf("Expected index 21, got %d (ok=%v)", idx, ok)
	}

	all, err := album.Items().GenerateItems(0, asynclist.LoadOptions{}).All(context.Background())
	if err != nil {
		t.Fatalf("GenerateItems failed: %v", err)
	}
	if len(all) != 40 {
		t.Errorf("Expected 40 items, got %d", len(all))
	}
}

func TestIndexOfItem(t *testing.T) {
	album := NewAlbum(AlbumData{MediaBase: MediaBase{URI: "mock:album:1"}, ItemCount: intPtr(3), Tracks: testTracks(3)}, CollectionOptions{})
	second, _ := album.Items().ItemAt(1)

	if idx, ok := album.Items().IndexOfItem(second); !ok || idx != 1 {
		t.Errorf("Expected index 1, got %d (ok=%v)", idx, ok)
	}

	lookalike := album.NewItem(testTrack(2))
	if _, ok := album.Items().IndexOfItemInstance(lookalike); ok {
		t.Error("Expected a new instance not to be found by identity")
	}
	if idx, ok := album.Items().IndexOfItem(lookalike); !ok || idx != 2 {
		t.Errorf("Expected a matching item at 2, got %d (ok=%v)", idx, ok)
	}
}

func TestItemContextUnavailableAfterOwnerCollected(t *testing.T) {
	item := func() *AlbumItem {
		album := NewAlbum(AlbumData{MediaBase: MediaBase{URI: "mock:album:gone"}, ItemCount: intPtr(1), Tracks: testTracks(1)}, CollectionOptions{})
		it, _ := album.Items().ItemAt(0)
		owner, ok := it.Context()
		if !ok || owner.URI != "mock:album:gone" {
			t.Fatalf("Expected the owning album while it is alive, got %v", ok)
		}
		return it
	}()

	runtime.GC()
	runtime.GC()

	if _, ok := item.Context(); ok {
		t.Error("Expected no context after the album was collected")
	}
	if _, ok := item.ContextURI(); ok {
		t.Error("Expected no context URI after the album was collected")
	}
	if _, ok := item.IndexInContext(); ok {
		t.Error("Expected no index after the album was collected")
	}
}

func TestPlaylistItemMatching(t *testing.T) {
	pl := NewPlaylist(PlaylistData{MediaBase: MediaBase{URI: "mock:playlist:1"}}, CollectionOptions{})
	user := NewUserAccount("mock", "mock:user:1", "User")

	a := pl.NewItem(PlaylistItemData{Track: testTrack(0), UniqueID: "x"})
	b := pl.NewItem(PlaylistItemData{Track: testTrack(1), UniqueID: "x"})
	if !a.MatchesItem(b) {
		t.Error("Expected items with the same unique id to match")
	}

	c := pl.NewItem(PlaylistItemData{Track: testTrack(0), AddedAt: "2024-01-01", AddedBy: user})
	d := pl.NewItem(PlaylistItemData{Track: testTrack(0), AddedAt: "2024-01-01", AddedBy: NewUserAccount("mock", "mock:user:1", "")})
	if !c.MatchesItem(d) {
		t.Error("Expected items with the same track, date and adder to match")
	}

	e := pl.NewItem(PlaylistItemData{Track: testTrack(0), AddedAt: "2024-02-01", AddedBy: user})
	if c.MatchesItem(e) {
		t.Error("Expected a different added date not to match")
	}

	c.MergeFrom(pl.NewItem(PlaylistItemData{Track: testTrack(0), UniqueID: "late"}))
	if c.UniqueID != "late" {
		t.Errorf("Expected unique id late, got %s", c.UniqueID)
	}
	if c.AddedAt != "2024-01-01" {
		t.Errorf("Expected the added date to be kept, got %s", c.AddedAt)
	}
}

func TestAlbumJSONRoundTrip(t *testing.T) {
	album := NewAlbum(AlbumData{
		MediaBase: MediaBase{URI: "mock:album:1", Provider: "mock", Name: "Album", Images: Images{}},
		VersionID: "v1",
		ItemCount: intPtr(3),
		Tracks:    testTracks(3),
	}, CollectionOptions{})

	data, err := json.Marshal(album)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	items, ok := obj["items"].(map[string]any)
	if !ok {
		t.Fatalf("Expected items to be an object, got %T", obj["items"])
	}
	if len(items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(items))
	}
	for _, key := range []string{"0", "1", "2"} {
		if _, ok := items[key]; !ok {
			t.Errorf("Expected item key %s", key)
		}
	}

	p := &Parser{}
	parsed, err := p.Parse(obj)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	back, ok := parsed.(*Album)
	if !ok {
		t.Fatalf("Expected *Album, got %T", parsed)
	}
	if back.VersionID != "v1" {
		t.Errorf("Expected version v1, got %s", back.VersionID)
	}
	if got := back.Items().State(); got != StorageMaterialized {
		t.Errorf("Expected materialized storage, got %v", got)
	}
	if item, _ := back.Items().ItemAt(2); item == nil || item.Track().URI != "mock:track:2" {
		t.Error("Expected mock:track:2 at index 2")
	}
}

func TestParserPlaylistSparseItems(t *testing.T) {
	obj := map[string]any{
		"type":      "playlist",
		"uri":       "mock:playlist:1",
		"provider":  "mock",
		"name":      "Mix",
		"itemCount": 10,
		"owner":     map[string]any{"type": "user", "uri": "mock:user:1", "provider": "mock", "name": "Owner"},
		"items": map[string]any{
			"3": map[string]any{"uniqueId": "a", "track": map[string]any{"uri": "mock:track:3", "provider": "mock", "name": "T3", "playable": 1}},
			"7": map[string]any{"uniqueId": "b", "track": map[string]any{"uri": "mock:track:7", "provider": "mock", "name": "T7", "playable": 0}},
		},
	}

	p := &Parser{}
	pl, err := p.Playlist(obj)
	if err != nil {
		t.Fatalf("Playlist failed: %v", err)
	}
	if pl.Owner.Name != "Owner" {
		t.Errorf("Expected owner Owner, got %s", pl.Owner.Name)
	}
	if got := pl.Items().State(); got != StorageAsync {
		t.Errorf("Expected async storage, got %v", got)
	}
	if n, _ := pl.Items().ItemCount(); n != 10 {
		t.Errorf("Expected 10 items, got %d", n)
	}

	item, ok := pl.Items().ItemAt(3)
	if !ok {
		t.Fatal("Expected an item at index 3")
	}
	if !item.Track().Playable {
		t.Error("Expected track 3 to be playable")
	}
	if item.Track().Type != "track" {
		t.Errorf("Expected type track, got %s", item.Track().Type)
	}
	if item, _ = pl.Items().ItemAt(7); item.Track().Playable {
		t.Error("Expected track 7 not to be playable")
	}
}

func TestParserRejectsBadInput(t *testing.T) {
	p := &Parser{}

	if _, err := p.Parse(map[string]any{"type": "podcast"}); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("Expected ErrInvalidJSON for an unknown type, got %v", err)
	}
	if _, err := p.Album(map[string]any{"type": "album", "uri": "x", "items": map[string]any{"one": map[string]any{}}}); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("Expected ErrInvalidJSON for a non-numeric item key, got %v", err)
	}
	if _, err := p.Track(map[string]any{"uri": "x", "playable": "yes"}); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("Expected ErrInvalidJSON for a string playable, got %v", err)
	}
}

func TestParserLibraryAndHistory(t *testing.T) {
	p := &Parser{}
	lib, err := p.LibraryItem(map[string]any{
		"libraryProvider": "mock",
		"addedAt":         "2024-01-01T00:00:00Z",
		"mediaItem":       map[string]any{"type": "artist", "uri": "mock:artist:1", "provider": "mock", "name": "A"},
	})
	if err != nil {
		t.Fatalf("LibraryItem failed: %v", err)
	}
	if lib.LibraryTable() != "FollowedArtist" {
		t.Errorf("Expected FollowedArtist, got %s", lib.LibraryTable())
	}
	if lib.LibraryProvider != "mock" {
		t.Errorf("Expected provider mock, got %s", lib.LibraryProvider)
	}

	hist, err := p.PlaybackHistoryItem(map[string]any{
		"startTime":    "2024-01-01T00:00:00Z",
		"chosenByUser": 1,
		"track":        map[string]any{"uri": "mock:track:1", "provider": "mock", "name": "T"},
	})
	if err != nil {
		t.Fatalf("PlaybackHistoryItem failed: %v", err)
	}
	if !hist.ChosenByUser {
		t.Error("Expected chosenByUser to be true")
	}
	if hist.Track.URI != "mock:track:1" {
		t.Errorf("Expected mock:track:1, got %s", hist.Track.URI)
	}
}

func TestApplyDataKinds(t *testing.T) {
	partial := NewArtist("mock", "mock:artist:1", "X")
	if !partial.NeedsData() {
		t.Error("Expected an artist without images to need data")
	}

	full := NewArtist("mock", "mock:artist:1", "Y")
	full.Images = Images{{URL: "http://img", Size: ImageSizeLarge}}
	if err := partial.ApplyData(full); err != nil {
		t.Fatalf("ApplyData failed: %v", err)
	}
	if partial.Name != "Y" {
		t.Errorf("Expected name Y, got %s", partial.Name)
	}
	if partial.NeedsData() {
		t.Error("Expected the artist to be complete after ApplyData")
	}

	var mismatch *ErrKindMismatch
	if err := partial.ApplyData(testTrack(0)); !errors.As(err, &mismatch) {
		t.Errorf("Expected ErrKindMismatch, got %v", err)
	}
}
