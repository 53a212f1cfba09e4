package catalog

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
)

// MockProvider serves a generated library from memory. Each album is one
// library page; followed artists and the playlist come last.
type MockProvider struct {
	albums    [][]*domain.Track
	artists   []*domain.Artist
	owner     *domain.UserAccount
	playlist  []*domain.Track
	mu        sync.Mutex
	resumes   []string
	failPage  int
	itemLoads int
}

// NewMockProvider builds a library of albums albums with tracks tracks each
func NewMockProvider(albums, tracks int) *MockProvider {
	p := &MockProvider{failPage: -1}
	for i := 0; i < 3; i++ {
		artist := domain.NewArtist(constants.ProviderMock, fmt.Sprintf("mock:artist:%d", i), fmt.Sprintf("Mock Artist %d", i))
		artist.Images = domain.Images{}
		p.artists = append(p.artists, artist)
	}
	p.owner = domain.NewUserAccount(constants.ProviderMock, "mock:user:0", "Mock User")
	p.owner.Images = domain.Images{}

	for a := 0; a < albums; a++ {
		var list []*domain.Track
		for n := 1; n <= tracks; n++ {
			number := n
			duration := float64(120 + n)
			list = append(list, &domain.Track{
				MediaBase: domain.MediaBase{
					Type:     constants.TypeTrack,
					URI:      fmt.Sprintf("mock:track:%d-%d", a, n),
					Provider: constants.ProviderMock,
					Name:     fmt.Sprintf("Track %d", n),
					Images:   domain.Images{},
				},
				AlbumName:   fmt.Sprintf("Mock Album %d", a),
				AlbumURI:    mockAlbumURI(a),
				Artists:     domain.Artists{p.artists[a%len(p.artists)]},
				TrackNumber: &number,
				Duration:    &duration,
				Playable:    true,
			})
		}
		p.albums = append(p.albums, list)
		if len(list) > 0 {
			p.playlist = append(p.playlist, list[0])
		}
	}
	return p
}

func mockAlbumURI(i int) string {
	return fmt.Sprintf("mock:album:%d", i)
}

func (p *MockProvider) Name() string { return constants.ProviderMock }

// FailOnPage makes the next walk fail before handing out page n
func (p *MockProvider) FailOnPage(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPage = n
}

// Resumes returns the resume value of every walk so far
func (p *MockProvider) Resumes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resumes...)
}

// ItemLoads counts item loads served
func (p *MockProvider) ItemLoads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.itemLoads
}

// Album builds album i with all its tracks
func (p *MockProvider) Album(i int, opts domain.CollectionOptions) *domain.Album {
	tracks := p.albums[i]
	n := len(tracks)
	return domain.NewAlbum(domain.AlbumData{
		MediaBase: domain.MediaBase{
			Type:     constants.TypeAlbum,
			URI:      mockAlbumURI(i),
			Provider: constants.ProviderMock,
			Name:     fmt.Sprintf("Mock Album %d", i),
			Images:   domain.Images{},
		},
		Artists:   domain.Artists{p.artists[i%len(p.artists)]},
		ItemCount: &n,
		Tracks:    tracks,
	}, opts)
}

// Playlist builds the playlist holding the first track of every album
func (p *MockProvider) Playlist(opts domain.CollectionOptions) *domain.Playlist {
	items := make([]domain.PlaylistItemData, len(p.playlist))
	for i, t := range p.playlist {
		items[i] = domain.PlaylistItemData{Track: t, UniqueID: strconv.Itoa(i), AddedBy: p.owner}
	}
	n := len(items)
	return domain.NewPlaylist(domain.PlaylistData{
		MediaBase: domain.MediaBase{
			Type:     constants.TypePlaylist,
			URI:      "mock:playlist:0",
			Provider: constants.ProviderMock,
			Name:     "Mock Playlist",
			Images:   domain.Images{},
		},
		Owner:     p.owner,
		ItemCount: &n,
		Items:     items,
	}, opts)
}

func (p *MockProvider) GenerateLibrary(ctx context.Context, resume string, fn func(*LibraryPage) error) error {
	p.mu.Lock()
	p.resumes = append(p.resumes, resume)
	failPage := p.failPage
	p.failPage = -1
	p.mu.Unlock()

	start := 0
	if resume != "" {
		n, err := strconv.Atoi(resume)
		if err != nil {
			return fmt.Errorf("invalid resume data %q: %w", resume, err)
		}
		start = n
	}

	total := len(p.albums) + 1
	for page := start; page < total; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if page == failPage {
			return fmt.Errorf("mock provider failed on page %d", page)
		}
		next := &LibraryPage{
			Items:      p.pageItems(page),
			Progress:   float64(page+1) / float64(total),
			ResumeData: strconv.Itoa(page + 1),
			Done:       page == total-1,
		}
		if err := fn(next); err != nil {
			return err
		}
	}
	return nil
}

func (p *MockProvider) pageItems(page int) []*domain.LibraryItem {
	item := func(m domain.MediaItem) *domain.LibraryItem {
		return &domain.LibraryItem{LibraryProvider: constants.ProviderMock, MediaItem: m, AddedAt: fmt.Sprintf("2024-01-01T00:%02d:00Z", page)}
	}
	if page < len(p.albums) {
		items := []*domain.LibraryItem{item(p.Album(page, domain.CollectionOptions{}))}
		for _, t := range p.albums[page] {
			items = append(items, item(t))
		}
		return items
	}
	items := []*domain.LibraryItem{item(p.Playlist(domain.CollectionOptions{})), item(p.owner)}
	for _, a := range p.artists {
		items = append(items, item(a))
	}
	return items
}

func (p *MockProvider) LoadAlbumItems(ctx context.Context, album *domain.Album, m *asynclist.Mutator[*domain.AlbumItem], index, count int, _ asynclist.LoadOptions) error {
	var tracks []*domain.Track
	for i := range p.albums {
		if mockAlbumURI(i) == album.URI {
			tracks = p.albums[i]
		}
	}
	if tracks == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, album.URI)
	}
	p.countLoad()

	end := min(index+count, len(tracks))
	items := make([]*domain.AlbumItem, 0, max(end-index, 0))
	for i := index; i < end; i++ {
		items = append(items, album.NewItem(tracks[i]))
	}
	m.ApplyAndResize(index, len(tracks), items)
	return nil
}

func (p *MockProvider) LoadPlaylistItems(ctx context.Context, playlist *domain.Playlist, m *asynclist.Mutator[*domain.PlaylistItem], index, count int, _ asynclist.LoadOptions) error {
	if playlist.URI != "mock:playlist:0" {
		return fmt.Errorf("%w: %s", ErrNotFound, playlist.URI)
	}
	p.countLoad()

	end := min(index+count, len(p.playlist))
	items := make([]*domain.PlaylistItem, 0, max(end-index, 0))
	for i := index; i < end; i++ {
		items = append(items, playlist.NewItem(domain.PlaylistItemData{Track: p.playlist[i], UniqueID: strconv.Itoa(i), AddedBy: p.owner}))
	}
	m.ApplyAndResize(index, len(p.playlist), items)
	return nil
}

func (p *MockProvider) countLoad() {
	p.mu.Lock()
	p.itemLoads++
	p.mu.Unlock()
}

var _ Provider = (*MockProvider)(nil)
