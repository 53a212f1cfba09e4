package catalog

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/filesystem"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/tagging"
)

// DefaultLocalPageSize is the number of files per library page
const DefaultLocalPageSize = 50

// LocalProvider serves the tagged audio files under a directory. Every
// file is a saved track and every album tag a saved album.
type LocalProvider struct {
	root     string
	pageSize int
	logger   *logger.Logger

	mu      sync.Mutex
	library *localLibrary
}

type localTrack struct {
	track   *domain.Track
	addedAt string
	disc    int
	number  int
	path    string
}

type localAlbum struct {
	uri     string
	name    string
	artist  *domain.Artist
	images  domain.Images
	tracks  []*domain.Track
	first   int
	addedAt string
}

type localLibrary struct {
	tracks []*localTrack
	albums map[string]*localAlbum
}

func NewLocalProvider(root string, pageSize int, log *logger.Logger) *LocalProvider {
	if pageSize <= 0 {
		pageSize = DefaultLocalPageSize
	}
	if log == nil {
		log = logger.Default()
	}
	return &LocalProvider{
		root:     root,
		pageSize: pageSize,
		logger:   log.WithProvider(constants.ProviderLocalFiles),
	}
}

func (p *LocalProvider) Name() string { return constants.ProviderLocalFiles }

// Scan reads the tags of every supported file under the root and replaces
// the in-memory library. Unreadable files are skipped.
func (p *LocalProvider) Scan(ctx context.Context) error {
	files, err := filesystem.FindFiles(p.root, tagging.Supported)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", p.root, err)
	}

	lib := &localLibrary{albums: make(map[string]*localAlbum)}
	artists := make(map[string]*domain.Artist)
	artist := func(name string) *domain.Artist {
		uri := "localfiles:artist:" + filesystem.Sanitize(name)
		a, ok := artists[uri]
		if !ok {
			a = domain.NewArtist(constants.ProviderLocalFiles, uri, name)
			a.Images = domain.Images{}
			artists[uri] = a
		}
		return a
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		tags, err := tagging.ReadFile(f.Path)
		if err != nil {
			p.logger.Warn("Skipping unreadable file", "path", f.RelPath, "error", err)
			continue
		}

		lt := &localTrack{addedAt: f.ModTime, disc: tags.DiscNumber, number: tags.TrackNumber, path: f.RelPath}
		duration := tags.Duration.Seconds()
		t := &domain.Track{
			MediaBase: domain.MediaBase{
				Type:     constants.TypeTrack,
				URI:      "localfiles:track:" + f.RelPath,
				Provider: constants.ProviderLocalFiles,
				Name:     tags.Title,
				Images:   p.images(f.Path, tags.Cover),
			},
			Duration: &duration,
			Playable: true,
		}
		if tags.Artist != "" {
			t.Artists = domain.Artists{artist(tags.Artist)}
		}
		if tags.DiscNumber > 0 {
			disc := tags.DiscNumber
			t.DiscNumber = &disc
		}
		lt.track = t

		if tags.Album != "" {
			uri := "localfiles:album:" + filesystem.Sanitize(tags.AlbumArtist) + "/" + filesystem.Sanitize(tags.Album)
			album, ok := lib.albums[uri]
			if !ok {
				album = &localAlbum{uri: uri, name: tags.Album, images: t.Images, first: len(lib.tracks), addedAt: f.ModTime}
				if tags.AlbumArtist != "" {
					album.artist = artist(tags.AlbumArtist)
				}
				lib.albums[uri] = album
			}
			if len(album.images) == 0 && len(t.Images) > 0 {
				album.images = t.Images
			}
			t.AlbumName = tags.Album
			t.AlbumURI = uri
			album.tracks = append(album.tracks, t)
		}
		lib.tracks = append(lib.tracks, lt)
	}

	p.orderAlbums(lib)

	p.mu.Lock()
	p.library = lib
	p.mu.Unlock()
	p.logger.Info("Scanned local files", "root", p.root, "tracks", len(lib.tracks), "albums", len(lib.albums))
	return nil
}

// orderAlbums sorts album tracks by disc, number then path and renumbers
// them by position
func (p *LocalProvider) orderAlbums(lib *localLibrary) {
	byTrack := make(map[*domain.Track]*localTrack, len(lib.tracks))
	for _, lt := range lib.tracks {
		byTrack[lt.track] = lt
	}
	for _, album := range lib.albums {
		slices.SortStableFunc(album.tracks, func(a, b *domain.Track) int {
			la, lb := byTrack[a], byTrack[b]
			return cmp.Or(
				cmp.Compare(la.disc, lb.disc),
				cmp.Compare(la.number, lb.number),
				cmp.Compare(la.path, lb.path),
			)
		})
		for i, t := range album.tracks {
			number := i + 1
			t.TrackNumber = &number
		}
	}
}

func (p *LocalProvider) images(path string, cover *tagging.Cover) domain.Images {
	if cover == nil {
		return domain.Images{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	width, height := cover.Width, cover.Height
	return domain.Images{{
		URL:    "file://" + filepath.ToSlash(abs),
		Size:   domain.SizeForDimensions(width, height),
		Width:  &width,
		Height: &height,
	}}
}

func (p *LocalProvider) current(ctx context.Context, rescan bool) (*localLibrary, error) {
	p.mu.Lock()
	lib := p.library
	p.mu.Unlock()
	if lib != nil && !rescan {
		return lib, nil
	}
	if err := p.Scan(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.library, nil
}

func (l *localLibrary) album(uri string, opts domain.CollectionOptions) *domain.Album {
	a := l.albums[uri]
	n := len(a.tracks)
	var artists domain.Artists
	if a.artist != nil {
		artists = domain.Artists{a.artist}
	}
	return domain.NewAlbum(domain.AlbumData{
		MediaBase: domain.MediaBase{
			Type:     constants.TypeAlbum,
			URI:      a.uri,
			Provider: constants.ProviderLocalFiles,
			Name:     a.name,
			Images:   a.images,
		},
		Artists:   artists,
		ItemCount: &n,
		Tracks:    a.tracks,
	}, opts)
}

// GenerateLibrary pages through the scanned files. Resume data is the
// index of the next file; a fresh walk rescans the root.
func (p *LocalProvider) GenerateLibrary(ctx context.Context, resume string, fn func(*LibraryPage) error) error {
	start := 0
	if resume != "" {
		n, err := strconv.Atoi(resume)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid resume data %q", resume)
		}
		start = n
	}

	lib, err := p.current(ctx, resume == "")
	if err != nil {
		return err
	}

	total := len(lib.tracks)
	if start >= total {
		return fn(&LibraryPage{Progress: 1, ResumeData: strconv.Itoa(total), Done: true})
	}

	starts := make(map[int][]string)
	for uri, a := range lib.albums {
		starts[a.first] = append(starts[a.first], uri)
	}

	for begin := start; begin < total; begin += p.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(begin+p.pageSize, total)
		page := &LibraryPage{
			Progress:   float64(end) / float64(total),
			ResumeData: strconv.Itoa(end),
			Done:       end == total,
		}
		for i := begin; i < end; i++ {
			lt := lib.tracks[i]
			page.Items = append(page.Items, &domain.LibraryItem{
				LibraryProvider: constants.ProviderLocalFiles,
				MediaItem:       lt.track,
				AddedAt:         lt.addedAt,
			})
			uris := starts[i]
			slices.Sort(uris)
			for _, uri := range uris {
				page.Items = append(page.Items, &domain.LibraryItem{
					LibraryProvider: constants.ProviderLocalFiles,
					MediaItem:       lib.album(uri, domain.CollectionOptions{}),
					AddedAt:         lib.albums[uri].addedAt,
				})
			}
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

func (p *LocalProvider) LoadAlbumItems(ctx context.Context, album *domain.Album, m *asynclist.Mutator[*domain.AlbumItem], index, count int, _ asynclist.LoadOptions) error {
	lib, err := p.current(ctx, false)
	if err != nil {
		return err
	}
	a, ok := lib.albums[album.URI]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, album.URI)
	}

	end := min(index+count, len(a.tracks))
	items := make([]*domain.AlbumItem, 0, max(end-index, 0))
	for i := index; i < end; i++ {
		items = append(items, album.NewItem(a.tracks[i]))
	}
	m.ApplyAndResize(index, len(a.tracks), items)
	return nil
}

func (p *LocalProvider) LoadPlaylistItems(ctx context.Context, playlist *domain.Playlist, _ *asynclist.Mutator[*domain.PlaylistItem], _, _ int, _ asynclist.LoadOptions) error {
	return fmt.Errorf("%w: %s", ErrNotFound, playlist.URI)
}

var _ Provider = (*LocalProvider)(nil)
