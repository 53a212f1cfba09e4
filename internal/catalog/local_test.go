package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-flac/go-flac"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/tagging"
)

func writeTaggedFLAC(t *testing.T, root, rel string, tags *tagging.Tags) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	streamInfo := make([]byte, 34)
	f := &flac.File{Meta: []*flac.MetaDataBlock{{Type: flac.StreamInfo, Data: streamInfo}}}
	if err := f.Save(path); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	if err := tagging.WriteFile(path, tags, nil); err != nil {
		t.Fatalf("failed to tag %s: %v", rel, err)
	}
}

func localFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTaggedFLAC(t, root, "Band/Record/02.flac", &tagging.Tags{Title: "Second", Artist: "Band", Album: "Record", TrackNumber: 2})
	writeTaggedFLAC(t, root, "Band/Record/01.flac", &tagging.Tags{Title: "First", Artist: "Band", Album: "Record", TrackNumber: 1})
	writeTaggedFLAC(t, root, "Loose/single.flac", &tagging.Tags{Title: "Single", Artist: "Solo"})
	if err := os.WriteFile(filepath.Join(root, "Loose", "broken.flac"), []byte("not audio"), 0o644); err != nil {
		t.Fatalf("failed to write broken file: %v", err)
	}
	return root
}

func collectPages(t *testing.T, p Provider, resume string) []*LibraryPage {
	t.Helper()
	var pages []*LibraryPage
	err := p.GenerateLibrary(context.Background(), resume, func(page *LibraryPage) error {
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateLibrary failed: %v", err)
	}
	return pages
}

func TestLocalProvider_GenerateLibrary(t *testing.T) {
	p := NewLocalProvider(localFixture(t), 2, logger.Discard())

	pages := collectPages(t, p, "")
	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}
	if pages[0].ResumeData != "2" || pages[0].Done {
		t.Errorf("Unexpected first page: resume %q done %v", pages[0].ResumeData, pages[0].Done)
	}
	if !pages[1].Done || pages[1].Progress != 1 {
		t.Errorf("Expected the last page to finish the walk, got %+v", pages[1])
	}

	var tracks, albums int
	var album *domain.Album
	for _, page := range pages {
		for _, item := range page.Items {
			switch m := item.MediaItem.(type) {
			case *domain.Track:
				tracks++
				if !strings.HasPrefix(m.URI, "localfiles:track:") {
					t.Errorf("Unexpected track URI %s", m.URI)
				}
			case *domain.Album:
				albums++
				album = m
			}
			if item.LibraryProvider != constants.ProviderLocalFiles {
				t.Errorf("Unexpected library provider %s", item.LibraryProvider)
			}
		}
	}
	if tracks != 3 || albums != 1 {
		t.Fatalf("Expected 3 tracks and 1 album, got %d and %d", tracks, albums)
	}
	if album.URI != "localfiles:album:Band/Record" {
		t.Errorf("Unexpected album URI %s", album.URI)
	}
	if n, ok := album.Items().ItemCount(); !ok || n != 2 {
		t.Errorf("Expected a known count of 2, got %d %v", n, ok)
	}
	first, ok := album.Items().ItemAt(0)
	if !ok || first.Track().Name != "First" {
		t.Fatalf("Expected First at index 0")
	}
	if idx, ok := first.Track().AlbumIndex(); !ok || idx != 0 {
		t.Errorf("Expected album index 0, got %d", idx)
	}
}

func TestLocalProvider_Resume(t *testing.T) {
	p := NewLocalProvider(localFixture(t), 2, logger.Discard())

	pages := collectPages(t, p, "2")
	if len(pages) != 1 || len(pages[0].Items) != 1 || !pages[0].Done {
		t.Fatalf("Expected one final page with one item, got %+v", pages)
	}

	pages = collectPages(t, p, "10")
	if len(pages) != 1 || !pages[0].Done || len(pages[0].Items) != 0 {
		t.Errorf("Expected an empty done page past the end, got %+v", pages)
	}

	err := p.GenerateLibrary(context.Background(), "bogus", func(*LibraryPage) error { return nil })
	if err == nil {
		t.Error("Expected an error for invalid resume data")
	}
}

func TestLocalProvider_EmptyRoot(t *testing.T) {
	p := NewLocalProvider(t.TempDir(), 0, logger.Discard())
	pages := collectPages(t, p, "")
	if len(pages) != 1 || !pages[0].Done {
		t.Errorf("Expected a single done page, got %+v", pages)
	}
}

func TestLocalProvider_LoadAlbumItems(t *testing.T) {
	p := NewLocalProvider(localFixture(t), 0, logger.Discard())
	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	album := domain.NewAlbum(domain.AlbumData{
		MediaBase: domain.MediaBase{URI: "localfiles:album:Band/Record"},
	}, domain.CollectionOptions{Loader: p})
	items, err := album.Items().GetItems(context.Background(), 0, 2, asynclist.LoadOptions{})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 2 || items[1].Track().Name != "Second" {
		t.Errorf("Unexpected items: %d", len(items))
	}
	if n, ok := album.Items().ItemCount(); !ok || n != 2 {
		t.Errorf("Expected count 2, got %d %v", n, ok)
	}
}
