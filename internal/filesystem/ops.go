package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Sanitize strips characters that are invalid in file names and URI keys.
// Trailing dots and spaces are trimmed.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune("<>:\"/\\|?*", r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// AudioFile is a file found by FindFiles
type AudioFile struct {
	Path    string
	RelPath string
	ModTime string
}

// FindFiles walks root and returns every regular file accepted by match,
// sorted by relative path. Hidden entries are skipped.
func FindFiles(root string, match func(path string) bool) ([]AudioFile, error) {
	var files []AudioFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !match(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, AudioFile{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			ModTime: info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(files, func(a, b AudioFile) int { return strings.Compare(a.RelPath, b.RelPath) })
	return files, nil
}
