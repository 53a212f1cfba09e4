// Package tagging reads and writes the tags of local audio files.
package tagging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/cesargomez89/mediacache/internal/constants"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Tags is what an audio file says about its track
type Tags struct {
	Path        string
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	TrackNumber int
	DiscNumber  int
	Duration    time.Duration
	Cover       *Cover
}

// Cover describes an embedded front cover
type Cover struct {
	MIME   string
	Width  int
	Height int
}

// Supported reports whether ReadFile understands the file extension
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case constants.ExtFLAC, constants.ExtMP3:
		return true
	}
	return false
}

// ReadFile reads the tags of the audio file at path. Missing titles fall
// back to the file name and missing album artists to the artist.
func ReadFile(path string) (*Tags, error) {
	var (
		t   *Tags
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case constants.ExtFLAC:
		t, err = readFLAC(path)
	case constants.ExtMP3:
		t, err = readMP3(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	t.Path = path
	if t.Title == "" {
		t.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if t.AlbumArtist == "" {
		t.AlbumArtist = t.Artist
	}
	return t, nil
}

// WriteFile writes t, and cover when set, into the audio file at path
func WriteFile(path string, t *Tags, cover []byte) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case constants.ExtFLAC:
		return writeFLAC(path, t, cover)
	case constants.ExtMP3:
		return writeMP3(path, t, cover)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func readFLAC(path string) (*Tags, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	t := &Tags{}
	for _, block := range f.Meta {
		switch block.Type {
		case flac.StreamInfo:
			t.Duration = streamDuration(block.Data)
		case flac.VorbisComment:
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, fmt.Errorf("failed to parse vorbis comments: %w", err)
			}
			t.Title = firstComment(cmts, "TITLE")
			t.Artist = firstComment(cmts, "ARTIST")
			t.AlbumArtist = firstComment(cmts, "ALBUMARTIST")
			t.Album = firstComment(cmts, "ALBUM")
			t.TrackNumber = parseNumber(firstComment(cmts, "TRACKNUMBER"))
			t.DiscNumber = parseNumber(firstComment(cmts, "DISCNUMBER"))
		case flac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil || pic.PictureType != flacpicture.PictureTypeFrontCover {
				continue
			}
			t.Cover = &Cover{MIME: pic.MIME, Width: int(pic.Width), Height: int(pic.Height)}
		}
	}
	return t, nil
}

// streamDuration decodes the sample rate and total samples of a
// STREAMINFO block
func streamDuration(data []byte) time.Duration {
	if len(data) < 18 {
		return 0
	}
	sampleRate := int64(data[10])<<12 | int64(data[11])<<4 | int64(data[12])>>4
	totalSamples := int64(data[13]&0x0F)<<32 | int64(data[14])<<24 | int64(data[15])<<16 | int64(data[16])<<8 | int64(data[17])
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(totalSamples * int64(time.Second) / sampleRate)
}

func firstComment(cmts *flacvorbis.MetaDataBlockVorbisComment, key string) string {
	values, err := cmts.Get(key)
	if err != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}

func writeFLAC(path string, t *Tags, cover []byte) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	cmts := flacvorbis.New()
	add := func(key, value string) error {
		if value == "" {
			return nil
		}
		return cmts.Add(key, value)
	}
	for _, kv := range [][2]string{
		{"TITLE", t.Title},
		{"ARTIST", t.Artist},
		{"ALBUMARTIST", t.AlbumArtist},
		{"ALBUM", t.Album},
		{"TRACKNUMBER", formatNumber(t.TrackNumber)},
		{"DISCNUMBER", formatNumber(t.DiscNumber)},
	} {
		if err := add(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to add %s: %w", kv[0], err)
		}
	}
	cmtBlock := cmts.Marshal()

	meta := make([]*flac.MetaDataBlock, 0, len(f.Meta)+2)
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment || (len(cover) > 0 && block.Type == flac.Picture) {
			continue
		}
		meta = append(meta, block)
	}
	meta = append(meta, &cmtBlock)

	if len(cover) > 0 {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", cover, detectMIME(cover))
		if err != nil {
			return fmt.Errorf("failed to create picture: %w", err)
		}
		picBlock := pic.Marshal()
		meta = append(meta, &picBlock)
	}
	f.Meta = meta

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	return nil
}

func readMP3(path string) (*Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	t := &Tags{
		Title:       tag.Title(),
		Artist:      tag.Artist(),
		AlbumArtist: textFrame(tag, tag.CommonID("Band/Orchestra/Accompaniment")),
		Album:       tag.Album(),
		TrackNumber: parseNumber(textFrame(tag, tag.CommonID("Track number/Position in set"))),
		DiscNumber:  parseNumber(textFrame(tag, tag.CommonID("Part of a set"))),
	}
	if ms, err := strconv.Atoi(textFrame(tag, "TLEN")); err == nil {
		t.Duration = time.Duration(ms) * time.Millisecond
	}

	for _, frame := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pic, ok := frame.(id3v2.PictureFrame)
		if !ok || pic.PictureType != id3v2.PTFrontCover {
			continue
		}
		cover := &Cover{MIME: pic.MimeType}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(pic.Picture)); err == nil {
			cover.Width, cover.Height = cfg.Width, cfg.Height
		}
		t.Cover = cover
		break
	}
	return t, nil
}

func textFrame(tag *id3v2.Tag, id string) string {
	return strings.TrimSpace(tag.GetTextFrame(id).Text)
}

func writeMP3(path string, t *Tags, cover []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(t.Title)
	tag.SetArtist(t.Artist)
	tag.SetAlbum(t.Album)
	if t.AlbumArtist != "" {
		tag.AddTextFrame(tag.CommonID("Band/Orchestra/Accompaniment"), id3v2.EncodingUTF8, t.AlbumArtist)
	}
	if t.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, formatNumber(t.TrackNumber))
	}
	if t.DiscNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Part of a set"), id3v2.EncodingUTF8, formatNumber(t.DiscNumber))
	}
	if t.Duration > 0 {
		tag.AddTextFrame("TLEN", id3v2.EncodingUTF8, strconv.FormatInt(t.Duration.Milliseconds(), 10))
	}
	if len(cover) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectMIME(cover),
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     cover,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save MP3 tags: %w", err)
	}
	return nil
}

// parseNumber reads "3" or "3/12"
func parseNumber(s string) int {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formatNumber(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func detectMIME(data []byte) string {
	if bytes.HasPrefix(data, []byte("\x89PNG")) {
		return "image/png"
	}
	return constants.MimeTypeJPEG
}
