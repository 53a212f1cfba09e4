// Package transform turns raw cache rows into the JSON objects entities
// are parsed from.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cesargomez89/mediacache/internal/constants"
)

// ErrShape is returned when a stored JSON column cannot be parsed
var ErrShape = errors.New("malformed cached row")

// Object is a JSON object keyed by column or field name
type Object = map[string]any

// JoinTable describes one side of a joined select. Columns are selected
// as Name.column AS Prefix+column.
type JoinTable struct {
	Name    string
	Prefix  string
	Columns []string
}

// SplitJoined breaks a prefixed row into one object per table, dropping
// NULL columns
func SplitJoined(tables []JoinTable, row map[string]any) []Object {
	out := make([]Object, len(tables))
	for i, table := range tables {
		obj := Object{}
		for _, column := range table.Columns {
			if v, ok := row[table.Prefix+column]; ok && v != nil {
				obj[column] = v
			}
		}
		out[i] = obj
	}
	return out
}

func Track(row map[string]any) (Object, error) {
	obj := clone(row)
	if _, ok := obj["type"]; !ok {
		obj["type"] = constants.TypeTrack
	}
	if err := parseField(obj, "artists"); err != nil {
		return nil, err
	}
	if err := parseField(obj, "images"); err != nil {
		return nil, err
	}
	toBool(obj, "playable")
	return obj, nil
}

// TrackCollection adds the owner object when the joined owner row exists
func TrackCollection(row, owner map[string]any) (Object, error) {
	obj := clone(row)
	if owner != nil && owner["uri"] != nil {
		ownerObj, err := UserAccount(owner)
		if err != nil {
			return nil, err
		}
		obj["owner"] = ownerObj
	}
	if err := parseField(obj, "artists"); err != nil {
		return nil, err
	}
	if err := parseField(obj, "images"); err != nil {
		return nil, err
	}
	return obj, nil
}

func TrackCollectionItem(row, track map[string]any) (Object, error) {
	obj := clone(row)
	trackObj, err := Track(track)
	if err != nil {
		return nil, err
	}
	obj["track"] = trackObj
	if err := parseField(obj, "addedBy"); err != nil {
		return nil, err
	}
	return obj, nil
}

// CombineCollectionAndItems nests items under "items" keyed by their
// decimal index. Items without a numeric indexNum are skipped.
func CombineCollectionAndItems(collection Object, items []Object) Object {
	obj := clone(collection)
	byIndex := Object{}
	for _, item := range items {
		index, ok := IndexNum(item)
		if !ok {
			continue
		}
		byIndex[strconv.Itoa(index)] = item
	}
	obj["items"] = byIndex
	return obj
}

// IndexNum reads an item's numeric indexNum
func IndexNum(item map[string]any) (int, bool) {
	return Int(item, "indexNum")
}

// Int reads a numeric field
func Int(obj map[string]any, key string) (int, bool) {
	switch v := obj[key].(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func Artist(row map[string]any) (Object, error) {
	obj := clone(row)
	if err := parseField(obj, "images"); err != nil {
		return nil, err
	}
	return obj, nil
}

func UserAccount(row map[string]any) (Object, error) {
	obj := clone(row)
	if err := parseField(obj, "images"); err != nil {
		return nil, err
	}
	return obj, nil
}

func SavedTrack(saved, track map[string]any) (Object, error) {
	return nest(saved, "mediaItem", func() (Object, error) { return Track(track) })
}

func SavedAlbum(saved, album map[string]any) (Object, error) {
	return nest(saved, "mediaItem", func() (Object, error) { return TrackCollection(album, nil) })
}

func SavedPlaylist(saved, playlist, owner map[string]any) (Object, error) {
	return nest(saved, "mediaItem", func() (Object, error) { return TrackCollection(playlist, owner) })
}

func FollowedArtist(followed, artist map[string]any) (Object, error) {
	return nest(followed, "mediaItem", func() (Object, error) { return Artist(artist) })
}

func FollowedUserAccount(followed, user map[string]any) (Object, error) {
	return nest(followed, "mediaItem", func() (Object, error) { return UserAccount(user) })
}

func PlaybackHistoryItem(item, track map[string]any) (Object, error) {
	obj, err := nest(item, "track", func() (Object, error) { return Track(track) })
	if err != nil {
		return nil, err
	}
	toBool(obj, "chosenByUser")
	return obj, nil
}

func nest(row map[string]any, key string, child func() (Object, error)) (Object, error) {
	obj := clone(row)
	childObj, err := child()
	if err != nil {
		return nil, err
	}
	obj[key] = childObj
	return obj, nil
}

// parseField replaces a JSON text column with its decoded value
func parseField(obj Object, key string) error {
	s, ok := obj[key].(string)
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return fmt.Errorf("%w: failed to parse %s json: %v", ErrShape, key, err)
	}
	obj[key] = v
	return nil
}

// toBool converts SQLite's 0/1 integers to booleans
func toBool(obj Object, key string) {
	switch v := obj[key].(type) {
	case int64:
		obj[key] = v != 0
	case int:
		obj[key] = v != 0
	case float64:
		obj[key] = v != 0
	}
}

func clone(row map[string]any) Object {
	obj := make(Object, len(row))
	for k, v := range row {
		obj[k] = v
	}
	return obj
}
