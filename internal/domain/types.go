package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type ImageSize string

const (
	ImageSizeTiny   ImageSize = "tiny"
	ImageSizeSmall  ImageSize = "small"
	ImageSizeMedium ImageSize = "medium"
	ImageSizeLarge  ImageSize = "large"
)

// SizeForDimensions buckets an image by its smaller edge
func SizeForDimensions(width, height int) ImageSize {
	switch {
	case width <= 100 || height <= 100:
		return ImageSizeTiny
	case width <= 280 || height <= 280:
		return ImageSizeSmall
	case width <= 800 || height <= 800:
		return ImageSizeMedium
	default:
		return ImageSizeLarge
	}
}

type Image struct {
	URL    string    `json:"url"`
	Size   ImageSize `json:"size"`
	Width  *int      `json:"width,omitempty"`
	Height *int      `json:"height,omitempty"`
}

// Images is stored as a JSON array. A nil slice means the images are
// unknown and is stored as NULL; an empty slice is stored as "[]".
type Images []Image

func (s Images) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Images) Scan(value interface{}) error {
	data, ok := scanBytes(value)
	if !ok {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

// Artists is stored as a JSON array of artist references. Empty is NULL.
type Artists []*Artist

type artistRef struct {
	Type     string `json:"type"`
	URI      string `json:"uri"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

func (s Artists) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	refs := make([]artistRef, len(s))
	for i, a := range s {
		refs[i] = artistRef{Type: a.Type, URI: a.URI, Provider: a.Provider, Name: a.Name}
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Artists) Scan(value interface{}) error {
	data, ok := scanBytes(value)
	if !ok {
		*s = nil
		return nil
	}
	var refs []artistRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return err
	}
	out := make(Artists, len(refs))
	for i, r := range refs {
		out[i] = &Artist{MediaBase: MediaBase{Type: r.Type, URI: r.URI, Provider: r.Provider, Name: r.Name}}
	}
	*s = out
	return nil
}

// URIs returns the artist URIs in order
func (s Artists) URIs() []string {
	uris := make([]string, len(s))
	for i, a := range s {
		uris[i] = a.URI
	}
	return uris
}

// JSONValue stores any value as JSON text, or NULL when the value is nil.
type JSONValue struct {
	V any
}

func (j JSONValue) Value() (driver.Value, error) {
	if j.V == nil {
		return nil, nil
	}
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json value: %w", err)
	}
	return string(b), nil
}

func scanBytes(value interface{}) ([]byte, bool) {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, false
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, false
	}
	return data, true
}
