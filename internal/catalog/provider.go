// Package catalog holds the media providers the cache is filled from.
package catalog

import (
	"context"
	"errors"

	"github.com/cesargomez89/mediacache/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found in provider")
	ErrUnknownProvider = errors.New("unknown provider")
)

// LibraryPage is one step of a library walk. ResumeData restarts the walk
// right after this page.
type LibraryPage struct {
	Items      []*domain.LibraryItem
	Progress   float64
	ResumeData string
	Done       bool
}

// Provider is a source of media a library can be synced from
type Provider interface {
	domain.ItemsLoader
	Name() string
	// GenerateLibrary walks the provider's library from resume ("" for the
	// start), handing each page to fn. An error from fn stops the walk.
	GenerateLibrary(ctx context.Context, resume string, fn func(*LibraryPage) error) error
}
