package domain

import "github.com/cesargomez89/mediacache/internal/constants"

// LibraryItem records that an entity is saved or followed in a
// provider's library.
type LibraryItem struct {
	LibraryProvider string
	MediaItem       MediaItem
	AddedAt         string
}

// LibraryTable returns the table that stores the membership row
func (l *LibraryItem) LibraryTable() string {
	switch l.MediaItem.(type) {
	case *Track:
		return constants.TableSavedTrack
	case *Album:
		return constants.TableSavedAlbum
	case *Playlist:
		return constants.TableSavedPlaylist
	case *Artist:
		return constants.TableFollowedArtist
	case *UserAccount:
		return constants.TableFollowedUserAccount
	}
	return ""
}

// PlaybackHistoryItem is one play of a track
type PlaybackHistoryItem struct {
	Track        *Track   `json:"track"`
	StartTime    string   `json:"startTime"`
	ContextURI   string   `json:"contextURI,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	ChosenByUser bool     `json:"chosenByUser"`
}
