// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort              = "8080"
	DefaultDBPath            = "mediacache.db"
	DefaultConcurrency       = 1
	DefaultPollInterval      = 2 * time.Second
	DefaultBusyRetryInterval = 2 * time.Millisecond
	DefaultBusyMaxAttempts   = 2500
	DefaultChunkSize         = 18
	DefaultQueueSize         = 64
	DefaultJobListLimit      = 50
	DefaultShutdownTimeout   = 30 * time.Second
)

// Application identity, used for XDG paths
const (
	AppName        = "mediacache"
	ConfigFileName = "config.toml"
)

// Database tables
const (
	TableArtist                = "Artist"
	TableUserAccount           = "UserAccount"
	TableFollowedArtist        = "FollowedArtist"
	TableFollowedUserAccount   = "FollowedUserAccount"
	TableTrackCollection       = "TrackCollection"
	TableTrackCollectionArtist = "TrackCollectionArtist"
	TableTrack                 = "Track"
	TableTrackArtist           = "TrackArtist"
	TableTrackCollectionItem   = "TrackCollectionItem"
	TableSavedTrack            = "SavedTrack"
	TableSavedAlbum            = "SavedAlbum"
	TableSavedPlaylist         = "SavedPlaylist"
	TablePlaybackHistoryItem   = "PlaybackHistoryItem"
	TableDBState               = "DBState"
	JobsTable                  = "jobs"
)

// Media item types
const (
	TypeTrack    = "track"
	TypeArtist   = "artist"
	TypeLabel    = "label"
	TypeUser     = "user"
	TypeAlbum    = "album"
	TypePlaylist = "playlist"
)

// DBState keys
const (
	SyncResumeDataKeyPrefix = "syncResumeData_"
	SyncLastFinishedPrefix  = "syncLastFinished_"
)

// Provider names
const (
	ProviderLocalFiles = "localfiles"
	ProviderMock       = "mock"
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
)

// MIME Types
const (
	MimeTypeJSON = "application/json"
	MimeTypeJPEG = "image/jpeg"
)
