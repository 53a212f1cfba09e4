package constants

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	if DefaultPort != "8080" {
		t.Errorf("Expected DefaultPort to be '8080', got '%s'", DefaultPort)
	}

	if DefaultDBPath != "mediacache.db" {
		t.Errorf("Expected DefaultDBPath to be 'mediacache.db', got '%s'", DefaultDBPath)
	}

	if DefaultChunkSize != 18 {
		t.Errorf("Expected DefaultChunkSize to be 18, got %d", DefaultChunkSize)
	}
}

func TestBusyRetry(t *testing.T) {
	if DefaultBusyRetryInterval != 2*time.Millisecond {
		t.Errorf("Expected DefaultBusyRetryInterval to be 2ms, got %v", DefaultBusyRetryInterval)
	}

	if DefaultBusyMaxAttempts <= 0 {
		t.Errorf("Expected DefaultBusyMaxAttempts to be positive, got %d", DefaultBusyMaxAttempts)
	}

	total := time.Duration(DefaultBusyMaxAttempts) * DefaultBusyRetryInterval
	if total < time.Second {
		t.Errorf("Expected busy retry window of at least 1s, got %v", total)
	}
}

func TestTables(t *testing.T) {
	tables := []string{
		TableArtist,
		TableUserAccount,
		TableFollowedArtist,
		TableFollowedUserAccount,
		TableTrackCollection,
		TableTrackCollectionArtist,
		TableTrack,
		TableTrackArtist,
		TableTrackCollectionItem,
		TableSavedTrack,
		TableSavedAlbum,
		TableSavedPlaylist,
		TablePlaybackHistoryItem,
		TableDBState,
		JobsTable,
	}

	seen := make(map[string]bool)
	for _, table := range tables {
		if table == "" {
			t.Error("Table constant should not be empty")
		}
		if seen[table] {
			t.Errorf("Duplicate table constant %s", table)
		}
		seen[table] = true
	}
}

func TestMediaTypes(t *testing.T) {
	types := []string{
		TypeTrack,
		TypeArtist,
		TypeLabel,
		TypeUser,
		TypeAlbum,
		TypePlaylist,
	}

	for _, mt := range types {
		if mt == "" {
			t.Error("Media type constant should not be empty")
		}
		if strings.ToLower(mt) != mt {
			t.Errorf("Media type %s should be lowercase", mt)
		}
	}
}

func TestFileExtensions(t *testing.T) {
	extensions := []string{
		ExtFLAC,
		ExtMP3,
	}

	for _, ext := range extensions {
		if ext == "" {
			t.Error("File extension constant should not be empty")
		}
		if ext[0] != '.' {
			t.Errorf("File extension %s should start with .", ext)
		}
	}
}

func TestSyncStateKeys(t *testing.T) {
	if !strings.HasSuffix(SyncResumeDataKeyPrefix, "_") {
		t.Errorf("Expected SyncResumeDataKeyPrefix to end with _, got %s", SyncResumeDataKeyPrefix)
	}
}
