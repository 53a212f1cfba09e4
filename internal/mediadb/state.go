package mediadb

import (
	"context"
	"fmt"

	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
	"github.com/cesargomez89/mediacache/internal/store"
)

// SetState writes DBState values
func (m *MediaDB) SetState(ctx context.Context, state map[string]string) error {
	return m.write(ctx, sqlbuild.Options{}, CacheOptions{DBState: state}, nil)
}

// GetState returns the stored values for keys. Missing keys are absent
// from the map.
func (m *MediaDB) GetState(ctx context.Context, keys []string) (map[string]string, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		sqlbuild.SelectState(tx, "state", keys)
		return nil
	})
	if err != nil {
		return nil, err
	}
	state := make(map[string]string, len(keys))
	for _, row := range results.Rows("state") {
		key, _ := row["stateKey"].(string)
		value, _ := row["stateValue"].(string)
		state[key] = value
	}
	return state, nil
}

// GetStateValue returns the value of key, or def when unset
func (m *MediaDB) GetStateValue(ctx context.Context, key, def string) (string, error) {
	state, err := m.GetState(ctx, []string{key})
	if err != nil {
		return "", err
	}
	if v, ok := state[key]; ok {
		return v, nil
	}
	return def, nil
}

// PruneNonLibrary deletes cached entities no longer reachable from the
// library or playback history
func (m *MediaDB) PruneNonLibrary(ctx context.Context) error {
	tx := store.NewTx()
	sqlbuild.PruneNonLibrary(tx)
	if _, err := m.db.Transaction(ctx, tx, store.TxOptions{}); err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	m.log.Info("pruned non-library entities")
	return nil
}

var statsTables = []string{
	constants.TableTrack,
	constants.TableArtist,
	constants.TableUserAccount,
	constants.TableTrackCollection,
	constants.TableTrackCollectionItem,
	constants.TableSavedTrack,
	constants.TableSavedAlbum,
	constants.TableSavedPlaylist,
	constants.TableFollowedArtist,
	constants.TableFollowedUserAccount,
	constants.TablePlaybackHistoryItem,
}

// Stats returns the row count of every cache table
func (m *MediaDB) Stats(ctx context.Context) (map[string]int, error) {
	results, err := m.read(ctx, func(tx *store.Tx) error {
		for _, table := range statsTables {
			tx.AddQuery(table, fmt.Sprintf("SELECT count(*) AS total FROM %s", table), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int, len(statsTables))
	for _, table := range statsTables {
		stats[table] = count(results, table)
	}
	return stats, nil
}
