// Package mediadb is the cache façade: it writes media entities into the
// store and reads them back as JSON objects ready for domain.Parser.
package mediadb

import (
	"context"
	"errors"
	"fmt"

	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/metrics"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
	"github.com/cesargomez89/mediacache/internal/store"
	"github.com/cesargomez89/mediacache/internal/transform"
)

// ErrNotFound is returned by single-entity reads with no stored row
var ErrNotFound = errors.New("not found")

// CacheOptions apply to every write
type CacheOptions struct {
	// DBState is written in the same transaction as the entities
	DBState map[string]string
}

type InitOptions struct {
	Purge bool
}

// Page is one window of a library listing plus the listing's total size
type Page struct {
	Items []transform.Object `json:"items"`
	Total int                `json:"total"`
}

type MediaDB struct {
	db      *store.DB
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(db *store.DB, log *logger.Logger, m *metrics.Metrics) *MediaDB {
	if log == nil {
		log = logger.Default()
	}
	return &MediaDB{
		db:      db,
		log:     log.WithComponent("mediadb"),
		metrics: m,
	}
}

// Store returns the underlying database
func (m *MediaDB) Store() *store.DB {
	return m.db
}

// Initialize creates the schema, dropping every table first when
// opts.Purge is set
func (m *MediaDB) Initialize(ctx context.Context, opts InitOptions) error {
	if opts.Purge {
		if err := m.Purge(ctx); err != nil {
			return err
		}
	}
	return m.db.CreateDB(ctx)
}

// Purge drops every table, leaving an empty database
func (m *MediaDB) Purge(ctx context.Context) error {
	if err := m.db.PurgeDB(ctx); err != nil {
		return err
	}
	m.log.Info("purged media cache")
	return nil
}

// Reset deletes the database and recreates an empty one
func (m *MediaDB) Reset(ctx context.Context) error {
	return m.db.Reset(ctx)
}

// write fills a batch and commits it together with opts.DBState. A batch
// with nothing to write never reaches the store.
func (m *MediaDB) write(ctx context.Context, bopts sqlbuild.Options, opts CacheOptions, fill func(b *sqlbuild.Batch) error) error {
	b := sqlbuild.NewBatch(bopts)
	if fill != nil {
		if err := fill(b); err != nil {
			return err
		}
	}
	b.SetState(opts.DBState)
	if b.Empty() {
		return nil
	}
	tx := store.NewTx()
	if err := b.Build(tx); err != nil {
		return err
	}
	if _, err := m.db.Transaction(ctx, tx, store.TxOptions{}); err != nil {
		return fmt.Errorf("failed to write cache batch: %w", err)
	}
	return nil
}

// read runs the queries fill queues in one transaction
func (m *MediaDB) read(ctx context.Context, fill func(tx *store.Tx) error) (store.Results, error) {
	tx := store.NewTx()
	if err := fill(tx); err != nil {
		return nil, err
	}
	if tx.Len() == 0 {
		return store.Results{}, nil
	}
	results, err := m.db.Transaction(ctx, tx, store.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return results, nil
}

func objects(results store.Results, key string) []transform.Object {
	values := results[key]
	out := make([]transform.Object, 0, len(values))
	for _, v := range values {
		if obj, ok := v.(transform.Object); ok {
			out = append(out, obj)
		}
	}
	return out
}

// inOrder lines objects up with uris, leaving nil where nothing is stored
func inOrder(objs []transform.Object, uris []string) []transform.Object {
	byURI := make(map[string]transform.Object, len(objs))
	for _, obj := range objs {
		if uri, ok := obj["uri"].(string); ok {
			byURI[uri] = obj
		}
	}
	out := make([]transform.Object, len(uris))
	for i, uri := range uris {
		out[i] = byURI[uri]
	}
	return out
}

func count(results store.Results, key string) int {
	n, _ := results.Int(key, sqlbuild.CountKey)
	return int(n)
}
