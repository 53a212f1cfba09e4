package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/filesystem"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/metrics"
)

const memoryPath = ":memory:"

// Options configures an opened database
type Options struct {
	Path              string
	BusyTimeout       time.Duration
	BusyRetryInterval time.Duration
	BusyMaxAttempts   int
	QueueSize         int
	Logger            *logger.Logger
	Metrics           *metrics.Metrics
}

// DB owns one SQLite handle and the serial queue every statement for that
// handle runs on.
type DB struct {
	handle  *sqlx.DB
	opts    Options
	queue   *Queue
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Open opens (creating if needed) the database described by opts and
// applies the schema.
func Open(opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, errors.New("database path cannot be empty")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.BusyRetryInterval <= 0 {
		opts.BusyRetryInterval = constants.DefaultBusyRetryInterval
	}
	if opts.BusyMaxAttempts <= 0 {
		opts.BusyMaxAttempts = constants.DefaultBusyMaxAttempts
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = constants.DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	handle, err := openHandle(opts)
	if err != nil {
		return nil, err
	}

	db := &DB{
		handle:  handle,
		opts:    opts,
		queue:   NewQueue(opts.QueueSize, opts.Metrics),
		log:     opts.Logger.WithComponent("store"),
		metrics: opts.Metrics,
	}

	if err := db.CreateDB(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func openHandle(opts Options) (*sqlx.DB, error) {
	if opts.Path != memoryPath {
		if dir := filepath.Dir(opts.Path); dir != "." {
			if err := filesystem.EnsureDir(dir); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// One connection: the queue already serializes access, and BEGIN/END
	// must land on the same connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return db, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.opts.Path
}

// Do runs fn on the serial queue with the live handle
func (db *DB) Do(ctx context.Context, fn func(ctx context.Context, h *sqlx.DB) error) error {
	return db.queue.Submit(ctx, func(ctx context.Context) error {
		return fn(ctx, db.handle)
	})
}

// CreateDB creates every table that does not exist yet
func (db *DB) CreateDB(ctx context.Context) error {
	tx := NewTx()
	tx.AddSQL(CreateDBSQL, nil)
	if _, err := db.Transaction(ctx, tx, TxOptions{}); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// PurgeDB drops every table
func (db *DB) PurgeDB(ctx context.Context) error {
	tx := NewTx()
	tx.AddSQL(PurgeDBSQL, nil)
	if _, err := db.Transaction(ctx, tx, TxOptions{}); err != nil {
		return fmt.Errorf("failed to purge db: %w", err)
	}
	return nil
}

// Reset closes the handle, deletes the database files, and reopens an
// empty database with the schema applied.
func (db *DB) Reset(ctx context.Context) error {
	return db.queue.Submit(ctx, func(ctx context.Context) error {
		if db.opts.Path == memoryPath {
			tx := NewTx()
			tx.AddSQL(PurgeDBSQL, nil)
			tx.AddSQL(CreateDBSQL, nil)
			_, err := db.execute(ctx, tx, TxOptions{})
			return err
		}

		if err := db.handle.Close(); err != nil {
			return fmt.Errorf("failed to close db: %w", err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(db.opts.Path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to remove db file: %w", err)
			}
		}

		handle, err := openHandle(db.opts)
		if err != nil {
			return err
		}
		db.handle = handle

		tx := NewTx()
		tx.AddSQL(CreateDBSQL, nil)
		if _, err := db.execute(ctx, tx, TxOptions{}); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		db.log.Info("database reset", "path", db.opts.Path)
		return nil
	})
}

// Tables lists the user tables currently present
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	var tables []string
	err := db.Do(ctx, func(ctx context.Context, h *sqlx.DB) error {
		return h.SelectContext(ctx, &tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	})
	return tables, err
}

// Close drains the queue and closes the handle
func (db *DB) Close() error {
	db.queue.Close()
	if err := db.handle.Close(); err != nil && !strings.Contains(err.Error(), "closed") {
		return err
	}
	return nil
}
