// Package store owns the SQLite database that backs every MooseDB collection.
//
// A Store wraps a database/sql pool. Each logical operation borrows exactly one
// connection with Acquire and returns it with Close when done; operations never
// hold a connection across an externally observable suspension point.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	merrors "github.com/moosedb/moosedb/internal/errors"
)

// Queryer is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
// Catalog and codec helpers accept it so that the caller decides which borrowed
// connection or transaction a statement runs on.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures the connection pool.
type Options struct {
	// PoolSize is the maximum number of open connections.
	PoolSize int
	// AcquireTimeout bounds the wait for a free connection.
	AcquireTimeout time.Duration
	// BusyTimeout is how long SQLite retries a locked database before failing.
	BusyTimeout time.Duration
}

// DefaultOptions returns pool options suitable for a single-node server.
func DefaultOptions() Options {
	return Options{
		PoolSize:       8,
		AcquireTimeout: 5 * time.Second,
		BusyTimeout:    5 * time.Second,
	}
}

// Store is a pooled handle on the MooseDB SQLite database.
type Store struct {
	db             *sql.DB
	path           string
	acquireTimeout time.Duration
}

// DSN builds the go-sqlite3 data source name for path.
// Transactions begin with BEGIN IMMEDIATE so that a writer takes the database
// lock up front instead of failing on upgrade.
func DSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		path, busyTimeout.Milliseconds())
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts Options) (*Store, error) {
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultOptions().AcquireTimeout
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}

	db, err := sql.Open("sqlite3", DSN(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(opts.PoolSize)
	db.SetMaxIdleConns(opts.PoolSize)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to connect to %s: %w", path, err)
	}

	log.Printf("store: opened %s (pool=%d)", path, opts.PoolSize)

	return &Store{
		db:             db,
		path:           path,
		acquireTimeout: opts.AcquireTimeout,
	}, nil
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Acquire borrows one connection from the pool. The caller must Close it.
// If no connection frees up within the acquire timeout the error is a
// STORAGE/POOL_EXHAUSTED MooseError.
func (s *Store) Acquire(ctx context.Context) (*sql.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.db.Conn(actx)
	if err == nil {
		return conn, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, merrors.NewStorageError(merrors.CodePoolExhausted,
			fmt.Sprintf("no connection available within %s", s.acquireTimeout), err)
	}
	return nil, MapError(err, "failed to acquire connection")
}

// Stats exposes pool statistics for metrics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
