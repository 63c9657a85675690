package models

import (
	"database/sql"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Store is the offline-capable local record store. It is the source of
// truth: every note and category lives here first, and the remote mirror
// is a rebuildable projection of it.
//
// Explicitly constructed and passed by handle — no package-level instance.
// The mutex gives single-writer discipline over the underlying database;
// readers share.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// OpenStore opens (or creates) the local database at path and runs
// migrations. An empty path opens an in-memory database, which the tests
// use for isolation.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, serr.Wrap(err, "failed to open local store")
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, serr.Wrap(err, "failed to migrate local store")
	}

	logger.Info("Local store ready", "path", path)
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withTx runs fn inside a transaction under the write lock, committing on
// nil and rolling back on error. Local-store failures are always surfaced
// to callers — silent loss here is unacceptable.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return serr.Wrap(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return serr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// exec runs a single write statement under the write lock.
func (s *Store) exec(query string, args ...interface{}) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Exec(query, args...)
}

// query runs a read under the shared lock.
func (s *Store) query(q string, args ...interface{}) (*sql.Rows, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Query(q, args...)
}

// queryRow runs a single-row read under the shared lock.
func (s *Store) queryRow(q string, args ...interface{}) *sql.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.QueryRow(q, args...)
}
