// Package store persists encoded bundles in SQLite, keyed by bundle
// name with a content hash for integrity checking on read.
package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/chazu/kona/pkg/bundle"
)

// ErrBundleNotFound indicates the requested bundle doesn't exist.
var ErrBundleNotFound = errors.New("store: bundle not found")

// ErrCorruptBundle indicates stored bytes no longer match their
// recorded content hash.
var ErrCorruptBundle = errors.New("store: bundle content hash mismatch")

// Store handles SQLite storage for encoded bundles.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens (or creates) a bundle store at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS bundles (
		name TEXT PRIMARY KEY,
		hash BLOB NOT NULL,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores encoded bundle bytes under a name, replacing any previous
// version.
func (s *Store) Put(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := bundle.Hash(data)
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO bundles (name, hash, data) VALUES (?, ?, ?)",
		name, hash[:], data,
	)
	if err != nil {
		return fmt.Errorf("saving bundle %s: %w", name, err)
	}
	return nil
}

// Get retrieves encoded bundle bytes by name, verifying the recorded
// content hash.
func (s *Store) Get(name string) ([]byte, error) {
	var hash, data []byte
	err := s.db.QueryRow("SELECT hash, data FROM bundles WHERE name = ?", name).Scan(&hash, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, name)
		}
		return nil, fmt.Errorf("querying bundle %s: %w", name, err)
	}

	computed := bundle.Hash(data)
	if !bytes.Equal(hash, computed[:]) {
		return nil, fmt.Errorf("%w: %s", ErrCorruptBundle, name)
	}
	return data, nil
}

// Names lists the stored bundle names in lexical order.
func (s *Store) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM bundles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning bundle name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
