// Package kevadb is the thin top-level facade gluing pkg/storage and
// pkg/btree together into the store callers actually open: a single
// exclusive-access handle over either an in-memory or an on-disk B+ tree.
package kevadb

import (
	"errors"
	"fmt"
	"sync"

	"keva/pkg/btree"
)

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("keva: key not found")

// Config controls the fixed layout of a store: the width of stored values
// (0 for variable-length, length-prefixed values) and how many keys each
// B+ tree node holds before it splits.
type Config = btree.Config

// DefaultConfig is DefaultKeysPerNode keys per node and variable-length
// values.
var DefaultConfig = btree.DefaultConfig

// DB is a single exclusive-access handle onto a B+ tree key-value store. A
// *DB is safe for concurrent use by multiple goroutines.
type DB struct {
	mu  sync.RWMutex
	mgr *btree.DBManager
}

// Open creates a fresh, empty, in-memory store. It never touches disk and
// its contents are gone once the process exits.
func Open(cfg Config) (*DB, error) {
	mgr, err := btree.OpenMemory(cfg)
	if err != nil {
		return nil, err
	}
	return &DB{mgr: mgr}, nil
}

// OpenFile opens (creating if it doesn't exist) the store at path, taking
// an exclusive lock on the file for the life of the returned *DB. Opening a
// file created with a different Config returns btree's ErrConfigMismatch.
func OpenFile(path string, cfg Config) (*DB, error) {
	mgr, err := btree.OpenFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kevadb: open %s: %w", path, err)
	}
	return &DB{mgr: mgr}, nil
}

// Get retrieves the value stored under key. It returns ErrKeyNotFound if
// key is absent rather than a nil value and no error, so a caller can't
// mistake a missing key for a stored empty value.
func (db *DB) Get(key uint64) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	value, found, err := db.mgr.Get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

// Put inserts key/value. It returns btree's ErrKeyExists if key is already
// present; this store has no update-in-place operation.
func (db *DB) Put(key uint64, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.mgr.Put(key, value)
}

// Remove is declared on the public interface but not implemented, mirroring
// a deliberate gap in the engine this module is modeled on rather than an
// oversight. It always returns btree's ErrNotImplemented.
func (db *DB) Remove(key uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.mgr.Remove(key)
}

// Close releases the backing file, including its exclusive lock.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.mgr.Close()
}
