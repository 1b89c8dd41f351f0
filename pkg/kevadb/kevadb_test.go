package kevadb

import (
	"errors"
	"path/filepath"
	"testing"

	"keva/pkg/btree"
)

// TestOpenPutGet verifies the simplest case through the facade: open an
// in-memory store, put a value, and get it back.
func TestOpenPutGet(t *testing.T) {
	db, err := Open(Config{ValueSize: 4, KeysPerNode: 5})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := db.Put(1, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	value, err := db.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("value = %v, want [1 2 3 4]", value)
	}
}

// TestGetMissingKeyReturnsErrKeyNotFound verifies that a missing key is
// reported through ErrKeyNotFound rather than a nil value with no error.
func TestGetMissingKeyReturnsErrKeyNotFound(t *testing.T) {
	db, err := Open(Config{ValueSize: 4, KeysPerNode: 5})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = db.Get(1)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get on a missing key: err = %v, want ErrKeyNotFound", err)
	}
}

// TestPutDuplicateKeyRejected verifies the facade surfaces btree's
// ErrKeyExists unchanged.
func TestPutDuplicateKeyRejected(t *testing.T) {
	db, err := Open(Config{ValueSize: 4, KeysPerNode: 5})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Put(1, []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	err = db.Put(1, []byte{1, 1, 1, 1})
	if !errors.Is(err, btree.ErrKeyExists) {
		t.Fatalf("duplicate Put: err = %v, want ErrKeyExists", err)
	}
}

// TestRemoveNotImplemented verifies the facade surfaces the deliberate
// Remove stub unchanged.
func TestRemoveNotImplemented(t *testing.T) {
	db, err := Open(Config{ValueSize: 4, KeysPerNode: 5})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Remove(1); !errors.Is(err, btree.ErrNotImplemented) {
		t.Fatalf("Remove: err = %v, want ErrNotImplemented", err)
	}
}

// TestOpenFileReopenPreservesData verifies that closing and reopening an
// on-disk store preserves every key previously written.
func TestOpenFileReopenPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.keva")

	db, err := OpenFile(path, Config{ValueSize: 4, KeysPerNode: 5})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	for k := uint64(1); k <= 10; k++ {
		if err := db.Put(k, []byte{byte(k), 0, 0, 0}); err != nil {
			t.Fatalf("Put(%d): %v", k, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenFile(path, Config{ValueSize: 4, KeysPerNode: 5})
	if err != nil {
		t.Fatalf("reopen OpenFile: %v", err)
	}
	defer reopened.Close()

	for k := uint64(1); k <= 10; k++ {
		value, err := reopened.Get(k)
		if err != nil {
			t.Fatalf("Get(%d): %v", k, err)
		}
		if value[0] != byte(k) {
			t.Errorf("Get(%d) = %v, want first byte %d", k, value, k)
		}
	}
}

// TestOpenFileRejectsSecondExclusiveOpen verifies that a second OpenFile
// against a still-open store's path fails rather than silently sharing the
// file.
func TestOpenFileRejectsSecondExclusiveOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.keva")

	db, err := OpenFile(path, Config{ValueSize: 4, KeysPerNode: 5})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer db.Close()

	if _, err := OpenFile(path, Config{ValueSize: 4, KeysPerNode: 5}); err == nil {
		t.Fatal("expected a second exclusive OpenFile to fail")
	}
}
