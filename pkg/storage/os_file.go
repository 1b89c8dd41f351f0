package storage

import (
	"errors"
	"fmt"
	"os"
)

// ErrAlreadyLocked is returned by OpenFile when the exclusive lock on the
// database file cannot be taken, for instance because another process or an
// earlier, still-open OpenFile in this one already holds it.
var ErrAlreadyLocked = errors.New("keva: database file is already opened by another process")

// OSFile is a File backed by a real file on disk.
type OSFile struct {
	f      *os.File
	cursor int64
}

// OpenFile opens (creating if necessary) the database file at path and
// takes an exclusive advisory lock on it. isNew reports whether the file
// did not exist before this call, which the caller uses to decide between
// FileManager.InitDB and FileManager.LoadDB.
func OpenFile(path string) (file *OSFile, isNew bool, err error) {
	_, statErr := os.Stat(path)
	isNew = os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, err
	}

	if lockErr := lockExclusive(f); lockErr != nil {
		f.Close()
		return nil, false, fmt.Errorf("%w: %v", ErrAlreadyLocked, lockErr)
	}

	var size int64
	if !isNew {
		stat, statErr := f.Stat()
		if statErr != nil {
			unlock(f)
			f.Close()
			return nil, false, statErr
		}
		size = stat.Size()
	}

	return &OSFile{f: f, cursor: size}, isNew, nil
}

func (f *OSFile) ReadAt(offset int64, p []byte) error {
	_, err := f.f.ReadAt(p, offset)
	return err
}

func (f *OSFile) WriteAt(offset int64, p []byte) error {
	_, err := f.f.WriteAt(p, offset)
	return err
}

func (f *OSFile) Size() int64 {
	stat, err := f.f.Stat()
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (f *OSFile) Reserve(n int64) int64 {
	offset := f.cursor
	f.cursor += n
	return offset
}

func (f *OSFile) Sync() error {
	return f.f.Sync()
}

func (f *OSFile) Close() error {
	unlock(f.f)
	return f.f.Close()
}
