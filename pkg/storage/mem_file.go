package storage

import "fmt"

// MemFile is an in-memory File backed by a growable byte slice. It is used
// for ephemeral, non-persistent stores and is the fixture of choice for
// unit tests that exercise FileManager/DBManager without touching disk.
type MemFile struct {
	data   []byte
	cursor int64
}

// NewMemFile returns an empty in-memory file ready for InitDB.
func NewMemFile() *MemFile {
	return &MemFile{}
}

func (f *MemFile) ReadAt(offset int64, p []byte) error {
	end := offset + int64(len(p))
	if offset < 0 || end > int64(len(f.data)) {
		return fmt.Errorf("keva: read [%d:%d) past end of in-memory file (size %d)", offset, end, len(f.data))
	}
	copy(p, f.data[offset:end])
	return nil
}

func (f *MemFile) WriteAt(offset int64, p []byte) error {
	if offset < 0 {
		return fmt.Errorf("keva: write at negative offset %d", offset)
	}
	end := offset + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[offset:end], p)
	return nil
}

func (f *MemFile) Size() int64 {
	return int64(len(f.data))
}

func (f *MemFile) Reserve(n int64) int64 {
	offset := f.cursor
	f.cursor += n
	return offset
}

func (f *MemFile) Sync() error { return nil }

func (f *MemFile) Close() error { return nil }
