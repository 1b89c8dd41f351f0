// Package storage provides the byte-stream abstraction the B+ tree engine is
// built on. It implements positioned reads and writes over either a real
// file or an in-memory buffer, plus an append cursor for reserving fresh
// space for node pages and values.
package storage

// File is a positioned byte stream with an append cursor. Implementations
// never interpret the bytes they move; encoding and decoding node pages,
// headers, and values is FileManager's job, not File's.
type File interface {
	// ReadAt fills p with the bytes starting at offset. It is an error to
	// read past the current end of the stream.
	ReadAt(offset int64, p []byte) error

	// WriteAt writes p starting at offset, growing the stream if necessary.
	WriteAt(offset int64, p []byte) error

	// Size reports the current length of the stream in bytes.
	Size() int64

	// Reserve claims the next n bytes at the end of the stream and advances
	// the append cursor, returning the offset the caller should write to.
	// It does not itself write anything.
	Reserve(n int64) int64

	// Sync flushes any buffering to the underlying medium.
	Sync() error

	// Close releases the stream and any locks held on it.
	Close() error
}
