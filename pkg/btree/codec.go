package btree

import (
	"encoding/binary"
	"fmt"

	"keva/pkg/storage"
)

// DatabaseHeader is the 14-byte record at the start of every database file
// or in-memory store:
//
//	version(2) value_size(2) keys_per_node(2) root_offset(8)
type DatabaseHeader struct {
	Version     uint16
	ValueSize   uint16
	KeysPerNode uint16
	RootOffset  uint64
}

// FileManager is the sole translator between the in-memory Node
// representation and bytes in the backing File. It owns the File, the
// database header, and (via File.Reserve) the append cursor.
type FileManager struct {
	file   storage.File
	header DatabaseHeader
}

// newFileManager wraps file and writes a fresh DatabaseHeader built from
// cfg, as for a brand-new database.
func newFileManager(file storage.File, cfg Config) (*FileManager, error) {
	fm := &FileManager{file: file}
	if err := fm.InitDB(cfg); err != nil {
		return nil, err
	}
	return fm, nil
}

// loadFileManager wraps file and loads the DatabaseHeader already on disk,
// validating it against cfg.
func loadFileManager(file storage.File, cfg Config) (*FileManager, error) {
	fm := &FileManager{file: file}
	if err := fm.LoadDB(cfg); err != nil {
		return nil, err
	}
	return fm, nil
}

// InitDB reserves and writes a fresh DatabaseHeader at the start of the
// file. cfg.KeysPerNode of zero falls back to DefaultKeysPerNode.
func (fm *FileManager) InitDB(cfg Config) error {
	keysPerNode := cfg.KeysPerNode
	if keysPerNode == 0 {
		keysPerNode = DefaultKeysPerNode
	}

	fm.header = DatabaseHeader{
		Version:     1,
		ValueSize:   cfg.ValueSize,
		KeysPerNode: keysPerNode,
		RootOffset:  DBHeaderSize,
	}

	if off := fm.file.Reserve(DBHeaderSize); off != 0 {
		return fmt.Errorf("keva: database header must be the first thing reserved in a file, got offset %d", off)
	}

	return fm.writeHeader()
}

// LoadDB reads the DatabaseHeader already on disk and validates it against
// cfg. A non-zero cfg.ValueSize or cfg.KeysPerNode that disagrees with what
// is stored is rejected with ErrConfigMismatch; a zero field in cfg is
// treated as "accept whatever is on disk" only for KeysPerNode, since
// ValueSize's zero is itself a meaningful configuration (variable-length
// values) and must match exactly.
func (fm *FileManager) LoadDB(cfg Config) error {
	buf := make([]byte, DBHeaderSize)
	if err := fm.file.ReadAt(0, buf); err != nil {
		return err
	}

	header := DatabaseHeader{
		Version:     binary.LittleEndian.Uint16(buf[0:2]),
		ValueSize:   binary.LittleEndian.Uint16(buf[2:4]),
		KeysPerNode: binary.LittleEndian.Uint16(buf[4:6]),
		RootOffset:  binary.LittleEndian.Uint64(buf[6:14]),
	}

	if header.ValueSize != cfg.ValueSize {
		return fmt.Errorf("%w: file has value_size=%d, constructor asked for %d", ErrConfigMismatch, header.ValueSize, cfg.ValueSize)
	}
	if cfg.KeysPerNode != 0 && header.KeysPerNode != cfg.KeysPerNode {
		return fmt.Errorf("%w: file has keys_per_node=%d, constructor asked for %d", ErrConfigMismatch, header.KeysPerNode, cfg.KeysPerNode)
	}

	fm.header = header
	return nil
}

func (fm *FileManager) writeHeader() error {
	var buf [DBHeaderSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], fm.header.Version)
	binary.LittleEndian.PutUint16(buf[2:4], fm.header.ValueSize)
	binary.LittleEndian.PutUint16(buf[4:6], fm.header.KeysPerNode)
	binary.LittleEndian.PutUint64(buf[6:14], fm.header.RootOffset)

	if err := fm.file.WriteAt(0, buf[:]); err != nil {
		return err
	}
	return fm.file.Sync()
}

// UpdateRootOffset patches just the root_offset field of the database
// header, in place, without touching version/value_size/keys_per_node.
func (fm *FileManager) UpdateRootOffset(offset uint64) error {
	fm.header.RootOffset = offset

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], offset)
	if err := fm.file.WriteAt(6, buf[:]); err != nil {
		return err
	}
	return fm.file.Sync()
}

func encodeNodeHeader(h NodeHeader) []byte {
	buf := make([]byte, NodeHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.NodeID)
	if h.IsLeaf {
		buf[8] = 1
	}
	binary.LittleEndian.PutUint64(buf[9:17], h.ParentID)
	binary.LittleEndian.PutUint64(buf[17:25], h.NextLeaf)
	binary.LittleEndian.PutUint64(buf[25:33], h.PreviousLeaf)
	binary.LittleEndian.PutUint16(buf[33:35], h.NumKeys)
	return buf
}

func decodeNodeHeader(buf []byte) NodeHeader {
	return NodeHeader{
		NodeID:       binary.LittleEndian.Uint64(buf[0:8]),
		IsLeaf:       buf[8] != 0,
		ParentID:     binary.LittleEndian.Uint64(buf[9:17]),
		NextLeaf:     binary.LittleEndian.Uint64(buf[17:25]),
		PreviousLeaf: binary.LittleEndian.Uint64(buf[25:33]),
		NumKeys:      binary.LittleEndian.Uint16(buf[33:35]),
	}
}

// LoadNodeHeader reads just the 35-byte header of the node page at offset,
// without decoding its keys/children. Used when patching a sibling leaf's
// previous_leaf pointer during a split, where the keys aren't needed.
func (fm *FileManager) LoadNodeHeader(offset uint64) (NodeHeader, error) {
	buf := make([]byte, NodeHeaderSize)
	if err := fm.file.ReadAt(int64(offset), buf); err != nil {
		return NodeHeader{}, err
	}
	return decodeNodeHeader(buf), nil
}

// WriteNodeHeader overwrites just the header portion of an existing node
// page, leaving its keys/children untouched.
func (fm *FileManager) WriteNodeHeader(h NodeHeader) error {
	if err := fm.file.WriteAt(int64(h.NodeID), encodeNodeHeader(h)); err != nil {
		return err
	}
	return fm.file.Sync()
}

// LoadNode reads and decodes the full node page at offset.
func (fm *FileManager) LoadNode(offset uint64) (*Node, error) {
	keysPerNode := int(fm.header.KeysPerNode)

	page := make([]byte, BPNodeSize)
	if err := fm.file.ReadAt(int64(offset), page); err != nil {
		return nil, err
	}

	header := decodeNodeHeader(page)
	assert(int(header.NumKeys) <= keysPerNode, "decoded node has more keys than keys_per_node allows")

	keyStart := NodeHeaderSize
	keys := make([]uint64, header.NumKeys)
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint64(page[keyStart+i*8:])
	}

	numChildren := int(header.NumKeys)
	if !header.IsLeaf {
		numChildren++
	}
	childStart := keyStart + keysPerNode*8
	children := make([]uint64, numChildren)
	for i := range children {
		children[i] = binary.LittleEndian.Uint64(page[childStart+i*8:])
	}

	return &Node{Header: header, Keys: keys, Children: children}, nil
}

// WriteNode encodes node as a full BPNodeSize page (header, live keys and
// children, and zero padding out to keys_per_node/keys_per_node+1 slots and
// then to the page boundary) and writes it at node.Header.NodeID.
func (fm *FileManager) WriteNode(node *Node) error {
	keysPerNode := int(fm.header.KeysPerNode)

	page := make([]byte, BPNodeSize)
	copy(page, encodeNodeHeader(node.Header))

	keyStart := NodeHeaderSize
	for i, k := range node.Keys {
		binary.LittleEndian.PutUint64(page[keyStart+i*8:], k)
	}

	childStart := keyStart + keysPerNode*8
	for i, c := range node.Children {
		binary.LittleEndian.PutUint64(page[childStart+i*8:], c)
	}

	if err := fm.file.WriteAt(int64(node.Header.NodeID), page); err != nil {
		return err
	}
	return fm.file.Sync()
}

// GetValue reads back the value stored at offset. InvalidNodeID decodes to
// a nil value with no error, matching a leaf's empty/absent child-ref.
func (fm *FileManager) GetValue(offset uint64) ([]byte, error) {
	if offset == InvalidNodeID {
		return nil, nil
	}

	if fm.header.ValueSize > 0 {
		buf := make([]byte, fm.header.ValueSize)
		if err := fm.file.ReadAt(int64(offset), buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	lenBuf := make([]byte, 4)
	if err := fm.file.ReadAt(int64(offset), lenBuf); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(lenBuf)

	buf := make([]byte, size)
	if err := fm.file.ReadAt(int64(offset)+4, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// encodeValue returns the on-disk representation of value: the raw bytes
// for a fixed-width store, or a 4-byte length prefix followed by the bytes
// for a variable-length store.
func (fm *FileManager) encodeValue(value []byte) ([]byte, error) {
	if fm.header.ValueSize > 0 {
		if len(value) != int(fm.header.ValueSize) {
			return nil, fmt.Errorf("keva: value is %d bytes, store is configured for fixed-width %d-byte values", len(value), fm.header.ValueSize)
		}
		return value, nil
	}

	encoded := make([]byte, 4+len(value))
	binary.LittleEndian.PutUint32(encoded[:4], uint32(len(value)))
	copy(encoded[4:], value)
	return encoded, nil
}

// GetNextValuePosition reserves and returns the offset value would be
// written at, without writing it; the caller must then write the encoded
// value there itself. DBManager does not use it: it reserves and writes a
// value in one step through InsertValue.
func (fm *FileManager) GetNextValuePosition(value []byte) (uint64, error) {
	encoded, err := fm.encodeValue(value)
	if err != nil {
		return 0, err
	}
	return uint64(fm.file.Reserve(int64(len(encoded)))), nil
}

// InsertValue reserves space for value, writes it, and returns the offset
// it was written at.
func (fm *FileManager) InsertValue(value []byte) (uint64, error) {
	encoded, err := fm.encodeValue(value)
	if err != nil {
		return 0, err
	}

	offset := fm.file.Reserve(int64(len(encoded)))
	if err := fm.file.WriteAt(offset, encoded); err != nil {
		return 0, err
	}
	if err := fm.file.Sync(); err != nil {
		return 0, err
	}
	return uint64(offset), nil
}

// GetNextNodePosition reserves a fresh, full-page-sized slot for a new node
// and returns the offset that becomes its node_id.
func (fm *FileManager) GetNextNodePosition() uint64 {
	return uint64(fm.file.Reserve(BPNodeSize))
}
