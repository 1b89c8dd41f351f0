package btree

/*
Node layout on disk (see codec.go for the encoding):

	+------------------------------------------------------------+
	| NodeHeader (35 bytes)                                       |
	|   node_id(8) is_leaf(1) parent_id(8) next_leaf(8)           |
	|   previous_leaf(8) num_keys(2)                               |
	+------------------------------------------------------------+
	| keys_per_node key slots (8 bytes each, uint64)               |
	|   first num_keys are live, the rest are zero padding         |
	+------------------------------------------------------------+
	| keys_per_node+1 child-ref slots (8 bytes each, uint64)        |
	|   internal: num_keys+1 live child node offsets                |
	|   leaf: num_keys live value offsets                            |
	+------------------------------------------------------------+
	| zero padding out to BP_NODE_SIZE                              |
	+------------------------------------------------------------+

Node itself never touches the file; it is a plain in-memory value with pure
structural operations. FileManager (codec.go) is the only thing that knows
how a Node maps onto bytes.
*/

import "sort"

const (
	// InvalidNodeID is the sentinel node_id/child-ref value meaning "no node",
	// used for a root's parent_id and a tail leaf's next_leaf.
	InvalidNodeID uint64 = 0

	// DBHeaderSize is the encoded size of DatabaseHeader, in bytes.
	DBHeaderSize = 14

	// NodeHeaderSize is the encoded size of NodeHeader, in bytes.
	NodeHeaderSize = 35

	// BPNodeSize is the fixed size of a node page, in bytes.
	BPNodeSize = 2048

	// DefaultKeysPerNode is the keys_per_node used when a Config leaves it
	// at zero.
	DefaultKeysPerNode uint16 = 125
)

// Config holds the B+ tree's shape parameters.
type Config struct {
	// ValueSize is the fixed width of every value, in bytes. Zero means
	// values are variable-length and stored with a 4-byte length prefix.
	ValueSize uint16

	// KeysPerNode is the maximum number of keys a node may hold before it
	// must split. Zero falls back to DefaultKeysPerNode.
	KeysPerNode uint16
}

// DefaultConfig is a variable-length-value store with room for 125 keys per
// node, matching the on-disk layout's default page utilization.
var DefaultConfig = Config{
	ValueSize:   0,
	KeysPerNode: DefaultKeysPerNode,
}

// NodeHeader is the fixed-width metadata every node page carries.
type NodeHeader struct {
	NodeID       uint64 // this node's own byte offset; immutable once assigned
	IsLeaf       bool
	ParentID     uint64 // InvalidNodeID for the root
	NextLeaf     uint64 // leaves only; InvalidNodeID for the last leaf
	PreviousLeaf uint64 // leaves only; InvalidNodeID for the first leaf
	NumKeys      uint16
}

// Node is the in-memory, I/O-free representation of a single B+ tree node.
// Internal nodes hold len(Keys)+1 child offsets in Children; leaves hold
// len(Keys) value offsets, one per key, in the same slice.
type Node struct {
	Header   NodeHeader
	Keys     []uint64
	Children []uint64
}

// FindChildInsertPosition returns the upper-bound index among this node's
// keys for key: the index of the first key strictly greater than key, or
// len(Keys) if none is. Internal nodes only.
func (n *Node) FindChildInsertPosition(key uint64) int {
	keys := n.Keys
	return sort.Search(len(keys), func(i int) bool { return keys[i] > key })
}

// FindChild returns the child offset to descend into for key. A key equal
// to a separator routes to the child on its right, matching the B+ tree
// convention that a leaf's keys are all >= the separator that leads to it.
func (n *Node) FindChild(key uint64) uint64 {
	return n.Children[n.FindChildInsertPosition(key)]
}

// FindValueInsertPosition returns the lower-bound index among this node's
// keys for key: the index of the first key >= key, or len(Keys) if none
// is. Leaf nodes only.
func (n *Node) FindValueInsertPosition(key uint64) int {
	keys := n.Keys
	return sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
}

// FindValue returns the value offset stored under key, or InvalidNodeID if
// key is absent from this leaf. Leaf nodes only.
func (n *Node) FindValue(key uint64) uint64 {
	i := n.FindValueInsertPosition(key)
	if i < len(n.Keys) && n.Keys[i] == key {
		return n.Children[i]
	}
	return InvalidNodeID
}

// Insert adds key/ref into this node in sorted order. The caller is
// responsible for ensuring the node has room (num_keys < keys_per_node)
// before calling Insert; a full node must be split first.
//
// For a leaf, ref is the value offset stored alongside key at the same
// index. For an internal node, ref is a child offset stored one position
// to the right of key, since a separator key's right child holds every
// key greater than or equal to it.
func (n *Node) Insert(key uint64, ref uint64) {
	if n.Header.IsLeaf {
		pos := n.FindValueInsertPosition(key)
		n.Keys = insertUint64(n.Keys, pos, key)
		n.Children = insertUint64(n.Children, pos, ref)
	} else {
		pos := n.FindChildInsertPosition(key)
		n.Keys = insertUint64(n.Keys, pos, key)
		n.Children = insertUint64(n.Children, pos+1, ref)
	}
	n.Header.NumKeys++
}

// SplitLeaf splits a full leaf in two to make room for newKey, which has
// not yet been inserted. It moves roughly half of the keys to a new right
// sibling, leaving n as the left half, and returns the sibling. The
// sibling's node_id, and the leaf chain pointers on both sides, are the
// caller's responsibility to patch in once an offset has been reserved for
// it.
//
// The starting point is to move floor(n/2) keys right and keep the rest.
// If newKey would land in the keeping half, one more key is shifted right
// so the eventual insert doesn't just re-overflow the left side.
func (n *Node) SplitLeaf(newKey uint64) *Node {
	total := int(n.Header.NumKeys)
	move := total / 2
	stay := total - move

	if newKey < n.Keys[stay-1] {
		stay--
		move++
	}

	right := &Node{
		Header: NodeHeader{
			IsLeaf:       true,
			ParentID:     n.Header.ParentID,
			PreviousLeaf: n.Header.NodeID,
			NextLeaf:     n.Header.NextLeaf,
			NumKeys:      uint16(move),
		},
		Keys:     append([]uint64{}, n.Keys[stay:total]...),
		Children: append([]uint64{}, n.Children[stay:total]...),
	}

	n.Keys = n.Keys[:stay]
	n.Children = n.Children[:stay]
	n.Header.NumKeys = uint16(stay)

	return right
}

// SplitParent splits a full internal node to make room for a new separator
// key splitKey and the child it leads to, newChildID, which have not yet
// been inserted. It returns the new right sibling and the key promoted up
// to whichever node becomes this node's parent; that promoted key is
// removed from both children (a B-tree-style internal split, distinct from
// a B+ leaf split, where nothing is duplicated across the boundary).
//
// The merge-then-split below treats the node's existing keys/children and
// the pending insertion as one (numKeys+1)-key, (numKeys+2)-child sequence
// and halves it; this naturally reduces to the three shapes a one-sided
// special case would need to handle (the new key landing left of, at, or
// right of the median) without hand-tracking each one.
func (n *Node) SplitParent(splitKey uint64, newChildID uint64) (right *Node, medianKey uint64) {
	numKeys := int(n.Header.NumKeys)
	insertPos := n.FindChildInsertPosition(splitKey)

	mergedKeys := make([]uint64, 0, numKeys+1)
	mergedKeys = append(mergedKeys, n.Keys[:insertPos]...)
	mergedKeys = append(mergedKeys, splitKey)
	mergedKeys = append(mergedKeys, n.Keys[insertPos:]...)

	mergedChildren := make([]uint64, 0, numKeys+2)
	mergedChildren = append(mergedChildren, n.Children[:insertPos+1]...)
	mergedChildren = append(mergedChildren, newChildID)
	mergedChildren = append(mergedChildren, n.Children[insertPos+1:]...)

	mid := numKeys / 2
	medianKey = mergedKeys[mid]

	n.Keys = append([]uint64{}, mergedKeys[:mid]...)
	n.Children = append([]uint64{}, mergedChildren[:mid+1]...)
	n.Header.NumKeys = uint16(len(n.Keys))

	right = &Node{
		Header: NodeHeader{
			IsLeaf:   false,
			ParentID: n.Header.ParentID,
			NumKeys:  uint16(len(mergedKeys) - mid - 1),
		},
		Keys:     append([]uint64{}, mergedKeys[mid+1:]...),
		Children: append([]uint64{}, mergedChildren[mid+1:]...),
	}

	return right, medianKey
}

// insertUint64 inserts v into s at pos, shifting the tail right by one.
func insertUint64(s []uint64, pos int, v uint64) []uint64 {
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

// assert panics if the condition is false. Used for invariants that would
// indicate a bug in the caller rather than a recoverable runtime error.
func assert(b bool, msg string) {
	if !b {
		panic("keva: " + msg)
	}
}
