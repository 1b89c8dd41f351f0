package btree

import (
	"fmt"

	"keva/pkg/storage"
)

// DBManager is the B+ tree algorithm: it holds the in-memory root and talks
// to a FileManager for everything else, descending with an ancestor trail
// on every Put and propagating splits back up as needed.
type DBManager struct {
	fm          *FileManager
	root        *Node
	keysPerNode uint16
}

// OpenMemory creates a fresh, empty, in-memory database. It never touches
// disk and is gone once the process exits.
func OpenMemory(cfg Config) (*DBManager, error) {
	fm, err := newFileManager(storage.NewMemFile(), cfg)
	if err != nil {
		return nil, err
	}

	db := &DBManager{fm: fm, keysPerNode: fm.header.KeysPerNode}
	if err := db.initRoot(); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenFile opens (creating if necessary) the database file at path. An
// existing file's header is validated against cfg; a mismatch returns
// ErrConfigMismatch.
func OpenFile(path string, cfg Config) (*DBManager, error) {
	file, isNew, err := storage.OpenFile(path)
	if err != nil {
		return nil, err
	}

	var fm *FileManager
	if isNew {
		fm, err = newFileManager(file, cfg)
	} else {
		fm, err = loadFileManager(file, cfg)
	}
	if err != nil {
		return nil, err
	}

	db := &DBManager{fm: fm, keysPerNode: fm.header.KeysPerNode}
	if isNew {
		err = db.initRoot()
	} else {
		err = db.loadRoot()
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DBManager) initRoot() error {
	nodeID := db.fm.GetNextNodePosition()
	root := &Node{
		Header: NodeHeader{
			NodeID:       nodeID,
			IsLeaf:       true,
			ParentID:     InvalidNodeID,
			NextLeaf:     InvalidNodeID,
			PreviousLeaf: InvalidNodeID,
		},
	}
	if err := db.fm.WriteNode(root); err != nil {
		return err
	}
	if err := db.fm.UpdateRootOffset(nodeID); err != nil {
		return err
	}
	db.root = root
	return nil
}

func (db *DBManager) loadRoot() error {
	root, err := db.fm.LoadNode(db.fm.header.RootOffset)
	if err != nil {
		return err
	}
	db.root = root
	return nil
}

// Get looks up key, descending from the root. It returns (nil, false, nil)
// if key is absent.
func (db *DBManager) Get(key uint64) ([]byte, bool, error) {
	node := db.root
	for !node.Header.IsLeaf {
		child, err := db.fm.LoadNode(node.FindChild(key))
		if err != nil {
			return nil, false, err
		}
		node = child
	}

	valuePos := node.FindValue(key)
	if valuePos == InvalidNodeID {
		return nil, false, nil
	}

	value, err := db.fm.GetValue(valuePos)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put inserts key/value. It returns ErrKeyExists if key is already present.
//
// This is a two-phase operation. Phase one descends to the target leaf,
// maintaining an ancestor trail, and inserts there (splitting the leaf
// first if it's full). Phase two, only entered if the leaf split, walks
// back up the trail splitting each full ancestor in turn until it finds
// one with room, or runs out of ancestors and must grow a new root.
func (db *DBManager) Put(key uint64, value []byte) error {
	var ancestors []*Node
	node := db.root
	var sibling *Node

	for {
		if node.Header.IsLeaf {
			insertPos := node.FindValueInsertPosition(key)
			if insertPos < int(node.Header.NumKeys) && node.Keys[insertPos] == key {
				return fmt.Errorf("%w: key %d", ErrKeyExists, key)
			}

			target := node
			if int(node.Header.NumKeys) == int(db.keysPerNode) {
				sibling = node.SplitLeaf(key)

				siblingID := db.fm.GetNextNodePosition()
				sibling.Header.NodeID = siblingID
				node.Header.NextLeaf = siblingID

				if sibling.Header.NextLeaf != InvalidNodeID {
					nextHeader, err := db.fm.LoadNodeHeader(sibling.Header.NextLeaf)
					if err != nil {
						return err
					}
					nextHeader.PreviousLeaf = siblingID
					if err := db.fm.WriteNodeHeader(nextHeader); err != nil {
						return err
					}
				}

				if key >= sibling.Keys[0] {
					// The new key belongs on the sibling's side; write the
					// original (now-final) left half before reserving the
					// value, so the value can't land inside its page.
					if err := db.fm.WriteNode(node); err != nil {
						return err
					}
					target = sibling
				}
				if err := db.fm.WriteNode(sibling); err != nil {
					return err
				}
			}

			valuePos, err := db.fm.InsertValue(value)
			if err != nil {
				return err
			}
			target.Insert(key, valuePos)
			if err := db.fm.WriteNode(target); err != nil {
				return err
			}
			break
		}

		child, err := db.fm.LoadNode(node.FindChild(key))
		if err != nil {
			return err
		}
		ancestors = append(ancestors, child)
		node = child
	}

	if sibling == nil {
		return nil
	}
	return db.propagateSplit(ancestors, sibling)
}

// propagateSplit walks back up from a freshly split leaf, inserting its
// promoted separator into the first ancestor with room, splitting each
// full one in turn, and growing a new root if every ancestor was full.
func (db *DBManager) propagateSplit(ancestors []*Node, leafSibling *Node) error {
	// The leaf itself was pushed onto ancestors during descent (every
	// loaded child is, regardless of whether it's a leaf); it has already
	// been handled above and is not a parent to propagate into.
	if len(ancestors) > 0 {
		ancestors = ancestors[:len(ancestors)-1]
	}

	newChild := leafSibling
	splitKey := leafSibling.Keys[0]
	idx := len(ancestors) - 1

	for {
		var parent *Node
		switch {
		case newChild.Header.ParentID == db.root.Header.NodeID:
			parent = db.root
		case idx >= 0:
			parent = ancestors[idx]
			idx--
		}
		if parent == nil {
			break
		}

		if int(parent.Header.NumKeys) < int(db.keysPerNode) {
			parent.Insert(splitKey, newChild.Header.NodeID)
			return db.fm.WriteNode(parent)
		}

		right, median := parent.SplitParent(splitKey, newChild.Header.NodeID)
		right.Header.NodeID = db.fm.GetNextNodePosition()
		if err := db.adoptChildren(right); err != nil {
			return err
		}
		if err := db.fm.WriteNode(right); err != nil {
			return err
		}
		if err := db.fm.WriteNode(parent); err != nil {
			return err
		}

		newChild = right
		splitKey = median
	}

	return db.growRoot(newChild, splitKey)
}

// adoptChildren patches the parent_id of every child in parent.Children to
// parent.Header.NodeID. Used after SplitParent hands half of an internal
// node's children to a freshly-IDed sibling, whose children's headers still
// point at the node they used to belong to.
func (db *DBManager) adoptChildren(parent *Node) error {
	for _, childOffset := range parent.Children {
		header, err := db.fm.LoadNodeHeader(childOffset)
		if err != nil {
			return err
		}
		if header.ParentID == parent.Header.NodeID {
			continue
		}
		header.ParentID = parent.Header.NodeID
		if err := db.fm.WriteNodeHeader(header); err != nil {
			return err
		}
	}
	return nil
}

// growRoot creates a new internal root above the current one when a split
// propagated all the way past it: the old root and newChild become its two
// children, separated by splitKey.
func (db *DBManager) growRoot(newChild *Node, splitKey uint64) error {
	newRootID := db.fm.GetNextNodePosition()

	db.root.Header.ParentID = newRootID
	newChild.Header.ParentID = newRootID
	if err := db.fm.WriteNodeHeader(db.root.Header); err != nil {
		return err
	}
	if err := db.fm.WriteNodeHeader(newChild.Header); err != nil {
		return err
	}

	newRoot := &Node{
		Header: NodeHeader{
			NodeID:       newRootID,
			IsLeaf:       false,
			ParentID:     InvalidNodeID,
			NextLeaf:     InvalidNodeID,
			PreviousLeaf: InvalidNodeID,
			NumKeys:      1,
		},
		Keys:     []uint64{splitKey},
		Children: []uint64{db.root.Header.NodeID, newChild.Header.NodeID},
	}

	if err := db.fm.UpdateRootOffset(newRootID); err != nil {
		return err
	}
	if err := db.fm.WriteNode(newRoot); err != nil {
		return err
	}
	db.root = newRoot
	return nil
}

// Remove is declared on the public interface but not implemented, mirroring
// a deliberate gap in the engine this module is modeled on rather than an
// oversight.
func (db *DBManager) Remove(key uint64) error {
	return ErrNotImplemented
}

// Close releases the backing file.
func (db *DBManager) Close() error {
	return db.fm.file.Close()
}
