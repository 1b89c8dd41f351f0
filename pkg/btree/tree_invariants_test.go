package btree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTreeInvariantsAfterManyInserts builds a keys_per_node=3 tree out of a
// shuffled-looking insertion order and then walks the whole structure,
// requiring every B+ tree invariant to hold: node slot bounds, sorted keys,
// children one more than keys on internal nodes, every subtree bounded by
// its parent's separators, and the leaf chain visiting every key exactly
// once in ascending order.
func TestTreeInvariantsAfterManyInserts(t *testing.T) {
	db, err := OpenMemory(Config{ValueSize: 4, KeysPerNode: 3})
	require.NoError(t, err)

	order := []uint64{50, 10, 90, 30, 70, 20, 60, 80, 40, 5, 15, 25, 35, 45, 55, 65, 75, 85, 95, 1}
	for _, k := range order {
		require.NoError(t, db.Put(k, encodeTestValue(k)), "Put(%d)", k)
	}

	v := &treeValidator{t: t, db: db}
	v.validate(db.root, nil, nil)

	seen := collectLeafChain(t, db)
	require.Len(t, seen, len(order))
	for i := 1; i < len(seen); i++ {
		require.Less(t, seen[i-1], seen[i], "leaf chain must be strictly ascending")
	}
}

// TestTreeInvariantsDuplicateRejectedWithoutMutation verifies that a
// rejected duplicate Put leaves the tree's invariants intact (no partial
// mutation from the failed attempt).
func TestTreeInvariantsDuplicateRejectedWithoutMutation(t *testing.T) {
	db, err := OpenMemory(Config{ValueSize: 4, KeysPerNode: 3})
	require.NoError(t, err)

	for _, k := range []uint64{1, 2, 3, 4, 5, 6, 7} {
		require.NoError(t, db.Put(k, encodeTestValue(k)))
	}

	require.ErrorIs(t, db.Put(4, encodeTestValue(99)), ErrKeyExists)

	v := &treeValidator{t: t, db: db}
	v.validate(db.root, nil, nil)

	value, found, err := db.Get(4)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 4, value[0], "the rejected Put must not have overwritten the original value")
}

// treeValidator walks a tree loading children via the same FileManager the
// DBManager put them through, so it exercises the real on-disk encoding
// rather than the in-memory structures a Put left behind.
type treeValidator struct {
	t  *testing.T
	db *DBManager
}

// validate checks node and recurses into its children. low/high (nil for
// unbounded) are the key range every key in this subtree must fall inside,
// derived from the separators on the path down from the root.
func (v *treeValidator) validate(node *Node, low, high *uint64) {
	v.t.Helper()
	require.LessOrEqual(v.t, int(node.Header.NumKeys), int(v.db.keysPerNode))
	require.Len(v.t, node.Keys, int(node.Header.NumKeys))

	for i := 1; i < len(node.Keys); i++ {
		require.Less(v.t, node.Keys[i-1], node.Keys[i], "keys must be strictly ascending within a node")
	}
	for _, k := range node.Keys {
		if low != nil {
			require.GreaterOrEqual(v.t, k, *low)
		}
		if high != nil {
			require.Less(v.t, k, *high)
		}
	}

	if node.Header.IsLeaf {
		require.Len(v.t, node.Children, len(node.Keys), "a leaf must have one value ref per key")
		return
	}

	require.Len(v.t, node.Children, len(node.Keys)+1, "an internal node must have one more child than keys")

	for i, childOffset := range node.Children {
		child, err := v.db.fm.LoadNode(childOffset)
		require.NoError(v.t, err)
		require.Equal(v.t, node.Header.NodeID, child.Header.ParentID, "child's parent_id must point back at this node")

		var childLow, childHigh *uint64
		if i > 0 {
			childLow = &node.Keys[i-1]
		} else {
			childLow = low
		}
		if i < len(node.Keys) {
			childHigh = &node.Keys[i]
		} else {
			childHigh = high
		}
		v.validate(child, childLow, childHigh)
	}
}
