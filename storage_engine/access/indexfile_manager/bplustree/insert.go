package bplus

import (
	"github.com/pkg/errors"

	"minirel/storage_engine/bufferpool"
	"minirel/storage_engine/errs"
	"minirel/storage_engine/page"
)

// Insert adds (key, value). It returns false, without modifying the tree,
// if key is already present — this design rejects duplicate keys rather
// than updating the existing value in place.
func (t *BPlusTree) Insert(key int32, value page.RID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID == page.InvalidID {
		if err := t.createFirstRoot(key, value); err != nil {
			return false, err
		}
		return true, nil
	}

	leafGuard, leaf, path, err := t.descendToLeafForInsert(key)
	if err != nil {
		return false, err
	}

	idx, found := findKey(leaf.keys, key)
	if found {
		leafGuard.Release()
		return false, nil
	}

	leaf.keys = insertInt32At(leaf.keys, idx, key)
	leaf.values = insertRIDAt(leaf.values, idx, value)

	if len(leaf.keys) <= LeafCap {
		if err := t.writeBackNode(leaf, leafGuard); err != nil {
			leafGuard.Release()
			return false, err
		}
		leafGuard.Release()
		return true, nil
	}

	sepKey, rightID, err := t.splitLeaf(leaf, leafGuard)
	if err != nil {
		return false, err
	}
	return true, t.insertIntoParent(path, sepKey, rightID)
}

func (t *BPlusTree) createFirstRoot(key int32, value page.RID) error {
	id, guard, ok, err := t.bp.NewPage(page.KindIndexLeaf)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(errs.ErrExhausted, "Insert: create root leaf")
	}

	n := newLeaf(id)
	n.keys = []int32{key}
	n.values = []page.RID{value}

	if err := t.writeBackNode(n, guard); err != nil {
		guard.Release()
		return err
	}
	guard.Release()

	t.rootID = id
	return t.persistRoot()
}

// splitLeaf moves the upper half of leaf's entries into a freshly allocated
// leaf, links it into the leaf chain, and returns the separator key that
// promotes to the parent along with the new right sibling's page id.
// leafGuard is released on every path before returning.
func (t *BPlusTree) splitLeaf(leaf *node, leafGuard *bufferpool.PageGuard) (int32, uint32, error) {
	mid := len(leaf.keys) / 2

	rightID, rightGuard, ok, err := t.bp.NewPage(page.KindIndexLeaf)
	if err != nil {
		leafGuard.Release()
		return 0, 0, err
	}
	if !ok {
		leafGuard.Release()
		return 0, 0, errors.Wrap(errs.ErrExhausted, "splitLeaf: allocate right sibling")
	}

	right := newLeaf(rightID)
	right.keys = append([]int32{}, leaf.keys[mid:]...)
	right.values = append([]page.RID{}, leaf.values[mid:]...)
	right.nextLeaf = leaf.nextLeaf

	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	leaf.nextLeaf = rightID

	if err := t.writeBackNode(right, rightGuard); err != nil {
		rightGuard.Release()
		leafGuard.Release()
		return 0, 0, err
	}
	rightGuard.Release()

	if err := t.writeBackNode(leaf, leafGuard); err != nil {
		leafGuard.Release()
		return 0, 0, err
	}
	leafGuard.Release()

	return right.keys[0], rightID, nil
}

// insertIntoParent promotes (sepKey, rightID) into the internal node named
// by the top of path, splitting and recursing up the stack as needed. An
// empty path means the node that just split was the root.
func (t *BPlusTree) insertIntoParent(path []pathEntry, sepKey int32, rightID uint32) error {
	if len(path) == 0 {
		return t.createNewRoot(sepKey, rightID)
	}

	top := path[len(path)-1]
	path = path[:len(path)-1]

	parentGuard, parent, err := t.fetchNode(top.pageID)
	if err != nil {
		return err
	}

	insertAt := top.childIndex
	parent.keys = insertInt32At(parent.keys, insertAt, sepKey)
	parent.children = insertUint32At(parent.children, insertAt+1, rightID)

	if len(parent.keys) <= InternalCap {
		if err := t.writeBackNode(parent, parentGuard); err != nil {
			parentGuard.Release()
			return err
		}
		parentGuard.Release()
		return nil
	}

	sepKey2, rightID2, err := t.splitInternal(parent, parentGuard)
	if err != nil {
		return err
	}
	return t.insertIntoParent(path, sepKey2, rightID2)
}

// splitInternal moves the upper half of n's keys/children into a new
// internal node, promoting the median key. guard is released on every path.
func (t *BPlusTree) splitInternal(n *node, guard *bufferpool.PageGuard) (int32, uint32, error) {
	mid := len(n.keys) / 2
	sep := n.keys[mid]

	rightID, rightGuard, ok, err := t.bp.NewPage(page.KindIndexInternal)
	if err != nil {
		guard.Release()
		return 0, 0, err
	}
	if !ok {
		guard.Release()
		return 0, 0, errors.Wrap(errs.ErrExhausted, "splitInternal: allocate right sibling")
	}

	right := newInternal(rightID)
	right.keys = append([]int32{}, n.keys[mid+1:]...)
	right.children = append([]uint32{}, n.children[mid+1:]...)

	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	if err := t.writeBackNode(right, rightGuard); err != nil {
		rightGuard.Release()
		guard.Release()
		return 0, 0, err
	}
	rightGuard.Release()

	if err := t.writeBackNode(n, guard); err != nil {
		guard.Release()
		return 0, 0, err
	}
	guard.Release()

	return sep, rightID, nil
}

func (t *BPlusTree) createNewRoot(sepKey int32, rightID uint32) error {
	leftID := t.rootID

	id, guard, ok, err := t.bp.NewPage(page.KindIndexInternal)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(errs.ErrExhausted, "createNewRoot")
	}

	n := newInternal(id)
	n.keys = []int32{sepKey}
	n.children = []uint32{leftID, rightID}

	if err := t.writeBackNode(n, guard); err != nil {
		guard.Release()
		return err
	}
	guard.Release()

	t.rootID = id
	return t.persistRoot()
}

func insertInt32At(s []int32, idx int, v int32) []int32 {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertUint32At(s []uint32, idx int, v uint32) []uint32 {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertRIDAt(s []page.RID, idx int, v page.RID) []page.RID {
	s = append(s, page.RID{})
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}
