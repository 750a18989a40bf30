package bplus

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"minirel/storage_engine/bufferpool"
	diskmanager "minirel/storage_engine/disk_manager"
	"minirel/storage_engine/errs"
	"minirel/storage_engine/page"
)

// metaPageID is always the first page AllocatePage hands out after the
// disk manager's own header page, so it is stable across Open calls for
// the lifetime of a given index file.
const metaPageID uint32 = 1

// BPlusTree is a clustered index over int32 keys, backed by a dedicated
// page file: page 0 is the disk manager's header page, page 1 holds the
// tree's own root-page-id metadata, and every subsequent page is either an
// internal or leaf node.
type BPlusTree struct {
	mu sync.Mutex

	bp    *bufferpool.BufferPool
	disk  *diskmanager.DiskManager
	cache *nodeCache

	rootID uint32
}

// Open opens (creating if absent) the index file at path with a buffer
// cache of poolCapacity frames.
func Open(path string, poolCapacity int) (*BPlusTree, error) {
	disk, err := diskmanager.Open(path)
	if err != nil {
		return nil, err
	}
	bp := bufferpool.New(poolCapacity, disk)
	t := &BPlusTree{bp: bp, disk: disk, cache: newNodeCache()}

	if disk.PageCount() == 1 {
		if err := t.initMetaPage(); err != nil {
			return nil, err
		}
	} else if err := t.loadMetaPage(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *BPlusTree) initMetaPage() error {
	id, guard, ok, err := t.bp.NewPage(page.KindHeader)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(errs.ErrExhausted, "Open: allocate metadata page")
	}
	if id != metaPageID {
		guard.Release()
		return errors.Wrapf(errs.ErrBadFormat, "Open: expected metadata page id %d, got %d", metaPageID, id)
	}

	t.rootID = page.InvalidID
	binary.LittleEndian.PutUint32(guard.Page().Data()[0:4], t.rootID)
	guard.MarkDirty()
	guard.Release()

	return t.bp.FlushAll()
}

func (t *BPlusTree) loadMetaPage() error {
	guard, ok, err := t.bp.Fetch(metaPageID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(errs.ErrExhausted, "Open: fetch metadata page")
	}
	t.rootID = binary.LittleEndian.Uint32(guard.Page().Data()[0:4])
	guard.Release()
	return nil
}

func (t *BPlusTree) persistRoot() error {
	guard, ok, err := t.bp.Fetch(metaPageID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(errs.ErrExhausted, "persistRoot")
	}
	binary.LittleEndian.PutUint32(guard.Page().Data()[0:4], t.rootID)
	guard.MarkDirty()
	guard.Release()
	return nil
}

// Close flushes every dirty frame and closes the underlying file.
func (t *BPlusTree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.bp.FlushAll(); err != nil {
		return err
	}
	return t.disk.Close()
}

// fetchNode pins page id and returns its decoded contents, consulting the
// decoded-node cache first. The returned node is a private copy, so a
// caller that edits it in place never touches the cached entry. The guard
// must be released by the caller exactly once.
func (t *BPlusTree) fetchNode(id uint32) (*bufferpool.PageGuard, *node, error) {
	guard, ok, err := t.bp.Fetch(id)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errors.Wrapf(errs.ErrExhausted, "fetchNode(%d)", id)
	}
	n, hit := t.cache.get(id)
	if !hit {
		n, err = decodeNode(guard.Page())
		if err != nil {
			guard.Release()
			return nil, nil, err
		}
		t.cache.put(n)
	}
	cp := *n
	cp.keys = append([]int32(nil), n.keys...)
	cp.values = append([]page.RID(nil), n.values...)
	cp.children = append([]uint32(nil), n.children...)
	return guard, &cp, nil
}

// writeBackNode encodes n into guard's page, marks it dirty, and drops any
// stale cache entry — the cache is never allowed to outlive a mutation.
func (t *BPlusTree) writeBackNode(n *node, guard *bufferpool.PageGuard) error {
	if err := encodeNode(n, guard.Page()); err != nil {
		return err
	}
	guard.MarkDirty()
	t.cache.invalidate(n.id)
	return nil
}

// pathEntry records one step of a descent: the internal page visited and
// the child index taken from it. Insert threads a stack of these instead
// of storing parent back-pointers in node pages, so promotion after a
// split walks back up without needing the tree to keep — or repair — a
// parent field on every node.
type pathEntry struct {
	pageID     uint32
	childIndex int
}

// descendToLeaf walks from the root to the leaf whose range contains key,
// releasing every internal node's pin before descending to its child. It
// loops until the fetched page's kind is actually INDEX_LEAF rather than
// assuming any fixed depth, which is the fix for the source's single-step
// descent defect.
func (t *BPlusTree) descendToLeaf(key int32) (*bufferpool.PageGuard, *node, error) {
	id := t.rootID
	for {
		guard, n, err := t.fetchNode(id)
		if err != nil {
			return nil, nil, err
		}
		if n.isLeaf() {
			return guard, n, nil
		}
		idx := lowerBound(n.keys, key)
		child := n.children[idx]
		guard.Release()
		id = child
	}
}

// descendToLeafForInsert is descendToLeaf plus a recorded path stack for
// post-split promotion.
func (t *BPlusTree) descendToLeafForInsert(key int32) (*bufferpool.PageGuard, *node, []pathEntry, error) {
	var path []pathEntry
	id := t.rootID
	for {
		guard, n, err := t.fetchNode(id)
		if err != nil {
			return nil, nil, nil, err
		}
		if n.isLeaf() {
			return guard, n, path, nil
		}
		idx := lowerBound(n.keys, key)
		child := n.children[idx]
		path = append(path, pathEntry{pageID: id, childIndex: idx})
		guard.Release()
		id = child
	}
}

// Search returns the RID stored for key, if any.
func (t *BPlusTree) Search(key int32) (page.RID, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID == page.InvalidID {
		return page.Nil, false, nil
	}
	guard, leaf, err := t.descendToLeaf(key)
	if err != nil {
		return page.Nil, false, err
	}
	defer guard.Release()

	idx, found := findKey(leaf.keys, key)
	if !found {
		return page.Nil, false, nil
	}
	return leaf.values[idx], true, nil
}

// Remove deletes key if present. It performs a local shift only — no
// borrowing or merging with siblings — per this design's explicit
// non-goal. Crucially it releases exactly the leaf guard it fetched, not a
// blanket unpin of the root id, which is the fix for the source's second
// flagged defect.
func (t *BPlusTree) Remove(key int32) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID == page.InvalidID {
		return false, nil
	}

	guard, leaf, err := t.descendToLeaf(key)
	if err != nil {
		return false, err
	}

	idx, found := findKey(leaf.keys, key)
	if !found {
		guard.Release()
		return false, nil
	}

	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	leaf.values = append(leaf.values[:idx], leaf.values[idx+1:]...)

	if err := t.writeBackNode(leaf, guard); err != nil {
		guard.Release()
		return false, err
	}
	guard.Release()
	return true, nil
}
