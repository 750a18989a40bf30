package bplus

import "minirel/storage_engine/page"

// Iterator walks the leaf chain in ascending key order between the bounds
// given to Range. It holds at most one page pinned at a time — a page is
// fetched, its contents copied out, and released before Next returns —
// rather than pinning the whole path for the iterator's lifetime.
type Iterator struct {
	t    *BPlusTree
	hi   int32
	leaf *node
	idx  int
	done bool
}

// Range returns an iterator over keys in [lo, hi], walking the leaf chain
// starting from the leaf that would contain lo.
func (t *BPlusTree) Range(lo, hi int32) (*Iterator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID == page.InvalidID {
		return &Iterator{done: true}, nil
	}

	guard, leaf, err := t.descendToLeaf(lo)
	if err != nil {
		return nil, err
	}
	idx, _ := findKey(leaf.keys, lo)
	guard.Release()

	return &Iterator{t: t, hi: hi, leaf: leaf, idx: idx}, nil
}

// Next returns the next (key, RID) pair in range, or ok=false once exhausted.
func (it *Iterator) Next() (int32, page.RID, bool, error) {
	if it.done {
		return 0, page.Nil, false, nil
	}

	for {
		if it.idx < len(it.leaf.keys) {
			k := it.leaf.keys[it.idx]
			if k > it.hi {
				it.done = true
				return 0, page.Nil, false, nil
			}
			v := it.leaf.values[it.idx]
			it.idx++
			return k, v, true, nil
		}

		if it.leaf.nextLeaf == page.InvalidID {
			it.done = true
			return 0, page.Nil, false, nil
		}

		it.t.mu.Lock()
		guard, n, err := it.t.fetchNode(it.leaf.nextLeaf)
		if err == nil {
			guard.Release()
		}
		it.t.mu.Unlock()
		if err != nil {
			it.done = true
			return 0, page.Nil, false, err
		}

		it.leaf = n
		it.idx = 0
	}
}

// Close releases any resources held by the iterator. The current
// implementation never holds a pin between Next calls, so Close is a no-op
// kept for API symmetry with callers that treat iterators as closeable.
func (it *Iterator) Close() {}
