package bplus

import (
	"math/rand"
	"path/filepath"
	"testing"

	"minirel/storage_engine/page"
)

func openTestTree(t *testing.T, poolCapacity int) *BPlusTree {
	t.Helper()
	tree, err := Open(filepath.Join(t.TempDir(), "index.db"), poolCapacity)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { tree.Close() })
	return tree
}

// withCaps shrinks LeafCap/InternalCap for the duration of a test so splits
// (and multi-level trees) happen after tens of keys instead of hundreds of
// thousands, restoring the defaults on cleanup.
func withCaps(t *testing.T, leaf, internal int) {
	t.Helper()
	prevLeaf, prevInternal := LeafCap, InternalCap
	LeafCap, InternalCap = leaf, internal
	t.Cleanup(func() { LeafCap, InternalCap = prevLeaf, prevInternal })
}

func rid(n int32) page.RID {
	return page.RID{PageID: uint32(n), Slot: 0}
}

func TestInsertAndSearch(t *testing.T) {
	tree := openTestTree(t, 32)

	inserted, err := tree.Insert(10, rid(10))
	if err != nil || !inserted {
		t.Fatalf("Insert: inserted=%v err=%v", inserted, err)
	}

	got, found, err := tree.Search(10)
	if err != nil || !found {
		t.Fatalf("Search: found=%v err=%v", found, err)
	}
	if got != rid(10) {
		t.Errorf("Search(10) = %v, want %v", got, rid(10))
	}

	_, found, err = tree.Search(999)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found {
		t.Errorf("Search(999) found a key that was never inserted")
	}
}

func TestDuplicateInsertRejected(t *testing.T) {
	tree := openTestTree(t, 32)

	if _, err := tree.Insert(5, rid(5)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	inserted, err := tree.Insert(5, rid(999))
	if err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}
	if inserted {
		t.Errorf("Insert of an existing key should return false")
	}

	got, found, err := tree.Search(5)
	if err != nil || !found {
		t.Fatalf("Search: found=%v err=%v", found, err)
	}
	if got != rid(5) {
		t.Errorf("duplicate insert must not overwrite: Search(5) = %v, want %v", got, rid(5))
	}
}

func TestInOrderWalkAfterScrambledInserts(t *testing.T) {
	tree := openTestTree(t, 64)

	keys := rand.New(rand.NewSource(1)).Perm(500)
	for _, k := range keys {
		if _, err := tree.Insert(int32(k), rid(int32(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	it, err := tree.Range(0, 499)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	var prev int32 = -1
	count := 0
	for {
		k, v, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if k <= prev {
			t.Fatalf("keys out of order: %d after %d", k, prev)
		}
		if v != rid(k) {
			t.Errorf("value for key %d = %v, want %v", k, v, rid(k))
		}
		prev = k
		count++
	}
	if count != 500 {
		t.Errorf("visited %d keys, want 500", count)
	}
}

func TestRangeScanAcrossManyLeafSplits(t *testing.T) {
	withCaps(t, 10, 10)
	tree := openTestTree(t, 16)

	keys := rand.New(rand.NewSource(2)).Perm(50)
	for _, k := range keys {
		if _, err := tree.Insert(int32(k), rid(int32(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	it, err := tree.Range(0, 49)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	count := 0
	for {
		_, _, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 50 {
		t.Errorf("visited %d keys, want 50", count)
	}
}

func TestRemoveDeletesKeyLocally(t *testing.T) {
	tree := openTestTree(t, 32)

	for _, k := range []int32{1, 2, 3, 4, 5} {
		if _, err := tree.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	removed, err := tree.Remove(3)
	if err != nil || !removed {
		t.Fatalf("Remove(3): removed=%v err=%v", removed, err)
	}

	_, found, err := tree.Search(3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found {
		t.Errorf("key 3 still present after Remove")
	}

	for _, k := range []int32{1, 2, 4, 5} {
		_, found, err := tree.Search(k)
		if err != nil || !found {
			t.Errorf("Search(%d) after unrelated remove: found=%v err=%v", k, found, err)
		}
	}
}

func TestRemoveMissingKeyReturnsFalse(t *testing.T) {
	tree := openTestTree(t, 32)
	if _, err := tree.Insert(1, rid(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	removed, err := tree.Remove(42)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed {
		t.Errorf("Remove of a missing key should return false")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	tree, err := Open(path, 32)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, k := range []int32{7, 3, 9, 1} {
		if _, err := tree.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, 32)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	for _, k := range []int32{7, 3, 9, 1} {
		got, found, err := reopened.Search(k)
		if err != nil || !found {
			t.Fatalf("Search(%d) after reopen: found=%v err=%v", k, found, err)
		}
		if got != rid(k) {
			t.Errorf("Search(%d) after reopen = %v, want %v", k, got, rid(k))
		}
	}
}

func TestLeafSplitIncreasesDepthByAtMostOne(t *testing.T) {
	tree := openTestTree(t, 64)

	for i := int32(0); i <= int32(LeafCap); i++ {
		if _, err := tree.Insert(i, rid(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	guard, root, err := tree.fetchNode(tree.rootID)
	if err != nil {
		t.Fatalf("fetchNode(root): %v", err)
	}
	defer guard.Release()

	if root.isLeaf() {
		t.Fatalf("root should have split into an internal node after %d inserts", LeafCap+1)
	}
	if len(root.children) != 2 {
		t.Errorf("fresh split root should have exactly 2 children, got %d", len(root.children))
	}
}

// treeDepth walks the leftmost path from the root to a leaf, releasing each
// guard before descending, and returns the number of levels visited
// (1 for a tree whose root is itself a leaf).
func treeDepth(t *testing.T, tree *BPlusTree) int {
	t.Helper()
	depth := 0
	id := tree.rootID
	for {
		guard, n, err := tree.fetchNode(id)
		if err != nil {
			t.Fatalf("fetchNode(%d): %v", id, err)
		}
		depth++
		isLeaf := n.isLeaf()
		child := uint32(0)
		if !isLeaf {
			child = n.children[0]
		}
		guard.Release()
		if isLeaf {
			return depth
		}
		id = child
	}
}

// TestDeepTreeAcrossInternalSplits shrinks both capacities to 4 and inserts
// enough scrambled keys to force internal nodes to split, not just leaves —
// reproducing a ≥3-level tree (spec scenario: small leaf capacity crossing
// many leaves) so the multi-level descent loop in descendToLeaf and
// descendToLeafForInsert, and the scoped-unpin path in Remove, are actually
// exercised past depth two.
func TestDeepTreeAcrossInternalSplits(t *testing.T) {
	withCaps(t, 4, 4)
	tree := openTestTree(t, 32)

	const n = 300
	keys := rand.New(rand.NewSource(3)).Perm(n)
	for _, k := range keys {
		if _, err := tree.Insert(int32(k), rid(int32(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	if depth := treeDepth(t, tree); depth < 3 {
		t.Fatalf("tree depth = %d, want >= 3 after %d inserts with LeafCap=InternalCap=4", depth, n)
	}

	for i := int32(0); i < n; i++ {
		got, found, err := tree.Search(i)
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if !found {
			t.Fatalf("Search(%d) not found in deep tree", i)
		}
		if got != rid(i) {
			t.Errorf("Search(%d) = %v, want %v", i, got, rid(i))
		}
	}

	it, err := tree.Range(0, n-1)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	var prev int32 = -1
	count := 0
	for {
		k, v, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if k <= prev {
			t.Fatalf("keys out of order: %d after %d", k, prev)
		}
		if v != rid(k) {
			t.Errorf("value for key %d = %v, want %v", k, v, rid(k))
		}
		prev = k
		count++
	}
	if count != n {
		t.Errorf("in-order walk visited %d keys, want %d", count, n)
	}

	for i := int32(0); i < n; i += 7 {
		removed, err := tree.Remove(i)
		if err != nil || !removed {
			t.Fatalf("Remove(%d) in deep tree: removed=%v err=%v", i, removed, err)
		}
		if _, found, err := tree.Search(i); err != nil || found {
			t.Fatalf("Search(%d) after Remove: found=%v err=%v", i, found, err)
		}
	}
	for i := int32(0); i < n; i++ {
		if i%7 == 0 {
			continue
		}
		if _, found, err := tree.Search(i); err != nil || !found {
			t.Fatalf("Search(%d) after unrelated removes: found=%v err=%v", i, found, err)
		}
	}
}
