package bplus

import (
	"testing"

	"minirel/storage_engine/page"
)

func TestEncodeDecodeLeafRoundTrip(t *testing.T) {
	n := newLeaf(3)
	n.keys = []int32{1, 5, 9}
	n.values = []page.RID{{PageID: 1}, {PageID: 5}, {PageID: 9, Slot: 2}}
	n.nextLeaf = 4

	pg := page.New()
	pg.SetID(3)
	if err := encodeNode(n, pg); err != nil {
		t.Fatalf("encodeNode: %v", err)
	}

	got, err := decodeNode(pg)
	if err != nil {
		t.Fatalf("decodeNode: %v", err)
	}
	if len(got.keys) != len(n.keys) {
		t.Fatalf("keys length = %d, want %d", len(got.keys), len(n.keys))
	}
	for i := range n.keys {
		if got.keys[i] != n.keys[i] {
			t.Errorf("keys[%d] = %d, want %d", i, got.keys[i], n.keys[i])
		}
		if got.values[i] != n.values[i] {
			t.Errorf("values[%d] = %v, want %v", i, got.values[i], n.values[i])
		}
	}
	if got.nextLeaf != n.nextLeaf {
		t.Errorf("nextLeaf = %d, want %d", got.nextLeaf, n.nextLeaf)
	}
	if pg.Kind() != page.KindIndexLeaf {
		t.Errorf("page kind = %v, want KindIndexLeaf", pg.Kind())
	}
}

func TestEncodeDecodeInternalRoundTrip(t *testing.T) {
	n := newInternal(7)
	n.keys = []int32{10, 20}
	n.children = []uint32{1, 2, 3}

	pg := page.New()
	pg.SetID(7)
	if err := encodeNode(n, pg); err != nil {
		t.Fatalf("encodeNode: %v", err)
	}

	got, err := decodeNode(pg)
	if err != nil {
		t.Fatalf("decodeNode: %v", err)
	}
	if len(got.children) != 3 {
		t.Fatalf("children length = %d, want 3", len(got.children))
	}
	for i, c := range []uint32{1, 2, 3} {
		if got.children[i] != c {
			t.Errorf("children[%d] = %d, want %d", i, got.children[i], c)
		}
	}
	if pg.Kind() != page.KindIndexInternal {
		t.Errorf("page kind = %v, want KindIndexInternal", pg.Kind())
	}
}

func TestDecodeRejectsMismatchedKind(t *testing.T) {
	pg := page.New()
	pg.SetID(1)
	pg.SetKind(page.KindTable)

	if _, err := decodeNode(pg); err == nil {
		t.Errorf("decodeNode on a table page should fail")
	}
}

func TestLowerBoundAndFindKey(t *testing.T) {
	keys := []int32{10, 20, 30}

	cases := []struct {
		key  int32
		want int
	}{
		{5, 0},
		{10, 1},
		{15, 1},
		{30, 3},
		{35, 3},
	}
	for _, c := range cases {
		if got := lowerBound(keys, c.key); got != c.want {
			t.Errorf("lowerBound(%v, %d) = %d, want %d", keys, c.key, got, c.want)
		}
	}

	if idx, found := findKey(keys, 20); !found || idx != 1 {
		t.Errorf("findKey(20) = (%d, %v), want (1, true)", idx, found)
	}
	if idx, found := findKey(keys, 25); found || idx != 2 {
		t.Errorf("findKey(25) = (%d, %v), want (2, false)", idx, found)
	}
}
