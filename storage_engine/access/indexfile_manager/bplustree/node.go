// Package bplus implements a clustered B+ tree index over int32 keys with
// RID leaf values, backed by the buffer cache and disk manager below it.
//
// Structure:
//
//	Tree
//	 └── Internal Node (keys + child page ids)
//	        └── Child Internal Nodes ...
//	               └── Leaf Nodes (keys + values + next-leaf pointer)
//
// keys are sorted ascending; an internal node's children slice has exactly
// len(keys)+1 entries; leaf nodes chain via next for range scans; all
// leaves sit at the same depth.
//
// Grounded on the teacher's storage_engine/access/indexfile_manager/bplustree
// package (node shape, split/promote call graph) and original_source's
// index/simple_btree.h for exact traversal semantics, with the two flagged
// defects (single-step leaf descent, blind root unpin on Remove) fixed per
// the redesign notes rather than carried over.
package bplus

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"minirel/storage_engine/errs"
	"minirel/storage_engine/page"
)

// LeafCap and InternalCap are sized so an encoded node of either kind fits
// inside the 4072-byte page payload with room to spare:
//
//	leaf:     2 (numKeys) + 4 (nextLeaf) + n * (4 key + 6 RID) = 6 + 10n
//	internal: 2 (numKeys) + n * 4 key + (n+1) * 4 child        = 6 + 8n
//
// These are vars rather than consts so tests can shrink them to force
// splits (and multi-level trees) without inserting hundreds of thousands
// of keys; production callers leave the defaults alone.
var (
	LeafCap     = 400
	InternalCap = 400
)

// node is the decoded, in-memory form of an index page's payload. Which
// fields apply is decided by kind, which always mirrors the page header's
// kind byte — decodeNode takes kind from that byte and refuses a page whose
// kind is neither INDEX_LEAF nor INDEX_INTERNAL. It does not compare the
// kind against what the caller expected.
type node struct {
	id   uint32
	kind page.Kind

	keys []int32

	// leaf-only
	values   []page.RID
	nextLeaf uint32

	// internal-only
	children []uint32
}

func newLeaf(id uint32) *node {
	return &node{id: id, kind: page.KindIndexLeaf, nextLeaf: page.InvalidID}
}

func newInternal(id uint32) *node {
	return &node{id: id, kind: page.KindIndexInternal}
}

func (n *node) isLeaf() bool { return n.kind == page.KindIndexLeaf }

// lowerBound returns the smallest index i such that key < n.keys[i], or
// len(n.keys) if key is >= every key present. Used for internal-node child
// selection.
func lowerBound(keys []int32, key int32) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if key < keys[mid] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// findKey returns the index of key in keys and true, or the insertion
// point and false if absent. Classic binary search over a sorted slice.
func findKey(keys []int32, key int32) (int, bool) {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid] == key {
			return mid, true
		}
		if keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}

// decodeNode interprets pg's payload according to pg.Kind(), the single
// source of truth for which encoding applies.
func decodeNode(pg *page.Page) (*node, error) {
	id := pg.ID()
	data := pg.Data()

	switch pg.Kind() {
	case page.KindIndexLeaf:
		n := &node{id: id, kind: page.KindIndexLeaf}
		numKeys := int(binary.LittleEndian.Uint16(data[0:2]))
		n.nextLeaf = binary.LittleEndian.Uint32(data[2:6])
		off := 6
		n.keys = make([]int32, numKeys)
		n.values = make([]page.RID, numKeys)
		for i := 0; i < numKeys; i++ {
			n.keys[i] = int32(binary.LittleEndian.Uint32(data[off:]))
			off += 4
			n.values[i] = page.RID{
				PageID: binary.LittleEndian.Uint32(data[off:]),
				Slot:   binary.LittleEndian.Uint16(data[off+4:]),
			}
			off += 6
		}
		return n, nil

	case page.KindIndexInternal:
		n := &node{id: id, kind: page.KindIndexInternal}
		numKeys := int(binary.LittleEndian.Uint16(data[0:2]))
		off := 2
		n.keys = make([]int32, numKeys)
		for i := 0; i < numKeys; i++ {
			n.keys[i] = int32(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		n.children = make([]uint32, numKeys+1)
		for i := 0; i < numKeys+1; i++ {
			n.children[i] = binary.LittleEndian.Uint32(data[off:])
			off += 4
		}
		return n, nil

	default:
		return nil, errors.Wrapf(errs.ErrBadFormat, "decodeNode(%d): unexpected page kind %s", id, pg.Kind())
	}
}

// encodeNode writes n's fields into pg's payload and stamps the matching
// page kind into the header.
func encodeNode(n *node, pg *page.Page) error {
	data := pg.Data()

	switch n.kind {
	case page.KindIndexLeaf:
		if len(n.keys) > LeafCap {
			return errors.Wrapf(errs.ErrInvalidArgument, "encodeNode(%d): %d keys exceeds LeafCap %d", n.id, len(n.keys), LeafCap)
		}
		pg.SetKind(page.KindIndexLeaf)
		binary.LittleEndian.PutUint16(data[0:2], uint16(len(n.keys)))
		binary.LittleEndian.PutUint32(data[2:6], n.nextLeaf)
		off := 6
		for i, k := range n.keys {
			binary.LittleEndian.PutUint32(data[off:], uint32(k))
			off += 4
			binary.LittleEndian.PutUint32(data[off:], n.values[i].PageID)
			binary.LittleEndian.PutUint16(data[off+4:], n.values[i].Slot)
			off += 6
		}
		return nil

	case page.KindIndexInternal:
		if len(n.keys) > InternalCap {
			return errors.Wrapf(errs.ErrInvalidArgument, "encodeNode(%d): %d keys exceeds InternalCap %d", n.id, len(n.keys), InternalCap)
		}
		pg.SetKind(page.KindIndexInternal)
		binary.LittleEndian.PutUint16(data[0:2], uint16(len(n.keys)))
		off := 2
		for _, k := range n.keys {
			binary.LittleEndian.PutUint32(data[off:], uint32(k))
			off += 4
		}
		for _, c := range n.children {
			binary.LittleEndian.PutUint32(data[off:], c)
			off += 4
		}
		return nil

	default:
		return errors.Wrapf(errs.ErrInvalidArgument, "encodeNode(%d): unknown node kind %v", n.id, n.kind)
	}
}
