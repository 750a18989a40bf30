package bufferpool

import "container/list"

// lruReplacer tracks only frames eligible for eviction — a pinned frame is
// never present here at all. Direct translation of the original
// LRUReplacer: a recency-ordered list (front = most recently unpinned) plus
// a map for O(1) removal.
//
// Grounded on original_source's buffer/lru_replacer.{h,cpp}.
type lruReplacer struct {
	order *list.List               // of frameID, front = most recent
	pos   map[uint32]*list.Element // frameID -> its node in order
}

func newLRUReplacer() *lruReplacer {
	return &lruReplacer{
		order: list.New(),
		pos:   make(map[uint32]*list.Element),
	}
}

// Unpin marks frameID eligible for eviction, at the front (most recent).
// Idempotent: an already-tracked frame is just moved to the front.
func (r *lruReplacer) Unpin(frameID uint32) {
	if e, ok := r.pos[frameID]; ok {
		r.order.Remove(e)
	}
	r.pos[frameID] = r.order.PushFront(frameID)
}

// Pin removes frameID from eviction eligibility. No-op if absent.
func (r *lruReplacer) Pin(frameID uint32) {
	if e, ok := r.pos[frameID]; ok {
		r.order.Remove(e)
		delete(r.pos, frameID)
	}
}

// Victim pops the least-recently-unpinned frame.
func (r *lruReplacer) Victim() (uint32, bool) {
	back := r.order.Back()
	if back == nil {
		return 0, false
	}
	frameID := back.Value.(uint32)
	r.order.Remove(back)
	delete(r.pos, frameID)
	return frameID, true
}

// Size reports how many frames are currently tracked.
func (r *lruReplacer) Size() int {
	return r.order.Len()
}
