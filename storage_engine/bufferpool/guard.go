package bufferpool

import "minirel/storage_engine/page"

// PageGuard is a scoped handle to a pinned page, returned by Fetch and
// NewPage. Callers must call Release exactly once, typically via
// `defer guard.Release()` right after acquisition — Release is the only
// path back to Unpin, so a dirty write can never be lost by an omitted or
// mis-flagged unpin call the way the source's manual UnpinPage(root, ...)
// calls could lose one.
type PageGuard struct {
	bp     *BufferPool
	pageID uint32
	pg     *page.Page
	dirty  bool
	done   bool
}

// Page returns the underlying page. Panics if called after Release.
func (g *PageGuard) Page() *page.Page {
	if g.pg == nil {
		panic("bufferpool: PageGuard used after Release")
	}
	return g.pg
}

// PageID returns the id of the guarded page.
func (g *PageGuard) PageID() uint32 {
	return g.pageID
}

// MarkDirty records that the caller mutated the page's contents. Dirty
// flags accumulate: once set on a guard, Release always unpins with dirty=true.
func (g *PageGuard) MarkDirty() {
	g.dirty = true
}

// Release unpins the page, propagating the accumulated dirty flag. Only the
// first call unpins; a second call is a no-op so a deferred Release after
// an explicit early one does nothing.
func (g *PageGuard) Release() {
	if g.done {
		return
	}
	g.done = true
	g.bp.releaseFrame(g.pageID, g.dirty)
	g.pg = nil
}
