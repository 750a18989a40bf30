package bufferpool

import "minirel/storage_engine/page"

// frame is one cached page slot. A frame with PinCount > 0 is never tracked
// by the replacer; a frame with PinCount 0 is either sitting in the
// replacer or on the free-frame list, never both.
type frame struct {
	Page     *page.Page
	PageID   uint32
	PinCount int32
	Dirty    bool
	bound    bool // false until a page has ever been loaded into this frame
}

func (f *frame) reset() {
	f.PageID = page.InvalidID
	f.PinCount = 0
	f.Dirty = false
}
