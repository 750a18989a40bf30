// Package bufferpool implements the pinning buffer cache: a fixed-size
// array of frames, a page-id-to-frame directory, and an LRU replacer
// tracking only unpinned frames. It sits between the disk manager and the
// B+ tree, guaranteeing a pinned page is never evicted and a dirty frame is
// always written back before its binding is reused.
//
// Grounded on original_source's buffer/buffer_pool_manager.h (frame array +
// page table + free list + replacer, and the exact "find a free frame"
// three-step search) and the teacher's storage_engine/bufferpool package for
// the Go idiom (mutex-guarded struct, fmt-prefixed diagnostic logging).
package bufferpool

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	diskmanager "minirel/storage_engine/disk_manager"
	"minirel/storage_engine/errs"
	"minirel/storage_engine/page"
)

// BufferPool is a fixed-capacity cache of pages backed by a DiskManager.
type BufferPool struct {
	mu sync.Mutex

	disk *diskmanager.DiskManager
	log  io.Writer

	frames    []frame
	freeList  []uint32           // frame indices not currently bound to a page
	directory map[uint32]uint32 // pageID -> frame index
	replacer  *lruReplacer
}

// New builds a buffer pool of the given capacity (number of frames) over disk.
func New(capacity int, disk *diskmanager.DiskManager) *BufferPool {
	bp := &BufferPool{
		disk:      disk,
		log:       os.Stderr,
		frames:    make([]frame, capacity),
		freeList:  make([]uint32, capacity),
		directory: make(map[uint32]uint32, capacity),
		replacer:  newLRUReplacer(),
	}
	for i := range bp.frames {
		bp.frames[i].Page = page.New()
		bp.frames[i].reset()
		bp.freeList[i] = uint32(capacity - 1 - i)
	}
	return bp
}

// SetLog redirects the pool's diagnostic log lines (nil-safe; defaults to os.Stderr).
func (bp *BufferPool) SetLog(w io.Writer) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.log = w
}

func (bp *BufferPool) logf(format string, args ...any) {
	if bp.log == nil {
		return
	}
	fmt.Fprintf(bp.log, format, args...)
}

// Capacity returns the number of frames in the pool.
func (bp *BufferPool) Capacity() int {
	return len(bp.frames)
}

// Size returns the number of frames currently bound to a page.
func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.directory)
}

// Fetch pins and returns the page for id, loading it from disk on a cache
// miss. ok is false when every frame is pinned (errs.ErrExhausted) or the
// disk read fails; err says which.
func (bp *BufferPool) Fetch(id uint32) (*PageGuard, bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if fidx, hit := bp.directory[id]; hit {
		f := &bp.frames[fidx]
		if f.PinCount == 0 {
			bp.replacer.Pin(fidx)
		}
		f.PinCount++
		bp.logf("[BufferPool] HIT  pageID=%d pinCount=%d\n", id, f.PinCount)
		return &PageGuard{bp: bp, pageID: id, pg: f.Page}, true, nil
	}

	bp.logf("[BufferPool] MISS pageID=%d — loading from disk\n", id)
	fidx, ok, err := bp.findFreeFrameLocked()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, errors.Wrapf(errs.ErrExhausted, "Fetch(%d)", id)
	}

	f := &bp.frames[fidx]
	if err := bp.disk.ReadPage(id, f.Page.Buf[:]); err != nil {
		bp.freeList = append(bp.freeList, fidx)
		return nil, false, err
	}
	f.PageID = id
	f.PinCount = 1
	f.Dirty = false
	f.bound = true
	bp.directory[id] = fidx

	return &PageGuard{bp: bp, pageID: id, pg: f.Page}, true, nil
}

// NewPage allocates a fresh page on disk, binds it into a frame pinned for
// the caller, and stamps kind into its header.
func (bp *BufferPool) NewPage(kind page.Kind) (uint32, *PageGuard, bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fidx, ok, err := bp.findFreeFrameLocked()
	if err != nil {
		return 0, nil, false, err
	}
	if !ok {
		return 0, nil, false, errors.Wrap(errs.ErrExhausted, "NewPage")
	}

	id := bp.disk.AllocatePage()

	f := &bp.frames[fidx]
	f.Page.Reset(id, kind)
	f.PageID = id
	f.PinCount = 1
	f.Dirty = true
	f.bound = true
	bp.directory[id] = fidx

	bp.logf("[BufferPool] NEW  pageID=%d kind=%s\n", id, kind)
	return id, &PageGuard{bp: bp, pageID: id, pg: f.Page}, true, nil
}

// releaseFrame is the sole path back from a PageGuard to Unpin.
func (bp *BufferPool) releaseFrame(id uint32, dirty bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.unpinLocked(id, dirty)
}

// Unpin decrements id's pin count and ORs in dirty. When the pin count
// reaches zero the frame becomes eligible for eviction. Exposed alongside
// PageGuard.Release for callers (such as tests) that track a page id
// directly rather than holding a guard.
func (bp *BufferPool) Unpin(id uint32, dirty bool) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.unpinLocked(id, dirty)
}

func (bp *BufferPool) unpinLocked(id uint32, dirty bool) bool {
	fidx, ok := bp.directory[id]
	if !ok {
		return false
	}
	f := &bp.frames[fidx]
	if f.PinCount <= 0 {
		return false
	}
	if dirty {
		f.Dirty = true
	}
	f.PinCount--
	if f.PinCount == 0 {
		bp.replacer.Unpin(fidx)
	}
	return true
}

// Flush writes id's frame to disk if resident, clearing its dirty bit.
func (bp *BufferPool) Flush(id uint32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fidx, ok := bp.directory[id]
	if !ok {
		return errors.Wrapf(errs.ErrNotFound, "Flush(%d): not resident", id)
	}
	return bp.flushFrameLocked(fidx)
}

func (bp *BufferPool) flushFrameLocked(fidx uint32) error {
	f := &bp.frames[fidx]
	if !f.Dirty {
		return nil
	}
	if err := bp.disk.WritePage(f.PageID, f.Page.Buf[:]); err != nil {
		return err
	}
	f.Dirty = false
	return nil
}

// FlushAll writes every dirty resident frame to disk. A failed write is
// logged and the remaining frames are still flushed; the first error is
// returned.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.logf("[BufferPool] FlushAll — resident=%d\n", len(bp.directory))
	var firstErr error
	for id, fidx := range bp.directory {
		if err := bp.flushFrameLocked(fidx); err != nil {
			bp.logf("[BufferPool] FlushAll pageID=%d failed: %v\n", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DeletePage evicts id (which must not be pinned) and returns its page id
// to the disk manager's free list.
func (bp *BufferPool) DeletePage(id uint32) (bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fidx, ok := bp.directory[id]
	if !ok {
		if err := bp.disk.DeallocatePage(id); err != nil {
			return false, err
		}
		return true, nil
	}

	f := &bp.frames[fidx]
	if f.PinCount > 0 {
		return false, nil
	}

	bp.replacer.Pin(fidx)
	delete(bp.directory, id)
	f.reset()
	bp.freeList = append(bp.freeList, fidx)

	if err := bp.disk.DeallocatePage(id); err != nil {
		return false, err
	}
	return true, nil
}

// findFreeFrameLocked implements the three-step search from the spec: the
// pool's own free list first, then an LRU victim (writing it back if
// dirty), else not-ok.
func (bp *BufferPool) findFreeFrameLocked() (uint32, bool, error) {
	if n := len(bp.freeList); n > 0 {
		fidx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return fidx, true, nil
	}

	fidx, ok := bp.replacer.Victim()
	if !ok {
		return 0, false, nil
	}

	f := &bp.frames[fidx]
	if f.Dirty {
		bp.logf("[BufferPool] EVICT pageID=%d dirty=true — writing back\n", f.PageID)
		if err := bp.disk.WritePage(f.PageID, f.Page.Buf[:]); err != nil {
			bp.replacer.Unpin(fidx)
			return 0, false, err
		}
	} else {
		bp.logf("[BufferPool] EVICT pageID=%d dirty=false\n", f.PageID)
	}

	delete(bp.directory, f.PageID)
	f.reset()
	return fidx, true, nil
}
