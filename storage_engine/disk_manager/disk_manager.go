// Package diskmanager owns the single fixed-page-size file backing a
// database: reading and writing pages by id, and tracking which ids are
// live via a page count and a free list persisted in the header page.
//
// Grounded directly on the original C++ disk_manager.{h,cpp}: page 0 is
// reserved as a header page carrying a magic number, the page count, and
// the free list; AllocatePage reuses the tail of the free list before
// extending the file; WritePage raises the page count if handed an id at
// or past the current end.
package diskmanager

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"minirel/storage_engine/errs"
	"minirel/storage_engine/page"
)

// Open creates path if it does not exist (writing a fresh header page), or
// opens it and validates the existing header page's magic number.
func Open(path string) (*DiskManager, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrIO, "open %s: %v", path, err)
	}

	dm := &DiskManager{file: f, path: path}

	if isNew {
		dm.pageCount = 1
		dm.freeList = nil
		if err := dm.writeHeaderPageLocked(); err != nil {
			f.Close()
			return nil, err
		}
		return dm, nil
	}

	if err := dm.readHeaderPageLocked(); err != nil {
		f.Close()
		return nil, err
	}
	return dm, nil
}

// readHeaderPageLocked loads page_count and the free list from slot 0,
// validating the magic number first.
func (dm *DiskManager) readHeaderPageLocked() error {
	buf := make([]byte, page.Size)
	if _, err := dm.file.ReadAt(buf, 0); err != nil {
		return errors.Wrapf(errs.ErrIO, "read header page: %v", err)
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != magicNumber {
		return errors.Wrapf(errs.ErrBadFormat, "%s: bad magic number %#x", dm.path, magic)
	}

	dm.pageCount = binary.LittleEndian.Uint32(buf[4:8])
	freeLen := binary.LittleEndian.Uint32(buf[8:12])

	dm.freeList = make([]uint32, 0, freeLen)
	off := 12
	for i := uint32(0); i < freeLen; i++ {
		dm.freeList = append(dm.freeList, binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return nil
}

// writeHeaderPageLocked serializes page_count and the free list into slot 0.
func (dm *DiskManager) writeHeaderPageLocked() error {
	buf := make([]byte, page.Size)
	binary.LittleEndian.PutUint32(buf[0:4], magicNumber)
	binary.LittleEndian.PutUint32(buf[4:8], dm.pageCount)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(dm.freeList)))

	off := 12
	for _, id := range dm.freeList {
		if off+4 > page.Size {
			return errors.Wrapf(errs.ErrIO, "%s: free list too large for header page", dm.path)
		}
		binary.LittleEndian.PutUint32(buf[off:], id)
		off += 4
	}

	if _, err := dm.file.WriteAt(buf, 0); err != nil {
		return errors.Wrapf(errs.ErrIO, "write header page: %v", err)
	}
	return nil
}

// ReadPage reads the 4096 bytes of page id into buf, which must have length page.Size.
func (dm *DiskManager) ReadPage(id uint32, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if len(buf) != page.Size {
		return errors.Wrapf(errs.ErrInvalidArgument, "ReadPage(%d): buf has length %d, want %d", id, len(buf), page.Size)
	}
	if id >= dm.pageCount {
		return errors.Wrapf(errs.ErrOutOfRange, "ReadPage(%d): page count is %d", id, dm.pageCount)
	}

	if _, err := dm.file.ReadAt(buf, int64(id)*page.Size); err != nil {
		return errors.Wrapf(errs.ErrIO, "read page %d: %v", id, err)
	}

	if id != headerPageID {
		if got := binary.LittleEndian.Uint32(buf[0:4]); got != id {
			fmt.Fprintf(os.Stderr, "[DiskManager] warning: page %d has stored id %d\n", id, got)
		}
	}
	return nil
}

// WritePage writes buf (length page.Size) to page id, extending page_count
// if id is at or past the current end of the file. The write is flushed
// immediately: the disk manager performs no write buffering of its own.
func (dm *DiskManager) WritePage(id uint32, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if len(buf) != page.Size {
		return errors.Wrapf(errs.ErrInvalidArgument, "WritePage(%d): buf has length %d, want %d", id, len(buf), page.Size)
	}

	if _, err := dm.file.WriteAt(buf, int64(id)*page.Size); err != nil {
		return errors.Wrapf(errs.ErrIO, "write page %d: %v", id, err)
	}
	if err := dm.file.Sync(); err != nil {
		return errors.Wrapf(errs.ErrIO, "sync after write page %d: %v", id, err)
	}

	if id >= dm.pageCount {
		dm.pageCount = id + 1
	}
	return nil
}

// AllocatePage hands out a page id: the tail of the free list if non-empty,
// else the next id past the current end. It never touches disk.
func (dm *DiskManager) AllocatePage() uint32 {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if n := len(dm.freeList); n > 0 {
		id := dm.freeList[n-1]
		dm.freeList = dm.freeList[:n-1]
		return id
	}

	id := dm.pageCount
	dm.pageCount++
	return id
}

// DeallocatePage returns id to the free list for future reuse.
func (dm *DiskManager) DeallocatePage(id uint32) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if id == headerPageID {
		return errors.Wrapf(errs.ErrInvalidArgument, "DeallocatePage(%d): cannot deallocate header page", id)
	}
	if id >= dm.pageCount {
		return errors.Wrapf(errs.ErrOutOfRange, "DeallocatePage(%d): page count is %d", id, dm.pageCount)
	}

	dm.freeList = append(dm.freeList, id)
	return nil
}

// PageCount reports the current page count, including the header page.
func (dm *DiskManager) PageCount() uint32 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.pageCount
}

// FreeListLen reports how many page ids are currently free, for tests and the inspector.
func (dm *DiskManager) FreeListLen() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.freeList)
}

// Flush syncs the underlying file.
func (dm *DiskManager) Flush() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.file.Sync(); err != nil {
		return errors.Wrapf(errs.ErrIO, "flush: %v", err)
	}
	return nil
}

// Close rewrites the header page with the current page count and free list,
// flushes, and closes the file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := dm.writeHeaderPageLocked(); err != nil {
		return err
	}
	if err := dm.file.Sync(); err != nil {
		return errors.Wrapf(errs.ErrIO, "sync on close: %v", err)
	}
	if err := dm.file.Close(); err != nil {
		return errors.Wrapf(errs.ErrIO, "close: %v", err)
	}
	return nil
}
