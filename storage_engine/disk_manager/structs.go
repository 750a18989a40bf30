package diskmanager

import (
	"os"
	"sync"
)

// magicNumber stamps the header page so Open can tell a real database file
// from garbage before trusting its page_count/free-list fields.
const magicNumber uint32 = 0xDEADBEEF

// headerPageID is the fixed, immortal slot holding file metadata.
const headerPageID uint32 = 0

// DiskManager owns the single on-disk file backing a database and the
// bookkeeping (page count, free list) needed to hand out and recycle pages.
// One exclusive lock covers both the file handle and this in-memory
// metadata: every public method is a single critical section, matching the
// coarse-locking policy the buffer cache and B+ tree both use above it.
type DiskManager struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	pageCount uint32
	freeList  []uint32 // LIFO: last deallocated is first reused
}
