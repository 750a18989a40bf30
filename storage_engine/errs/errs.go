// Package errs defines the sentinel error kinds shared across the storage
// core (disk manager, buffer cache, B+ tree). Call sites wrap these with
// github.com/pkg/errors so a failure keeps both a stable kind (for
// errors.Is) and a stack/context trail (printed by the %+v verb).
package errs

import "github.com/pkg/errors"

var (
	// ErrIO covers any low-level read/write/seek/open/flush failure.
	ErrIO = errors.New("storage: io error")

	// ErrBadFormat is returned when the header page's magic number doesn't match.
	ErrBadFormat = errors.New("storage: bad file format")

	// ErrOutOfRange is returned for a page id >= page_count or an invalid slot.
	ErrOutOfRange = errors.New("storage: out of range")

	// ErrInvalidArgument covers requests that are structurally disallowed,
	// e.g. deallocating the header page.
	ErrInvalidArgument = errors.New("storage: invalid argument")

	// ErrExhausted is returned by the buffer cache when every frame is pinned.
	ErrExhausted = errors.New("storage: no free frame, all frames pinned")

	// ErrDuplicate names the insert-of-an-existing-key condition. The B+
	// tree's Insert reports that case as a false result, not as this error.
	ErrDuplicate = errors.New("storage: duplicate key")

	// ErrNotFound is returned by the buffer cache's Flush for a page that is
	// not resident. The B+ tree reports an absent key as a false result, not
	// as this error.
	ErrNotFound = errors.New("storage: key not found")
)
