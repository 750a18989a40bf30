package page

import "fmt"

// RID identifies a record within a table page: the page it lives on and its
// slot index within that page. The tree treats it as an opaque leaf value —
// it never constructs one from a page pointer, only stores and returns what
// the table layer gave it.
type RID struct {
	PageID uint32
	Slot   uint16
}

// Nil is the "no record" sentinel RID.
var Nil = RID{PageID: InvalidID, Slot: 0}

func (r RID) IsNil() bool {
	return r.PageID == InvalidID
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.Slot)
}
