// Command inspect dumps the header page and, for an index file, the tree
// structure of a page file — a debugging aid over the storage core, not a
// query surface.
//
// Grounded on the teacher's bplustree/inspect.go BFS dump.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	diskmanager "minirel/storage_engine/disk_manager"
	"minirel/storage_engine/page"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: inspect <path-to-page-file>\n")
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	dm, err := diskmanager.Open(path)
	if err != nil {
		return err
	}
	defer dm.Close()

	fmt.Printf("file: %s\n", path)
	fmt.Printf("page count: %d\n", dm.PageCount())
	fmt.Printf("free list length: %d\n", dm.FreeListLen())

	if dm.PageCount() < 2 {
		fmt.Println("(no data pages)")
		return nil
	}

	meta := make([]byte, page.Size)
	if err := dm.ReadPage(1, meta); err != nil {
		return err
	}
	rootID := binary.LittleEndian.Uint32(meta[page.HeaderSize:])
	fmt.Printf("root page id: %d\n", rootID)
	if rootID == page.InvalidID {
		fmt.Println("(empty tree)")
		return nil
	}

	fmt.Println("\nnodes (breadth-first):")
	return dumpBFS(dm, rootID)
}

func dumpBFS(dm *diskmanager.DiskManager, rootID uint32) error {
	queue := []uint32{rootID}
	buf := make([]byte, page.Size)
	level := 0

	for len(queue) > 0 {
		fmt.Printf("  level %d:\n", level)
		var next []uint32
		for _, id := range queue {
			if err := dm.ReadPage(id, buf); err != nil {
				fmt.Printf("    [page %d] read error: %v\n", id, err)
				continue
			}
			pg := &page.Page{}
			copy(pg.Buf[:], buf)

			switch pg.Kind() {
			case page.KindIndexInternal:
				n, err := decodeInternalForDump(pg)
				if err != nil {
					fmt.Printf("    [page %d] decode error: %v\n", id, err)
					continue
				}
				fmt.Printf("    [page %d] INTERNAL keys=%v children=%v\n", id, n.keys, n.children)
				next = append(next, n.children...)

			case page.KindIndexLeaf:
				n, err := decodeLeafForDump(pg)
				if err != nil {
					fmt.Printf("    [page %d] decode error: %v\n", id, err)
					continue
				}
				fmt.Printf("    [page %d] LEAF keys=%v next=%d\n", id, n.keys, n.next)

			default:
				fmt.Printf("    [page %d] kind=%s (not an index node)\n", id, pg.Kind())
			}
		}
		queue = next
		level++
	}
	return nil
}

type dumpNode struct {
	keys     []int32
	children []uint32
	next     uint32
}

func decodeLeafForDump(pg *page.Page) (*dumpNode, error) {
	data := pg.Data()
	numKeys := int(binary.LittleEndian.Uint16(data[0:2]))
	n := &dumpNode{next: binary.LittleEndian.Uint32(data[2:6])}
	off := 6
	for i := 0; i < numKeys; i++ {
		n.keys = append(n.keys, int32(binary.LittleEndian.Uint32(data[off:])))
		off += 10
	}
	return n, nil
}

func decodeInternalForDump(pg *page.Page) (*dumpNode, error) {
	data := pg.Data()
	numKeys := int(binary.LittleEndian.Uint16(data[0:2]))
	n := &dumpNode{}
	off := 2
	for i := 0; i < numKeys; i++ {
		n.keys = append(n.keys, int32(binary.LittleEndian.Uint32(data[off:])))
		off += 4
	}
	for i := 0; i < numKeys+1; i++ {
		n.children = append(n.children, binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}
	return n, nil
}
