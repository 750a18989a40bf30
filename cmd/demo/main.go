// Command demo drives a small scripted sequence of inserts, a duplicate
// rejection, a removal, and a range scan through the public B+ tree API
// against the page file named by -db (created if absent; an existing file
// is reopened with its keys, so repeat inserts then report false) — a
// runnable instance of the round-trip and ordering properties the storage
// core promises, not a SQL surface.
package main

import (
	"flag"
	"fmt"
	"os"

	"minirel/storage_engine/access/indexfile_manager/bplustree"
	"minirel/storage_engine/page"
)

func main() {
	path := flag.String("db", "demo.db", "path to the page file to create/open")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	tree, err := bplus.Open(path, 8)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer tree.Close()

	keys := []int32{42, 7, 19, 3, 55, 8, 100, 1}
	for _, k := range keys {
		ok, err := tree.Insert(k, page.RID{PageID: uint32(k), Slot: 0})
		if err != nil {
			return fmt.Errorf("insert %d: %w", k, err)
		}
		fmt.Printf("insert %-4d -> %v\n", k, ok)
	}

	ok, err := tree.Insert(7, page.RID{PageID: 999, Slot: 0})
	if err != nil {
		return fmt.Errorf("duplicate insert: %w", err)
	}
	fmt.Printf("insert 7 (duplicate) -> %v (expected false)\n", ok)

	removed, err := tree.Remove(19)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	fmt.Printf("remove 19 -> %v\n", removed)

	fmt.Println("\nrange scan [0, 100]:")
	it, err := tree.Range(0, 100)
	if err != nil {
		return fmt.Errorf("range: %w", err)
	}
	for {
		k, v, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("range next: %w", err)
		}
		if !ok {
			break
		}
		fmt.Printf("  %d -> %s\n", k, v)
	}

	return nil
}
