package diskmanager

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"minirel/storage_engine/page"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func TestOpenCreatesHeaderPage(t *testing.T) {
	dm, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dm.Close()

	if got := dm.PageCount(); got != 1 {
		t.Errorf("PageCount() = %d, want 1", got)
	}
	if got := dm.FreeListLen(); got != 0 {
		t.Errorf("FreeListLen() = %d, want 0", got)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dm, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dm.Close()

	id := dm.AllocatePage()

	want := make([]byte, page.Size)
	copy(want, []byte("hello page"))
	if err := dm.WritePage(id, want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, page.Size)
	if err := dm.ReadPage(id, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("read back mismatch")
	}
}

func TestAllocateReusesFreedPageLIFO(t *testing.T) {
	dm, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dm.Close()

	a := dm.AllocatePage()
	if err := dm.DeallocatePage(a); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}

	b := dm.AllocatePage()
	if b != a {
		t.Errorf("AllocatePage after Deallocate = %d, want reused id %d", b, a)
	}
}

func TestDeallocateHeaderPageRejected(t *testing.T) {
	dm, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dm.Close()

	if err := dm.DeallocatePage(headerPageID); err == nil {
		t.Errorf("DeallocatePage(header) should fail")
	}
}

func TestReadOutOfRange(t *testing.T) {
	dm, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dm.Close()

	buf := make([]byte, page.Size)
	if err := dm.ReadPage(99, buf); err == nil {
		t.Errorf("ReadPage(99) on empty file should fail")
	}
}

func TestCloseReopenPreservesState(t *testing.T) {
	path := tempDBPath(t)

	dm, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := dm.AllocatePage()
	b := dm.AllocatePage()
	if err := dm.WritePage(a, bytes.Repeat([]byte{0xAB}, page.Size)); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm.DeallocatePage(b); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}
	if err := dm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dm2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer dm2.Close()

	if got := dm2.PageCount(); got != 3 {
		t.Errorf("PageCount after reopen = %d, want 3", got)
	}
	if got := dm2.FreeListLen(); got != 1 {
		t.Errorf("FreeListLen after reopen = %d, want 1", got)
	}

	got := make([]byte, page.Size)
	if err := dm2.ReadPage(a, got); err != nil {
		t.Fatalf("ReadPage after reopen: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xAB}, page.Size)) {
		t.Errorf("page contents not preserved across reopen")
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := tempDBPath(t)
	if err := os.WriteFile(path, make([]byte, page.Size), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Errorf("Open on zeroed file should reject bad magic")
	}
}
