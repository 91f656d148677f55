package files

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return store
}

func TestDiskStorePutGetDelete(t *testing.T) {
	store := newDiskStore(t)
	ctx := context.Background()
	content := []byte("attachment body")

	key := "ticket/tkt-1/att-1-report.pdf"
	if err := store.Put(ctx, key, "application/pdf", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatalf("unexpected payload %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); err == nil {
		t.Fatal("expected the blob gone after delete")
	}
}

func TestDiskStoreDeleteMissingIsNoop(t *testing.T) {
	store := newDiskStore(t)
	if err := store.Delete(context.Background(), "ticket/tkt-1/never-existed"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestDiskStoreRejectsTraversalKeys(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../outside.txt", "a/../../outside.txt", "/etc/passwd", "."} {
		if err := store.Put(ctx, key, "text/plain", strings.NewReader("x"), 1); err == nil {
			t.Errorf("Put(%q): expected rejection", key)
		}
		if _, err := store.Get(ctx, key); err == nil {
			t.Errorf("Get(%q): expected rejection", key)
		}
		if err := store.Delete(ctx, key); err == nil {
			t.Errorf("Delete(%q): expected rejection", key)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected nothing written outside the uploads dir, found %d entries", len(entries))
	}
}

func TestDiskStoreCreatesNestedDirs(t *testing.T) {
	store := newDiskStore(t)
	ctx := context.Background()

	key := "invoice/inv-9/att-2-statement.csv"
	if err := store.Put(ctx, key, "text/csv", strings.NewReader("a,b\n"), 4); err != nil {
		t.Fatalf("Put: %v", err)
	}
	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	reader.Close()
}
