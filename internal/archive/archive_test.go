package archive

import (
	"context"
	"path/filepath"
	"testing"
)

func testStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.Put(ctx, "changes/2026/batch-1.json", []byte(`[{"entity":"organization"}]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "changes/2026/batch-2.json", []byte(`[]`)); err != nil {
		t.Fatalf("put second: %v", err)
	}

	payload, err := store.Get(ctx, "changes/2026/batch-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(payload) != `[{"entity":"organization"}]` {
		t.Fatalf("unexpected payload %s", payload)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "changes/2026/batch-1.json" || keys[1] != "changes/2026/batch-2.json" {
		t.Fatalf("unexpected keys %v", keys)
	}

	if _, err := store.Get(ctx, "changes/missing.json"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreRoundTrip(t, NewMemory())
}

func TestFilesystemStore(t *testing.T) {
	store, err := NewFilesystem(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	testStoreRoundTrip(t, store)
}

func TestS3StoreAgainstMock(t *testing.T) {
	testStoreRoundTrip(t, NewS3MockForTests())
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	if err := store.Put(context.Background(), "../escape.json", []byte("{}")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Setenv("REQCORE_ARCHIVE_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := store.(*Memory); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	t.Setenv("REQCORE_ARCHIVE_DRIVER", "fs")
	t.Setenv("REQCORE_ARCHIVE_DIR", filepath.Join(t.TempDir(), "audit"))
	store, err = Open(context.Background())
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if _, ok := store.(*Filesystem); !ok {
		t.Fatalf("expected filesystem store, got %T", store)
	}

	t.Setenv("REQCORE_ARCHIVE_DRIVER", "bogus")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected unknown driver error")
	}
}
