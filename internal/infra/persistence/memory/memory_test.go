package memory

import (
	"context"
	"errors"
	"testing"

	"reqcore/pkg/domain"
)

func seedRow(t *testing.T, s *Store, table, id string, version int64) domain.Row {
	t.Helper()
	row, err := s.Insert(context.Background(), table, domain.Row{
		"id":         id,
		"name":       "Seed " + id,
		"version":    version,
		"is_deleted": false,
	})
	if err != nil {
		t.Fatalf("seed %s/%s: %v", table, id, err)
	}
	return row
}

func TestInsertAndGetCloneIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	table := domain.EntityOrganization.Table()
	stored := seedRow(t, s, table, "org-1", 1)

	stored["name"] = "mutated"
	got, err := s.Get(ctx, table, "org-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["name"] != "Seed org-1" {
		t.Fatalf("store shared a row reference with the caller: %v", got["name"])
	}

	got["name"] = "mutated again"
	fresh, err := s.Get(ctx, table, "org-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh["name"] != "Seed org-1" {
		t.Fatal("reads share map references")
	}
}

func TestInsertDuplicateID(t *testing.T) {
	s := New()
	table := domain.EntityProject.Table()
	seedRow(t, s, table, "proj-1", 1)
	if _, err := s.Insert(context.Background(), table, domain.Row{"id": "proj-1"}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestUpdateVersionGate(t *testing.T) {
	s := New()
	ctx := context.Background()
	table := domain.EntityDocument.Table()
	seedRow(t, s, table, "doc-1", 3)

	stale := int64(2)
	_, err := s.Update(ctx, table, "doc-1", domain.Row{"name": "x"}, &stale)
	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Expected != 2 || conflict.Actual != 3 {
		t.Fatalf("conflict should name both versions: %+v", conflict)
	}

	current := int64(3)
	updated, err := s.Update(ctx, table, "doc-1", domain.Row{"name": "x", "version": int64(4)}, &current)
	if err != nil {
		t.Fatalf("matching version rejected: %v", err)
	}
	if domain.RowVersion(updated) != 4 {
		t.Fatalf("patch did not apply: %v", updated)
	}

	// nil expected version skips the gate entirely.
	if _, err := s.Update(ctx, table, "doc-1", domain.Row{"name": "y"}, nil); err != nil {
		t.Fatalf("unversioned update: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), domain.EntityRequirement.Table(), "nope")
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Entity != domain.EntityRequirement {
		t.Fatalf("error should carry the entity kind: %+v", notFound)
	}
}

func TestDeleteAppliesPatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	table := domain.EntityTest.Table()
	seedRow(t, s, table, "tst-1", 1)

	row, err := s.Delete(ctx, table, "tst-1", domain.Row{"is_deleted": true, "deleted_by": "alice", "version": int64(2)})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !domain.RowBool(row, "is_deleted") || row["deleted_by"] != "alice" {
		t.Fatalf("soft delete patch not applied: %v", row)
	}
	// Row remains readable after soft delete.
	if _, err := s.Get(ctx, table, "tst-1"); err != nil {
		t.Fatalf("soft-deleted row vanished: %v", err)
	}
}

func TestListStableOrder(t *testing.T) {
	s := New()
	table := domain.EntityRequirement.Table()
	for _, id := range []string{"c", "a", "b"} {
		seedRow(t, s, table, id, 1)
	}
	rows, err := s.List(context.Background(), table)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, want := range []string{"a", "b", "c"} {
		if domain.RowString(rows[i], "id") != want {
			t.Fatalf("rows not sorted by id: %v", rows)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New()
	seedRow(t, s, domain.EntityOrganization.Table(), "org-1", 1)
	seedRow(t, s, domain.EntityProject.Table(), "proj-1", 1)

	snapshot := s.Snapshot()
	restored := New()
	restored.Restore(snapshot)

	row, err := restored.Get(context.Background(), domain.EntityProject.Table(), "proj-1")
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if row["name"] != "Seed proj-1" {
		t.Fatalf("restore lost data: %v", row)
	}

	// The snapshot is a deep copy; mutating it must not leak into the store.
	snapshot[domain.EntityOrganization.Table()][0]["name"] = "mutated"
	orig, _ := s.Get(context.Background(), domain.EntityOrganization.Table(), "org-1")
	if orig["name"] != "Seed org-1" {
		t.Fatal("snapshot shares row references with the store")
	}
}
