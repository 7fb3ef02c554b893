package recordstore

import (
	"context"
	"errors"
	"testing"

	"github.com/filedepot/filedepot/core/depot"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Add(ctx, []byte("report-a"), false, "sess-1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	content, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(content) != "report-a" {
		t.Fatalf("unexpected content: %s", content)
	}

	if err := store.Update(ctx, id, []byte("report-a-v2")); err != nil {
		t.Fatalf("update: %v", err)
	}
	content, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if string(content) != "report-a-v2" {
		t.Fatalf("unexpected updated content: %s", content)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TemporaryCount != 1 || stats.PersistentCount != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.TotalBytes != int64(len("report-a-v2")) {
		t.Fatalf("unexpected total bytes: %d", stats.TotalBytes)
	}

	if err := store.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, depot.ErrRecordMissing) {
		t.Fatalf("expected record missing, got %v", err)
	}
}

func TestMemoryStoreSessionListing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Add(ctx, []byte("one"), false, "sess-a")
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	if _, err := store.Add(ctx, []byte("two"), true, "sess-b"); err != nil {
		t.Fatalf("add second: %v", err)
	}
	third, err := store.Add(ctx, []byte("three"), false, "sess-a")
	if err != nil {
		t.Fatalf("add third: %v", err)
	}

	recs, err := store.ListBySession(ctx, "sess-a")
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	got := map[string]bool{recs[0].ID: true, recs[1].ID: true}
	if !got[first] || !got[third] {
		t.Fatalf("unexpected session records: %+v", recs)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
}

func TestMemoryStoreMissingRecordErrors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Update(ctx, "nope", []byte("x")); !errors.Is(err, depot.ErrRecordMissing) {
		t.Fatalf("expected record missing on update, got %v", err)
	}
	if err := store.Remove(ctx, "nope"); !errors.Is(err, depot.ErrRecordMissing) {
		t.Fatalf("expected record missing on remove, got %v", err)
	}
}

func TestMemoryStoreMetaSnapshot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data, err := store.LoadMeta(ctx)
	if err != nil {
		t.Fatalf("load empty meta: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil snapshot before save")
	}
	if err := store.SaveMeta(ctx, []byte(`{"files":[]}`)); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	data, err = store.LoadMeta(ctx)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if string(data) != `{"files":[]}` {
		t.Fatalf("unexpected snapshot: %s", data)
	}
}
