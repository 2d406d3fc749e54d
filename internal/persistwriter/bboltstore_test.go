package persistwriter

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "discovery.db")
	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreInsertAndLookup(t *testing.T) {
	store := openTestBolt(t)
	ctx := context.Background()

	ids, err := store.InsertPages(ctx, "proj-1", []PageRow{
		{URL: "https://shop.test/", Title: "Home"},
		{URL: "https://shop.test/about", Title: "About"},
	})
	if err != nil {
		t.Fatalf("InsertPages: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}

	existing, err := store.LookupExisting(ctx, "proj-1", []string{"https://shop.test/", "https://shop.test/missing"})
	if err != nil {
		t.Fatalf("LookupExisting: %v", err)
	}
	if len(existing) != 1 {
		t.Fatalf("expected 1 matching row, got %d", len(existing))
	}
	if existing["https://shop.test/"].Title != "Home" {
		t.Errorf("unexpected row: %+v", existing["https://shop.test/"])
	}
}

func TestBoltStoreInsertSkipsDuplicates(t *testing.T) {
	store := openTestBolt(t)
	ctx := context.Background()

	store.InsertPages(ctx, "proj-1", []PageRow{{URL: "https://shop.test/", Title: "Home"}})
	ids, err := store.InsertPages(ctx, "proj-1", []PageRow{{URL: "https://shop.test/", Title: "Home Again"}})
	if err != nil {
		t.Fatalf("InsertPages: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected duplicate insert to be skipped, got %d new ids", len(ids))
	}
}

func TestBoltStoreUpdateAndUpsertEdges(t *testing.T) {
	store := openTestBolt(t)
	ctx := context.Background()

	ids, _ := store.InsertPages(ctx, "proj-1", []PageRow{
		{URL: "https://shop.test/", Title: "Home"},
		{URL: "https://shop.test/about", Title: "About"},
	})

	updated := PageRow{ID: ids["https://shop.test/"], URL: "https://shop.test/", Title: "Updated Home"}
	if err := store.UpdatePage(ctx, "proj-1", updated); err != nil {
		t.Fatalf("UpdatePage: %v", err)
	}

	existing, _ := store.LookupExisting(ctx, "proj-1", []string{"https://shop.test/"})
	if existing["https://shop.test/"].Title != "Updated Home" {
		t.Errorf("expected update to persist, got %+v", existing["https://shop.test/"])
	}

	edge := EdgeRow{SourceID: ids["https://shop.test/"], TargetID: ids["https://shop.test/about"], LinkType: "navigation"}
	if err := store.UpsertEdges(ctx, "proj-1", []EdgeRow{edge}); err != nil {
		t.Fatalf("UpsertEdges: %v", err)
	}
	// Re-upserting the same edge is a tolerated no-op, not an error.
	if err := store.UpsertEdges(ctx, "proj-1", []EdgeRow{edge}); err != nil {
		t.Fatalf("UpsertEdges (repeat): %v", err)
	}
}
