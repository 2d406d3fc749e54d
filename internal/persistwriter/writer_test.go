package persistwriter

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sitescout/discovery/internal/linkextract"
	"github.com/sitescout/discovery/internal/orchestrator"
)

type fakeStore struct {
	mu       sync.Mutex
	existing map[string]PageRow
	inserted []PageRow
	updated  []PageRow
	edges    []EdgeRow
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: make(map[string]PageRow)}
}

func (f *fakeStore) LookupExisting(_ context.Context, _ string, urls []string) (map[string]PageRow, error) {
	out := make(map[string]PageRow)
	for _, u := range urls {
		if row, ok := f.existing[u]; ok {
			out[u] = row
		}
	}
	return out, nil
}

func (f *fakeStore) InsertPages(_ context.Context, _ string, pages []PageRow) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]string, len(pages))
	for _, p := range pages {
		f.nextID++
		id := idFor(f.nextID)
		ids[p.URL] = id
		f.inserted = append(f.inserted, p)
	}
	return ids, nil
}

func (f *fakeStore) UpdatePage(_ context.Context, _ string, row PageRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, row)
	return nil
}

func (f *fakeStore) UpsertEdges(_ context.Context, _ string, edges []EdgeRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, edges...)
	return nil
}

func idFor(n int) string {
	return fmt.Sprintf("id-%d", n)
}

func TestWriteCreatesNewPagesAndEdges(t *testing.T) {
	store := newFakeStore()
	w := New(store, nil)

	result := &orchestrator.Result{
		Pages: []orchestrator.DiscoveredPage{
			{URL: "https://shop.test/", Title: "Home"},
			{URL: "https://shop.test/about", Title: "About"},
		},
		Edges: []orchestrator.Link{
			{SourceURL: "https://shop.test/", TargetURL: "https://shop.test/about", LinkType: linkextract.LinkNavigation},
		},
	}

	if err := w.Write(context.Background(), "proj-1", result); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	if len(store.inserted) != 2 {
		t.Fatalf("expected 2 inserted pages, got %d", len(store.inserted))
	}
	if len(store.edges) != 1 {
		t.Fatalf("expected 1 edge upserted, got %d", len(store.edges))
	}
}

func TestWritePreservesOldThumbnailAndTitleWhenNewEmpty(t *testing.T) {
	store := newFakeStore()
	store.existing["https://shop.test/"] = PageRow{
		ID: "existing-1", URL: "https://shop.test/", Title: "Old Home", Thumbnail: []byte{1, 2, 3},
	}
	w := New(store, nil)

	result := &orchestrator.Result{
		Pages: []orchestrator.DiscoveredPage{
			{URL: "https://shop.test/", Title: ""},
		},
	}

	if err := w.Write(context.Background(), "proj-1", result); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	if len(store.updated) != 1 {
		t.Fatalf("expected 1 updated page, got %d", len(store.updated))
	}
	got := store.updated[0]
	if got.Title != "Old Home" {
		t.Errorf("expected old title preserved, got %q", got.Title)
	}
	if len(got.Thumbnail) != 3 {
		t.Errorf("expected old thumbnail preserved, got %v", got.Thumbnail)
	}
}

func TestValidEdgesRejectsSelfLoopsAndExternal(t *testing.T) {
	w := New(newFakeStore(), nil)
	idByURL := map[string]string{
		"https://shop.test/":      "id-1",
		"https://shop.test/about": "id-2",
	}

	links := []orchestrator.Link{
		{SourceURL: "https://shop.test/", TargetURL: "https://shop.test/", LinkType: linkextract.LinkContent},            // self-loop
		{SourceURL: "https://shop.test/", TargetURL: "https://other.example/", LinkType: linkextract.LinkExternal},       // external
		{SourceURL: "https://shop.test/", TargetURL: "https://shop.test/missing", LinkType: linkextract.LinkNavigation},  // unknown endpoint
		{SourceURL: "https://shop.test/", TargetURL: "https://shop.test/about", LinkType: linkextract.LinkNavigation},    // valid
	}

	edges := w.validEdges(links, idByURL)
	if len(edges) != 1 {
		t.Fatalf("expected 1 valid edge, got %d: %+v", len(edges), edges)
	}
	if edges[0].SourceID != "id-1" || edges[0].TargetID != "id-2" {
		t.Errorf("unexpected edge endpoints: %+v", edges[0])
	}
}

func TestWriteNoopOnEmptyResult(t *testing.T) {
	w := New(newFakeStore(), nil)
	if err := w.Write(context.Background(), "proj-1", &orchestrator.Result{}); err != nil {
		t.Fatalf("expected no error on empty result, got %v", err)
	}
	if err := w.Write(context.Background(), "proj-1", nil); err != nil {
		t.Fatalf("expected no error on nil result, got %v", err)
	}
}
