// Package persistwriter implements the Persistence Writer (spec §4.9):
// after a crawl completes, it upserts the in-memory page/edge graph into a
// durable store. Grounded on the teacher's internal/state/store.go Store
// abstraction (multiple interchangeable backends behind one interface) and
// on lueurxax-TelegramDigestBot's internal/storage package for the actual
// Postgres wiring (pgxpool + goose migrations), since the teacher never
// persists crawl output to a database of its own.
package persistwriter

import (
	"context"
	"fmt"
	"sync"

	"github.com/sitescout/discovery/internal/canon"
	"github.com/sitescout/discovery/internal/errs"
	"github.com/sitescout/discovery/internal/linkextract"
	"github.com/sitescout/discovery/internal/logging"
	"github.com/sitescout/discovery/internal/orchestrator"
)

// edgeBatchSize bounds edge-upsert concurrency per spec §4.9 step 4.
const edgeBatchSize = 20

// PageRow is a stored page, keyed by database identifier.
type PageRow struct {
	ID           string
	URL          string
	Title        string
	PageType     string
	RequiresAuth bool
	Depth        int
	IsAccessible bool
	Thumbnail    []byte
}

// EdgeRow is a stored edge, referencing page rows by database identifier.
type EdgeRow struct {
	SourceID       string
	TargetID       string
	LinkText       string
	LinkType       string
	MenuLevel      int
	RevealedBy     string
	ParentMenuText string
}

// Store is the persistence backend the Writer drives. Implementations:
// PostgresStore (production) and BoltStore (local/offline mode), mirroring
// the teacher's Store/BoltStore/FileStore/MemoryStore split.
type Store interface {
	// LookupExisting returns the existing rows for projectID whose URL is
	// in urls, keyed by canonical URL.
	LookupExisting(ctx context.Context, projectID string, urls []string) (map[string]PageRow, error)
	// InsertPages batch-inserts new page rows, ignoring duplicates, and
	// returns each inserted row's canonical URL → database identifier.
	InsertPages(ctx context.Context, projectID string, pages []PageRow) (map[string]string, error)
	// UpdatePage updates one existing row in place.
	UpdatePage(ctx context.Context, projectID string, row PageRow) error
	// UpsertEdges inserts or no-ops a batch of edges atomically.
	UpsertEdges(ctx context.Context, projectID string, edges []EdgeRow) error
}

// Writer drives one persistence pass over a completed crawl's Result.
type Writer struct {
	store Store
	log   *logging.Logger
}

// New creates a Writer bound to store. log may be nil.
func New(store Store, log *logging.Logger) *Writer {
	if log == nil {
		log = logging.Nop()
	}
	return &Writer{store: store, log: log}
}

// Write persists result's pages and edges for projectID, per spec §4.9:
// lookup existing rows, split into create/update, map canonical URL to
// database id, then upsert the valid (non-self-loop, both-endpoints-known)
// edge set in concurrent batches of 20.
func (w *Writer) Write(ctx context.Context, projectID string, result *orchestrator.Result) error {
	if result == nil || len(result.Pages) == 0 {
		return nil
	}

	urls := make([]string, 0, len(result.Pages))
	for _, p := range result.Pages {
		urls = append(urls, canon.Canonicalize(p.URL))
	}

	existing, err := w.store.LookupExisting(ctx, projectID, urls)
	if err != nil {
		return fmt.Errorf("lookup existing pages: %w", err)
	}

	idByURL := make(map[string]string, len(result.Pages))
	var toCreate []PageRow
	var toUpdate []PageRow

	for _, p := range result.Pages {
		key := canon.Canonicalize(p.URL)
		row := PageRow{
			URL:          key,
			Title:        p.Title,
			PageType:     p.PageType,
			RequiresAuth: p.RequiresAuth,
			Depth:        p.Depth,
			IsAccessible: p.IsAccessible,
			Thumbnail:    p.Thumbnail,
		}

		if old, ok := existing[key]; ok {
			row.ID = old.ID
			// Preserve the old thumbnail/title when the new fetch yielded nothing.
			if row.Title == "" {
				row.Title = old.Title
			}
			if len(row.Thumbnail) == 0 {
				row.Thumbnail = old.Thumbnail
			}
			toUpdate = append(toUpdate, row)
			idByURL[key] = old.ID
		} else {
			toCreate = append(toCreate, row)
		}
	}

	if len(toCreate) > 0 {
		created, err := w.store.InsertPages(ctx, projectID, toCreate)
		if err != nil {
			return fmt.Errorf("insert pages: %w", err)
		}
		for url, id := range created {
			idByURL[url] = id
		}
	}

	if len(toUpdate) > 0 {
		var wg sync.WaitGroup
		errCh := make(chan error, len(toUpdate))
		for _, row := range toUpdate {
			wg.Add(1)
			go func(row PageRow) {
				defer wg.Done()
				if err := w.store.UpdatePage(ctx, projectID, row); err != nil {
					errCh <- fmt.Errorf("update page %s: %w", row.URL, err)
				}
			}(row)
		}
		wg.Wait()
		close(errCh)
		for err := range errCh {
			w.log.Warnf("persistwriter: %v", err)
		}
	}

	edges := w.validEdges(result.Edges, idByURL)
	return w.upsertEdgeBatches(ctx, projectID, edges)
}

// validEdges resolves each edge's endpoints to database ids, rejecting
// self-loops and edges whose endpoint was never discovered (spec §4.9
// step 4, invariant I3). External edges never reach here — the
// orchestrator's considerLink already excludes them before recording one.
func (w *Writer) validEdges(links []orchestrator.Link, idByURL map[string]string) []EdgeRow {
	out := make([]EdgeRow, 0, len(links))
	for _, l := range links {
		if l.LinkType == linkextract.LinkExternal {
			continue
		}
		srcID, srcOK := idByURL[canon.Canonicalize(l.SourceURL)]
		dstID, dstOK := idByURL[canon.Canonicalize(l.TargetURL)]
		if !srcOK || !dstOK {
			continue
		}
		if srcID == dstID {
			continue
		}
		out = append(out, EdgeRow{
			SourceID:       srcID,
			TargetID:       dstID,
			LinkText:       l.LinkText,
			LinkType:       string(l.LinkType),
			MenuLevel:      l.MenuLevel,
			RevealedBy:     l.RevealedBy,
			ParentMenuText: l.ParentMenuText,
		})
	}
	return out
}

func (w *Writer) upsertEdgeBatches(ctx context.Context, projectID string, edges []EdgeRow) error {
	if len(edges) == 0 {
		return nil
	}

	var batches [][]EdgeRow
	for i := 0; i < len(edges); i += edgeBatchSize {
		end := i + edgeBatchSize
		if end > len(edges) {
			end = len(edges)
		}
		batches = append(batches, edges[i:end])
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(batches))
	for _, batch := range batches {
		wg.Add(1)
		go func(batch []EdgeRow) {
			defer wg.Done()
			if err := w.store.UpsertEdges(ctx, projectID, batch); err != nil {
				errCh <- errs.New(errs.PersistenceDuplicate, "persistwriter.upsertEdgeBatches", projectID, err.Error(), err)
			}
		}(batch)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		// Duplicate upserts are tolerated no-ops (spec error taxonomy #6);
		// any other failure is logged but does not fail the whole write,
		// since pages are already durable by this point.
		w.log.Warnf("persistwriter: edge batch failed: %v", err)
	}
	return nil
}
