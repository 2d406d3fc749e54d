package persistwriter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPages = []byte("pages")
	bucketEdges = []byte("edges")
)

// BoltStore is the local/offline Store backend for single-machine runs
// without a Postgres instance, grounded directly on the teacher's
// internal/state/store.go BoltStore (same bolt.Open/bucket-per-kind
// shape), generalized from one whole-state blob to per-page and per-edge
// keys so LookupExisting/UpdatePage can operate on individual rows.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPages); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketEdges)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func pageKey(projectID, url string) []byte {
	return []byte(projectID + "\x00" + url)
}

// LookupExisting implements Store.
func (s *BoltStore) LookupExisting(_ context.Context, projectID string, urls []string) (map[string]PageRow, error) {
	wanted := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		wanted[u] = struct{}{}
	}

	out := make(map[string]PageRow)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPages)
		prefix := []byte(projectID + "\x00")
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var row PageRow
			if err := json.Unmarshal(v, &row); err != nil {
				continue
			}
			if _, ok := wanted[row.URL]; ok {
				out[row.URL] = row
			}
		}
		return nil
	})
	return out, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// InsertPages implements Store.
func (s *BoltStore) InsertPages(_ context.Context, projectID string, pages []PageRow) (map[string]string, error) {
	ids := make(map[string]string, len(pages))
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPages)
		for _, p := range pages {
			key := pageKey(projectID, p.URL)
			if b.Get(key) != nil {
				continue // already present: a tolerated duplicate, not an error.
			}
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("next page id: %w", err)
			}
			p.ID = fmt.Sprintf("%d", seq)
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal page: %w", err)
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
			ids[p.URL] = p.ID
		}
		return nil
	})
	return ids, err
}

// UpdatePage implements Store.
func (s *BoltStore) UpdatePage(_ context.Context, projectID string, row PageRow) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPages)
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal page: %w", err)
		}
		return b.Put(pageKey(projectID, row.URL), data)
	})
}

// UpsertEdges implements Store. Re-keying by (source, target) makes a
// repeated upsert of the same edge a plain overwrite — the spec's
// tolerated duplicate-upsert no-op.
func (s *BoltStore) UpsertEdges(_ context.Context, projectID string, edges []EdgeRow) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEdges)
		for _, e := range edges {
			key := []byte(fmt.Sprintf("%s\x00%s->%s", projectID, e.SourceID, e.TargetID))
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal edge: %w", err)
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}
