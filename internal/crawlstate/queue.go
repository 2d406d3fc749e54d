// Package crawlstate holds the Crawl Orchestrator's per-crawl mutable
// state (spec §4.8): the BFS queue and the visited set. Grounded on the
// teacher's internal/queue.MemoryQueue (priority-queue BFS ordering,
// urlSet dedup-on-push) and internal/state.Deduplicator (bloom filter +
// exact map), generalized to the discovery engine's (url, depth) items
// and canonical-URL keys.
package crawlstate

import (
	"container/heap"
	"errors"
	"sync"
)

// ErrQueueEmpty is returned by Pop when the queue has no items.
var ErrQueueEmpty = errors.New("crawl queue is empty")

// Item is one pending fetch: a raw URL at a known BFS depth.
type Item struct {
	URL   string
	Depth int
	seq   uint64 // push order, breaks ties between items of equal depth
}

// items implements container/heap.Interface, ordering strictly by depth so
// the queue behaves as FIFO-within-depth BFS rather than a general
// priority queue — the teacher's queue supports an additional priority
// field this engine's spec has no use for.
type items []*Item

func (q items) Len() int { return len(q) }
func (q items) Less(i, j int) bool {
	if q[i].Depth != q[j].Depth {
		return q[i].Depth < q[j].Depth
	}
	return q[i].seq < q[j].seq
}
func (q items) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *items) Push(x interface{}) { *q = append(*q, x.(*Item)) }
func (q *items) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Queue is a thread-safe BFS frontier keyed by raw URL to avoid enqueuing
// the same URL twice while it is still pending.
type Queue struct {
	mu      sync.Mutex
	pq      items
	queued  map[string]struct{}
	nextSeq uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{queued: make(map[string]struct{})}
	heap.Init(&q.pq)
	return q
}

// Push enqueues (url, depth) unless url is already pending.
func (q *Queue) Push(url string, depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.queued[url]; dup {
		return
	}
	q.queued[url] = struct{}{}
	q.nextSeq++
	heap.Push(&q.pq, &Item{URL: url, Depth: depth, seq: q.nextSeq})
}

// Pop removes and returns the lowest-depth pending item.
func (q *Queue) Pop() (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		return nil, ErrQueueEmpty
	}
	it := heap.Pop(&q.pq).(*Item)
	delete(q.queued, it.URL)
	return it, nil
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

// IsEmpty reports whether the queue has no pending items.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}
