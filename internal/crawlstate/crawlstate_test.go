package crawlstate

import "testing"

func TestQueuePushPopBFSOrder(t *testing.T) {
	q := NewQueue()
	q.Push("https://shop.test/deep", 2)
	q.Push("https://shop.test/shallow", 0)
	q.Push("https://shop.test/mid", 1)

	first, err := q.Pop()
	if err != nil || first.URL != "https://shop.test/shallow" {
		t.Fatalf("expected shallowest item first, got %+v err=%v", first, err)
	}
	second, _ := q.Pop()
	if second.URL != "https://shop.test/mid" {
		t.Fatalf("expected mid item second, got %+v", second)
	}
}

func TestQueueDedupOnPush(t *testing.T) {
	q := NewQueue()
	q.Push("https://shop.test/a", 0)
	q.Push("https://shop.test/a", 0)
	if q.Len() != 1 {
		t.Errorf("expected duplicate push to be ignored, len=%d", q.Len())
	}
}

func TestQueueEmptyPop(t *testing.T) {
	q := NewQueue()
	if _, err := q.Pop(); err != ErrQueueEmpty {
		t.Errorf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestVisitedSetMarkAndCheck(t *testing.T) {
	v := NewVisitedSet(100)
	if v.HasVisited("https://shop.test/a") {
		t.Fatal("expected unseen URL to report unvisited")
	}
	v.MarkVisited("https://shop.test/a")
	if !v.HasVisited("https://shop.test/a") {
		t.Fatal("expected marked URL to report visited")
	}
	// canonicalization folds tracking params onto the same key.
	if !v.HasVisited("https://shop.test/a?utm_source=x") {
		t.Fatal("expected canonically-equal URL to count as visited")
	}
}

func TestVisitedSetCount(t *testing.T) {
	v := NewVisitedSet(100)
	v.MarkVisited("https://shop.test/a")
	v.MarkVisited("https://shop.test/a")
	v.MarkVisited("https://shop.test/b")
	if v.Count() != 2 {
		t.Errorf("expected count 2, got %d", v.Count())
	}
}
