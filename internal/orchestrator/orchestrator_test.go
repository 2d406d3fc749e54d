package orchestrator

import (
	"net/http"
	"testing"

	"github.com/sitescout/discovery/internal/crawlstate"
	"github.com/sitescout/discovery/internal/errs"
	"github.com/sitescout/discovery/internal/linkextract"
)

func newTestState(rootURL string, depthCap int) *runState {
	return &runState{
		cfg:     Config{RootURL: rootURL, DepthCap: depthCap, PageCap: 50},
		queue:   crawlstate.NewQueue(),
		visited: crawlstate.NewVisitedSet(50),
		pages:   make(map[string]DiscoveredPage),
	}
}

func TestConsiderLinkEnqueuesInScopeLink(t *testing.T) {
	o := &Orchestrator{}
	st := newTestState("https://shop.test", 3)

	o.considerLink(st, "https://shop.test/", "https://shop.test/about", "About", linkextract.LinkNavigation, 0, 0, "", "")

	if st.queue.Len() != 1 {
		t.Fatalf("expected link enqueued, queue len=%d", st.queue.Len())
	}
	if len(st.edges) != 1 {
		t.Fatalf("expected edge recorded, got %d", len(st.edges))
	}
}

func TestConsiderLinkRejectsExternal(t *testing.T) {
	o := &Orchestrator{}
	st := newTestState("https://shop.test", 3)

	o.considerLink(st, "https://shop.test/", "https://other.example/x", "Off-site", linkextract.LinkContent, 0, 0, "", "")

	if st.queue.Len() != 0 {
		t.Fatalf("expected external link rejected, queue len=%d", st.queue.Len())
	}
	if len(st.edges) != 0 {
		t.Fatalf("expected no edge for rejected external link")
	}
}

func TestConsiderLinkRespectsDepthCap(t *testing.T) {
	o := &Orchestrator{}
	st := newTestState("https://shop.test", 1)

	// depth 1 + 1 + menuLevel 1 = childDepth 3, which exceeds depthCap 1.
	o.considerLink(st, "https://shop.test/a", "https://shop.test/b", "B", linkextract.LinkNavigation, 1, 1, "hover", "More")

	if st.queue.Len() != 0 {
		t.Fatalf("expected depth-capped link not enqueued, queue len=%d", st.queue.Len())
	}
	// The edge is still recorded even when the child isn't traversed further.
	if len(st.edges) != 1 {
		t.Fatalf("expected edge still recorded despite depth cap, got %d", len(st.edges))
	}
}

func TestConsiderLinkSkipsAlreadyVisited(t *testing.T) {
	o := &Orchestrator{}
	st := newTestState("https://shop.test", 3)
	st.visited.MarkVisited("https://shop.test/about")

	o.considerLink(st, "https://shop.test/", "https://shop.test/about", "About", linkextract.LinkNavigation, 0, 0, "", "")

	if st.queue.Len() != 0 {
		t.Fatalf("expected already-visited link not re-enqueued, queue len=%d", st.queue.Len())
	}
}

func TestFlattenPages(t *testing.T) {
	pages := map[string]DiscoveredPage{
		"https://shop.test/":  {URL: "https://shop.test/", Title: "Home"},
		"https://shop.test/a": {URL: "https://shop.test/a", Title: "A"},
	}
	out := flattenPages(pages)
	if len(out) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(out))
	}
}

func TestToNetworkCookies(t *testing.T) {
	cookies := []*http.Cookie{
		{Name: "session", Value: "abc123", Domain: "shop.test", Path: "/", Secure: true, HttpOnly: true},
	}
	out := toNetworkCookies(cookies)
	if len(out) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(out))
	}
	if out[0].Name != "session" || out[0].Value != "abc123" || !out[0].Secure || !out[0].HTTPOnly {
		t.Errorf("cookie fields not carried over correctly: %+v", out[0])
	}
}

func TestFailBuildsFailedResult(t *testing.T) {
	st := newTestState("https://shop.test", 3)

	cause := errs.New(errs.Unreachable, "orchestrator.Run", "https://shop.test", "dns lookup failed", nil)
	// New(nil, ...) must fall back to a nop logger, matching authflow.NewExecutor's nil-safety.
	o := New(nil, nil, nil, NopSink{})
	result := o.fail(st, cause)

	if result.Status != StatusFailed {
		t.Fatalf("expected StatusFailed, got %s", result.Status)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure recorded, got %d", len(result.Failures))
	}
	if result.Err == nil {
		t.Error("expected Err to be set")
	}
}
