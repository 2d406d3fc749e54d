package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitescout/discovery/internal/orchestrator"
)

func httpToWS(url string) string {
	return strings.Replace(strings.Replace(url, "http://", "ws://", 1), "https://", "wss://", 1)
}

func TestTransportStreamsPublishedEvents(t *testing.T) {
	b := New()
	tr := NewTransport(b, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr.ServeProject(w, r, "p1")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(httpToWS(server.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	done := make(chan Event, 1)
	go func() {
		var ev Event
		if _, data, err := conn.ReadMessage(); err == nil {
			json.Unmarshal(data, &ev)
			done <- ev
		}
	}()

	// Give the server a moment to subscribe before publishing, since
	// Subscribe happens inside the handler goroutine spawned by Upgrade.
	time.Sleep(50 * time.Millisecond)
	b.Publish(orchestrator.Progress{ProjectID: "p1", Phase: orchestrator.PhaseCrawling, DiscoveredCount: 5})

	select {
	case ev := <-done:
		if ev.ProjectID != "p1" || ev.URLsFound != 5 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for streamed event")
	}
}

func TestTransportReplaysSnapshotOnConnect(t *testing.T) {
	b := New()
	b.Publish(orchestrator.Progress{ProjectID: "p1", Phase: orchestrator.PhaseSitemap, Message: "scanning"})
	tr := NewTransport(b, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr.ServeProject(w, r, "p1")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(httpToWS(server.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Phase != "sitemap" || ev.Message != "scanning" {
		t.Errorf("expected replayed snapshot event, got %+v", ev)
	}
}
