package broadcast

import (
	"testing"
	"time"

	"github.com/sitescout/discovery/internal/orchestrator"
)

func TestPublishUpdatesSnapshot(t *testing.T) {
	b := New()
	b.Publish(orchestrator.Progress{ProjectID: "p1", Phase: orchestrator.PhaseCrawling, DiscoveredCount: 3})

	snap, ok := b.Snapshot("p1")
	if !ok {
		t.Fatal("expected a snapshot to exist")
	}
	if snap.DiscoveredCount != 3 {
		t.Errorf("expected DiscoveredCount 3, got %d", snap.DiscoveredCount)
	}
}

func TestSnapshotMissingProject(t *testing.T) {
	b := New()
	if _, ok := b.Snapshot("unknown"); ok {
		t.Error("expected no snapshot for an unpublished project")
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("p1")
	defer cancel()

	b.Publish(orchestrator.Progress{ProjectID: "p1", Phase: orchestrator.PhaseSitemap, Message: "scanning"})

	select {
	case ev := <-ch:
		if ev.Phase != "sitemap" || ev.Message != "scanning" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeOnlyReceivesItsOwnProject(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("p1")
	defer cancel()

	b.Publish(orchestrator.Progress{ProjectID: "p2", Phase: orchestrator.PhaseCrawling})

	select {
	case ev := <-ch:
		t.Fatalf("expected no event for unrelated project, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("p1")
	cancel()

	b.Publish(orchestrator.Progress{ProjectID: "p1", Phase: orchestrator.PhaseCrawling})

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after cancel")
	}
}

func TestMapPhaseNarrowsToTransportSet(t *testing.T) {
	cases := map[orchestrator.Phase]string{
		orchestrator.PhaseSitemap:        "sitemap",
		orchestrator.PhaseProcessing:     "filtering",
		orchestrator.PhaseComplete:       "completed",
		orchestrator.PhaseError:          "error",
		orchestrator.PhaseCrawling:       "crawling",
		orchestrator.PhaseAuthentication: "crawling",
	}
	for phase, want := range cases {
		if got := mapPhase(phase); got != want {
			t.Errorf("mapPhase(%s) = %q, want %q", phase, got, want)
		}
	}
}

func TestEventCarriesDepthOnlyDuringCrawling(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("p1")
	defer cancel()

	b.Publish(orchestrator.Progress{ProjectID: "p1", Phase: orchestrator.PhaseCrawling, CurrentDepth: 2, MaxDepth: 3})
	ev := <-ch
	if ev.CurrentDepth == nil || *ev.CurrentDepth != 2 {
		t.Errorf("expected CurrentDepth=2, got %+v", ev.CurrentDepth)
	}

	b.Publish(orchestrator.Progress{ProjectID: "p1", Phase: orchestrator.PhaseSitemap})
	ev = <-ch
	if ev.CurrentDepth != nil {
		t.Errorf("expected CurrentDepth unset outside crawling phase, got %v", *ev.CurrentDepth)
	}
}
