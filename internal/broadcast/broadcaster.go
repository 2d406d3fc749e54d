// Package broadcast implements the Progress Broadcaster (spec §4.10):
// it retains the latest Progress snapshot per project for pull queries and
// fans out every update to that project's live subscribers. Grounded on
// the teacher's internal/websocket package for the gorilla/websocket
// dependency and per-connection bookkeeping shape, generalized from a
// client that dials discovered WebSocket endpoints into a server that
// pushes progress events to connected dashboard clients.
package broadcast

import (
	"fmt"
	"sync"
	"time"

	"github.com/sitescout/discovery/internal/orchestrator"
)

// Event is the wire shape pushed to subscribers, per spec §6.
type Event struct {
	ProjectID       string `json:"projectId"`
	Phase           string `json:"phase"`
	Message         string `json:"message"`
	FriendlyMessage string `json:"friendlyMessage"`
	URLsFound       int    `json:"urlsFound"`
	CurrentDepth    *int   `json:"currentDepth,omitempty"`
	MaxDepth        *int   `json:"maxDepth,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// subscriberBuffer bounds how many undelivered events a slow subscriber
// can accumulate before new events are dropped for it; delivery is
// fire-and-forget per spec §4.10 — the latest snapshot is always
// available via Snapshot regardless of a lost push.
const subscriberBuffer = 32

// Broadcaster holds, per project, the last-known Progress and any live
// subscriber channels.
type Broadcaster struct {
	mu          sync.RWMutex
	latest      map[string]orchestrator.Progress
	subscribers map[string]map[chan Event]struct{}
	clock       func() time.Time
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		latest:      make(map[string]orchestrator.Progress),
		subscribers: make(map[string]map[chan Event]struct{}),
		clock:       time.Now,
	}
}

// Publish implements orchestrator.ProgressSink: it records p as the
// project's latest snapshot and pushes the derived Event to every current
// subscriber, dropping it for any subscriber whose buffer is full.
func (b *Broadcaster) Publish(p orchestrator.Progress) {
	b.mu.Lock()
	b.latest[p.ProjectID] = p
	subs := make([]chan Event, 0, len(b.subscribers[p.ProjectID]))
	for ch := range b.subscribers[p.ProjectID] {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	event := toEvent(p, b.clock())
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Snapshot returns the last-known Progress for projectID, if any.
func (b *Broadcaster) Snapshot(projectID string) (orchestrator.Progress, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.latest[projectID]
	return p, ok
}

// Subscribe registers a new listener for projectID's events. The returned
// cancel func must be called to release the channel and stop receiving
// when the caller is done (e.g. a closed WebSocket connection).
func (b *Broadcaster) Subscribe(projectID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subscribers[projectID] == nil {
		b.subscribers[projectID] = make(map[chan Event]struct{})
	}
	b.subscribers[projectID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subscribers[projectID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subscribers, projectID)
			}
		}
		close(ch)
	}
	return ch, cancel
}

// toEvent derives a transport Event from an internal Progress snapshot,
// including the server-side friendly message per spec §6.
func toEvent(p orchestrator.Progress, now time.Time) Event {
	event := Event{
		ProjectID:       p.ProjectID,
		Phase:           mapPhase(p.Phase),
		Message:         p.Message,
		FriendlyMessage: friendlyMessage(p.Phase, p.Message, p.DiscoveredCount),
		URLsFound:       p.DiscoveredCount,
		Timestamp:       now.UTC().Format(time.RFC3339),
	}
	if p.Phase == orchestrator.PhaseCrawling {
		depth, maxDepth := p.CurrentDepth, p.MaxDepth
		event.CurrentDepth = &depth
		event.MaxDepth = &maxDepth
	}
	return event
}

// mapPhase narrows the Orchestrator's full phase set down to the
// transport's coarser set (spec §6: crawling | sitemap | filtering |
// completed | error).
func mapPhase(phase orchestrator.Phase) string {
	switch phase {
	case orchestrator.PhaseSitemap:
		return "sitemap"
	case orchestrator.PhaseProcessing:
		return "filtering"
	case orchestrator.PhaseComplete:
		return "completed"
	case orchestrator.PhaseError:
		return "error"
	default:
		return "crawling"
	}
}

// friendlyMessage derives a human-readable line for display parity across
// clients, independent of whatever terse message the orchestrator logged.
func friendlyMessage(phase orchestrator.Phase, message string, discovered int) string {
	switch phase {
	case orchestrator.PhaseInitialization:
		return "Starting discovery..."
	case orchestrator.PhaseConnectivity:
		return "Checking site reachability..."
	case orchestrator.PhaseSitemap:
		return "Reading sitemap..."
	case orchestrator.PhaseAuthentication:
		return "Logging in..."
	case orchestrator.PhaseCrawling:
		return fmt.Sprintf("Discovered %d pages so far...", discovered)
	case orchestrator.PhaseProcessing:
		return "Filtering discovered links..."
	case orchestrator.PhaseSaving:
		return "Saving results..."
	case orchestrator.PhaseComplete:
		return fmt.Sprintf("Discovery complete: %d pages found.", discovered)
	case orchestrator.PhaseError:
		return "Discovery failed: " + message
	default:
		return message
	}
}
