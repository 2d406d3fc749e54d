package orchestrator

import (
	"time"

	"github.com/sitescout/discovery/internal/linkextract"
)

// DiscoveredPage is the per-URL record the orchestrator accumulates,
// mirroring the spec's DiscoveredPage data model (§3).
type DiscoveredPage struct {
	URL          string
	Title        string
	PageType     string
	RequiresAuth bool
	Depth        int
	IsAccessible bool
	Thumbnail    []byte
}

// Link is the orchestrator's working edge shape, carrying the menu-level
// and reveal-provenance fields the spec's PageLink model requires.
type Link struct {
	SourceURL      string
	TargetURL      string
	LinkText       string
	LinkType       linkextract.LinkType
	MenuLevel      int
	RevealedBy     string
	ParentMenuText string
}

// Failure records one per-page fetch failure (spec §4.8's `failures` list).
type Failure struct {
	URL    string
	Reason string
	At     time.Time
}

// Status is a crawl's terminal or in-flight state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDiscovering Status = "discovering"
	StatusComplete    Status = "complete"
	StatusFailed      Status = "failed"
)

// Phase names the crawl's current stage, per spec §3's Progress model.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhaseConnectivity   Phase = "connectivity"
	PhaseSitemap        Phase = "sitemap"
	PhaseAuthentication Phase = "authentication"
	PhaseCrawling       Phase = "crawling"
	PhaseProcessing     Phase = "processing"
	PhaseSaving         Phase = "saving"
	PhaseComplete       Phase = "complete"
	PhaseError          Phase = "error"
)

// Progress is the orchestrator's emitted snapshot, matching spec §3.
type Progress struct {
	ProjectID       string
	Status          Status
	Phase           Phase
	DiscoveredCount int
	TotalCount      int
	Message         string
	URLs            []string
	CurrentURL      string
	CurrentDepth    int
	MaxDepth        int
}

// Result is the final outcome of a completed or failed crawl.
type Result struct {
	Status   Status
	Pages    []DiscoveredPage
	Edges    []Link
	Failures []Failure
	Err      error
}

// ProgressSink receives every progress emission during a crawl. The
// concrete implementation (internal/broadcast) is decoupled from the
// orchestrator via this small interface so the crawl loop never imports
// the transport package directly.
type ProgressSink interface {
	Publish(Progress)
}

// NopSink discards progress updates; useful for tests and one-off runs
// that only care about the final Result.
type NopSink struct{}

// Publish implements ProgressSink.
func (NopSink) Publish(Progress) {}
