package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sitescout/discovery/internal/authflow"
	"github.com/sitescout/discovery/internal/broadcast"
	"github.com/sitescout/discovery/internal/browserpool"
	"github.com/sitescout/discovery/internal/logging"
	"github.com/sitescout/discovery/internal/metricsx"
	"github.com/sitescout/discovery/internal/orchestrator"
	"github.com/sitescout/discovery/internal/pagefetch"
	"github.com/sitescout/discovery/internal/persistwriter"
)

// Engine is the public entrypoint to the discovery system. One Engine
// manages one browser pool shared across concurrent per-project crawls
// (spec §5: "multiple projects may run in parallel; state is strictly
// per-crawl and never shared across projects").
type Engine struct {
	cfg     config
	pool    *browserpool.Pool
	log     *logging.Logger
	metric  *metricsx.Collector
	bcast   *broadcast.Broadcaster
	store   persistwriter.Store
	writer  *persistwriter.Writer

	mu      sync.RWMutex
	results map[string]*orchestrator.Result // last completed result, per project
}

// New creates an Engine. store may be nil, in which case discovery results
// are kept only in memory (no persistence pass runs).
func New(store persistwriter.Store, log *logging.Logger, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if log == nil {
		log = logging.Nop()
	}

	pool, err := browserpool.NewPool(cfg.browserPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("create browser pool: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		pool:    pool,
		log:     log,
		metric:  metricsx.New(),
		bcast:   broadcast.New(),
		store:   store,
		results: make(map[string]*orchestrator.Result),
	}
	if store != nil {
		e.writer = persistwriter.New(store, log)
	}
	return e, nil
}

// Transport exposes the Progress Broadcaster's WebSocket push transport so
// callers can mount it on their own HTTP server.
func (e *Engine) Transport() *broadcast.Transport {
	return broadcast.NewTransport(e.bcast, e.log)
}

// Close releases the Engine's browser pool.
func (e *Engine) Close() error {
	return e.pool.Close()
}

// StartDiscovery runs one crawl to completion, applying spec §6's request
// defaults, then — if a Store was configured and the crawl completed —
// persists the resulting graph before returning.
func (e *Engine) StartDiscovery(ctx context.Context, req StartDiscoveryRequest) (*DiscoveryResult, error) {
	req.ApplyDefaults()

	orch := orchestrator.New(e.pool, e.log.WithProject(req.ProjectID), e.metric, e.bcast)

	cfg := orchestrator.Config{
		ProjectID:        req.ProjectID,
		RootURL:          req.RootURL,
		DepthCap:         req.DepthCap,
		PageCap:          req.PageCap,
		UseSitemap:       req.UseSitemap == nil || *req.UseSitemap,
		Recipe:           toAuthRecipe(req.Recipe),
		IsLocal:          !req.InContainer && isLoopbackURL(req.RootURL),
		UserAgent:        e.cfg.userAgent,
		ProbeTimeout:     e.cfg.probeTimeout,
		MenuPhaseBudget:  e.cfg.menuPhaseBudget,
		MenuCandidateCap: e.cfg.menuCandidateCap,
		ThumbnailCutoff:  e.cfg.thumbnailCutoff,
	}

	result := orch.Run(ctx, cfg)

	e.mu.Lock()
	e.results[req.ProjectID] = result
	e.mu.Unlock()

	if e.writer != nil && result.Status == orchestrator.StatusComplete {
		if err := e.writer.Write(ctx, req.ProjectID, result); err != nil {
			e.log.Warnf("persist discovery result for project %s: %v", req.ProjectID, err)
		}
	}

	out := toDiscoveryResult(result)
	if result.Err != nil {
		return out, result.Err
	}
	return out, nil
}

// GetProgress returns the last-known Progress snapshot for projectID.
func (e *Engine) GetProgress(projectID string) (Progress, bool) {
	snap, ok := e.bcast.Snapshot(projectID)
	if !ok {
		return Progress{}, false
	}
	return Progress{
		ProjectID:       snap.ProjectID,
		Status:          string(snap.Status),
		Phase:           string(snap.Phase),
		DiscoveredCount: snap.DiscoveredCount,
		TotalCount:      snap.TotalCount,
		Message:         snap.Message,
		URLs:            snap.URLs,
		CurrentURL:      snap.CurrentURL,
	}, true
}

// GetGraph returns a read-only view of projectID's last discovered graph.
func (e *Engine) GetGraph(projectID string) (GraphView, bool) {
	e.mu.RLock()
	result, ok := e.results[projectID]
	e.mu.RUnlock()
	if !ok {
		return GraphView{}, false
	}

	pages := make([]DiscoveredPage, 0, len(result.Pages))
	for _, p := range result.Pages {
		pages = append(pages, DiscoveredPage{
			URL:          p.URL,
			Title:        p.Title,
			PageType:     p.PageType,
			RequiresAuth: p.RequiresAuth,
			Depth:        p.Depth,
			IsAccessible: p.IsAccessible,
			Thumbnail:    pagefetch.EncodeThumbnail(p.Thumbnail),
		})
	}
	edges := make([]PageLink, 0, len(result.Edges))
	for _, l := range result.Edges {
		edges = append(edges, PageLink{
			SourceURL:      l.SourceURL,
			TargetURL:      l.TargetURL,
			LinkText:       l.LinkText,
			LinkType:       string(l.LinkType),
			MenuLevel:      l.MenuLevel,
			RevealedBy:     l.RevealedBy,
			ParentMenuText: l.ParentMenuText,
		})
	}
	return GraphView{Nodes: pages, Edges: edges}, true
}

// SelectPagesForAnalysis returns the pages of projectID's graph whose URL
// is listed in pageIDs, or every page when pageIDs is empty. Nothing is
// stored or marked — it's a read-and-filter over the already-discovered set.
func (e *Engine) SelectPagesForAnalysis(projectID string, pageIDs []string) ([]DiscoveredPage, error) {
	graph, ok := e.GetGraph(projectID)
	if !ok {
		return nil, fmt.Errorf("no discovery result for project %s", projectID)
	}
	if len(pageIDs) == 0 {
		return graph.Nodes, nil
	}

	wanted := make(map[string]struct{}, len(pageIDs))
	for _, id := range pageIDs {
		wanted[id] = struct{}{}
	}

	out := make([]DiscoveredPage, 0, len(pageIDs))
	for _, p := range graph.Nodes {
		if _, ok := wanted[p.URL]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func toAuthRecipe(r *LoginRecipe) *authflow.Recipe {
	if r == nil {
		return nil
	}
	steps := make([]authflow.Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, authflow.Step{
			Type:     authflow.StepType(s.Kind),
			Selector: s.Selector,
			Value:    s.Value,
		})
	}

	mode := authflow.ModeAuto
	if r.Mode == "manual" {
		mode = authflow.ModeManual
	}

	var manualSelectors *authflow.ManualSelectors
	if r.UsernameSelector != "" || r.PasswordSelector != "" || r.SubmitSelector != "" {
		manualSelectors = &authflow.ManualSelectors{
			UsernameSelector: r.UsernameSelector,
			PasswordSelector: r.PasswordSelector,
			SubmitSelector:   r.SubmitSelector,
		}
	}

	return &authflow.Recipe{
		LoginURL:        r.LoginURL,
		Username:        r.Username,
		Password:        r.Password,
		Steps:           steps,
		Mode:            mode,
		ManualSelectors: manualSelectors,
	}
}

func toDiscoveryResult(result *orchestrator.Result) *DiscoveryResult {
	if result == nil {
		return &DiscoveryResult{Status: string(orchestrator.StatusFailed)}
	}
	pages := make([]DiscoveredPage, 0, len(result.Pages))
	for _, p := range result.Pages {
		pages = append(pages, DiscoveredPage{
			URL:          p.URL,
			Title:        p.Title,
			PageType:     p.PageType,
			RequiresAuth: p.RequiresAuth,
			Depth:        p.Depth,
			IsAccessible: p.IsAccessible,
			Thumbnail:    pagefetch.EncodeThumbnail(p.Thumbnail),
		})
	}
	edges := make([]PageLink, 0, len(result.Edges))
	for _, l := range result.Edges {
		edges = append(edges, PageLink{
			SourceURL:      l.SourceURL,
			TargetURL:      l.TargetURL,
			LinkText:       l.LinkText,
			LinkType:       string(l.LinkType),
			MenuLevel:      l.MenuLevel,
			RevealedBy:     l.RevealedBy,
			ParentMenuText: l.ParentMenuText,
		})
	}
	failures := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, fmt.Sprintf("%s: %s", f.URL, f.Reason))
	}
	return &DiscoveryResult{
		Status:   string(result.Status),
		Pages:    pages,
		Edges:    edges,
		Failures: failures,
	}
}

func isLoopbackURL(rawURL string) bool {
	// A conservative check: the sitemap/prober/canon packages do the
	// authoritative host parsing; this only decides the IsLocal hint
	// threaded through to the Page Fetcher's timeout tiers.
	for _, marker := range []string{"localhost", "127.0.0.1", "host.docker.internal"} {
		if strings.Contains(rawURL, marker) {
			return true
		}
	}
	return false
}
