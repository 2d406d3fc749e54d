// Package orchestrator implements the Crawl Orchestrator (spec §4.8): the
// single-threaded BFS loop that drives one crawl from a seed URL through
// optional authentication to a finished page/edge graph. Grounded on the
// teacher's pkg/crawler.Crawler (functional-options construction, Start's
// initialize/cleanup lifecycle, shutdown-callback registration), generalized
// from the teacher's worker-pool fan-out into a single cooperative loop —
// one crawl drives one browser tab sequence so an authenticated session
// never has to be shared across goroutines.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/sitescout/discovery/internal/authflow"
	"github.com/sitescout/discovery/internal/browserpool"
	"github.com/sitescout/discovery/internal/canon"
	"github.com/sitescout/discovery/internal/crawlstate"
	"github.com/sitescout/discovery/internal/errs"
	"github.com/sitescout/discovery/internal/linkextract"
	"github.com/sitescout/discovery/internal/logging"
	"github.com/sitescout/discovery/internal/menuinteract"
	"github.com/sitescout/discovery/internal/metricsx"
	"github.com/sitescout/discovery/internal/pagefetch"
	"github.com/sitescout/discovery/internal/reachability"
	"github.com/sitescout/discovery/internal/shutdown"
	"github.com/sitescout/discovery/internal/sitemapper"
)

// defaultThumbnailCutoff disables thumbnail capture once this many pages
// have been discovered, keeping a large crawl's per-page screenshot cost
// bounded, unless Config.ThumbnailCutoff overrides it.
const defaultThumbnailCutoff = 10

// Config describes one crawl request.
type Config struct {
	ProjectID    string
	RootURL      string
	DepthCap     int
	PageCap      int
	UseSitemap   bool
	Recipe       *authflow.Recipe // nil for unauthenticated crawls
	IsLocal      bool
	UserAgent    string
	ProbeTimeout time.Duration

	// MenuPhaseBudget and MenuCandidateCap override the Menu Interactor's
	// wall-clock/candidate budget when positive; zero means use its
	// defaults.
	MenuPhaseBudget  time.Duration
	MenuCandidateCap int
	// ThumbnailCutoff overrides defaultThumbnailCutoff when positive.
	ThumbnailCutoff int
}

// Orchestrator runs one crawl at a time against a browser pool.
type Orchestrator struct {
	pool   *browserpool.Pool
	log    *logging.Logger
	metric *metricsx.Collector
	sink   ProgressSink
}

// New creates an Orchestrator bound to a browser pool. log and metric may
// be nil; sink may be nil (progress is then dropped via NopSink).
func New(pool *browserpool.Pool, log *logging.Logger, metric *metricsx.Collector, sink ProgressSink) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{pool: pool, log: log, metric: metric, sink: sink}
}

type runState struct {
	cfg          Config
	queue        *crawlstate.Queue
	visited      *crawlstate.VisitedSet
	pages        map[string]DiscoveredPage
	edges        []Link
	failures     []Failure
	authContext  *rod.Page // the session-anchor tab, kept open for the whole crawl
	storageState *pagefetch.StorageState
	loginURL     string
}

// Run executes cfg end to end: reachability check, optional
// sitemap seeding, optional login, then the BFS crawl loop. It always
// returns a Result (possibly StatusFailed) rather than propagating a bare
// error, since a failed crawl is still a reportable outcome.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) *Result {
	sh := shutdown.NewDefault()
	defer sh.Shutdown()

	if cfg.DepthCap <= 0 {
		cfg.DepthCap = 3
	}
	if cfg.PageCap <= 0 {
		cfg.PageCap = 200
	}
	if cfg.ThumbnailCutoff <= 0 {
		cfg.ThumbnailCutoff = defaultThumbnailCutoff
	}

	st := &runState{
		cfg:     cfg,
		queue:   crawlstate.NewQueue(),
		visited: crawlstate.NewVisitedSet(cfg.PageCap),
		pages:   make(map[string]DiscoveredPage),
	}

	o.emit(st, PhaseConnectivity, "checking site reachability", "")
	prober := reachability.New(cfg.ProbeTimeout)
	probeResult := prober.Probe(ctx, cfg.RootURL)
	if !probeResult.Reachable {
		return o.fail(st, errs.New(errs.Unreachable, "orchestrator.Run", cfg.RootURL, probeResult.Message, probeResult.Err))
	}

	if cfg.UseSitemap {
		o.emit(st, PhaseSitemap, "discovering sitemap URLs", "")
		ing := sitemapper.New(cfg.UserAgent)
		for _, u := range ing.Discover(ctx, cfg.RootURL) {
			st.queue.Push(u, 1)
		}
	}

	inst, err := o.pool.Acquire(ctx)
	if err != nil {
		return o.fail(st, errs.New(errs.Unknown, "orchestrator.Run", cfg.RootURL, "failed to acquire browser", err))
	}
	defer o.pool.Release()

	anchor, err := inst.Page(ctx)
	if err != nil {
		return o.fail(st, errs.New(errs.Unknown, "orchestrator.Run", cfg.RootURL, "failed to open session tab", err))
	}
	st.authContext = anchor
	sh.RegisterFunc("close-session-tab", func() {
		_ = anchor.Close()
	})

	seedURL := cfg.RootURL
	if cfg.Recipe != nil {
		o.emit(st, PhaseAuthentication, "logging in", cfg.Recipe.LoginURL)
		executor := authflow.NewExecutor(o.log)
		result, err := executor.Execute(ctx, anchor, cfg.Recipe)
		if err != nil || result == nil || !result.Success {
			reason := "login did not complete"
			if err != nil {
				reason = err.Error()
			}
			return o.fail(st, errs.New(errs.AuthFailure, "orchestrator.Run", cfg.Recipe.LoginURL, reason, err))
		}
		st.storageState = &pagefetch.StorageState{Cookies: toNetworkCookies(result.Cookies)}
		st.loginURL = cfg.Recipe.LoginURL

		st.queue.Push(cfg.Recipe.LoginURL, 0)
		if result.FinalURL != "" && canon.Canonicalize(result.FinalURL) != canon.Canonicalize(cfg.Recipe.LoginURL) {
			st.queue.Push(result.FinalURL, 0)
		}
	} else {
		st.queue.Push(seedURL, 0)
	}

	o.emit(st, PhaseCrawling, "crawling", seedURL)
	o.crawlLoop(ctx, st, anchor)

	status := StatusComplete
	if len(st.pages) == 0 {
		status = StatusFailed
		st.failures = append(st.failures, Failure{URL: cfg.RootURL, Reason: "reachable root yielded zero pages", At: now()})
	}

	o.emit(st, PhaseComplete, fmt.Sprintf("discovered %d pages", len(st.pages)), "")

	return &Result{
		Status:   status,
		Pages:    flattenPages(st.pages),
		Edges:    st.edges,
		Failures: st.failures,
	}
}

func (o *Orchestrator) crawlLoop(ctx context.Context, st *runState, page *rod.Page) {
	opts := pagefetch.Options{
		IsLocal:        st.cfg.IsLocal,
		RecipeLoginURL: st.loginURL,
	}

	for len(st.pages) < st.cfg.PageCap {
		if ctx.Err() != nil {
			st.failures = append(st.failures, Failure{URL: "", Reason: "crawl context cancelled", At: now()})
			return
		}

		item, err := st.queue.Pop()
		if err != nil {
			return // queue exhausted
		}
		if st.visited.HasVisited(item.URL) {
			continue
		}
		if item.Depth > st.cfg.DepthCap {
			continue
		}
		st.visited.MarkVisited(item.URL)

		opts.CaptureThumbnail = len(st.pages) < st.cfg.ThumbnailCutoff

		fetchStart := time.Now()
		fetchResult, err := pagefetch.Fetch(ctx, page, item.URL, opts)
		if err != nil {
			st.failures = append(st.failures, Failure{URL: item.URL, Reason: err.Error(), At: now()})
			continue
		}

		if fetchResult.LoginRedirect && st.storageState != nil {
			fetchResult, err = pagefetch.Reseed(ctx, page, st.storageState, item.URL, opts)
			if err != nil {
				st.failures = append(st.failures, Failure{URL: item.URL, Reason: fmt.Sprintf("session lost and re-seed failed: %v", err), At: now()})
				continue
			}
			if fetchResult.LoginRedirect {
				fetchResult.RequiresAuth = true
			}
		}

		key := canon.Canonicalize(fetchResult.FinalURL)
		st.pages[key] = DiscoveredPage{
			URL:          fetchResult.FinalURL,
			Title:        fetchResult.Title,
			PageType:     fetchResult.PageType,
			RequiresAuth: fetchResult.RequiresAuth,
			Depth:        item.Depth,
			IsAccessible: fetchResult.IsAccessible,
			Thumbnail:    fetchResult.Thumbnail,
		}
		if o.metric != nil {
			o.metric.ObserveFetch(time.Since(fetchStart))
		}

		o.harvestLinks(ctx, st, page, fetchResult.FinalURL, item.Depth)

		o.emitAt(st, PhaseCrawling, fmt.Sprintf("discovered %d pages", len(st.pages)), fetchResult.FinalURL, item.Depth)
	}
}

// harvestLinks runs the Link Extractor and then the Menu Interactor over
// the page currently loaded in the tab, enqueuing every in-scope link it
// finds at the appropriate child depth.
func (o *Orchestrator) harvestLinks(ctx context.Context, st *runState, page *rod.Page, pageURL string, depth int) {
	links, err := linkextract.Extract(page, pageURL)
	if err != nil {
		o.log.Warnf("link extraction failed for %s: %v", pageURL, err)
		links = nil
	}
	for _, l := range links {
		o.considerLink(st, pageURL, l.URL, l.Text, l.LinkType, depth, 0, "", "")
	}

	isSPA := false // stabilize() already happened inside Fetch; menu interaction reuses the live DOM regardless.
	interactor := menuinteract.New(isSPA, st.cfg.MenuCandidateCap, st.cfg.MenuPhaseBudget)
	revealed := interactor.Run(ctx, page, pageURL)
	for _, r := range revealed {
		o.considerLink(st, pageURL, r.URL, r.Text, r.LinkType, depth, 1, string(r.RevealedBy), r.ParentMenuText)
	}
}

func (o *Orchestrator) considerLink(st *runState, sourceURL, targetURL, text string, lt linkextract.LinkType, depth, menuLevel int, revealedBy, parentMenuText string) {
	if targetURL == "" {
		return
	}
	if !canon.SameSite(targetURL, st.cfg.RootURL) {
		return
	}
	if !canon.IsPageURL(targetURL) {
		return
	}

	childDepth := depth + 1 + menuLevel
	st.edges = append(st.edges, Link{
		SourceURL:      sourceURL,
		TargetURL:      targetURL,
		LinkText:       text,
		LinkType:       lt,
		MenuLevel:      menuLevel,
		RevealedBy:     revealedBy,
		ParentMenuText: parentMenuText,
	})

	if st.visited.HasVisited(targetURL) {
		return
	}
	if childDepth > st.cfg.DepthCap {
		return
	}
	st.queue.Push(targetURL, childDepth)
}

func (o *Orchestrator) emit(st *runState, phase Phase, message, currentURL string) {
	o.emitAt(st, phase, message, currentURL, 0)
}

func (o *Orchestrator) emitAt(st *runState, phase Phase, message, currentURL string, currentDepth int) {
	o.sink.Publish(Progress{
		ProjectID:       st.cfg.ProjectID,
		Status:          StatusDiscovering,
		Phase:           phase,
		DiscoveredCount: len(st.pages),
		TotalCount:      st.cfg.PageCap,
		Message:         message,
		CurrentURL:      currentURL,
		CurrentDepth:    currentDepth,
		MaxDepth:        st.cfg.DepthCap,
	})
}

func (o *Orchestrator) fail(st *runState, cause *errs.DiscoveryError) *Result {
	o.log.Errorf("crawl failed for project %s: %v", st.cfg.ProjectID, cause)
	o.sink.Publish(Progress{
		ProjectID: st.cfg.ProjectID,
		Status:    StatusFailed,
		Phase:     PhaseError,
		Message:   cause.Error(),
	})
	return &Result{
		Status:   StatusFailed,
		Pages:    flattenPages(st.pages),
		Edges:    st.edges,
		Failures: append(st.failures, Failure{URL: st.cfg.RootURL, Reason: cause.Error(), At: now()}),
		Err:      cause,
	}
}

func flattenPages(pages map[string]DiscoveredPage) []DiscoveredPage {
	out := make([]DiscoveredPage, 0, len(pages))
	for _, p := range pages {
		out = append(out, p)
	}
	return out
}

// now is a seam over time.Now so tests can avoid depending on wall-clock
// values when asserting on Failure entries.
var now = time.Now

// toNetworkCookies adapts the Login Executor's net/http cookie shape to
// the proto.NetworkCookie shape pagefetch.Reseed re-applies to a tab.
func toNetworkCookies(cookies []*http.Cookie) []*proto.NetworkCookie {
	out := make([]*proto.NetworkCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &proto.NetworkCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}
	return out
}
