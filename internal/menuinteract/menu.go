// Package menuinteract implements the Menu Interactor (spec §4.7):
// bounded hover/click exploration of nav-like elements to harvest
// links that only appear after interaction. Grounded on the teacher's
// internal/browser/spa.go polling-loop shape (snapshot, poll on an
// interval, detect readiness) and internal/browser/browser.go's element
// interaction helpers, generalized from "wait for SPA content" into
// "wait for new links after a hover/click, bounded and safety-gated."
// The post-interaction poll is paced with the teacher's
// internal/ratelimit golang.org/x/time/rate limiter instead of a bare
// time.Sleep, so the poll budget is itself a context-cancellable rate.
// The phase's wall-clock budget and candidate cap default to 15s/15 but
// are overridable per-Interactor (pkg/engine.WithMenuPhaseBudget,
// WithMenuCandidateCap) rather than fixed constants.
package menuinteract

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	"github.com/sitescout/discovery/internal/linkextract"
)

const (
	defaultCandidateCap = 15
	defaultPhaseBudget  = 15 * time.Second
	hoverDeadline       = 3 * time.Second
	clickDeadline       = 3 * time.Second
	pollInterval        = 100 * time.Millisecond
	pollBudgetStatic    = 800 * time.Millisecond
	pollBudgetSPA       = 1500 * time.Millisecond
	betweenCandidates   = 150 * time.Millisecond
)

var navContainerSelectors = []string{
	"nav", "[role='navigation']", "[role='menubar']", "header",
	"[class*='navbar' i]", "[class*='menu' i]", "[data-testid*='nav' i]",
}

var candidateSelectors = []string{
	"a", "button", "[role='menuitem']", "[role='button']", "[role='link']",
	"[aria-haspopup]", "[aria-expanded]", "[aria-controls]",
}

var submenuTextHints = []string{
	"more", "shop", "products", "services", "menu", "mehr", "plus", "más",
}

// RevealedBy names what interaction produced a harvested link.
type RevealedBy string

const (
	RevealedHover RevealedBy = "hover"
	RevealedClick RevealedBy = "click"
)

// Revealed is one link harvested by hovering or clicking a menu candidate.
type Revealed struct {
	URL           string
	Text          string
	LinkType      linkextract.LinkType
	RevealedBy    RevealedBy
	ParentMenuText string
}

// candidate is one menu trigger under consideration.
type candidate struct {
	el              *rod.Element
	text            string
	hasSubIndicator bool
}

// Interactor drives the hover/click exploration phase.
type Interactor struct {
	isSPA        bool
	candidateCap int
	phaseBudget  time.Duration
	limiter      *rate.Limiter // paces the post-interaction poll loop
}

// New creates an Interactor; isSPA relaxes the post-interaction poll
// budget, matching the Page Fetcher's SPA-vs-static distinction.
// candidateCap and phaseBudget override the package defaults
// (defaultCandidateCap, defaultPhaseBudget) when positive, letting callers tune the wall-clock/candidate
// budget per deployment (spec's Open Question on menu-phase tuning) instead
// of baking it in as an unconditional constant.
func New(isSPA bool, candidateCap int, phaseBudget time.Duration) *Interactor {
	if candidateCap <= 0 {
		candidateCap = defaultCandidateCap
	}
	if phaseBudget <= 0 {
		phaseBudget = defaultPhaseBudget
	}
	return &Interactor{
		isSPA:        isSPA,
		candidateCap: candidateCap,
		phaseBudget:  phaseBudget,
		limiter:      rate.NewLimiter(rate.Every(pollInterval), 1),
	}
}

// Run explores menu candidates on page and returns newly-revealed links,
// bounded by the Interactor's candidate / wall-clock budget.
func (in *Interactor) Run(ctx context.Context, page *rod.Page, pageURL string) []Revealed {
	deadline := time.Now().Add(in.phaseBudget)

	candidates := in.selectCandidates(page)
	if len(candidates) > in.candidateCap {
		candidates = candidates[:in.candidateCap]
	}

	var revealed []Revealed
	for _, c := range candidates {
		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}

		before, err := linkextract.VisibleURLSnapshot(page, pageURL)
		if err != nil {
			continue
		}

		hits := in.tryHover(ctx, page, pageURL, c, before)
		if len(hits) == 0 && c.hasSubIndicator {
			hits = in.tryClick(ctx, page, pageURL, c, before)
		}
		revealed = append(revealed, hits...)

		page.Mouse.MoveTo(proto.NewPoint(0, 0))
		time.Sleep(betweenCandidates)
	}

	return revealed
}

func (in *Interactor) selectCandidates(page *rod.Page) []candidate {
	var out []candidate
	seenText := make(map[string]struct{})

	for _, containerSel := range navContainerSelectors {
		containers, err := page.Elements(containerSel)
		if err != nil {
			continue
		}
		for _, container := range containers {
			for _, itemSel := range candidateSelectors {
				items, err := container.Elements(itemSel)
				if err != nil {
					continue
				}
				for _, item := range items {
					text, _ := item.Text()
					text = strings.TrimSpace(text)
					if text == "" {
						text = "(unlabeled)"
					}
					if _, dup := seenText[text]; dup {
						continue
					}
					seenText[text] = struct{}{}

					out = append(out, candidate{
						el:              item,
						text:            text,
						hasSubIndicator: hasSubIndicator(item, text),
					})
				}
			}
		}
	}

	// Prefer candidates with a submenu indicator, matching the spec's
	// "preferring items with hasSubIndicator" budget ordering.
	var withIndicator, without []candidate
	for _, c := range out {
		if c.hasSubIndicator {
			withIndicator = append(withIndicator, c)
		} else {
			without = append(without, c)
		}
	}
	return append(withIndicator, without...)
}

func hasSubIndicator(el *rod.Element, text string) bool {
	for _, attr := range []string{"aria-haspopup", "aria-expanded", "aria-controls"} {
		if val, err := el.Attribute(attr); err == nil && val != nil {
			return true
		}
	}
	if siblingLists, err := el.Next(); err == nil && siblingLists != nil {
		tag, terr := siblingLists.Property("tagName")
		if terr == nil && strings.EqualFold(tag.Str(), "ul") {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, hint := range submenuTextHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func (in *Interactor) pollBudget() time.Duration {
	if in.isSPA {
		return pollBudgetSPA
	}
	return pollBudgetStatic
}

func (in *Interactor) tryHover(ctx context.Context, page *rod.Page, pageURL string, c candidate, before map[string]struct{}) []Revealed {
	if err := c.el.Timeout(hoverDeadline).Hover(); err != nil {
		return nil
	}

	newURLs := in.pollForNew(ctx, page, pageURL, before)
	if len(newURLs) == 0 {
		return nil
	}
	return toRevealed(newURLs, RevealedHover, c.text)
}

func (in *Interactor) tryClick(ctx context.Context, page *rod.Page, pageURL string, c candidate, before map[string]struct{}) []Revealed {
	if !safeToClick(c.el) {
		return nil
	}

	info, err := page.Info()
	startURL := ""
	if err == nil {
		startURL = info.URL
	}

	if err := c.el.Timeout(clickDeadline).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil
	}

	newURLs := in.pollForNew(ctx, page, pageURL, before)

	info, err = page.Info()
	if err == nil && startURL != "" && info.URL != startURL {
		// The click navigated the page instead of revealing a submenu;
		// bail out of this candidate without counting the navigation as
		// a harvested link.
		_ = page.Navigate(startURL)
		_ = page.WaitLoad()
		return nil
	}

	page.Keyboard.MustType(input.Escape)

	if len(newURLs) == 0 {
		return nil
	}
	return toRevealed(newURLs, RevealedClick, c.text)
}

// safeToClick rejects bare anchors with a real href unless they also expose
// submenu ARIA, per the spec's click-strategy safety filter; buttons and
// toggle-classed elements are always accepted.
func safeToClick(el *rod.Element) bool {
	tag, err := el.Property("tagName")
	if err != nil {
		return false
	}
	tagName := strings.ToLower(tag.Str())

	if tagName != "a" {
		return true
	}

	href, herr := el.Attribute("href")
	hasRealHref := herr == nil && href != nil && *href != "" && *href != "#"
	if !hasRealHref {
		return true
	}

	for _, attr := range []string{"aria-haspopup", "aria-expanded"} {
		if val, aerr := el.Attribute(attr); aerr == nil && val != nil {
			return true
		}
	}
	return false
}

// pollForNew re-snapshots visible URLs until the poll budget elapses or a
// new link appears, pacing each re-snapshot through in.limiter rather than
// a bare time.Sleep so the loop exits promptly if ctx is cancelled.
func (in *Interactor) pollForNew(ctx context.Context, page *rod.Page, pageURL string, before map[string]struct{}) []string {
	deadline := time.Now().Add(in.pollBudget())
	for time.Now().Before(deadline) {
		after, err := linkextract.VisibleURLSnapshot(page, pageURL)
		if err == nil {
			if newURLs := linkextract.NewlyRevealed(before, after); len(newURLs) > 0 {
				return newURLs
			}
		}
		if err := in.limiter.Wait(ctx); err != nil {
			return nil
		}
	}
	return nil
}

func toRevealed(urls []string, by RevealedBy, parentText string) []Revealed {
	out := make([]Revealed, 0, len(urls))
	for _, u := range urls {
		out = append(out, Revealed{
			URL:            u,
			LinkType:       linkextract.LinkNavigation,
			RevealedBy:     by,
			ParentMenuText: parentText,
		})
	}
	return out
}
