// Package pagefetch implements the Page Fetcher (spec §4.5): progressive
// navigation, SPA stabilization, thumbnail capture, title recovery, and
// session-loss recovery. Grounded on the teacher's internal/browser
// package (navigation/wait-strategy shape in browser.go, SPA-readiness
// heuristics in spa.go), generalized from a single-attempt fetch into a
// three-tier progressive navigation strategy with authenticated-context
// re-seeding on login-redirect loss.
package pagefetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/sitescout/discovery/internal/canon"
)

const (
	localFastTimeout  = 15 * time.Second
	localDOMTimeout   = 45 * time.Second
	localLoadTimeout  = 15 * time.Second
	finalDOMTimeout   = 60 * time.Second
	thumbnailDeadline = 5 * time.Second
)

var spaMarkerSelectors = []string{
	"#__next", "[data-reactroot]", "[ng-version]",
}

var spaMarkerScriptGlobals = []string{"__NEXT_DATA__", "__NUXT__", "__VUE__"}

// Result is everything the Page Fetcher produces for one navigation.
type Result struct {
	FinalURL     string
	Title        string
	HTML         string
	StatusCode   int
	Thumbnail    []byte
	RequiresAuth bool
	PageType     string
	IsAccessible bool
	LoginRedirect bool
}

// StorageState is the subset of browser session state the orchestrator
// captures after login and re-applies on session loss.
type StorageState struct {
	Cookies []*proto.NetworkCookie
}

// Options configures a single fetch.
type Options struct {
	CaptureThumbnail bool
	IsLocal          bool
	RecipeLoginURL   string
}

// Fetch navigates page to target and extracts the Page Fetcher's output,
// per the spec's progressive-navigation / stabilization / recovery
// algorithm.
func Fetch(ctx context.Context, page *rod.Page, target string, opts Options) (*Result, error) {
	page = page.Context(ctx)

	if err := navigateProgressive(page, target, opts.IsLocal); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}

	stabilize(page, opts.IsLocal)

	info, err := page.Info()
	finalURL := target
	if err == nil {
		finalURL = info.URL
	}

	res := &Result{FinalURL: finalURL, IsAccessible: true}

	if canon.IsLoginRedirect(target, finalURL, opts.RecipeLoginURL) {
		res.LoginRedirect = true
	}

	html, _ := page.HTML()
	res.HTML = html

	res.Title = recoverTitle(page)
	res.RequiresAuth = detectAuthRequired(page, finalURL, res.Title)
	res.PageType = classifyPageType(finalURL, html)

	if opts.CaptureThumbnail {
		res.Thumbnail = captureThumbnail(page)
	}

	return res, nil
}

// Reseed re-applies a captured storage state's cookies to the page's
// browser context and retries the fetch once, per the spec's session-loss
// recovery: if the retry still lands on login, the caller marks the page
// requiresAuth=true and keeps the result as-is.
func Reseed(ctx context.Context, page *rod.Page, state *StorageState, target string, opts Options) (*Result, error) {
	if state != nil && len(state.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(state.Cookies))
		for _, c := range state.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		_ = page.SetCookies(params)
	}
	return Fetch(ctx, page, target, opts)
}

func navigateProgressive(page *rod.Page, target string, isLocal bool) error {
	fastTimeout := localFastTimeout
	domTimeout := localDOMTimeout
	loadTimeout := localLoadTimeout
	finalTimeout := finalDOMTimeout
	if isLocal {
		fastTimeout *= 2
		domTimeout *= 2
		loadTimeout *= 2
		finalTimeout *= 2
	}

	// Tier 1: networkidle fast path.
	if err := page.Timeout(fastTimeout).Navigate(target); err == nil {
		if err := page.Timeout(fastTimeout).WaitIdle(fastTimeout); err == nil {
			return nil
		}
	}

	// Tier 2: domcontentloaded, then best-effort load + readyState poll.
	if err := page.Timeout(domTimeout).Navigate(target); err != nil {
		return tierThree(page, target, finalTimeout)
	}
	if err := page.Timeout(domTimeout).WaitDOMStable(300*time.Millisecond, 0); err == nil {
		_ = page.Timeout(loadTimeout).WaitLoad()
		waitReadyStateComplete(page, loadTimeout)
		return nil
	}

	return tierThree(page, target, finalTimeout)
}

func tierThree(page *rod.Page, target string, timeout time.Duration) error {
	if err := page.Timeout(timeout).Navigate(target); err != nil {
		return err
	}
	return page.Timeout(timeout).WaitDOMStable(500*time.Millisecond, 0)
}

func waitReadyStateComplete(page *rod.Page, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		val, err := page.Eval(`() => document.readyState`)
		if err == nil && val.Value.Str() == "complete" {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func isSPA(page *rod.Page) bool {
	for _, sel := range spaMarkerSelectors {
		if el, err := page.Element(sel); err == nil && el != nil {
			return true
		}
	}
	for _, global := range spaMarkerGlobals() {
		val, err := page.Eval(fmt.Sprintf(`() => typeof window['%s'] !== 'undefined'`, global))
		if err == nil && val.Value.Bool() {
			return true
		}
	}
	return false
}

func spaMarkerGlobals() []string { return spaMarkerScriptGlobals }

func notObviouslyReady(page *rod.Page) bool {
	val, err := page.Eval(`() => document.readyState`)
	if err == nil && val.Value.Str() != "complete" {
		return true
	}
	anchors, err := page.Elements("a")
	if err == nil && len(anchors) == 0 {
		return true
	}
	return false
}

func stabilize(page *rod.Page, isLocal bool) {
	spa := isSPA(page)

	if notObviouslyReady(page) {
		wait := 1 * time.Second
		switch {
		case isLocal:
			wait = 3 * time.Second
		case spa:
			wait = 2 * time.Second
		}
		time.Sleep(wait)
	}

	if spa {
		_ = page.Timeout(3 * time.Second).WaitDOMStable(300*time.Millisecond, 0)
	}
}

func recoverTitle(page *rod.Page) string {
	title, err := page.Eval(`() => document.title`)
	text := ""
	if err == nil {
		text = title.Value.Str()
	}
	if isUsableTitle(text) {
		return text
	}

	candidates := []string{
		`() => document.querySelector("meta[property='og:title']")?.content`,
		`() => document.querySelector("meta[name='twitter:title']")?.content`,
		`() => document.title`,
		`() => document.querySelector('h1')?.textContent`,
		`() => document.querySelector('h2')?.textContent`,
		`() => document.querySelector('main h1, article h1, [role="main"] h1')?.textContent`,
	}
	for _, expr := range candidates {
		val, err := page.Eval(expr)
		if err != nil {
			continue
		}
		s := strings.TrimSpace(val.Value.Str())
		if isUsableTitle(s) {
			return s
		}
	}

	info, err := page.Info()
	if err == nil {
		return urlDerivedName(info.URL)
	}
	return "untitled"
}

func isUsableTitle(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || s == "undefined" {
		return false
	}
	return !strings.Contains(strings.ToLower(s), "loading")
}

func urlDerivedName(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "home"
	}
	seg := trimmed[idx+1:]
	seg = strings.ReplaceAll(seg, "-", " ")
	seg = strings.ReplaceAll(seg, "_", " ")
	if seg == "" {
		return "home"
	}
	return seg
}

var loginVerbs = []string{
	"log in", "login", "sign in", "signin", "anmelden", "connexion", "iniciar sesión",
}

func detectAuthRequired(page *rod.Page, finalURL, title string) bool {
	if el, err := page.Element("input[type='password']"); err == nil && el != nil {
		return true
	}
	if el, err := page.Element("form[action*='login'], form[action*='signin']"); err == nil && el != nil {
		return true
	}
	if el, err := page.Element("[class*='login' i], [id*='login' i], [class*='signin' i], [id*='signin' i]"); err == nil && el != nil {
		return true
	}

	buttons, err := page.Elements("button, input[type='submit']")
	if err == nil {
		for _, b := range buttons {
			text, _ := b.Text()
			lower := strings.ToLower(text)
			for _, verb := range loginVerbs {
				if strings.Contains(lower, verb) {
					return true
				}
			}
		}
	}

	lowerURL := strings.ToLower(finalURL)
	lowerTitle := strings.ToLower(title)
	for _, needle := range []string{"login", "signin", "auth"} {
		if strings.Contains(lowerURL, needle) || strings.Contains(lowerTitle, needle) {
			return true
		}
	}
	return false
}

func classifyPageType(finalURL, html string) string {
	lower := strings.ToLower(finalURL)
	switch {
	case strings.Contains(lower, "/product"):
		return "product"
	case strings.Contains(lower, "/cart"):
		return "cart"
	case strings.Contains(lower, "/checkout"):
		return "checkout"
	case strings.Contains(lower, "/account"), strings.Contains(lower, "/profile"), strings.Contains(lower, "/dashboard"):
		return "account"
	case strings.Contains(lower, "/blog"), strings.Contains(lower, "/article"):
		return "content"
	case strings.Contains(lower, "/contact"):
		return "contact"
	case strings.Contains(lower, "/about"):
		return "about"
	case strings.Contains(lower, "/help"), strings.Contains(lower, "/faq"), strings.Contains(lower, "/support"):
		return "help"
	case strings.Contains(lower, "/search"):
		return "search"
	case strings.Contains(lower, "/category"), strings.Contains(lower, "/collections"), strings.Contains(lower, "/catalog"):
		return "category"
	case strings.Contains(lower, "/login"), strings.Contains(lower, "/signin"):
		return "login"
	}

	if strings.Contains(html, "<form") {
		return "form"
	}
	return "content"
}

func captureThumbnail(page *rod.Page) []byte {
	done := make(chan []byte, 1)
	go func() {
		quality := 50
		data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: &quality,
			Clip: &proto.PageViewport{
				X: 0, Y: 0, Width: 1280, Height: 720, Scale: 1,
			},
		})
		if err != nil {
			done <- nil
			return
		}
		done <- data
	}()

	select {
	case data := <-done:
		return data
	case <-time.After(thumbnailDeadline):
		return nil
	}
}

// EncodeThumbnail base64-encodes a thumbnail for wire transport.
func EncodeThumbnail(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// StatusFromResponse extracts an HTTP-equivalent status code, when
// available, from a navigation's network response (used by callers that
// also track the raw fetch outcome outside the browser, e.g. HEAD probes).
func StatusFromResponse(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
