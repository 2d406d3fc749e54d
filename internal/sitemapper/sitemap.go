// Package sitemapper implements the Sitemap Ingester (spec §4.2), grounded
// directly on the teacher's internal/discovery/enhanced.SitemapParser:
// fetch the well-known sitemap locations and any robots.txt Sitemap:
// directives, recursively expanding sitemap indexes, and return the union
// of discovered URLs filtered down to same-site HTML pages.
package sitemapper

import (
	"context"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sitescout/discovery/internal/canon"
)

const maxIndexDepth = 3

var wellKnownPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap/sitemap.xml",
	"/sitemaps/sitemap.xml",
	"/sitemap1.xml",
	"/sitemap-index.xml",
	"/post-sitemap.xml",
	"/page-sitemap.xml",
	"/category-sitemap.xml",
	"/wp-sitemap.xml",
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

type sitemapIndex struct {
	XMLName  xml.Name            `xml:"sitemapindex"`
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

// Ingester fetches and expands sitemaps for a single site.
type Ingester struct {
	client    *http.Client
	userAgent string
}

// New creates an Ingester with the given user agent string.
func New(userAgent string) *Ingester {
	return &Ingester{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
	}
}

// Discover returns the set of same-site, HTML-navigable URLs named by
// siteRoot's sitemaps, deduplicated by canonical key. A branch that fails
// (missing sitemap, malformed XML, network error) is skipped silently; the
// ingester always returns whatever the union of surviving branches found,
// never an error, since sitemap discovery is best-effort supplementary
// seeding rather than a required step. Local development addresses
// (loopback, private ranges) are skipped outright — sitemaps rarely exist
// locally, and probing for one would just waste the crawl's time budget.
func (in *Ingester) Discover(ctx context.Context, siteRoot string) []string {
	base, err := url.Parse(siteRoot)
	if err == nil && isLocalAddress(base.Hostname()) {
		return nil
	}
	return in.discover(ctx, siteRoot)
}

// discover does the actual well-known-path + robots.txt sitemap discovery,
// without the local-address skip Discover applies first.
func (in *Ingester) discover(ctx context.Context, siteRoot string) []string {
	base, err := url.Parse(siteRoot)
	if err != nil {
		return nil
	}
	origin := base.Scheme + "://" + base.Host

	seen := make(map[string]struct{})
	out := make([]string, 0)
	visitedSitemaps := make(map[string]struct{})

	emit := func(loc string) {
		if loc == "" {
			return
		}
		if !canon.SameSite(loc, siteRoot) || !canon.IsPageURL(loc) {
			return
		}
		key := canon.Canonicalize(loc)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, loc)
	}

	for _, p := range wellKnownPaths {
		in.parseSitemap(ctx, origin+p, 0, visitedSitemaps, emit)
	}

	for _, sm := range in.findSitemapsInRobots(ctx, origin+"/robots.txt") {
		in.parseSitemap(ctx, sm, 0, visitedSitemaps, emit)
	}

	return out
}

func (in *Ingester) parseSitemap(ctx context.Context, sitemapURL string, depth int, visited map[string]struct{}, emit func(string)) {
	if depth > maxIndexDepth {
		return
	}
	if _, ok := visited[sitemapURL]; ok {
		return
	}
	visited[sitemapURL] = struct{}{}

	body, ok := in.fetch(ctx, sitemapURL)
	if !ok {
		return
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, entry := range idx.Sitemaps {
			in.parseSitemap(ctx, entry.Loc, depth+1, visited, emit)
		}
		return
	}

	var set urlset
	if err := xml.Unmarshal(body, &set); err == nil {
		for _, u := range set.URLs {
			emit(u.Loc)
		}
	}
}

func (in *Ingester) findSitemapsInRobots(ctx context.Context, robotsURL string) []string {
	body, ok := in.fetch(ctx, robotsURL)
	if !ok {
		return nil
	}

	var sitemaps []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			loc := strings.TrimSpace(line[len("sitemap:"):])
			if loc != "" {
				sitemaps = append(sitemaps, loc)
			}
		}
	}
	return sitemaps
}

// isLocalAddress reports whether host names a loopback address or a
// private-range IP, matching the canonicalizer's localhost-folding triad
// plus RFC 1918/4193 private ranges.
func isLocalAddress(host string) bool {
	switch host {
	case "localhost", "host.docker.internal":
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

func (in *Ingester) fetch(ctx context.Context, target string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", in.userAgent)

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}
	return body, true
}
