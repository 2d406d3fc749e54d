// Package canon implements the URL Canonicalizer (spec §4.1): the single
// source of truth for deduplication across the discovered graph. Grounded
// on the teacher's internal/scope package (NormalizeURL, IsValidURL,
// ExtractDomain), generalized from a security-scanner's scope check into a
// dedup-key producer with tracking-parameter stripping and host folding.
package canon

import (
	"net/url"
	"sort"
	"strings"
)

// loopbackHosts are folded to a single canonical host so that a crawl
// running against a container and one running against the host machine
// dedup identically (spec P3).
var loopbackHosts = map[string]struct{}{
	"127.0.0.1":             {},
	"localhost":              {},
	"host.docker.internal":  {},
}

const canonicalLoopbackHost = "localhost"

// indexFiles are stripped from a path's final segment when present, since
// "/" and "/index.html" name the same resource.
var indexFiles = map[string]struct{}{
	"index.html":   {},
	"index.htm":    {},
	"index.php":    {},
	"default.aspx": {},
	"default.asp":  {},
	"home.html":    {},
}

// trackingParamPrefixes matches any query key beginning with one of these.
var trackingParamPrefixes = []string{"utm_"}

// trackingParamNames matches exact query keys, case-insensitively.
var trackingParamNames = map[string]struct{}{
	"fbclid":        {},
	"gclid":         {},
	"msclkid":       {},
	"mc_cid":        {},
	"mc_eid":        {},
	"_ga":           {},
	"_gl":           {},
	"phpsessid":     {},
	"jsessionid":    {},
	"sessionid":     {},
	"sid":           {},
	"aspsessionid":  {},
	"ref":           {},
	"igshid":        {},
	"spm":           {},
}

// resourceExtensions marks a path as a non-HTML resource for isPageUrl.
var resourceExtensions = map[string]struct{}{
	// images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".bmp": {}, ".avif": {},
	// documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {}, ".csv": {},
	// archives
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
	// media
	".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {}, ".webm": {}, ".ogg": {},
	// stylesheets/scripts/fonts
	".css": {}, ".js": {}, ".mjs": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
}

// loginPaths are the redirect targets that identify a bounce back to login
// when no recipe-specific login URL is known (spec §4.1 isLoginRedirect).
var loginPaths = map[string]struct{}{
	"/login": {}, "/signin": {}, "/sign-in": {}, "/auth": {},
	"/authenticate": {}, "/sso": {}, "/cas/login": {},
}

// Canonicalize normalizes a URL into its deduplication key. On parse
// failure it falls back leniently to the lowercased input, matching the
// spec's lenient-fallback contract rather than propagating the error.
func Canonicalize(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := foldHost(parsed.Host)
	path := normalizePath(parsed.Path)
	query := sortedFilteredQuery(parsed.RawQuery)

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if query != "" {
		b.WriteString("?")
		b.WriteString(query)
	}
	return b.String()
}

func foldHost(host string) string {
	host = strings.ToLower(host)
	hostname := host
	port := ""
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		hostname, port = host[:idx], host[idx:]
	}

	if _, ok := loopbackHosts[hostname]; ok {
		hostname = canonicalLoopbackHost
	}
	hostname = strings.TrimPrefix(hostname, "www.")

	return hostname + port
}

func normalizePath(path string) string {
	path = strings.ToLower(path)
	if path == "" {
		path = "/"
	}

	if path != "/" {
		path = strings.TrimSuffix(path, "/")
		if path == "" {
			path = "/"
		}
	}

	// Drop a trailing index file from the final segment.
	lastSlash := strings.LastIndex(path, "/")
	if lastSlash >= 0 {
		segment := path[lastSlash+1:]
		if _, ok := indexFiles[segment]; ok {
			path = path[:lastSlash]
			if path == "" {
				path = "/"
			}
		}
	}

	return path
}

func sortedFilteredQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if isTrackingParam(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := url.Values{}
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out.Encode()
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := trackingParamNames[lower]; ok {
		return true
	}
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// IsPageURL reports whether url's path names an HTML-navigable page rather
// than a static resource (image, document, archive, media, stylesheet,
// script, or font).
func IsPageURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return true
	}
	path := strings.ToLower(parsed.Path)
	for ext := range resourceExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}

// SameSite reports whether url belongs to the same site as base: their
// canonical hosts match exactly, or url's host is a subdomain of base's.
func SameSite(rawURL, rawBase string) bool {
	u, err1 := url.Parse(rawURL)
	b, err2 := url.Parse(rawBase)
	if err1 != nil || err2 != nil {
		return false
	}

	uHost := foldHost(u.Host)
	bHost := foldHost(b.Host)

	if uHost == bHost {
		return true
	}
	return strings.HasSuffix(uHost, "."+bHost)
}

// IsLoginRedirect reports whether a navigation that was requested at
// requestedURL and ended at finalURL bounced to a login page: either the
// recipe's known login URL (if any), or one of a fixed set of common login
// paths, while differing from the path that was requested.
func IsLoginRedirect(requestedURL, finalURL, recipeLoginURL string) bool {
	final, err := url.Parse(finalURL)
	if err != nil {
		return false
	}

	if recipeLoginURL != "" {
		if Canonicalize(finalURL) == Canonicalize(recipeLoginURL) {
			return true
		}
	}

	requested, err := url.Parse(requestedURL)
	if err != nil {
		return false
	}

	finalPath := strings.ToLower(strings.TrimSuffix(final.Path, "/"))
	if finalPath == "" {
		finalPath = "/"
	}

	if _, ok := loginPaths[finalPath]; !ok {
		return false
	}

	requestedPath := strings.ToLower(strings.TrimSuffix(requested.Path, "/"))
	if requestedPath == "" {
		requestedPath = "/"
	}

	return finalPath != requestedPath
}
