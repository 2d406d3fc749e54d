package linkextract

import "net/url"

// resolve turns a possibly-relative href into an absolute URL against base.
// Returns "" if either fails to parse.
func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}
