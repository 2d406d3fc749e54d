// Package linkextract implements the Link Extractor (spec §4.6): anchor
// enumeration with visibility and ancestor-based location classification.
// Grounded on the teacher's internal/parser/html.go goquery-based anchor
// enumeration (doc.Find("a[href]").Each), generalized from a static-HTML
// pass into a rendered-DOM pass driven through go-rod page.Eval, since the
// spec's visibility computation (display/visibility/opacity/bounding rect)
// needs real layout that goquery's static parse cannot provide.
package linkextract

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"

	"github.com/sitescout/discovery/internal/canon"
)

// LinkType classifies where an extracted link lives in the page.
type LinkType string

const (
	LinkNavigation LinkType = "navigation"
	LinkFooter     LinkType = "footer"
	LinkSidebar    LinkType = "sidebar"
	LinkContent    LinkType = "content"
	LinkButton     LinkType = "button"
	LinkExternal   LinkType = "external"
)

const maxLinkTextLen = 200

// Link is one extracted hyperlink (or pseudo-link).
type Link struct {
	URL      string
	Text     string
	LinkType LinkType
}

// schemeBlocklist are non-navigable schemes rejected outright.
var schemeBlocklist = []string{
	"javascript:", "mailto:", "tel:", "data:", "blob:", "file:", "ftp:", "#",
}

// rawLink is the shape go-rod's JS evaluation returns per anchor/button
// candidate, before Go-side classification.
type rawLink struct {
	Href      string `json:"href"`
	Text      string `json:"text"`
	Visible   bool   `json:"visible"`
	Ancestor  string `json:"ancestor"`
	IsButtonLoc bool `json:"isButtonLoc"`
}

// the JS payload mirrors the teacher's DOM-query style (document.querySelectorAll
// + .Each-like iteration) but adds the visibility and nearest-ancestor
// computation the spec requires, which a static goquery parse cannot do.
const extractScript = `() => {
	function visible(el) {
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || parseFloat(style.opacity) === 0) {
			return false;
		}
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) {
			return false;
		}
		return el.offsetParent !== null || style.position === 'fixed';
	}

	function nearestAncestor(el) {
		let node = el;
		while (node && node !== document.body) {
			const tag = node.tagName ? node.tagName.toLowerCase() : '';
			const role = node.getAttribute ? (node.getAttribute('role') || '') : '';
			if (tag === 'nav' || tag === 'header' || role === 'navigation' || role === 'banner') {
				return 'navigation';
			}
			if (tag === 'footer' || role === 'contentinfo') {
				return 'footer';
			}
			if (tag === 'aside') {
				return 'sidebar';
			}
			node = node.parentElement;
		}
		return 'content';
	}

	const out = [];
	document.querySelectorAll('a[href]').forEach(a => {
		out.push({
			href: a.getAttribute('href') || '',
			text: (a.textContent || '').trim(),
			visible: visible(a),
			ancestor: nearestAncestor(a),
			isButtonLoc: false,
		});
	});

	document.querySelectorAll('button[onclick], [onclick*="location.href"]').forEach(b => {
		const onclick = b.getAttribute('onclick') || '';
		const match = onclick.match(/location\.href\s*=\s*['"]([^'"]+)['"]/);
		if (match) {
			out.push({
				href: match[1],
				text: (b.textContent || '').trim(),
				visible: visible(b),
				ancestor: nearestAncestor(b),
				isButtonLoc: true,
			});
		}
	});

	return out;
}`

// Extract enumerates the rendered page's hyperlinks and button pseudo-links,
// classified and resolved relative to pageURL.
func Extract(page *rod.Page, pageURL string) ([]Link, error) {
	val, err := page.Eval(extractScript)
	if err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}

	var raws []rawLink
	if err := val.Value.Unmarshal(&raws); err != nil {
		return nil, fmt.Errorf("decode extracted links: %w", err)
	}

	out := make([]Link, 0, len(raws))
	for _, r := range raws {
		if r.Href == "" || !r.Visible {
			continue
		}
		if isBlockedScheme(r.Href) {
			continue
		}

		resolved := resolve(pageURL, r.Href)
		if resolved == "" {
			continue
		}

		linkType := LinkType(r.Ancestor)
		if r.IsButtonLoc {
			linkType = LinkButton
		}
		if !canon.SameSite(resolved, pageURL) {
			linkType = LinkExternal
		}

		out = append(out, Link{
			URL:      resolved,
			Text:     capText(r.Text),
			LinkType: linkType,
		})
	}

	return out, nil
}

func isBlockedScheme(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	for _, scheme := range schemeBlocklist {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func capText(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxLinkTextLen {
		return text[:maxLinkTextLen]
	}
	return text
}
