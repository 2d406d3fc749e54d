package linkextract

import (
	"fmt"

	"github.com/go-rod/rod"
)

// VisibleURLSnapshot and NewlyRevealed are the small capability functions
// spec §9's Design Notes calls for to break the Extractor↔Interactor
// circular dependency: the Menu Interactor needs "visible URL snapshot" and
// "newly-revealed diff" without a runtime back-reference to this package.
// They live here, beside Extract, since they reuse its visibility script;
// the Interactor calls these two functions (and uses the LinkType
// constants) but never Extract, and this package never imports the
// Interactor.

const snapshotScript = `() => {
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
	const out = [];
	document.querySelectorAll('a[href]').forEach(a => {
		if (visible(a)) {
			out.push(a.getAttribute('href') || '');
		}
	});
	return out;
}`

// VisibleURLSnapshot returns the set of currently-visible anchor hrefs,
// resolved against pageURL.
func VisibleURLSnapshot(page *rod.Page, pageURL string) (map[string]struct{}, error) {
	val, err := page.Eval(snapshotScript)
	if err != nil {
		return nil, fmt.Errorf("snapshot visible links: %w", err)
	}

	var hrefs []string
	if err := val.Value.Unmarshal(&hrefs); err != nil {
		return nil, fmt.Errorf("decode visible links: %w", err)
	}

	out := make(map[string]struct{}, len(hrefs))
	for _, h := range hrefs {
		if resolved := resolve(pageURL, h); resolved != "" {
			out[resolved] = struct{}{}
		}
	}
	return out, nil
}

// NewlyRevealed returns the URLs present in after but absent from before.
func NewlyRevealed(before, after map[string]struct{}) []string {
	var out []string
	for u := range after {
		if _, existed := before[u]; !existed {
			out = append(out, u)
		}
	}
	return out
}
