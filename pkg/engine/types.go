// Package engine exposes the authenticated website discovery engine's
// public API (spec §6): StartDiscovery, GetProgress, GetGraph, and
// SelectPagesForAnalysis. Grounded on the teacher's pkg/crawler package
// shape (functional-options Engine construction, a CrawlResult DTO
// distinct from internal working state), adapted to front the
// orchestrator/persistwriter/broadcast packages instead of driving a
// crawl directly.
package engine

import "time"

// DiscoveredPage is the public DTO for one discovered page (spec §3).
type DiscoveredPage struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	PageType     string    `json:"pageType"`
	RequiresAuth bool      `json:"requiresAuth"`
	Depth        int       `json:"depth"`
	IsAccessible bool      `json:"isAccessible"`
	Thumbnail    string    `json:"thumbnail,omitempty"` // base64-encoded JPEG
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// PageLink is the public DTO for one edge (spec §3).
type PageLink struct {
	SourceURL      string `json:"sourceUrl"`
	TargetURL      string `json:"targetUrl"`
	LinkText       string `json:"linkText"`
	LinkType       string `json:"linkType"`
	MenuLevel      int    `json:"menuLevel"`
	RevealedBy     string `json:"revealedBy"`
	ParentMenuText string `json:"parentMenuText,omitempty"`
}

// Progress is the public DTO mirroring spec §3's Progress model.
type Progress struct {
	ProjectID       string   `json:"projectId"`
	Status          string   `json:"status"`
	Phase           string   `json:"phase"`
	DiscoveredCount int      `json:"discoveredCount"`
	TotalCount      int      `json:"totalCount"`
	Message         string   `json:"message"`
	URLs            []string `json:"urls"`
	CurrentURL      string   `json:"currentUrl,omitempty"`
}

// LoginStep is one ordered action in a LoginRecipe.
type LoginStep struct {
	Kind        string `json:"kind"` // type | click | wait
	Selector    string `json:"selector,omitempty"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// LoginRecipe is the public DTO for an authentication recipe (spec §3).
type LoginRecipe struct {
	LoginURL        string      `json:"loginUrl"`
	Username        string      `json:"username"`
	Password        string      `json:"password"`
	Steps           []LoginStep `json:"steps"`
	Mode            string      `json:"mode"` // auto | manual
	UsernameSelector string     `json:"usernameSelector,omitempty"`
	PasswordSelector string     `json:"passwordSelector,omitempty"`
	SubmitSelector   string     `json:"submitSelector,omitempty"`
}

// StartDiscoveryRequest is StartDiscovery's input, with spec §6's defaults
// applied by ApplyDefaults.
type StartDiscoveryRequest struct {
	ProjectID   string
	RootURL     string
	DepthCap    int
	PageCap     int
	UseSitemap  *bool // nil means "use the default" (true)
	Recipe      *LoginRecipe
	InContainer bool
}

// ApplyDefaults fills unset fields per spec §6: depthCap defaults to 3,
// pageCap to 100 (the engine default; UI callers pass 50 explicitly), and
// useSitemap defaults to true.
func (r *StartDiscoveryRequest) ApplyDefaults() {
	if r.DepthCap == 0 {
		r.DepthCap = 3
	}
	if r.PageCap == 0 {
		r.PageCap = 100
	}
	if r.UseSitemap == nil {
		t := true
		r.UseSitemap = &t
	}
}

// DiscoveryResult is StartDiscovery's return value.
type DiscoveryResult struct {
	ProjectID string           `json:"projectId"`
	Status    string           `json:"status"`
	Pages     []DiscoveredPage `json:"pages"`
	Edges     []PageLink       `json:"edges"`
	Failures  []string         `json:"failures,omitempty"`
}

// GraphView is the read-only graph returned by GetGraph.
type GraphView struct {
	Nodes []DiscoveredPage `json:"nodes"`
	Edges []PageLink       `json:"edges"`
}
