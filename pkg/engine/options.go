package engine

import (
	"time"

	"github.com/sitescout/discovery/internal/browserpool"
)

// config holds the Engine's construction-time settings, built up by Option
// functions, matching the teacher's pkg/crawler functional-options shape.
type config struct {
	poolSize    int
	headless    bool
	userAgent   string
	inContainer bool
	probeTimeout time.Duration

	// menuPhaseBudget and menuCandidateCap override the Menu Interactor's
	// wall-clock/candidate budget; zero means "use the interactor's
	// built-in default."
	menuPhaseBudget  time.Duration
	menuCandidateCap int
	// thumbnailCutoff overrides the orchestrator's default thumbnail-capture
	// cutoff; zero means "use the orchestrator's built-in default."
	thumbnailCutoff int
}

func defaultConfig() config {
	return config{
		poolSize:     4,
		headless:     true,
		userAgent:    "Mozilla/5.0 (compatible; DiscoveryEngine/1.0)",
		probeTimeout: 10 * time.Second,
	}
}

// Option configures an Engine at construction time.
type Option func(*config)

// WithPoolSize sets how many browser instances the Engine keeps warm.
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.poolSize = n
	}
}

// WithHeadless toggles headless Chrome launch.
func WithHeadless(headless bool) Option {
	return func(c *config) { c.headless = headless }
}

// WithUserAgent overrides the User-Agent used for sitemap/robots fetches.
func WithUserAgent(ua string) Option {
	return func(c *config) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithInContainer marks the Engine as running inside a container. The
// flag is stored but not read: navigation targets are not rewritten to
// host.docker.internal, and only StartDiscoveryRequest.InContainer has an
// effect (it turns off the local-target timeout hint).
func WithInContainer(inContainer bool) Option {
	return func(c *config) { c.inContainer = inContainer }
}

// WithProbeTimeout overrides the reachability prober's HEAD deadline.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithMenuPhaseBudget overrides the Menu Interactor's wall-clock budget for
// its hover/click exploration phase (default 15s).
func WithMenuPhaseBudget(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.menuPhaseBudget = d
		}
	}
}

// WithMenuCandidateCap overrides the Menu Interactor's per-page candidate
// limit (default 15).
func WithMenuCandidateCap(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.menuCandidateCap = n
		}
	}
}

// WithThumbnailCutoff overrides the page count after which the Crawl
// Orchestrator stops capturing thumbnails (default 10).
func WithThumbnailCutoff(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.thumbnailCutoff = n
		}
	}
}

func (c config) browserPoolConfig() browserpool.Config {
	bc := browserpool.DefaultConfig()
	bc.PoolSize = c.poolSize
	bc.Headless = c.headless
	return bc
}
