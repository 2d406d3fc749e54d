// Package browserpool wraps go-rod headless-Chrome instances behind a
// recycling pool, grounded on the teacher's internal/browser package
// (Browser/Pool), generalized from a one-shot page-analysis wrapper into a
// plain tab provider the rest of the discovery pipeline drives directly.
package browserpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config controls how browser instances are launched and recycled.
type Config struct {
	PoolSize          int
	Headless          bool
	Timeout           time.Duration
	ViewportWidth     int
	ViewportHeight    int
	RecycleAfter      int
	IgnoreHTTPSErrors bool
	Stealth           bool
}

// DefaultConfig returns the discovery engine's browser defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:          4,
		Headless:          true,
		Timeout:           30 * time.Second,
		ViewportWidth:     1280,
		ViewportHeight:    800,
		RecycleAfter:      75,
		IgnoreHTTPSErrors: true,
		Stealth:           true,
	}
}

// Instance wraps a single rod.Browser and tracks its page throughput so the
// pool can recycle it before memory/handle growth becomes a problem.
type Instance struct {
	browser   *rod.Browser
	launcherURL string
	config    Config
	mu        sync.Mutex
	pageCount int
}

// New launches a fresh browser instance per config.
func New(config Config) (*Instance, error) {
	l := launcher.New().Headless(config.Headless)
	if config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors", "true")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Timeout(config.Timeout)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &Instance{browser: b, launcherURL: controlURL, config: config}, nil
}

// Page opens a new tab, routed through go-rod/stealth when the instance is
// configured for stealth mode to reduce headless-automation fingerprints.
func (i *Instance) Page(ctx context.Context) (*rod.Page, error) {
	i.mu.Lock()
	i.pageCount++
	i.mu.Unlock()

	var page *rod.Page
	var err error
	if i.config.Stealth {
		page, err = stealth.Page(i.browser)
	} else {
		page, err = i.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	page = page.Context(ctx)
	if i.config.ViewportWidth > 0 && i.config.ViewportHeight > 0 {
		_ = page.SetViewport(&rod.Viewport{
			Width:  float64(i.config.ViewportWidth),
			Height: float64(i.config.ViewportHeight),
		})
	}
	return page, nil
}

// NeedsRecycle reports whether this instance has served enough pages to
// warrant a fresh browser process.
func (i *Instance) NeedsRecycle() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.config.RecycleAfter > 0 && i.pageCount >= i.config.RecycleAfter
}

// PageCount returns the number of pages served by this instance.
func (i *Instance) PageCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pageCount
}

// Close shuts down the underlying browser process.
func (i *Instance) Close() error {
	return i.browser.Close()
}
