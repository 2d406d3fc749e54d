// Package config loads engine-wide configuration from the environment,
// in the env-struct-tag style lueurxax-TelegramDigestBot uses
// github.com/caarlos0/env/v11 for.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds deployment-wide settings for the discovery engine. Per-call
// settings (depth cap, page cap, sitemap use, recipe) arrive in
// pkg/engine.StartDiscoveryRequest, whose ApplyDefaults fills unset caps
// with 3 and 100; DefaultDepthCap and DefaultPageCap are not read by any
// other package.
type Config struct {
	PostgresDSN          string        `env:"DISCOVERY_POSTGRES_DSN"`
	BoltStatePath        string        `env:"DISCOVERY_BOLT_STATE_PATH" envDefault:"./discovery-state.db"`
	UsePostgres          bool          `env:"DISCOVERY_USE_POSTGRES" envDefault:"false"`
	DefaultDepthCap      int           `env:"DISCOVERY_DEFAULT_DEPTH_CAP" envDefault:"3"`
	DefaultPageCap       int           `env:"DISCOVERY_DEFAULT_PAGE_CAP" envDefault:"100"`
	ThumbnailCutoff      int           `env:"DISCOVERY_THUMBNAIL_CUTOFF" envDefault:"10"`
	MenuPhaseBudget      time.Duration `env:"DISCOVERY_MENU_PHASE_BUDGET" envDefault:"15s"`
	MenuCandidateCap     int           `env:"DISCOVERY_MENU_CANDIDATE_CAP" envDefault:"15"`
	ReachabilityDeadline time.Duration `env:"DISCOVERY_REACHABILITY_DEADLINE" envDefault:"10s"`
	BrowserPoolSize      int           `env:"DISCOVERY_BROWSER_POOL_SIZE" envDefault:"4"`
	HeadlessBrowser      bool          `env:"DISCOVERY_HEADLESS" envDefault:"true"`
	// InContainer is passed on as the engine's in-container flag, which only
	// turns off the local-target hint (the Page Fetcher's doubled
	// timeouts). Navigation targets are not rewritten to
	// host.docker.internal; HostForNavigation is not called anywhere.
	InContainer bool   `env:"DISCOVERY_IN_CONTAINER" envDefault:"false"`
	LogLevel    string `env:"DISCOVERY_LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"DISCOVERY_LOG_PRETTY" envDefault:"true"`
	MetricsPort int    `env:"DISCOVERY_METRICS_PORT" envDefault:"9090"`
}

// Load reads Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HostForNavigation rewrites a loopback host for in-container navigation, as
// described by spec §6: the canonicalizer still folds all three spellings
// to one host for deduplication purposes regardless of this rewrite.
func (c *Config) HostForNavigation(host string) string {
	if !c.InContainer {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return "host.docker.internal"
	default:
		return host
	}
}
