// Package metricsx exposes discovery-engine metrics via Prometheus, in the
// style lueurxax-TelegramDigestBot and testforge-hq-testforge wire
// github.com/prometheus/client_golang into their services.
package metricsx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	PagesDiscovered  prometheus.Counter
	PagesFailed      prometheus.Counter
	EdgesPersisted   prometheus.Counter
	LoginAttempts    *prometheus.CounterVec
	CrawlsCompleted  *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	MenuPhaseSeconds prometheus.Histogram
	ActiveCrawls     prometheus.Gauge
}

// New registers and returns a Collector against the default registerer.
// Use NewWithRegisterer in tests to avoid collisions across cases.
func New() *Collector {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the engine's instruments against reg.
func NewWithRegisterer(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		PagesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "discovery_pages_discovered_total",
			Help: "Total number of distinct canonical pages discovered.",
		}),
		PagesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "discovery_pages_failed_total",
			Help: "Total number of per-page fetch failures.",
		}),
		EdgesPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "discovery_edges_persisted_total",
			Help: "Total number of non-external edges upserted.",
		}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_login_attempts_total",
			Help: "Login executor attempts, labeled by outcome.",
		}, []string{"outcome"}),
		CrawlsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_crawls_completed_total",
			Help: "Completed crawls, labeled by terminal status.",
		}, []string{"status"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "discovery_page_fetch_duration_seconds",
			Help:    "Time to navigate and stabilize a single page.",
			Buckets: prometheus.DefBuckets,
		}),
		MenuPhaseSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "discovery_menu_phase_duration_seconds",
			Help:    "Wall-clock time spent in the menu-interaction phase per page.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15},
		}),
		ActiveCrawls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "discovery_active_crawls",
			Help: "Number of crawls currently running.",
		}),
	}
}

// ObserveFetch records a page fetch duration.
func (c *Collector) ObserveFetch(d time.Duration) {
	if c == nil {
		return
	}
	c.FetchDuration.Observe(d.Seconds())
}
