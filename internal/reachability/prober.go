// Package reachability implements the Reachability Prober (spec §4.3): a
// HEAD-based pre-flight check that turns a dead root URL into an actionable
// client error before the heavier crawl begins. Grounded on the teacher's
// internal/errors network classification and internal/ratelimit's HTTP
// client construction for local-address TLS handling and its
// golang.org/x/time/rate pacing, carried here to gate the pre-flight HEAD
// the same way the teacher gates its crawl requests.
package reachability

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitescout/discovery/internal/errs"
)

const (
	defaultDeadline = 10 * time.Second
	probeRate       = 2 // HEAD probes per second this Prober will issue
	probeBurst      = 2
)

// Result is the outcome of a reachability probe.
type Result struct {
	Reachable bool
	Class     errs.NetClass
	Message   string
	Err       error
}

// Prober issues HEAD pre-flight checks, paced by a rate limiter so a crawl
// that probes the same root more than once (retries, redirects) never
// bursts requests at it.
type Prober struct {
	deadline time.Duration
	limiter  *rate.Limiter
}

// New creates a Prober with the given pre-flight deadline; a zero or
// negative deadline falls back to the spec's 10s default.
func New(deadline time.Duration) *Prober {
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	return &Prober{deadline: deadline, limiter: rate.NewLimiter(rate.Limit(probeRate), probeBurst)}
}

func isLocalHost(host string) bool {
	h := host
	if idx := strings.LastIndex(h, ":"); idx != -1 {
		h = h[:idx]
	}
	switch h {
	case "localhost", "127.0.0.1", "host.docker.internal", "::1":
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

// Probe issues a HEAD request against target and classifies the result.
// Any status code below 500 counts as reachable. DNS failure, connection
// refused, and timeout each produce a typed, actionable failure; any other
// error is treated as reachable to avoid false negatives against servers
// that reject HEAD.
func (p *Prober) Probe(ctx context.Context, target string) Result {
	parsed, err := url.Parse(target)
	if err != nil {
		return Result{Reachable: false, Class: errs.NetOther, Message: "invalid URL", Err: err}
	}

	client := &http.Client{Timeout: p.deadline}
	if isLocalHost(parsed.Host) {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return Result{Reachable: false, Class: errs.NetTimeout, Message: "pre-flight check did not get a turn before its deadline", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return Result{Reachable: false, Class: errs.NetOther, Message: "could not build request", Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		class := errs.ClassifyNetwork(err)
		switch class {
		case errs.NetDNSFailure, errs.NetConnectionRefused, errs.NetTimeout:
			return Result{
				Reachable: false,
				Class:     class,
				Message:   errs.ActionableMessage(class, parsed.Host),
				Err:       err,
			}
		default:
			// Passes through: HEAD-unfriendly servers should not be
			// treated as unreachable.
			return Result{Reachable: true, Class: errs.NetOther}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{
			Reachable: false,
			Class:     errs.NetOther,
			Message:   "server returned an error status during the pre-flight check",
		}
	}

	return Result{Reachable: true}
}
