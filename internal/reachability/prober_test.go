package reachability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sitescout/discovery/internal/errs"
)

func TestProbeReachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(2 * time.Second)
	res := p.Probe(context.Background(), srv.URL)
	if !res.Reachable {
		t.Fatalf("expected reachable, got %+v", res)
	}
}

func TestProbeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(2 * time.Second)
	res := p.Probe(context.Background(), srv.URL)
	if res.Reachable {
		t.Fatalf("expected unreachable for 503, got %+v", res)
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := New(2 * time.Second)
	res := p.Probe(context.Background(), srv.URL)
	if res.Reachable {
		t.Fatalf("expected unreachable for closed server, got %+v", res)
	}
	if res.Class != errs.NetConnectionRefused {
		t.Errorf("expected NetConnectionRefused, got %v", res.Class)
	}
	if res.Message == "" {
		t.Error("expected an actionable message")
	}
}

func TestProbeDefaultDeadline(t *testing.T) {
	p := New(0)
	if p.deadline != defaultDeadline {
		t.Errorf("expected default deadline fallback, got %v", p.deadline)
	}
}

func TestIsLocalHost(t *testing.T) {
	cases := map[string]bool{
		"localhost:3000":            true,
		"127.0.0.1:8080":            true,
		"host.docker.internal:3000": true,
		"shop.test":                 false,
		"[::1]:3000":                false, // bracketed literal, not stripped by port-split alone
	}
	for h, want := range cases {
		if got := isLocalHost(h); got != want {
			t.Errorf("isLocalHost(%q) = %v, want %v", h, got, want)
		}
	}
}
