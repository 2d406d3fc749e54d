package sitemapper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDiscoverFromWellKnownPath(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	// rewrite SITE_ROOT placeholder to the actual test server origin
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		body := strings.ReplaceAll(`<?xml version="1.0"?>
<urlset><url><loc>SITE_ROOT/about</loc></url><url><loc>SITE_ROOT/img.png</loc></url></urlset>`, "SITE_ROOT", srv.URL)
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(body))
	})

	in := New("test-agent")
	got := in.discover(context.Background(), srv.URL)

	if len(got) != 1 {
		t.Fatalf("expected 1 HTML page URL, got %d: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], "/about") {
		t.Errorf("expected /about, got %q", got[0])
	}
}

func TestDiscoverSitemapIndexExpansion(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		body := strings.ReplaceAll(`<?xml version="1.0"?>
<sitemapindex><sitemap><loc>SITE_ROOT/child-sitemap.xml</loc></sitemap></sitemapindex>`, "SITE_ROOT", srv.URL)
		w.Write([]byte(body))
	})
	mux.HandleFunc("/child-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		body := strings.ReplaceAll(`<?xml version="1.0"?>
<urlset><url><loc>SITE_ROOT/products</loc></url></urlset>`, "SITE_ROOT", srv.URL)
		w.Write([]byte(body))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for _, p := range wellKnownPaths[1:] {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	}

	in := New("test-agent")
	got := in.discover(context.Background(), srv.URL)

	if len(got) != 1 || !strings.HasSuffix(got[0], "/products") {
		t.Fatalf("expected sitemap index expansion to yield /products, got %v", got)
	}
}

func TestDiscoverRobotsDirective(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	for _, p := range wellKnownPaths {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	}
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nSitemap: " + srv.URL + "/custom-sitemap.xml\n"))
	})
	mux.HandleFunc("/custom-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		body := strings.ReplaceAll(`<?xml version="1.0"?>
<urlset><url><loc>SITE_ROOT/contact</loc></url></urlset>`, "SITE_ROOT", srv.URL)
		w.Write([]byte(body))
	})

	in := New("test-agent")
	got := in.discover(context.Background(), srv.URL)

	if len(got) != 1 || !strings.HasSuffix(got[0], "/contact") {
		t.Fatalf("expected robots.txt directive to yield /contact, got %v", got)
	}
}

func TestDiscoverAllMissingReturnsEmpty(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })

	in := New("test-agent")
	got := in.discover(context.Background(), srv.URL)
	if len(got) != 0 {
		t.Fatalf("expected no URLs when every branch fails, got %v", got)
	}
}

func TestDiscoverSkipsLocalAddresses(t *testing.T) {
	var mux http.ServeMux
	called := false
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	in := New("test-agent")
	got := in.Discover(context.Background(), srv.URL)
	if got != nil {
		t.Fatalf("expected nil for a loopback siteRoot, got %v", got)
	}
	if called {
		t.Error("expected no HTTP calls for a local-address siteRoot")
	}
}

func TestIsLocalAddress(t *testing.T) {
	cases := map[string]bool{
		"localhost":          true,
		"127.0.0.1":          true,
		"host.docker.internal": true,
		"10.0.0.5":           true,
		"192.168.1.1":        true,
		"169.254.1.1":        true,
		"shop.test":          false,
		"93.184.216.34":      false,
	}
	for host, want := range cases {
		if got := isLocalAddress(host); got != want {
			t.Errorf("isLocalAddress(%q) = %v, want %v", host, got, want)
		}
	}
}
