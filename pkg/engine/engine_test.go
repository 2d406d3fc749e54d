package engine

import (
	"testing"
	"time"

	"github.com/sitescout/discovery/internal/authflow"
	"github.com/sitescout/discovery/internal/orchestrator"
)

func TestApplyDefaults(t *testing.T) {
	req := StartDiscoveryRequest{ProjectID: "p1", RootURL: "https://shop.test"}
	req.ApplyDefaults()

	if req.DepthCap != 3 {
		t.Errorf("expected default DepthCap 3, got %d", req.DepthCap)
	}
	if req.PageCap != 100 {
		t.Errorf("expected default PageCap 100, got %d", req.PageCap)
	}
	if req.UseSitemap == nil || !*req.UseSitemap {
		t.Error("expected UseSitemap to default true")
	}
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	useSitemap := false
	req := StartDiscoveryRequest{DepthCap: 1, PageCap: 25, UseSitemap: &useSitemap}
	req.ApplyDefaults()

	if req.DepthCap != 1 || req.PageCap != 25 {
		t.Errorf("expected explicit values preserved, got depth=%d page=%d", req.DepthCap, req.PageCap)
	}
	if req.UseSitemap == nil || *req.UseSitemap {
		t.Error("expected explicit false UseSitemap preserved")
	}
}

func TestToAuthRecipeNil(t *testing.T) {
	if toAuthRecipe(nil) != nil {
		t.Error("expected nil recipe to convert to nil")
	}
}

func TestToAuthRecipeConvertsSteps(t *testing.T) {
	r := &LoginRecipe{
		LoginURL: "https://shop.test/login",
		Username: "alice",
		Password: "hunter2",
		Mode:     "auto",
		Steps: []LoginStep{
			{Kind: "type", Selector: "#user", Value: "{username}"},
			{Kind: "click", Selector: "#submit"},
		},
	}
	out := toAuthRecipe(r)
	if out == nil {
		t.Fatal("expected non-nil recipe")
	}
	if len(out.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(out.Steps))
	}
	if out.Mode != authflow.ModeAuto {
		t.Errorf("expected Mode=auto for mode=auto, got %s", out.Mode)
	}
}

func TestToAuthRecipeManualMode(t *testing.T) {
	r := &LoginRecipe{
		LoginURL:         "https://shop.test/login",
		Mode:             "manual",
		UsernameSelector: "#user",
		PasswordSelector: "#pass",
		SubmitSelector:   "#go",
	}
	out := toAuthRecipe(r)
	if out.Mode != authflow.ModeManual {
		t.Errorf("expected Mode=manual for mode=manual, got %s", out.Mode)
	}
	if out.ManualSelectors == nil {
		t.Fatal("expected ManualSelectors to be populated")
	}
	if out.ManualSelectors.UsernameSelector != "#user" || out.ManualSelectors.PasswordSelector != "#pass" || out.ManualSelectors.SubmitSelector != "#go" {
		t.Errorf("manual selectors not wired through: %+v", out.ManualSelectors)
	}
}

func TestToDiscoveryResultNil(t *testing.T) {
	out := toDiscoveryResult(nil)
	if out.Status != string(orchestrator.StatusFailed) {
		t.Errorf("expected failed status for nil result, got %s", out.Status)
	}
}

func TestToDiscoveryResultMapsPagesAndEdges(t *testing.T) {
	result := &orchestrator.Result{
		Status: orchestrator.StatusComplete,
		Pages: []orchestrator.DiscoveredPage{
			{URL: "https://shop.test/", Title: "Home"},
		},
		Failures: []orchestrator.Failure{{URL: "https://shop.test/broken", Reason: "timeout"}},
	}
	out := toDiscoveryResult(result)
	if len(out.Pages) != 1 || out.Pages[0].URL != "https://shop.test/" {
		t.Errorf("unexpected pages: %+v", out.Pages)
	}
	if len(out.Failures) != 1 {
		t.Errorf("expected 1 failure string, got %d", len(out.Failures))
	}
}

func TestIsLoopbackURL(t *testing.T) {
	cases := map[string]bool{
		"http://localhost:3000/":            true,
		"http://127.0.0.1:8080/x":           true,
		"http://host.docker.internal/":      true,
		"https://shop.test/":                false,
	}
	for url, want := range cases {
		if got := isLoopbackURL(url); got != want {
			t.Errorf("isLoopbackURL(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestDefaultConfigAndBrowserPoolConfig(t *testing.T) {
	cfg := defaultConfig()
	WithPoolSize(8)(&cfg)
	WithHeadless(false)(&cfg)

	bc := cfg.browserPoolConfig()
	if bc.PoolSize != 8 {
		t.Errorf("expected pool size 8, got %d", bc.PoolSize)
	}
	if bc.Headless {
		t.Error("expected headless false to carry through")
	}
}

func TestWithPoolSizeClampsToOne(t *testing.T) {
	cfg := defaultConfig()
	WithPoolSize(0)(&cfg)
	if cfg.poolSize != 1 {
		t.Errorf("expected pool size clamped to 1, got %d", cfg.poolSize)
	}
}

func TestWithMenuPhaseBudgetAndCandidateCap(t *testing.T) {
	cfg := defaultConfig()
	WithMenuPhaseBudget(30 * time.Second)(&cfg)
	WithMenuCandidateCap(25)(&cfg)
	if cfg.menuPhaseBudget != 30*time.Second {
		t.Errorf("expected menuPhaseBudget 30s, got %v", cfg.menuPhaseBudget)
	}
	if cfg.menuCandidateCap != 25 {
		t.Errorf("expected menuCandidateCap 25, got %d", cfg.menuCandidateCap)
	}
}

func TestWithMenuOverridesIgnoreNonPositive(t *testing.T) {
	cfg := defaultConfig()
	WithMenuPhaseBudget(0)(&cfg)
	WithMenuCandidateCap(-1)(&cfg)
	if cfg.menuPhaseBudget != 0 {
		t.Errorf("expected menuPhaseBudget left at zero, got %v", cfg.menuPhaseBudget)
	}
	if cfg.menuCandidateCap != 0 {
		t.Errorf("expected menuCandidateCap left at zero, got %d", cfg.menuCandidateCap)
	}
}

func TestWithThumbnailCutoff(t *testing.T) {
	cfg := defaultConfig()
	WithThumbnailCutoff(25)(&cfg)
	if cfg.thumbnailCutoff != 25 {
		t.Errorf("expected thumbnailCutoff 25, got %d", cfg.thumbnailCutoff)
	}
}
