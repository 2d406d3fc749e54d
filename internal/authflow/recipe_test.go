package authflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRecipe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipe.yaml")
	content := `
name: shop-test
login_url: https://shop.test/login
username: alice
password: secret
steps:
  - type: type
    selector: "input[name='email']"
    value: "{username}"
  - type: type
    selector: "input[name='password']"
    value: "{password}"
  - type: click
    selector: "button[type='submit']"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadRecipe(path)
	if err != nil {
		t.Fatalf("LoadRecipe: %v", err)
	}
	if r.Name != "shop-test" || r.LoginURL != "https://shop.test/login" {
		t.Errorf("unexpected recipe: %+v", r)
	}
	if len(r.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(r.Steps))
	}
	if r.Steps[0].Type != StepTypeType || r.Steps[2].Type != StepTypeClick {
		t.Errorf("unexpected step types: %+v", r.Steps)
	}
}

func TestLoadRecipeMissingLoginURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipe.yaml")
	if err := os.WriteFile(path, []byte("name: broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRecipe(path); err == nil {
		t.Fatal("expected error for missing login_url")
	}
}

func TestSubstitute(t *testing.T) {
	r := &Recipe{Username: "alice", Password: "s3cret"}
	got := r.substitute("user={username}&pass={password}")
	want := "user=alice&pass=s3cret"
	if got != want {
		t.Errorf("substitute() = %q, want %q", got, want)
	}
}

func TestStepWaitDuration(t *testing.T) {
	r := &Recipe{Steps: []Step{{Type: StepTypeWait, Duration: 3 * time.Second}}}
	if r.Steps[0].Duration != 3*time.Second {
		t.Errorf("expected duration to round-trip")
	}
}
