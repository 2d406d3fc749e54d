// Package authflow implements the Login Executor (spec §4.4): ordered
// recipe-driven form login with a smart-detection fallback when no recipe
// step is given for a field. Grounded on the teacher's
// internal/auth/formlogin.go (selector-list field discovery, cookie
// extraction, success heuristics), generalized from a fixed
// username/password/submit triple into an ordered step list loaded from
// YAML, per gopkg.in/yaml.v3 the teacher already depends on.
package authflow

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StepType names the kind of action a recipe step performs.
type StepType string

const (
	StepTypeType  StepType = "type"
	StepTypeClick StepType = "click"
	StepTypeWait  StepType = "wait"
)

// Step is one ordered action in a login recipe.
type Step struct {
	Type     StepType      `yaml:"type"`
	Selector string        `yaml:"selector,omitempty"`
	Value    string        `yaml:"value,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
}

// Mode selects how a type/click step resolves its target element (spec
// §4.4): Manual uses only the recipe's ManualSelectors, with no fallback;
// Auto tries the step's own selector first and falls back to smart
// field/submit detection.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// ManualSelectors pins the username/password/submit elements for a Manual
// recipe; Smart Field/Submit Detection never runs in this mode.
type ManualSelectors struct {
	UsernameSelector string `yaml:"username_selector,omitempty"`
	PasswordSelector string `yaml:"password_selector,omitempty"`
	SubmitSelector   string `yaml:"submit_selector,omitempty"`
}

// Recipe describes how to drive a site's login form.
type Recipe struct {
	Name            string           `yaml:"name"`
	LoginURL        string           `yaml:"login_url"`
	Username        string           `yaml:"username"`
	Password        string           `yaml:"password"`
	Steps           []Step           `yaml:"steps,omitempty"`
	Mode            Mode             `yaml:"mode"`
	ManualSelectors *ManualSelectors `yaml:"manual_selectors,omitempty"`
	SuccessURL      string           `yaml:"success_url,omitempty"`
}

// LoadRecipe reads a Recipe from a YAML file on disk.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe %s: %w", path, err)
	}

	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse recipe %s: %w", path, err)
	}
	if r.LoginURL == "" {
		return nil, fmt.Errorf("recipe %s: login_url is required", path)
	}
	if r.Mode == "" {
		r.Mode = ModeAuto
	}
	return &r, nil
}

// manualSelectorFor returns the configured manual selector for role, or ""
// if ManualSelectors is unset or doesn't cover that role.
func (r *Recipe) manualSelectorFor(role fieldRole) string {
	if r.ManualSelectors == nil {
		return ""
	}
	switch role {
	case rolePassword:
		return r.ManualSelectors.PasswordSelector
	case roleSubmit:
		return r.ManualSelectors.SubmitSelector
	default:
		return r.ManualSelectors.UsernameSelector
	}
}

// substitute replaces the {username}/{password} placeholders a recipe step
// value may contain.
func (r *Recipe) substitute(value string) string {
	out := strings.ReplaceAll(value, "{username}", r.Username)
	out = strings.ReplaceAll(out, "{password}", r.Password)
	return out
}
