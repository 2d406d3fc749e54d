package authflow

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/sitescout/discovery/internal/canon"
	"github.com/sitescout/discovery/internal/logging"
)

const (
	selectorDeadline = 5 * time.Second
	interStepSleep   = 1 * time.Second
	waitStepDefault  = 2000 * time.Millisecond
	postLoginWait    = 15 * time.Second
	postLoginSettle  = 2 * time.Second
)

// fieldRole names which login-form element a type/click step targets, so
// Manual mode knows which ManualSelectors entry to use and Auto mode knows
// which Smart Detection list to fall back to.
type fieldRole int

const (
	roleUsername fieldRole = iota
	rolePassword
	roleSubmit
)

func (r fieldRole) String() string {
	switch r {
	case rolePassword:
		return "password"
	case roleSubmit:
		return "submit"
	default:
		return "username"
	}
}

// StepError reports a login recipe step that failed to resolve or act on
// its element, carrying the failing step's index per spec §4.4's "typed
// error with the failing step index and reason".
type StepError struct {
	StepIndex int
	Reason    string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("login step %d failed: %s", e.StepIndex, e.Reason)
}

// Result is the outcome of running a login recipe.
type Result struct {
	Success  bool
	FinalURL string
	Cookies  []*http.Cookie
}

// Executor drives a recipe against a single rod.Page.
type Executor struct {
	log *logging.Logger
}

// NewExecutor creates an Executor; a nil logger falls back to a no-op one.
func NewExecutor(log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Nop()
	}
	return &Executor{log: log}
}

// Execute navigates to the recipe's login URL and runs it to completion:
// its explicit step list if one is given, resolving each step's element
// per recipe.Mode (spec §4.4); otherwise a direct manual-selector fill for
// Manual recipes, or Smart Field/Submit Detection for Auto ones.
func (e *Executor) Execute(ctx context.Context, page *rod.Page, recipe *Recipe) (*Result, error) {
	if err := page.Context(ctx).Navigate(recipe.LoginURL); err != nil {
		return nil, fmt.Errorf("navigate to login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load login page: %w", err)
	}

	switch {
	case len(recipe.Steps) > 0:
		if err := e.runSteps(page, recipe); err != nil {
			return nil, err
		}
	case recipe.Mode == ModeManual:
		if err := e.runManualDirect(page, recipe); err != nil {
			return nil, err
		}
	default:
		if err := e.runSmartDetect(page, recipe); err != nil {
			return nil, err
		}
	}

	// Wait for a post-submit navigation; a single-page app may not
	// navigate at all, which is treated as success rather than a failure.
	e.waitForSettle(page)
	time.Sleep(postLoginSettle)

	return e.finish(page, recipe)
}

// waitForSettle polls for up to postLoginWait for the page's URL to change
// following the last login step. A single-page app that never navigates
// simply runs out the deadline, which is not treated as a failure.
func (e *Executor) waitForSettle(page *rod.Page) {
	startURL := ""
	if info, err := page.Info(); err == nil {
		startURL = info.URL
	}
	deadline := time.Now().Add(postLoginWait)
	for time.Now().Before(deadline) {
		if info, err := page.Info(); err == nil && info.URL != startURL {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// runSteps drives recipe's explicit ordered step list.
func (e *Executor) runSteps(page *rod.Page, recipe *Recipe) error {
	for i, step := range recipe.Steps {
		switch step.Type {
		case StepTypeType:
			role := roleForTypeStep(step)
			el, err := e.resolveField(page, recipe, step, role)
			if err != nil {
				return &StepError{StepIndex: i, Reason: err.Error()}
			}
			value := recipe.substitute(step.Value)
			if err := el.SelectAllText(); err == nil {
				_ = el.Input(value)
			}
		case StepTypeClick:
			el, err := e.resolveSubmit(page, recipe, step)
			if err != nil {
				return &StepError{StepIndex: i, Reason: err.Error()}
			}
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return &StepError{StepIndex: i, Reason: fmt.Sprintf("click failed: %v", err)}
			}
		case StepTypeWait:
			time.Sleep(waitDuration(step))
			continue
		}
		time.Sleep(interStepSleep)
	}
	return nil
}

// roleForTypeStep infers which field a type step targets from its
// substitution placeholder, since the recipe step shape (spec §3) carries
// no explicit role of its own.
func roleForTypeStep(step Step) fieldRole {
	if strings.Contains(step.Value, "{password}") {
		return rolePassword
	}
	return roleUsername
}

// waitDuration resolves a wait step's sleep duration: an explicit Duration
// wins, then step.Value parsed as milliseconds, then the spec's 2000ms
// default.
func waitDuration(step Step) time.Duration {
	if step.Duration > 0 {
		return step.Duration
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(step.Value)); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return waitStepDefault
}

// resolveField locates the element a type step should fill. Manual mode
// uses only recipe.ManualSelectors for role and fails if that selector is
// unset or absent from the page — no fallback. Auto mode tries the step's
// own selector first, then falls back to Smart Field Detection.
func (e *Executor) resolveField(page *rod.Page, recipe *Recipe, step Step, role fieldRole) (*rod.Element, error) {
	if recipe.Mode == ModeManual {
		sel := recipe.manualSelectorFor(role)
		if sel == "" {
			return nil, fmt.Errorf("manual mode: no manualSelectors.%sSelector configured", role)
		}
		el, err := page.Timeout(selectorDeadline).Element(sel)
		if err != nil {
			return nil, fmt.Errorf("manual mode: %s selector %q not found: %w", role, sel, err)
		}
		return el, nil
	}

	if step.Selector != "" {
		if el, err := page.Timeout(selectorDeadline).Element(step.Selector); err == nil {
			return el, nil
		}
	}

	selectors := usernameSelectors
	if role == rolePassword {
		selectors = passwordSelectors
	}
	if el := e.firstMatch(page, selectors); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("auto mode: could not locate %s field via selector or smart detection", role)
}

// resolveSubmit locates the element a click step should activate, under
// the same manual/auto resolution rules as resolveField.
func (e *Executor) resolveSubmit(page *rod.Page, recipe *Recipe, step Step) (*rod.Element, error) {
	if recipe.Mode == ModeManual {
		sel := recipe.manualSelectorFor(roleSubmit)
		if sel == "" {
			return nil, fmt.Errorf("manual mode: no manualSelectors.submitSelector configured")
		}
		el, err := page.Timeout(selectorDeadline).Element(sel)
		if err != nil {
			return nil, fmt.Errorf("manual mode: submit selector %q not found: %w", sel, err)
		}
		return el, nil
	}

	if step.Selector != "" {
		if el, err := page.Timeout(selectorDeadline).Element(step.Selector); err == nil {
			return el, nil
		}
	}

	if el := e.firstMatch(page, submitSelectors); el != nil {
		return el, nil
	}
	if el := e.findByVerb(page); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("auto mode: could not locate submit control via selector or smart detection")
}

// runManualDirect fills and submits a Manual recipe that carries no
// explicit step list, using ManualSelectors for all three roles with no
// Smart Detection fallback.
func (e *Executor) runManualDirect(page *rod.Page, recipe *Recipe) error {
	usernameEl, err := e.resolveField(page, recipe, Step{}, roleUsername)
	if err != nil {
		return &StepError{StepIndex: 0, Reason: err.Error()}
	}
	if err := usernameEl.SelectAllText(); err == nil {
		_ = usernameEl.Input(recipe.Username)
	}

	passwordEl, err := e.resolveField(page, recipe, Step{}, rolePassword)
	if err != nil {
		return &StepError{StepIndex: 1, Reason: err.Error()}
	}
	if err := passwordEl.SelectAllText(); err == nil {
		_ = passwordEl.Input(recipe.Password)
	}

	submitEl, err := e.resolveSubmit(page, recipe, Step{})
	if err != nil {
		return &StepError{StepIndex: 2, Reason: err.Error()}
	}
	if err := submitEl.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &StepError{StepIndex: 2, Reason: fmt.Sprintf("click failed: %v", err)}
	}
	return nil
}

// runSmartDetect fills and submits an Auto recipe that carries no explicit
// step list, using Smart Field/Submit Detection throughout.
func (e *Executor) runSmartDetect(page *rod.Page, recipe *Recipe) error {
	usernameEl := e.firstMatch(page, usernameSelectors)
	if usernameEl == nil {
		return &StepError{StepIndex: 0, Reason: "smart detect: could not locate username field"}
	}
	if err := usernameEl.SelectAllText(); err == nil {
		_ = usernameEl.Input(recipe.Username)
	}

	passwordEl := e.firstMatch(page, passwordSelectors)
	if passwordEl == nil {
		return &StepError{StepIndex: 1, Reason: "smart detect: could not locate password field"}
	}
	if err := passwordEl.SelectAllText(); err == nil {
		_ = passwordEl.Input(recipe.Password)
	}

	if submitEl := e.firstMatch(page, submitSelectors); submitEl != nil {
		_ = submitEl.Click(proto.InputMouseButtonLeft, 1)
		return nil
	}

	if submitEl := e.findByVerb(page); submitEl != nil {
		_ = submitEl.Click(proto.InputMouseButtonLeft, 1)
		return nil
	}

	// No submit control found by any heuristic: press Enter in the
	// password field, matching the teacher's formlogin.go fallback.
	_ = passwordEl.Type(input.Enter)
	return nil
}

func (e *Executor) firstMatch(page *rod.Page, selectors []string) *rod.Element {
	for _, sel := range selectors {
		el, err := page.Timeout(selectorDeadline / time.Duration(len(selectors))).Element(sel)
		if err == nil && el != nil {
			visible, verr := el.Visible()
			if verr == nil && !visible {
				continue
			}
			return el
		}
	}
	return nil
}

func (e *Executor) findByVerb(page *rod.Page) *rod.Element {
	candidates, err := page.Timeout(selectorDeadline).Elements("button, input[type='button'], a[role='button']")
	if err != nil {
		return nil
	}
	for _, el := range candidates {
		text, err := el.Text()
		if err != nil {
			continue
		}
		lower := strings.ToLower(strings.TrimSpace(text))
		for _, verb := range submitVerbs {
			if strings.Contains(lower, verb) {
				return el
			}
		}
	}
	return nil
}

func (e *Executor) finish(page *rod.Page, recipe *Recipe) (*Result, error) {
	info, err := page.Info()
	finalURL := recipe.LoginURL
	if err == nil {
		finalURL = info.URL
	}

	rodCookies, err := page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("extract cookies after login: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(rodCookies))
	for _, c := range rodCookies {
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}

	success := e.looksSuccessful(finalURL, recipe, cookies)
	e.log.Infof("login attempt for %s: success=%v final_url=%s", recipe.LoginURL, success, finalURL)

	return &Result{Success: success, FinalURL: finalURL, Cookies: cookies}, nil
}

func (e *Executor) looksSuccessful(finalURL string, recipe *Recipe, cookies []*http.Cookie) bool {
	if recipe.SuccessURL != "" {
		return canon.Canonicalize(finalURL) == canon.Canonicalize(recipe.SuccessURL)
	}
	if canon.IsLoginRedirect(recipe.LoginURL, finalURL, recipe.LoginURL) {
		return false
	}
	return len(cookies) > 0
}
