package authflow

// Smart field/submit detection: when a recipe omits explicit selectors, the
// executor falls back to this ordered list of heuristics, generalized from
// the teacher's formlogin.go selector-list discovery (exact name/type
// attributes, then attribute-contains patterns) and widened with
// placeholder/aria-label and multilingual submit-verb matching for sites
// the teacher's narrower selector set would miss.

// usernameSelectors is tried in order; the first element that matches wins.
var usernameSelectors = []string{
	"input[name='username']",
	"input[name='email']",
	"input[type='email']",
	"input[autocomplete='username']",
	"input[type='text'][name*='user']",
	"input[type='text'][name*='email']",
	"input[type='text'][name*='login']",
	"input#username",
	"input#email",
	"input#login",
	"input[placeholder*='email' i]",
	"input[placeholder*='username' i]",
	"input[aria-label*='email' i]",
	"input[aria-label*='username' i]",
}

var passwordSelectors = []string{
	"input[name='password']",
	"input[type='password']",
	"input[autocomplete='current-password']",
	"input#password",
	"input[placeholder*='password' i]",
	"input[aria-label*='password' i]",
}

var submitSelectors = []string{
	"button[type='submit']",
	"input[type='submit']",
	"button[name*='login']",
	"button[id*='login']",
}

// submitVerbs are the case-insensitive button/link text fragments that
// identify a submit control when no attribute selector matched, covering
// the common non-English login button labels a single-locale selector list
// would miss.
var submitVerbs = []string{
	"log in", "login", "sign in", "signin", "submit", "continue",
	"anmelden", "connexion", "iniciar sesión", "accedi", "entrar",
}

// frameworkMarkers identify framework-managed form wrappers whose inputs are
// rendered with generated names/ids, so attribute selectors alone would
// miss them and a broader descendant search is needed instead.
var frameworkMarkers = []string{
	"[data-reactroot]", "[ng-app]", "[data-v-app]", "#__next", "#app",
}
