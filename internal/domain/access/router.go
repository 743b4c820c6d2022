// Package access decides whether a session may enter a role-gated page.
package access

import "reliefportal/internal/domain/account"

// Paths the router redirects to.
const (
	SignInPath = "/auth"
	HomePath   = "/"
)

// Decision is the action to take on route entry.
type Decision int

// Decision constants
const (
	Wait Decision = iota
	RedirectSignIn
	RedirectHome
	Allow
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case RedirectSignIn:
		return "redirect_sign_in"
	case RedirectHome:
		return "redirect_home"
	case Allow:
		return "allow"
	}
	return "unknown"
}

// RouteState is the slice of session state the router reads.
type RouteState struct {
	Loading bool
	HasUser bool
	Role    account.Role
}

// Decide maps session state and the page's required role to an action.
// A user with no role is unauthorized for every gated page.
// INVARIANT: pure; the same inputs always give the same Decision
func Decide(state RouteState, required account.Role) Decision {
	if state.Loading {
		return Wait
	}
	if !state.HasUser {
		return RedirectSignIn
	}
	if state.Role == account.NoRole || state.Role != required {
		return RedirectHome
	}
	return Allow
}

// Target returns the redirect path for d, or "" when d does not redirect.
func (d Decision) Target() string {
	switch d {
	case RedirectSignIn:
		return SignInPath
	case RedirectHome:
		return HomePath
	}
	return ""
}
