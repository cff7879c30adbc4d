package browser

import "errors"

var (
	// ErrBlocked is returned by Page.Goto when the site answered with a
	// checkpoint, captcha, or login wall instead of the requested page.
	ErrBlocked = errors.New("navigation blocked by the site")
	// ErrNotAuthenticated is returned when the operator confirmed a manual
	// sign-in but the session is still signed out.
	ErrNotAuthenticated = errors.New("session is not signed in")
	// ErrNoInput is returned when the operator input closed before the
	// sign-in was confirmed.
	ErrNoInput = errors.New("operator input closed")
)
