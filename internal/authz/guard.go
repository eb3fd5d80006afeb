package authz

// Well-known redirect targets used by guard decisions.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Decision is the outcome of a route guard check. When Allow is false,
// Redirect names the target and ReturnTo carries the originally requested
// path (only for login redirects, so the console can come back after
// authentication).
type Decision struct {
	Allow    bool
	Redirect string
	ReturnTo string
}

// Authorize decides whether a viewer may render a route protected by the
// given required roles. It never fails: a missing viewer redirects to
// login with the current path captured, a viewer without a matching role
// redirects to the unauthorized page, anything else renders.
func Authorize(v *Viewer, required []Role, currentPath string) Decision {
	if v == nil {
		return Decision{Redirect: LoginPath, ReturnTo: currentPath}
	}
	if !HasAnyRole(v, required) {
		return Decision{Redirect: UnauthorizedPath}
	}
	return Decision{Allow: true}
}
