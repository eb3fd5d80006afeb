package authz

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

type contextKey struct{}

// ViewerFunc extracts the authenticated viewer from a request. It returns
// nil when the request carries no valid session. Session decoding itself
// belongs to the auth service; the guard only consumes its result.
type ViewerFunc func(*http.Request) *Viewer

// Guard enforces role requirements on HTTP routes.
type Guard struct {
	viewer ViewerFunc
}

// NewGuard creates a route guard backed by the given viewer extractor.
func NewGuard(fn ViewerFunc) *Guard {
	return &Guard{viewer: fn}
}

// WithViewer resolves the viewer once per request and stores it in the
// request context for handlers and nested guards.
func (g *Guard) WithViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := g.viewer(r)
		ctx := context.WithValue(r.Context(), contextKey{}, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles returns middleware that applies the guard decision for the
// given required roles: allow, redirect to login with the requested path
// captured, or redirect to the unauthorized page.
func (g *Guard) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := ViewerFrom(r.Context())
			if v == nil && g.viewer != nil {
				v = g.viewer(r)
			}

			decision := Authorize(v, roles, r.URL.Path)
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}

			target := decision.Redirect
			if decision.ReturnTo != "" {
				target += "?next=" + url.QueryEscape(decision.ReturnTo)
			}

			log.Debug().
				Str("path", r.URL.Path).
				Str("redirect", decision.Redirect).
				Bool("has_viewer", v != nil).
				Msg("route guard denied request")

			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}

// ViewerFrom returns the viewer stored by WithViewer, or nil.
func ViewerFrom(ctx context.Context) *Viewer {
	v, _ := ctx.Value(contextKey{}).(*Viewer)
	return v
}
