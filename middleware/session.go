package middleware

import (
	"context"
	"net/http"
	"sync"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/gate"
)

// redirector turns the first navigation of a gate into an HTTP redirect.
type redirector struct {
	w    http.ResponseWriter
	r    *http.Request
	once sync.Once
}

func (rd *redirector) Navigate(_ context.Context, to gate.Route) {
	rd.once.Do(func() {
		http.Redirect(rd.w, rd.r, string(to), http.StatusFound)
	})
}

// Redirector returns a Navigator that answers r with a 302 to the first
// route it is asked to navigate to. Later navigations are ignored.
func Redirector(w http.ResponseWriter, r *http.Request) gate.Navigator {
	return &redirector{w: w, r: r}
}

// Gate returns the entry-page handler. Each request activates a gate against
// store, which redirects to routes.Login or routes.Authenticated, and
// deactivates it before returning.
func Gate(store *goSession.Store, routes gate.Routes, opts ...gate.Option) http.Handler {
	gateOpts := append([]gate.Option{gate.WithRoutes(routes)}, opts...)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		g := gate.New(store, Redirector(w, r), gateOpts...)
		g.Activate(r.Context())
		g.Deactivate()
	})
}

// RequireSession redirects to routes.Login when the store holds no token and
// otherwise serves next with the store in the request context.
func RequireSession(store *goSession.Store, routes gate.Routes) func(http.Handler) http.Handler {
	login := routes.Login
	if login == "" {
		login = gate.DefaultRoutes().Login
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}
			if _, ok := store.Token(); !ok {
				http.Redirect(w, r, string(login), http.StatusFound)
				return
			}

			ctx := goSession.WithStore(r.Context(), store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
