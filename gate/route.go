package gate

import (
	"context"
	"sync"
)

// Route identifies a navigation target in the host's routing table.
type Route string

// Routes holds the two targets a gate can navigate to.
type Routes struct {
	Login         Route `yaml:"login"`
	Authenticated Route `yaml:"authenticated"`
}

// DefaultRoutes returns the booking site's routing table entries.
func DefaultRoutes() Routes {
	return Routes{
		Login:         "/login",
		Authenticated: "/admin",
	}
}

func (r Routes) withDefaults() Routes {
	def := DefaultRoutes()
	if r.Login == "" {
		r.Login = def.Login
	}
	if r.Authenticated == "" {
		r.Authenticated = def.Authenticated
	}
	return r
}

// Navigator performs a navigation decided by a gate.
type Navigator interface {
	Navigate(ctx context.Context, to Route)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, to Route)

// Navigate calls f(ctx, to).
func (f NavigatorFunc) Navigate(ctx context.Context, to Route) {
	f(ctx, to)
}

// History is a Navigator that records every navigation in order. Hosts
// without a real router (CLI, tests) use it as their routing table.
type History struct {
	mu     sync.Mutex
	routes []Route
}

// Navigate appends to.
func (h *History) Navigate(_ context.Context, to Route) {
	h.mu.Lock()
	h.routes = append(h.routes, to)
	h.mu.Unlock()
}

// Routes returns a copy of the recorded navigations.
func (h *History) Routes() []Route {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Route, len(h.routes))
	copy(out, h.routes)
	return out
}

// Current returns the last navigation, or "" when none happened.
func (h *History) Current() Route {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.routes) == 0 {
		return ""
	}
	return h.routes[len(h.routes)-1]
}

// Len returns the number of recorded navigations.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.routes)
}
