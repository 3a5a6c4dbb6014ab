package gate

import (
	"context"
	"log/slog"
	"sync"

	goSession "github.com/MrEthical07/goSession"
)

// State is the gate's last decision.
type State uint8

const (
	// StatePending means the gate has not evaluated since activation.
	StatePending State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// TokenSource is the part of the session store a gate reads.
// *goSession.Store implements it.
type TokenSource interface {
	Token() (string, bool)
	Subscribe(mask goSession.Field, fn func(goSession.Change)) (cancel func())
}

type tokenKey struct {
	value   string
	present bool
}

// Option configures a [Gate].
type Option func(*Gate)

// WithRoutes overrides [DefaultRoutes]. Empty fields keep their defaults.
func WithRoutes(r Routes) Option {
	return func(g *Gate) {
		g.routes = r.withDefaults()
	}
}

// WithMetrics records navigations into m, usually the store's own metrics.
func WithMetrics(m *goSession.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithLogger sets the logger for navigation decisions. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Gate routes the hosting view according to token presence.
//
// Evaluations and navigations are serialized, and Deactivate waits for an
// in-flight navigation to finish. A Navigator must not call back into the
// gate that invoked it.
type Gate struct {
	source  TokenSource
	nav     Navigator
	routes  Routes
	metrics *goSession.Metrics
	logger  *slog.Logger

	// navMu is held across evaluate and by Deactivate; it is taken before mu.
	navMu sync.Mutex

	mu         sync.Mutex
	active     bool
	generation uint64
	state      State
	last       tokenKey
	decided    bool
	ctx        context.Context
	cancel     func()
}

// New returns an inactive gate reading source and navigating through nav.
func New(source TokenSource, nav Navigator, opts ...Option) *Gate {
	g := &Gate{
		source: source,
		nav:    nav,
		routes: DefaultRoutes(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gate")
	return g
}

// Activate evaluates the current token, navigates, and starts following
// token changes. ctx is passed to every navigation made during this
// activation. Activating an active gate returns its state unchanged.
func (g *Gate) Activate(ctx context.Context) State {
	if ctx == nil {
		ctx = context.Background()
	}

	g.navMu.Lock()
	defer g.navMu.Unlock()

	g.mu.Lock()
	if g.active {
		st := g.state
		g.mu.Unlock()
		return st
	}
	g.active = true
	g.generation++
	gen := g.generation
	g.state = StatePending
	g.decided = false
	g.ctx = ctx
	g.cancel = g.source.Subscribe(goSession.FieldToken, func(goSession.Change) {
		g.navMu.Lock()
		defer g.navMu.Unlock()
		g.evaluate(gen)
	})
	g.mu.Unlock()

	return g.evaluate(gen)
}

// Deactivate stops following token changes. It waits for a navigation in
// progress; re-evaluations already scheduled on the store's scheduler become
// no-ops, so nothing navigates once Deactivate returns.
func (g *Gate) Deactivate() {
	g.navMu.Lock()
	defer g.navMu.Unlock()

	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return
	}
	g.active = false
	g.generation++
	cancel := g.cancel
	g.cancel = nil
	g.ctx = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the gate's last decision.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Active reports whether the gate is following token changes.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// evaluate reads the token at run time, so a burst of changes scheduled
// before it runs collapses into one decision on the latest value. The caller
// holds navMu.
func (g *Gate) evaluate(gen uint64) State {
	g.mu.Lock()
	if !g.active || gen != g.generation {
		st := g.state
		g.mu.Unlock()
		return st
	}

	token, ok := g.source.Token()
	key := tokenKey{value: token, present: ok}
	if g.decided && key == g.last {
		st := g.state
		g.mu.Unlock()
		return st
	}

	g.last = key
	g.decided = true
	to := g.routes.Login
	metric := goSession.MetricGateNavigateLogin
	g.state = StateUnauthenticated
	if ok {
		to = g.routes.Authenticated
		metric = goSession.MetricGateNavigateAuthenticated
		g.state = StateAuthenticated
	}
	st := g.state
	ctx := g.ctx
	g.mu.Unlock()

	g.metrics.Inc(metric)
	g.logger.Debug("gate navigating", "state", st.String(), "route", string(to))
	if g.nav != nil {
		g.nav.Navigate(ctx, to)
	}
	return st
}
