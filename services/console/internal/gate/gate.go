package gate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"adminconsole/services/console/internal/session"
)

// State is the gate's view of the session.
type State string

const (
	Checking State = "checking"
	Denied   State = "denied"
	Allowed  State = "allowed"
)

// DefaultLoginPath is the login entry point denied requests are sent to.
const DefaultLoginPath = "/login"

// Source is satisfied by *session.Store.
type Source interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (cancel func())
}

// Decision is the outcome for one requested location.
type Decision struct {
	State      State  `json:"view"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// Option configures a Gate.
type Option func(*Gate)

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) Option {
	return func(g *Gate) {
		if strings.HasPrefix(path, "/") {
			g.loginPath = path
		}
	}
}

// WithLogger sets the logger used for transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// Gate decides whether a protected view may render. It follows the session
// through its single subscription point.
type Gate struct {
	src       Source
	loginPath string
	logger    *slog.Logger

	mu       sync.RWMutex
	state    State
	observed bool
	cancel   func()
}

// New creates a gate tracking src.
func New(src Source, opts ...Option) *Gate {
	g := &Gate{
		src:       src,
		loginPath: DefaultLoginPath,
		logger:    slog.Default(),
		state:     Checking,
	}
	for _, opt := range opts {
		opt(g)
	}
	// Subscribe before reading the snapshot so no publish falls in between.
	// A publish observed meanwhile is newer than the seed and wins.
	g.cancel = src.Subscribe(g.observe)
	seed := StateOf(src.Snapshot())
	g.mu.Lock()
	if !g.observed {
		g.state = seed
	}
	g.mu.Unlock()
	return g
}

// StateOf maps a session snapshot to a gate state. Loading wins over
// everything else.
func StateOf(s session.Snapshot) State {
	switch {
	case s.Loading:
		return Checking
	case s.Authenticated():
		return Allowed
	default:
		return Denied
	}
}

func (g *Gate) observe(s session.Snapshot) {
	next := StateOf(s)
	g.mu.Lock()
	prev := g.state
	g.state = next
	g.observed = true
	g.mu.Unlock()
	if prev != next {
		g.logger.Info("access gate transition", "from", prev, "to", next)
	}
}

// State returns the current gate state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Close stops following the session.
func (g *Gate) Close() {
	if g.cancel != nil {
		g.cancel()
	}
}

// Decide returns what to do for a request to location.
func (g *Gate) Decide(location string) Decision {
	state := g.State()
	if state != Denied {
		return Decision{State: state}
	}
	return Decision{State: Denied, RedirectTo: LoginURL(g.loginPath, location)}
}

// LoginURL builds the login entry point carrying the originally requested
// location.
func LoginURL(loginPath, from string) string {
	if !IsLocalPath(from) {
		return loginPath
	}
	return loginPath + "?from=" + url.QueryEscape(from)
}

// IsLocalPath reports whether p is a path on this host. Only such values are
// honored as post-login destinations.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Host == "" && u.Scheme == ""
}

// Middleware applies the gate to every route behind it.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r.URL.RequestURI())
		switch d.State {
		case Checking:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(d)
		case Denied:
			http.Redirect(w, r, d.RedirectTo, http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
