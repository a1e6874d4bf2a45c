package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long success and error toasts stay visible.
const DefaultTTL = 4 * time.Second

// Kind classifies a toast.
type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Toast is a short-lived user-visible message. Loading toasts have a zero
// ExpiresAt and stay until dismissed.
type Toast struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// EventType distinguishes a toast appearing from one being dismissed.
type EventType string

const (
	EventShow    EventType = "show"
	EventDismiss EventType = "dismiss"
)

// Event is delivered to every sink.
type Event struct {
	Type  EventType `json:"type"`
	Toast Toast     `json:"toast"`
}

// Notifier is the transient notification channel used by controllers.
type Notifier interface {
	Loading(msg string) string
	Success(msg string) string
	Error(msg string) string
	Dismiss(id string)
}

// Sink receives toast events. Sinks must not block for long; Publish is
// called synchronously from the notifying goroutine.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Option configures a Center.
type Option func(*Center)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Center) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSinks adds event sinks.
func WithSinks(sinks ...Sink) Option {
	return func(c *Center) { c.sinks = append(c.sinks, sinks...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// WithLogger sets the logger used for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Center) { c.logger = logger }
}

// Center keeps the active toasts and fans events out to sinks.
type Center struct {
	ttl    time.Duration
	now    func() time.Time
	sinks  []Sink
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]Toast
}

// NewCenter creates a toast center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
		active: make(map[string]Toast),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Center) Loading(msg string) string { return c.show(KindLoading, msg) }
func (c *Center) Success(msg string) string { return c.show(KindSuccess, msg) }
func (c *Center) Error(msg string) string   { return c.show(KindError, msg) }

// Dismiss removes a toast. Unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	toast, ok := c.active[id]
	delete(c.active, id)
	c.mu.Unlock()
	if ok {
		c.publish(Event{Type: EventDismiss, Toast: toast})
	}
}

// Active returns the visible toasts, oldest first. Expired toasts are dropped.
func (c *Center) Active() []Toast {
	now := c.now()
	c.mu.Lock()
	out := make([]Toast, 0, len(c.active))
	for id, toast := range c.active {
		if !toast.ExpiresAt.IsZero() && !now.Before(toast.ExpiresAt) {
			delete(c.active, id)
			continue
		}
		out = append(out, toast)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (c *Center) show(kind Kind, msg string) string {
	now := c.now()
	toast := Toast{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   msg,
		CreatedAt: now,
	}
	if kind != KindLoading {
		toast.ExpiresAt = now.Add(c.ttl)
	}
	c.mu.Lock()
	c.active[toast.ID] = toast
	c.mu.Unlock()
	c.publish(Event{Type: EventShow, Toast: toast})
	return toast.ID
}

func (c *Center) publish(ev Event) {
	for _, sink := range c.sinks {
		if err := sink.Publish(context.Background(), ev); err != nil {
			c.logger.Warn("toast sink failed", "kind", ev.Toast.Kind, "event", ev.Type, "err", err)
		}
	}
}
