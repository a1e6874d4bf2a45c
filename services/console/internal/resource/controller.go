package resource

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"adminconsole/pkg/listing"
	"adminconsole/services/console/internal/notify"
)

const (
	// DefaultDebounce is the quiet period after the last search change.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultFetchError is shown when a failed read carries no message.
	DefaultFetchError = "Gagal memuat data"
)

// Query holds the user-controlled list parameters. Page is 1-based.
type Query struct {
	Search  string            `json:"search"`
	Filters map[string]string `json:"filters"`
	Page    int               `json:"page"`
}

// ListParams is what a Source receives for one read.
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Filters map[string]string
}

// State is the page state of one list view.
type State[T any] struct {
	Query      Query  `json:"query"`
	Items      []T    `json:"items"`
	TotalItems int    `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
	Loading    bool   `json:"loading"`
	Error      string `json:"error,omitempty"`
}

// Source reads one page of items. Implementations normalize the remote
// response with listing.Normalize before returning.
type Source[T any] interface {
	List(ctx context.Context, p ListParams) (listing.Page[T], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, p ListParams) (listing.Page[T], error)

func (f SourceFunc[T]) List(ctx context.Context, p ListParams) (listing.Page[T], error) {
	return f(ctx, p)
}

// FetchObserver is told about every completed read.
type FetchObserver interface {
	ObserveFetch(resource string, err error, elapsed time.Duration)
}

// Config wires a Controller.
type Config[T any] struct {
	// Name labels logs and metrics, e.g. "forum".
	Name     string
	Source   Source[T]
	Notifier notify.Notifier
	PageSize int
	// FetchError is the fallback page error; DefaultFetchError when empty.
	FetchError string
	Observer   FetchObserver
	Logger     *slog.Logger
}

type options struct {
	debounce     time.Duration
	clock        Clock
	discardStale bool
}

// Option tunes controller behavior.
type Option func(*options)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithClock replaces the timer source used for search debounce.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDiscardStale drops read responses that arrive after a newer read was
// issued. Without it, a slow earlier response may overwrite newer state.
func WithDiscardStale() Option {
	return func(o *options) { o.discardStale = true }
}

// Controller runs the fetch, search, filter, paginate and mutate cycle for
// one collection view.
type Controller[T any] struct {
	name       string
	src        Source[T]
	notifier   notify.Notifier
	pageSize   int
	fetchError string
	observer   FetchObserver
	logger     *slog.Logger
	opts       options

	mu        sync.Mutex
	state     State[T]
	inflight  int
	issued    uint64
	searchGen uint64
	timer     Timer
}

// New creates a controller at page 1 with no search or filters. It does not
// fetch; call Fetch when the view is shown.
func New[T any](cfg Config[T], opts ...Option) *Controller[T] {
	o := options{debounce: DefaultDebounce, clock: realClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = listing.DefaultPageSize
	}
	fetchError := strings.TrimSpace(cfg.FetchError)
	if fetchError == "" {
		fetchError = DefaultFetchError
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller[T]{
		name:       cfg.Name,
		src:        cfg.Source,
		notifier:   cfg.Notifier,
		pageSize:   pageSize,
		fetchError: fetchError,
		observer:   cfg.Observer,
		logger:     logger.With("resource", cfg.Name),
		opts:       o,
		state: State[T]{
			Query: Query{Filters: map[string]string{}, Page: 1},
			Items: []T{},
		},
	}
}

// Name returns the resource label.
func (c *Controller[T]) Name() string { return c.name }

// PageSize returns the fixed page size.
func (c *Controller[T]) PageSize() int { return c.pageSize }

// Snapshot returns a deep copy of the current state.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyState()
}

func (c *Controller[T]) copyState() State[T] {
	s := c.state
	s.Query.Filters = maps.Clone(c.state.Query.Filters)
	s.Items = slices.Clone(c.state.Items)
	return s
}

// Fetch reads the current page. On failure the page error is set and the item
// list cleared; there is no automatic retry. When the response shows the
// current page is past the end, the page is clamped and read once more.
func (c *Controller[T]) Fetch(ctx context.Context) error {
	return c.fetch(ctx, true)
}

func (c *Controller[T]) fetch(ctx context.Context, allowClampRefetch bool) error {
	c.mu.Lock()
	q := c.state.Query
	params := ListParams{
		Page:    q.Page,
		Limit:   c.pageSize,
		Search:  q.Search,
		Filters: maps.Clone(q.Filters),
	}
	c.issued++
	seq := c.issued
	c.inflight++
	c.state.Loading = true
	c.mu.Unlock()

	start := time.Now()
	page, err := c.src.List(ctx, params)
	if c.observer != nil {
		c.observer.ObserveFetch(c.name, err, time.Since(start))
	}

	c.mu.Lock()
	c.inflight--
	c.state.Loading = c.inflight > 0
	if c.opts.discardStale && seq != c.issued {
		c.mu.Unlock()
		c.logger.Debug("stale list response dropped", "seq", seq, "latest", c.issued)
		return err
	}
	if err != nil {
		c.state.Error = MessageFor(err, c.fetchError)
		c.state.Items = []T{}
		c.mu.Unlock()
		c.logger.Warn("list fetch failed", "page", params.Page, "err", err)
		return err
	}
	items := page.Items
	if items == nil {
		items = []T{}
	}
	c.state.Error = ""
	c.state.Items = items
	c.state.TotalItems = page.TotalItems
	c.state.TotalPages = page.TotalPages
	clamped := false
	if last := max(page.TotalPages, 1); c.state.Query.Page > last {
		c.state.Query.Page = last
		clamped = true
	}
	c.mu.Unlock()

	if clamped && allowClampRefetch {
		return c.fetch(ctx, false)
	}
	return nil
}

// SetSearch records a search term. The term is applied, the page reset to 1
// and one read issued only after the quiet period passes with no further
// change.
func (c *Controller[T]) SetSearch(ctx context.Context, term string) {
	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchGen++
	gen := c.searchGen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.opts.clock.AfterFunc(c.opts.debounce, func() {
		c.applySearch(ctx, gen, term)
	})
}

func (c *Controller[T]) applySearch(ctx context.Context, gen uint64, term string) {
	c.mu.Lock()
	if gen != c.searchGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.state.Query.Search = strings.TrimSpace(term)
	c.state.Query.Page = 1
	c.mu.Unlock()
	_ = c.Fetch(ctx)
}

// SearchPending reports whether a debounced search has not fired yet.
func (c *Controller[T]) SearchPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// SetFilter sets (or with an empty value, clears) a categorical filter,
// resets to page 1 and reads.
func (c *Controller[T]) SetFilter(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("filter key is required")
	}
	c.mu.Lock()
	if value == "" {
		delete(c.state.Query.Filters, key)
	} else {
		c.state.Query.Filters[key] = value
	}
	c.state.Query.Page = 1
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// SetPage moves to page n, clamped into [1, max(totalPages,1)], and reads.
func (c *Controller[T]) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	c.state.Query.Page = min(max(n, 1), max(c.state.TotalPages, 1))
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// Close stops a pending search timer.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
