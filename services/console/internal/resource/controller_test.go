package resource

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"adminconsole/pkg/listing"
	"adminconsole/services/console/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type userError struct{ msg string }

func (e userError) Error() string       { return "api: " + e.msg }
func (e userError) UserMessage() string { return e.msg }

// fakeSource serves a fixed collection of total items, paginated.
type fakeSource struct {
	mu    sync.Mutex
	total int
	err   error
	calls []ListParams
}

func (s *fakeSource) List(_ context.Context, p ListParams) (listing.Page[item], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, p)
	if s.err != nil {
		return listing.Page[item]{}, s.err
	}
	var items []item
	for i := (p.Page-1)*p.Limit + 1; i <= min(p.Page*p.Limit, s.total); i++ {
		items = append(items, item{ID: i, Name: "item"})
	}
	return listing.Page[item]{
		Items:      items,
		TotalItems: s.total,
		TotalPages: listing.TotalPages(s.total, p.Limit),
	}, nil
}

func (s *fakeSource) Calls() []ListParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ListParams(nil), s.calls...)
}

func newTestController(src Source[item], opts ...Option) (*Controller[item], *notify.Recorder) {
	rec := &notify.Recorder{}
	c := New(Config[item]{
		Name:     "items",
		Source:   src,
		Notifier: notify.NewCenter(notify.WithSinks(rec)),
		PageSize: 10,
	}, opts...)
	return c, rec
}

func TestFetchReplacesPage(t *testing.T) {
	src := &fakeSource{total: 23}
	c, _ := newTestController(src)

	require.NoError(t, c.Fetch(context.Background()))
	s := c.Snapshot()
	assert.Len(t, s.Items, 10)
	assert.Equal(t, 23, s.TotalItems)
	assert.Equal(t, 3, s.TotalPages)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	assert.Equal(t, ListParams{Page: 1, Limit: 10, Filters: map[string]string{}}, src.Calls()[0])
}

func TestFetchFailureSetsErrorAndClearsItems(t *testing.T) {
	src := &fakeSource{total: 5}
	c, _ := newTestController(src)
	require.NoError(t, c.Fetch(context.Background()))

	src.err = userError{msg: "Server sedang sibuk"}
	require.Error(t, c.Fetch(context.Background()))
	s := c.Snapshot()
	assert.Equal(t, "Server sedang sibuk", s.Error)
	assert.Empty(t, s.Items)
	assert.Len(t, src.Calls(), 2, "no automatic retry")

	src.err = errors.New("connection refused")
	require.Error(t, c.Fetch(context.Background()))
	assert.Equal(t, DefaultFetchError, c.Snapshot().Error)

	src.err = nil
	require.NoError(t, c.Fetch(context.Background()))
	assert.Empty(t, c.Snapshot().Error)
}

func TestFetchUndecodableItemsSetsError(t *testing.T) {
	raw := []byte(`{"items":[{"id":1,"name":"ok"},{"id":"dua","name":"bad"}],"pagination":{"total":2}}`)
	c, _ := newTestController(SourceFunc[item](func(context.Context, ListParams) (listing.Page[item], error) {
		return listing.Normalize[item](raw, 10)
	}))

	err := c.Fetch(context.Background())
	require.ErrorIs(t, err, listing.ErrItemDecode)
	s := c.Snapshot()
	assert.Equal(t, DefaultFetchError, s.Error)
	assert.Empty(t, s.Items)
	assert.Zero(t, s.TotalPages)
}

func TestSearchDebounceRapidChangesFetchOnce(t *testing.T) {
	clock := &fakeClock{}
	src := &fakeSource{total: 40}
	c, _ := newTestController(src, WithClock(clock))
	ctx := context.Background()
	require.NoError(t, c.SetPage(ctx, 1))
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.SetPage(ctx, 3))
	before := len(src.Calls())

	for _, term := range []string{"r", "ra", "rap", "rapa"} {
		c.SetSearch(ctx, term)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Len(t, src.Calls(), before, "no fetch inside the quiet period")
	assert.True(t, c.SearchPending())

	clock.Advance(DefaultDebounce)
	calls := src.Calls()
	require.Len(t, calls, before+1)
	assert.Equal(t, "rapa", calls[len(calls)-1].Search)
	assert.Equal(t, 1, calls[len(calls)-1].Page)
	assert.Equal(t, 1, c.Snapshot().Query.Page)
	assert.False(t, c.SearchPending())
}

func TestSearchDebounceSpacedChangesEachFetch(t *testing.T) {
	clock := &fakeClock{}
	src := &fakeSource{total: 5}
	c, _ := newTestController(src, WithClock(clock))

	for _, term := range []string{"a", "b", "c"} {
		c.SetSearch(context.Background(), term)
		clock.Advance(DefaultDebounce + time.Millisecond)
	}
	calls := src.Calls()
	require.Len(t, calls, 3)
	for i, term := range []string{"a", "b", "c"} {
		assert.Equal(t, term, calls[i].Search)
	}
}

func TestCloseCancelsPendingSearch(t *testing.T) {
	clock := &fakeClock{}
	src := &fakeSource{}
	c, _ := newTestController(src, WithClock(clock))
	c.SetSearch(context.Background(), "x")
	c.Close()
	clock.Advance(time.Second)
	assert.Empty(t, src.Calls())
}

func TestSetFilterResetsPage(t *testing.T) {
	src := &fakeSource{total: 50}
	c, _ := newTestController(src)
	ctx := context.Background()
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.SetPage(ctx, 4))
	require.NoError(t, c.SetFilter(ctx, "category", "Teknologi"))

	s := c.Snapshot()
	assert.Equal(t, 1, s.Query.Page)
	assert.Equal(t, map[string]string{"category": "Teknologi"}, s.Query.Filters)

	require.NoError(t, c.SetFilter(ctx, "category", ""))
	assert.Empty(t, c.Snapshot().Query.Filters)
	assert.Error(t, c.SetFilter(ctx, " ", "x"))
}

func TestSetPageClamps(t *testing.T) {
	src := &fakeSource{total: 25}
	c, _ := newTestController(src)
	ctx := context.Background()

	require.NoError(t, c.SetPage(ctx, 5))
	assert.Equal(t, 1, c.Snapshot().Query.Page, "before the first read only page 1 exists")
	require.NoError(t, c.SetPage(ctx, 9))
	assert.Equal(t, 3, c.Snapshot().Query.Page)
	require.NoError(t, c.SetPage(ctx, -2))
	assert.Equal(t, 1, c.Snapshot().Query.Page)
}

func TestFetchClampsWhenCollectionShrinks(t *testing.T) {
	src := &fakeSource{total: 35}
	c, _ := newTestController(src)
	ctx := context.Background()
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.SetPage(ctx, 4))

	src.total = 12
	before := len(src.Calls())
	require.NoError(t, c.Fetch(ctx))

	s := c.Snapshot()
	assert.Equal(t, 2, s.Query.Page)
	assert.Len(t, s.Items, 2)
	calls := src.Calls()
	require.Len(t, calls, before+2, "one extra read after clamping")
	assert.Equal(t, 2, calls[len(calls)-1].Page)

	src.total = 0
	require.NoError(t, c.Fetch(ctx))
	s = c.Snapshot()
	assert.Equal(t, 1, s.Query.Page)
	assert.Equal(t, 0, s.TotalPages)
}

// gatedSource blocks each read until released, so tests can control the
// order responses arrive in.
type gatedSource struct {
	release map[string]chan listing.Page[item]
	started chan string
}

func (g *gatedSource) List(ctx context.Context, p ListParams) (listing.Page[item], error) {
	g.started <- p.Search
	return <-g.release[p.Search], nil
}

func runStaleScenario(t *testing.T, opts ...Option) State[item] {
	t.Helper()
	src := &gatedSource{
		release: map[string]chan listing.Page[item]{"old": make(chan listing.Page[item]), "new": make(chan listing.Page[item])},
		started: make(chan string, 2),
	}
	c, _ := newTestController(src, opts...)
	clock := &fakeClock{}
	c.opts.clock = clock

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.SetSearch(context.Background(), "old"); clock.Advance(DefaultDebounce) }()
	require.Equal(t, "old", <-src.started)
	go func() { defer wg.Done(); c.SetSearch(context.Background(), "new"); clock.Advance(DefaultDebounce) }()
	require.Equal(t, "new", <-src.started)

	assert.True(t, c.Snapshot().Loading)
	src.release["new"] <- listing.Page[item]{Items: []item{{ID: 2, Name: "new"}}, TotalItems: 1, TotalPages: 1}
	src.release["old"] <- listing.Page[item]{Items: []item{{ID: 1, Name: "old"}}, TotalItems: 1, TotalPages: 1}
	wg.Wait()
	s := c.Snapshot()
	assert.False(t, s.Loading)
	return s
}

func TestStaleResponseOverwritesByDefault(t *testing.T) {
	s := runStaleScenario(t)
	require.Len(t, s.Items, 1)
	assert.Equal(t, "old", s.Items[0].Name)
}

func TestStaleResponseDiscarded(t *testing.T) {
	s := runStaleScenario(t, WithDiscardStale())
	require.Len(t, s.Items, 1)
	assert.Equal(t, "new", s.Items[0].Name)
}

func TestMutateSuccessRefetches(t *testing.T) {
	src := &fakeSource{total: 3}
	c, rec := newTestController(src)
	ctx := context.Background()
	require.NoError(t, c.Fetch(ctx))

	calls := 0
	err := c.Mutate(ctx, Messages{Pending: "Menyimpan...", Success: "Tersimpan"}, func(context.Context) error {
		calls++
		src.total = 4
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 4, c.Snapshot().TotalItems)
	assert.Equal(t, []string{"Menyimpan..."}, rec.Messages(notify.KindLoading))
	assert.Equal(t, []string{"Tersimpan"}, rec.Messages(notify.KindSuccess))

	events := rec.Events()
	assert.Equal(t, notify.EventDismiss, events[1].Type, "loading toast dismissed before the outcome")
}

func TestMutateFailureLeavesStateUntouched(t *testing.T) {
	src := &fakeSource{total: 14}
	c, rec := newTestController(src)
	ctx := context.Background()
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.SetFilter(ctx, "status", "active"))
	before, err := json.Marshal(c.Snapshot())
	require.NoError(t, err)
	readsBefore := len(src.Calls())

	err = c.Mutate(ctx, Messages{Failure: "Gagal menyimpan"}, func(context.Context) error {
		return userError{msg: "Judul sudah dipakai"}
	})
	require.Error(t, err)
	after, _ := json.Marshal(c.Snapshot())
	assert.Equal(t, string(before), string(after))
	assert.Len(t, src.Calls(), readsBefore, "no re-fetch after a failed mutation")
	assert.Equal(t, []string{"Judul sudah dipakai"}, rec.Messages(notify.KindError))

	_ = c.Mutate(ctx, Messages{Failure: "Gagal menyimpan"}, func(context.Context) error { return errors.New("boom") })
	assert.Equal(t, []string{"Judul sudah dipakai", "Gagal menyimpan"}, rec.Messages(notify.KindError))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	src := &fakeSource{total: 1}
	c, rec := newTestController(src)
	called := false
	call := func(context.Context) error { called = true; return nil }

	err := c.Delete(context.Background(), func() bool { return false }, Messages{}, call)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	err = c.Delete(context.Background(), nil, Messages{}, call)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.False(t, called)
	assert.Empty(t, rec.Events())
	assert.Empty(t, src.Calls())

	require.NoError(t, c.Delete(context.Background(), Confirmed, Messages{Success: "Dihapus"}, call))
	assert.True(t, called)
	assert.Len(t, src.Calls(), 1)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	src := &fakeSource{total: 2}
	c, _ := newTestController(src)
	require.NoError(t, c.SetFilter(context.Background(), "status", "active"))
	s := c.Snapshot()
	s.Items[0].Name = "mutated"
	s.Query.Filters["status"] = "inactive"

	again := c.Snapshot()
	assert.Equal(t, "item", again.Items[0].Name)
	assert.Equal(t, "active", again.Query.Filters["status"])
}
