package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for list operations.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kopkar_pagination_fetches_total",
		Help: "Total page fetches by kind (load, refresh, load_more) and outcome",
	}, []string{"kind", "outcome"})

	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kopkar_pagination_skipped_total",
		Help: "Total list operations skipped by the in-flight guard, by reason",
	}, []string{"reason"})
)

const (
	kindLoad     = "load"
	kindRefresh  = "refresh"
	kindLoadMore = "load_more"

	reasonInFlight  = "in_flight"
	reasonLoaded    = "loaded"
	reasonExhausted = "exhausted"
	reasonNotLoaded = "not_loaded"
)

// State is the lifecycle state of a List.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateRefreshing
	StateLoadingMore
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateRefreshing:
		return "refreshing"
	case StateLoadingMore:
		return "loading_more"
	default:
		return "unknown"
	}
}

// Page is one page of records. Next is the offset the following page
// starts at.
type Page[T any] struct {
	Items []T
	Next  int
}

// FetchFunc fetches the page starting at offset cursor.
type FetchFunc[T any] func(ctx context.Context, cursor int) (Page[T], error)

// Snapshot is a copy of the list state at one point in time.
type Snapshot[T any] struct {
	Items   []T
	Cursor  int
	HasMore bool
	State   State
	// Err is the error of the last failed fetch, cleared by the next
	// successful one.
	Err error
}

// Loading reports whether the initial load is in flight.
func (s Snapshot[T]) Loading() bool { return s.State == StateLoading }

// Refreshing reports whether a refresh is in flight.
func (s Snapshot[T]) Refreshing() bool { return s.State == StateRefreshing }

// LoadingMore reports whether a load-more is in flight.
func (s Snapshot[T]) LoadingMore() bool { return s.State == StateLoadingMore }

// Option configures a List.
type Option func(*listOptions)

type listOptions struct {
	logger zerolog.Logger
}

// WithLogger sets the logger used for page transitions.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *listOptions) {
		o.logger = logger
	}
}

// List drives a FetchFunc to implement infinite scroll with
// refresh-to-reset. All methods are safe for concurrent use; at most one
// fetch is in flight at a time, except that a refresh may overtake a
// load-more, whose result is then discarded.
type List[T any] struct {
	fetch  FetchFunc[T]
	logger zerolog.Logger

	mu         sync.Mutex
	items      []T
	cursor     int
	hasMore    bool
	state      State
	loaded     bool
	generation uint64
	err        error
	observer   func(Snapshot[T])
}

// New creates an idle, empty list.
func New[T any](fetch FetchFunc[T], opts ...Option) *List[T] {
	if fetch == nil {
		panic("pagination: nil FetchFunc")
	}

	o := listOptions{
		logger: log.With().Str("component", "pagination").Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &List[T]{
		fetch:  fetch,
		logger: o.logger,
		state:  StateIdle,
	}
}

// OnChange registers fn to be called with a snapshot after every state
// transition. fn runs outside the list lock.
func (l *List[T]) OnChange(fn func(Snapshot[T])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = fn
}

// Snapshot returns a copy of the current state.
func (l *List[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Items returns a copy of the accumulated items.
func (l *List[T]) Items() []T {
	return l.Snapshot().Items
}

// HasMore reports whether another page may exist.
func (l *List[T]) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Load performs the initial fetch at offset 0. It is a no-op returning
// false unless the list is idle.
func (l *List[T]) Load(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.state != StateIdle {
		reason := reasonInFlight
		if l.state == StateLoaded {
			reason = reasonLoaded
		}
		l.mu.Unlock()
		l.skip(kindLoad, reason)
		return false, nil
	}
	l.state = StateLoading
	gen := l.generation
	l.mu.Unlock()
	l.notify()

	_, err := l.run(ctx, kindLoad, 0, gen, true)
	return true, err
}

// Refresh refetches offset 0 and replaces the items wholesale. It is a
// no-op returning false while the initial load or another refresh is in
// flight. A load-more in flight when Refresh starts is discarded.
func (l *List[T]) Refresh(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.state == StateLoading || l.state == StateRefreshing {
		l.mu.Unlock()
		l.skip(kindRefresh, reasonInFlight)
		return false, nil
	}
	l.generation++
	l.state = StateRefreshing
	gen := l.generation
	l.mu.Unlock()
	l.notify()

	_, err := l.run(ctx, kindRefresh, 0, gen, true)
	return true, err
}

// LoadMore fetches the page at the current cursor and appends it. It is
// a no-op returning false when there is nothing more, when any fetch is
// in flight, or when the list has never loaded. It also returns false
// when a refresh overtook the fetch and its result was discarded.
func (l *List[T]) LoadMore(ctx context.Context) (bool, error) {
	l.mu.Lock()
	var reason string
	switch {
	case l.state != StateLoaded:
		reason = reasonInFlight
		if l.state == StateIdle {
			reason = reasonNotLoaded
		}
	case !l.hasMore:
		reason = reasonExhausted
	}
	if reason != "" {
		l.mu.Unlock()
		l.skip(kindLoadMore, reason)
		return false, nil
	}
	l.state = StateLoadingMore
	cursor := l.cursor
	gen := l.generation
	l.mu.Unlock()
	l.notify()

	return l.run(ctx, kindLoadMore, cursor, gen, false)
}

// run fetches the page at cursor and applies it. replace selects
// reset semantics (load, refresh) over append semantics (load-more).
func (l *List[T]) run(ctx context.Context, kind string, cursor int, gen uint64, replace bool) (bool, error) {
	start := time.Now()
	page, err := l.fetch(ctx, cursor)
	duration := time.Since(start)

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		fetchesTotal.WithLabelValues(kind, "stale").Inc()
		l.logger.Debug().
			Str("kind", kind).
			Int("cursor", cursor).
			Msg("Discarding page fetched before refresh")
		return false, nil
	}

	if err != nil {
		l.err = err
		if l.loaded {
			l.state = StateLoaded
		} else {
			l.state = StateIdle
		}
		l.mu.Unlock()

		fetchesTotal.WithLabelValues(kind, "error").Inc()
		l.logger.Warn().
			Err(err).
			Str("kind", kind).
			Int("cursor", cursor).
			Dur("duration", duration).
			Msg("Page fetch failed")
		l.notify()
		return false, err
	}

	if replace {
		l.items = append([]T(nil), page.Items...)
	} else {
		l.items = append(l.items, page.Items...)
	}
	// An empty page ends the list whatever Next says.
	l.hasMore = len(page.Items) > 0 && page.Next > cursor
	if page.Next > cursor {
		l.cursor = page.Next
	} else {
		l.cursor = cursor
	}
	l.loaded = true
	l.state = StateLoaded
	l.err = nil
	total := len(l.items)
	hasMore := l.hasMore
	l.mu.Unlock()

	fetchesTotal.WithLabelValues(kind, "ok").Inc()
	l.logger.Debug().
		Str("kind", kind).
		Int("cursor", cursor).
		Int("next", page.Next).
		Int("items", len(page.Items)).
		Int("total_items", total).
		Bool("has_more", hasMore).
		Dur("duration", duration).
		Msg("Page applied")
	l.notify()
	return true, nil
}

func (l *List[T]) skip(kind, reason string) {
	skippedTotal.WithLabelValues(reason).Inc()
	l.logger.Debug().
		Str("kind", kind).
		Str("reason", reason).
		Msg("List operation skipped")
}

func (l *List[T]) notify() {
	l.mu.Lock()
	fn := l.observer
	var snap Snapshot[T]
	if fn != nil {
		snap = l.snapshotLocked()
	}
	l.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func (l *List[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Items:   append([]T(nil), l.items...),
		Cursor:  l.cursor,
		HasMore: l.hasMore,
		State:   l.state,
		Err:     l.err,
	}
}
