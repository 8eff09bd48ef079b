// Package controller decides, one queued event at a time, when a listing
// re-fetches.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"githubexplorer/fetcher"
	"githubexplorer/logger"
	"githubexplorer/models"
	"githubexplorer/query"
)

// EventType names a user action on a listing.
type EventType int

const (
	Mount EventType = iota
	FilterChanged
	Search
	LoadMore
	Retry
	Clear
)

func (e EventType) String() string {
	switch e {
	case Mount:
		return "mount"
	case FilterChanged:
		return "filter_changed"
	case Search:
		return "search"
	case LoadMore:
		return "load_more"
	case Retry:
		return "retry"
	case Clear:
		return "clear"
	default:
		return "unknown"
	}
}

// Event is one queued action. FilterChanged events carry the edit to apply.
type Event struct {
	Type EventType
	edit func(*query.Filters)
}

// SetWindow changes the creation-date window.
func SetWindow(w query.TimeWindow) Event {
	return Event{Type: FilterChanged, edit: func(f *query.Filters) { f.Window = w }}
}

// SetLanguage changes the language qualifier. Empty clears it.
func SetLanguage(lang string) Event {
	return Event{Type: FilterChanged, edit: func(f *query.Filters) { f.Language = lang }}
}

// SetSort changes the sort key.
func SetSort(s query.SortKey) Event {
	return Event{Type: FilterChanged, edit: func(f *query.Filters) { f.Sort = s }}
}

// SetOrder changes the sort direction.
func SetOrder(o query.Order) Event {
	return Event{Type: FilterChanged, edit: func(f *query.Filters) { f.Order = o }}
}

// SetText edits the free text. It never fetches on its own; a Search event does.
func SetText(text string) Event {
	return Event{Type: FilterChanged, edit: func(f *query.Filters) { f.FreeText = text }}
}

// Outcome reports what handling one event (or one coalesced run of filter
// changes) did.
type Outcome[T any] struct {
	Event   EventType
	Fetched bool
	Result  fetcher.Result[T]
	Err     error
}

// Controller owns the filters of one listing and its fetcher.
type Controller[T models.Item] struct {
	builder  *query.Builder
	fetcher  *fetcher.Fetcher[T]
	defaults query.Filters

	mu       sync.Mutex
	filters  query.Filters
	built    query.Built
	mounted  bool
	queue    []Event
	draining bool
}

// New returns a controller starting from defaults.
func New[T models.Item](builder *query.Builder, f *fetcher.Fetcher[T], defaults query.Filters) *Controller[T] {
	return &Controller[T]{
		builder:  builder,
		fetcher:  f,
		defaults: defaults,
		filters:  defaults,
	}
}

// Filters returns the current filters.
func (c *Controller[T]) Filters() query.Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Snapshot returns the listing's current page and state.
func (c *Controller[T]) Snapshot() fetcher.Result[T] {
	return c.fetcher.Snapshot()
}

// Enqueue queues events for the next Drain. While a drain is running, filter
// edits are queued for it but fetch-issuing events are dropped and reported
// with fetcher.ErrFetchInFlight.
func (c *Controller[T]) Enqueue(events ...Event) []Outcome[T] {
	c.mu.Lock()
	dropped := c.admitLocked(events)
	c.mu.Unlock()
	return c.reportDropped(dropped)
}

// Pending reports the number of queued events.
func (c *Controller[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Drain handles queued events in order until the queue is empty. A run of
// consecutive FilterChanged events is applied as one edit and fetches at most
// once. Drain returns nothing if another drain is already running.
func (c *Controller[T]) Drain(ctx context.Context) []Outcome[T] {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return nil
	}
	c.draining = true
	c.mu.Unlock()
	return c.drain(ctx)
}

// Dispatch enqueues events and drains the queue. Called while another
// Dispatch is fetching, it returns at once: filter edits are left for the
// running drain and every other event is dropped with fetcher.ErrFetchInFlight.
func (c *Controller[T]) Dispatch(ctx context.Context, events ...Event) []Outcome[T] {
	c.mu.Lock()
	if c.draining {
		dropped := c.admitLocked(events)
		c.mu.Unlock()
		return c.reportDropped(dropped)
	}
	c.queue = append(c.queue, events...)
	c.draining = true
	c.mu.Unlock()
	return c.drain(ctx)
}

func (c *Controller[T]) drain(ctx context.Context) []Outcome[T] {
	var outcomes []Outcome[T]
	for {
		batch, ok := c.next()
		if !ok {
			return outcomes
		}
		outcomes = append(outcomes, c.handle(ctx, batch))
	}
}

// admitLocked queues events and returns those turned away by a running drain.
func (c *Controller[T]) admitLocked(events []Event) []Event {
	if !c.draining {
		c.queue = append(c.queue, events...)
		return nil
	}
	var dropped []Event
	for _, ev := range events {
		if ev.Type == FilterChanged {
			c.queue = append(c.queue, ev)
			continue
		}
		dropped = append(dropped, ev)
	}
	return dropped
}

func (c *Controller[T]) reportDropped(dropped []Event) []Outcome[T] {
	if len(dropped) == 0 {
		return nil
	}
	snap := c.fetcher.Snapshot()
	outcomes := make([]Outcome[T], 0, len(dropped))
	for _, ev := range dropped {
		logger.Debug("Dropping listing event while a fetch is in flight", zap.Stringer("event", ev.Type))
		outcomes = append(outcomes, Outcome[T]{Event: ev.Type, Result: snap, Err: fetcher.ErrFetchInFlight})
	}
	return outcomes
}

// Unmount discards any in-flight fetch. A later Mount starts over.
func (c *Controller[T]) Unmount() {
	c.mu.Lock()
	c.mounted = false
	c.queue = nil
	c.mu.Unlock()
	c.fetcher.Detach()
}

// next pops the head of the queue, folding following FilterChanged events
// into it. An empty queue ends the drain.
func (c *Controller[T]) next() ([]Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		c.draining = false
		return nil, false
	}
	n := 1
	if c.queue[0].Type == FilterChanged {
		for n < len(c.queue) && c.queue[n].Type == FilterChanged {
			n++
		}
	}
	batch := c.queue[:n:n]
	c.queue = c.queue[n:]
	return batch, true
}

func (c *Controller[T]) handle(ctx context.Context, batch []Event) Outcome[T] {
	typ := batch[0].Type
	out := Outcome[T]{Event: typ}

	switch typ {
	case Mount:
		c.mu.Lock()
		already := c.mounted
		c.mounted = true
		c.mu.Unlock()
		if already {
			break
		}
		out = c.fetch(ctx, out, fetcher.Initial)

	case FilterChanged:
		if c.applyEdits(batch) {
			out = c.fetch(ctx, out, fetcher.Refilter)
		}

	case Search:
		if strings.TrimSpace(c.Filters().FreeText) == "" {
			logger.Debug("Ignoring search without text")
			break
		}
		out = c.fetch(ctx, out, fetcher.Refilter)

	case LoadMore:
		c.mu.Lock()
		built := c.built
		c.mu.Unlock()
		out.Result, out.Err = c.fetcher.Fetch(ctx, fetcher.LoadMore, built)
		out.Fetched = fetched(out.Err)

	case Retry:
		out.Result, out.Err = c.fetcher.Retry(ctx)
		out.Fetched = fetched(out.Err)

	case Clear:
		c.mu.Lock()
		c.filters = c.defaults
		c.mu.Unlock()
		out = c.fetch(ctx, out, fetcher.Initial)

	default:
		out.Err = fmt.Errorf("unknown event type %d", typ)
	}

	if !out.Fetched && out.Err == nil {
		out.Result = c.fetcher.Snapshot()
	}
	logger.Debug("Handled listing event",
		zap.Stringer("event", typ),
		zap.Int("coalesced", len(batch)),
		zap.Bool("fetched", out.Fetched),
		zap.Error(out.Err))
	return out
}

// applyEdits applies a run of filter edits and reports whether a re-fetch is
// due: the listing is mounted and a fetch-relevant filter changed.
func (c *Controller[T]) applyEdits(batch []Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.filters
	for _, ev := range batch {
		if ev.edit != nil {
			ev.edit(&c.filters)
		}
	}
	after := c.filters

	// Free text is excluded: typing does not search.
	before.FreeText, after.FreeText = "", ""
	return c.mounted && before != after
}

func (c *Controller[T]) fetch(ctx context.Context, out Outcome[T], mode fetcher.Mode) Outcome[T] {
	c.mu.Lock()
	built := c.builder.Build(c.filters)
	c.mu.Unlock()

	out.Result, out.Err = c.fetcher.Fetch(ctx, mode, built)
	out.Fetched = fetched(out.Err)
	if out.Fetched {
		c.mu.Lock()
		c.built = built
		c.mu.Unlock()
	}
	return out
}

// fetched reports whether a fetch call reached the provider.
func fetched(err error) bool {
	return !errors.Is(err, fetcher.ErrFetchInFlight) &&
		!errors.Is(err, fetcher.ErrNoMorePages) &&
		!errors.Is(err, fetcher.ErrNothingToRetry)
}
