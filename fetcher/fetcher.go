// Package fetcher owns the fetch lifecycle of a paginated search listing.
package fetcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"githubexplorer/github"
	"githubexplorer/logger"
	"githubexplorer/models"
	"githubexplorer/query"
	"githubexplorer/viewstate"
)

// Fetcher errors
var (
	ErrFetchInFlight  = errors.New("a fetch is already in flight")
	ErrNoMorePages    = errors.New("no more pages")
	ErrStaleResult    = errors.New("result discarded after detach")
	ErrNothingToRetry = errors.New("no previous fetch to retry")
)

// Mode selects how a fetch result is merged.
type Mode int

const (
	// Initial loads page one on mount.
	Initial Mode = iota
	// Refilter reloads page one after a filter or search change.
	Refilter
	// LoadMore appends the next page.
	LoadMore
)

func (m Mode) String() string {
	switch m {
	case Initial:
		return "initial"
	case Refilter:
		return "refilter"
	case LoadMore:
		return "load_more"
	default:
		return "unknown"
	}
}

// SearchFunc fetches one search page.
type SearchFunc[T any] func(ctx context.Context, req github.SearchRequest) (*github.SearchResult[T], error)

// PostProcessFunc transforms a fetched page before it is applied. It must
// return as many items as it was given.
type PostProcessFunc[T any] func(ctx context.Context, items []T) []T

// Result is a copy of the fetcher's page and view state.
type Result[T any] struct {
	Page  models.Page[T]
	State viewstate.State
}

type request struct {
	mode  Mode
	built query.Built
}

// Fetcher accumulates search pages for one listing. At most one fetch runs
// at a time; a second caller is turned away with ErrFetchInFlight.
type Fetcher[T models.Item] struct {
	search      SearchFunc[T]
	postProcess PostProcessFunc[T]
	noun        string

	// DedupByID drops appended items whose id is already listed.
	DedupByID bool

	mu       sync.Mutex
	inFlight bool
	gen      uint64
	last     *request
	items    []T
	page     int
	total    int
	hasMore  bool
	machine  viewstate.Machine
}

// New returns a fetcher using search for page requests. noun names the
// collection in notices ("repositories", "users").
func New[T models.Item](search SearchFunc[T], noun string) *Fetcher[T] {
	return &Fetcher[T]{search: search, noun: noun}
}

// WithPostProcess installs a hook run on every fetched page, e.g. enrichment.
func (f *Fetcher[T]) WithPostProcess(fn PostProcessFunc[T]) *Fetcher[T] {
	f.postProcess = fn
	return f
}

// Fetch requests a page according to mode and merges it into the listing.
func (f *Fetcher[T]) Fetch(ctx context.Context, mode Mode, built query.Built) (Result[T], error) {
	return f.do(ctx, request{mode: mode, built: built})
}

// Retry re-issues the last attempted fetch with the same parameters.
func (f *Fetcher[T]) Retry(ctx context.Context) (Result[T], error) {
	f.mu.Lock()
	last := f.last
	f.mu.Unlock()

	if last == nil {
		return f.Snapshot(), ErrNothingToRetry
	}
	return f.do(ctx, *last)
}

// Detach discards any in-flight fetch: its result is dropped when it
// resolves and a new fetch may start immediately. A listing left Loading
// falls back to Ready, or Idle when nothing is listed.
func (f *Fetcher[T]) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if f.inFlight {
		f.machine.Fire(viewstate.Canceled(len(f.items) > 0))
	}
	f.inFlight = false
}

// Busy reports whether a fetch is in flight.
func (f *Fetcher[T]) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Snapshot returns a copy of the current page and state.
func (f *Fetcher[T]) Snapshot() Result[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Fetcher[T]) snapshotLocked() Result[T] {
	return Result[T]{
		Page: models.Page[T]{
			Items:      append([]T{}, f.items...),
			PageNumber: f.page,
			PageSize:   models.PageSize,
			TotalCount: f.total,
			HasMore:    f.hasMore,
		},
		State: f.machine.Current(),
	}
}

func (f *Fetcher[T]) do(ctx context.Context, req request) (Result[T], error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		logger.Debug("Dropping fetch while another is in flight",
			zap.String("noun", f.noun),
			zap.Stringer("mode", req.mode))
		return f.Snapshot(), ErrFetchInFlight
	}
	if req.mode == LoadMore && !f.hasMore {
		res := f.snapshotLocked()
		f.mu.Unlock()
		return res, ErrNoMorePages
	}

	page := 1
	if req.mode == LoadMore {
		page = f.page + 1
	}
	f.inFlight = true
	f.last = &req
	gen := f.gen
	f.machine.Fire(viewstate.Started())
	f.mu.Unlock()

	logger.Info("Fetching page",
		zap.String("noun", f.noun),
		zap.Stringer("mode", req.mode),
		zap.String("query", req.built.Query),
		zap.Int("page", page))

	result, err := f.search(ctx, github.SearchRequest{
		Query:   req.built.Query,
		Sort:    req.built.Sort,
		Order:   req.built.Order,
		Page:    page,
		PerPage: models.PageSize,
	})

	var items []T
	if err == nil {
		items = result.Items
		if f.postProcess != nil && len(items) > 0 {
			items = f.postProcess(ctx, items)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		logger.Debug("Discarding result of detached fetch",
			zap.String("noun", f.noun),
			zap.Stringer("mode", req.mode))
		return f.snapshotLocked(), ErrStaleResult
	}
	f.inFlight = false

	if err != nil {
		f.machine.Fire(viewstate.Failed(err))
		logger.Warn("Fetch failed",
			zap.String("noun", f.noun),
			zap.Stringer("mode", req.mode),
			zap.Int("page", page),
			zap.Error(err))
		return f.snapshotLocked(), err
	}

	f.apply(req.mode, page, result, items)
	return f.snapshotLocked(), nil
}

func (f *Fetcher[T]) apply(mode Mode, page int, result *github.SearchResult[T], items []T) {
	if mode == LoadMore {
		f.items = f.appendItems(items)
	} else {
		f.items = append([]T{}, items...)
	}
	f.page = page
	f.total = result.TotalCount
	// Heuristic: a full page suggests there is another one.
	f.hasMore = len(result.Items) == models.PageSize

	notice := ""
	if len(result.Items) == 0 {
		notice = "No " + f.noun + " found. Try adjusting your search criteria."
		if len(f.items) > 0 {
			notice = "No more " + f.noun + " to load."
		}
	}
	f.machine.Fire(viewstate.Succeeded(len(f.items) > 0, notice))

	logger.Info("Page applied",
		zap.String("noun", f.noun),
		zap.Stringer("mode", mode),
		zap.Int("page", page),
		zap.Int("total_count", f.total),
		zap.Int("listed", len(f.items)),
		zap.Bool("has_more", f.hasMore))
}

func (f *Fetcher[T]) appendItems(items []T) []T {
	if !f.DedupByID {
		return append(f.items, items...)
	}

	seen := make(map[int64]struct{}, len(f.items)+len(items))
	for _, it := range f.items {
		seen[it.Key()] = struct{}{}
	}
	out := f.items
	for _, it := range items {
		if _, dup := seen[it.Key()]; dup {
			continue
		}
		seen[it.Key()] = struct{}{}
		out = append(out, it)
	}
	return out
}
