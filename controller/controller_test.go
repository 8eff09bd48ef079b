package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"githubexplorer/fetcher"
	"githubexplorer/github"
	"githubexplorer/models"
	"githubexplorer/query"
	"githubexplorer/viewstate"
)

var fixedNow = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

// recorder answers every search with a page built by respond.
type recorder struct {
	mu       sync.Mutex
	requests []github.SearchRequest
	respond  func(req github.SearchRequest) (*github.SearchResult[models.Repository], error)
}

func (r *recorder) search(ctx context.Context, req github.SearchRequest) (*github.SearchResult[models.Repository], error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	return r.respond(req)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) last() github.SearchRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func page(n int, total int) func(req github.SearchRequest) (*github.SearchResult[models.Repository], error) {
	return func(req github.SearchRequest) (*github.SearchResult[models.Repository], error) {
		items := make([]models.Repository, n)
		for i := range items {
			items[i] = models.Repository{ID: int64(req.Page*100 + i), FullName: fmt.Sprintf("o/r%d", i)}
		}
		return &github.SearchResult[models.Repository]{TotalCount: total, Items: items}, nil
	}
}

func newRepoController(rec *recorder) *Controller[models.Repository] {
	builder := query.NewBuilder(func() time.Time { return fixedNow }, time.UTC)
	f := fetcher.New(rec.search, "repositories")
	return New(builder, f, query.Defaults(query.Repositories))
}

func TestMountFetchesOnce(t *testing.T) {
	rec := &recorder{respond: page(20, 53)}
	c := newRepoController(rec)

	out := c.Dispatch(context.Background(), Event{Type: Mount})
	require.Len(t, out, 1)
	assert.True(t, out[0].Fetched)
	require.NoError(t, out[0].Err)

	assert.Equal(t, "created:>2024-03-03", rec.last().Query)
	assert.Equal(t, "stars", rec.last().Sort)
	assert.Equal(t, 1, rec.last().Page)
	assert.Equal(t, viewstate.Ready, out[0].Result.State.Kind)
	assert.True(t, out[0].Result.Page.HasMore)
	assert.Equal(t, 53, out[0].Result.Page.TotalCount)

	out = c.Dispatch(context.Background(), Event{Type: Mount})
	assert.False(t, out[0].Fetched)
	assert.Equal(t, 1, rec.count())
}

func TestFilterChangeBeforeMountDoesNotFetch(t *testing.T) {
	rec := &recorder{respond: page(5, 5)}
	c := newRepoController(rec)

	out := c.Dispatch(context.Background(), SetLanguage("go"))
	require.Len(t, out, 1)
	assert.False(t, out[0].Fetched)
	assert.Zero(t, rec.count())
	assert.Equal(t, "go", c.Filters().Language)

	c.Dispatch(context.Background(), Event{Type: Mount})
	assert.Equal(t, "created:>2024-03-03 language:go", rec.last().Query)
}

func TestCoalescesQueuedFilterChanges(t *testing.T) {
	rec := &recorder{respond: page(5, 5)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})

	c.Enqueue(SetWindow(query.OneMonth), SetLanguage("rust"), SetSort(query.SortForks))
	assert.Equal(t, 3, c.Pending())

	out := c.Drain(context.Background())
	require.Len(t, out, 1)
	assert.True(t, out[0].Fetched)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, "created:>2024-02-09 language:rust", rec.last().Query)
	assert.Equal(t, "forks", rec.last().Sort)
	assert.Zero(t, c.Pending())
}

func TestFilterRunsSplitByOtherEvents(t *testing.T) {
	rec := &recorder{respond: page(20, 100)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})

	out := c.Dispatch(context.Background(),
		SetLanguage("go"),
		Event{Type: LoadMore},
		SetLanguage("c"),
		SetSort(query.SortUpdated),
	)

	require.Len(t, out, 3)
	assert.Equal(t, FilterChanged, out[0].Event)
	assert.Equal(t, LoadMore, out[1].Event)
	assert.Equal(t, FilterChanged, out[2].Event)
	assert.Equal(t, 4, rec.count())
	assert.Equal(t, 1, rec.last().Page)
	assert.Equal(t, "updated", rec.last().Sort)
}

func TestTextEditAloneDoesNotFetch(t *testing.T) {
	rec := &recorder{respond: page(5, 5)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})

	out := c.Dispatch(context.Background(), SetText("kubernetes"))
	assert.False(t, out[0].Fetched)
	assert.Equal(t, 1, rec.count())

	out = c.Dispatch(context.Background(), Event{Type: Search})
	assert.True(t, out[0].Fetched)
	assert.Equal(t, "kubernetes created:>2024-03-03", rec.last().Query)
}

func TestUnchangedFilterDoesNotFetch(t *testing.T) {
	rec := &recorder{respond: page(5, 5)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})

	out := c.Dispatch(context.Background(), SetWindow(query.OneWeek))
	assert.False(t, out[0].Fetched)
	assert.Equal(t, 1, rec.count())
}

func TestSearchRequiresText(t *testing.T) {
	rec := &recorder{respond: page(5, 5)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})

	out := c.Dispatch(context.Background(), SetText("   "), Event{Type: Search})
	require.Len(t, out, 2)
	assert.False(t, out[1].Fetched)
	assert.Equal(t, 1, rec.count())
}

func TestLoadMoreUsesLastFetchedQuery(t *testing.T) {
	rec := &recorder{respond: page(20, 100)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})

	// Typed but never searched.
	out := c.Dispatch(context.Background(), SetText("draft"), Event{Type: LoadMore})

	require.Len(t, out, 2)
	assert.True(t, out[1].Fetched)
	assert.Equal(t, "created:>2024-03-03", rec.last().Query)
	assert.Equal(t, 2, rec.last().Page)
	assert.Len(t, out[1].Result.Page.Items, 40)
}

func TestLoadMoreWithoutMorePages(t *testing.T) {
	rec := &recorder{respond: page(5, 5)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})

	out := c.Dispatch(context.Background(), Event{Type: LoadMore})
	assert.False(t, out[0].Fetched)
	assert.ErrorIs(t, out[0].Err, fetcher.ErrNoMorePages)
	assert.Equal(t, 1, rec.count())
}

func TestRetryReissuesFailedFetch(t *testing.T) {
	fail := true
	rec := &recorder{}
	rec.respond = func(req github.SearchRequest) (*github.SearchResult[models.Repository], error) {
		if fail {
			return nil, &github.StatusError{StatusCode: 500}
		}
		return page(3, 3)(req)
	}
	c := newRepoController(rec)

	out := c.Dispatch(context.Background(), Event{Type: Mount})
	assert.ErrorIs(t, out[0].Err, github.ErrProvider)
	assert.Equal(t, viewstate.Error, out[0].Result.State.Kind)
	assert.Equal(t, "GitHub API error: 500", out[0].Result.State.Notice)

	fail = false
	out = c.Dispatch(context.Background(), Event{Type: Retry})
	require.NoError(t, out[0].Err)
	assert.Equal(t, viewstate.Ready, out[0].Result.State.Kind)
	assert.Equal(t, rec.requests[0], rec.requests[1])
}

func TestClearResetsFilters(t *testing.T) {
	rec := &recorder{respond: page(5, 5)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount})
	c.Dispatch(context.Background(), SetLanguage("go"), SetText("cli"), Event{Type: Search})

	out := c.Dispatch(context.Background(), Event{Type: Clear})
	require.Len(t, out, 1)
	assert.True(t, out[0].Fetched)
	assert.Equal(t, query.Defaults(query.Repositories), c.Filters())
	assert.Equal(t, "created:>2024-03-03", rec.last().Query)
	assert.Equal(t, 1, rec.last().Page)
}

func TestUnmountDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	rec := &recorder{respond: func(req github.SearchRequest) (*github.SearchResult[models.Repository], error) {
		entered <- struct{}{}
		<-release
		return page(5, 5)(req)
	}}
	c := newRepoController(rec)

	done := make(chan []Outcome[models.Repository])
	go func() { done <- c.Dispatch(context.Background(), Event{Type: Mount}) }()
	<-entered

	c.Unmount()
	close(release)

	out := <-done
	require.Len(t, out, 1)
	assert.True(t, errors.Is(out[0].Err, fetcher.ErrStaleResult))
	assert.Empty(t, c.Snapshot().Page.Items)
	assert.Equal(t, viewstate.Idle, c.Snapshot().State.Kind)
}

func TestEventsDuringFetchAreDroppedOrQueued(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var first sync.Once
	rec := &recorder{respond: func(req github.SearchRequest) (*github.SearchResult[models.Repository], error) {
		block := false
		first.Do(func() { block = true })
		if block {
			entered <- struct{}{}
			<-release
		}
		return page(20, 100)(req)
	}}
	c := newRepoController(rec)

	done := make(chan []Outcome[models.Repository])
	go func() { done <- c.Dispatch(context.Background(), Event{Type: Mount}) }()
	<-entered

	out := c.Dispatch(context.Background(), Event{Type: LoadMore})
	require.Len(t, out, 1)
	assert.Equal(t, LoadMore, out[0].Event)
	assert.False(t, out[0].Fetched)
	assert.ErrorIs(t, out[0].Err, fetcher.ErrFetchInFlight)
	assert.Equal(t, viewstate.Loading, out[0].Result.State.Kind)

	out = c.Dispatch(context.Background(), SetLanguage("go"), Event{Type: Retry})
	require.Len(t, out, 1)
	assert.Equal(t, Retry, out[0].Event)
	assert.ErrorIs(t, out[0].Err, fetcher.ErrFetchInFlight)
	assert.Equal(t, 1, c.Pending())

	close(release)
	out = <-done
	require.Len(t, out, 2)
	assert.Equal(t, Mount, out[0].Event)
	assert.Equal(t, FilterChanged, out[1].Event)
	assert.True(t, out[1].Fetched)

	assert.Equal(t, 2, rec.count())
	assert.Equal(t, "created:>2024-03-03 language:go", rec.last().Query)
	assert.Equal(t, 1, rec.last().Page)
	assert.Len(t, c.Snapshot().Page.Items, 20)
	assert.Zero(t, c.Pending())

	out = c.Dispatch(context.Background(), Event{Type: LoadMore})
	require.Len(t, out, 1)
	assert.True(t, out[0].Fetched)
	assert.Equal(t, 2, rec.last().Page)
}

func TestSummarize(t *testing.T) {
	rec := &recorder{respond: page(20, 4321)}
	c := newRepoController(rec)
	c.Dispatch(context.Background(), Event{Type: Mount}, SetLanguage("go"), SetWindow(query.SixMonths))

	s := c.Summarize()
	assert.Equal(t, 4321, s.Found)
	assert.Equal(t, 20, s.Showing)
	assert.Equal(t, SearchResultCap, s.Of)
	assert.Equal(t, []string{"Language: go", "Time: 6 Months"}, s.Chips)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "filter_changed", FilterChanged.String())
	assert.Equal(t, "unknown", EventType(42).String())
}
