// Package detail drives the code-frequency view of a single repository.
package detail

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"githubexplorer/aggregate"
	"githubexplorer/github"
	"githubexplorer/logger"
	"githubexplorer/models"
	"githubexplorer/viewstate"
)

// View errors
var (
	ErrLoadInFlight = errors.New("a load is already in flight")
	ErrClosed       = errors.New("detail view is closed")
	ErrNoLocator    = errors.New("navigation has no code frequency locator")
)

// Notices shown when there is nothing to chart.
const (
	NoticeInsufficientHistory = "Not enough history to chart code frequency yet."
	NoticeComputing           = "GitHub is still computing statistics for this repository. Refresh in a moment."
)

// Navigation is the payload handed from a listing to the detail view.
type Navigation struct {
	FullName         string `json:"full_name"`
	CodeFrequencyURL string `json:"code_frequency_url"`
}

// LocatorFunc maps a repository full name to its code-frequency locator.
type LocatorFunc func(fullName string) string

// NavigateTo builds the navigation payload for repo.
func NavigateTo(repo models.Repository, locate LocatorFunc) Navigation {
	return Navigation{FullName: repo.FullName, CodeFrequencyURL: locate(repo.FullName)}
}

// SeriesFetcher loads a code-frequency series.
type SeriesFetcher interface {
	FetchCodeFrequency(ctx context.Context, locator string) ([]models.WeeklyDatum, error)
}

// Snapshot is everything needed to render the view.
type Snapshot struct {
	Navigation Navigation
	State      viewstate.State
	Result     aggregate.Result
}

// View holds one repository's series. Aggregates are derived on demand.
type View struct {
	nav    Navigation
	client SeriesFetcher
	agg    *aggregate.Aggregator
	window int

	mu       sync.Mutex
	machine  viewstate.Machine
	series   []models.WeeklyDatum
	inFlight bool
	closed   bool
	gen      uint64
}

// NewView returns an idle view for nav. window bounds the charted weeks.
func NewView(nav Navigation, client SeriesFetcher, agg *aggregate.Aggregator, window int) *View {
	return &View{nav: nav, client: client, agg: agg, window: window}
}

// Load fetches the series and updates the state.
func (v *View) Load(ctx context.Context) (Snapshot, error) {
	return v.load(ctx, "load")
}

// Refresh re-issues the same fetch. Nothing else about the view changes.
func (v *View) Refresh(ctx context.Context) (Snapshot, error) {
	return v.load(ctx, "refresh")
}

// Close discards any in-flight result and refuses further loads. A view
// left Loading falls back to Ready, or Idle when nothing was loaded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	if v.inFlight {
		v.machine.Fire(viewstate.Canceled(len(v.series) > 0))
	}
	v.inFlight = false
	v.gen++
}

// Snapshot returns the current state with a freshly computed aggregate.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		Navigation: v.nav,
		State:      v.machine.Current(),
		Result:     v.agg.Aggregate(v.series, v.window),
	}
}

func (v *View) load(ctx context.Context, op string) (Snapshot, error) {
	if v.nav.CodeFrequencyURL == "" {
		return v.Snapshot(), ErrNoLocator
	}

	v.mu.Lock()
	switch {
	case v.closed:
		defer v.mu.Unlock()
		return v.snapshotLocked(), ErrClosed
	case v.inFlight:
		defer v.mu.Unlock()
		return v.snapshotLocked(), ErrLoadInFlight
	}
	v.inFlight = true
	gen := v.gen
	v.machine.Fire(viewstate.Started())
	v.mu.Unlock()

	log := logger.WithContext(zap.String("repo", v.nav.FullName), zap.String("op", op))
	log.Info("Loading code frequency")

	series, err := v.client.FetchCodeFrequency(ctx, v.nav.CodeFrequencyURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		log.Debug("Discarding code frequency for closed view")
		return v.snapshotLocked(), ErrClosed
	}
	v.inFlight = false

	switch {
	case errors.Is(err, github.ErrStatsComputing):
		v.series = nil
		v.machine.Fire(viewstate.Succeeded(false, NoticeComputing))
		log.Info("Statistics not ready")
		return v.snapshotLocked(), nil
	case err != nil:
		v.machine.Fire(viewstate.Failed(err))
		log.Warn("Failed to load code frequency", zap.Error(err))
		return v.snapshotLocked(), err
	}

	v.series = series
	notice := ""
	if len(series) == 0 {
		notice = NoticeInsufficientHistory
	}
	v.machine.Fire(viewstate.Succeeded(len(series) > 0, notice))
	log.Info("Code frequency loaded", zap.Int("weeks", len(series)))
	return v.snapshotLocked(), nil
}
