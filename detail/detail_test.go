package detail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"githubexplorer/aggregate"
	"githubexplorer/github"
	"githubexplorer/models"
	"githubexplorer/viewstate"
)

const locator = "https://api.github.com/repos/octo/hello/stats/code_frequency"

// MockSeriesFetcher is a mock implementation of SeriesFetcher
type MockSeriesFetcher struct {
	mock.Mock
}

func (m *MockSeriesFetcher) FetchCodeFrequency(ctx context.Context, loc string) ([]models.WeeklyDatum, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WeeklyDatum), args.Error(1)
}

func nav() Navigation {
	return Navigation{FullName: "octo/hello", CodeFrequencyURL: locator}
}

func TestNavigateTo(t *testing.T) {
	client := github.NewClient("")
	n := NavigateTo(models.Repository{FullName: "octo/hello"}, client.CodeFrequencyURL)

	assert.Equal(t, "octo/hello", n.FullName)
	assert.Equal(t, locator, n.CodeFrequencyURL)
}

func TestLoadScenario(t *testing.T) {
	client := &MockSeriesFetcher{}
	client.On("FetchCodeFrequency", mock.Anything, locator).Return([]models.WeeklyDatum{
		{WeekStart: 1609459200, Additions: 120, Deletions: 40},
		{WeekStart: 1610064000, Additions: 0, Deletions: 0},
	}, nil)

	v := NewView(nav(), client, aggregate.New(time.UTC), 12)
	assert.Equal(t, viewstate.Idle, v.Snapshot().State.Kind)

	snap, err := v.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, viewstate.Ready, snap.State.Kind)
	assert.Equal(t, aggregate.Totals{Additions: 120, Deletions: 40}, snap.Result.Totals)
	assert.Equal(t, []int64{80, 0}, snap.Result.Net)
	assert.Equal(t, nav(), snap.Navigation)
	client.AssertExpectations(t)
}

func TestLoadOutcomes(t *testing.T) {
	testCases := []struct {
		name     string
		series   []models.WeeklyDatum
		err      error
		wantKind viewstate.Kind
		notice   string
		wantErr  error
	}{
		{
			name:     "empty series",
			series:   []models.WeeklyDatum{},
			wantKind: viewstate.Empty,
			notice:   NoticeInsufficientHistory,
		},
		{
			name:     "statistics computing",
			err:      github.ErrStatsComputing,
			wantKind: viewstate.Empty,
			notice:   NoticeComputing,
		},
		{
			name:     "rate limited",
			err:      &github.RateLimitError{},
			wantKind: viewstate.Error,
			notice:   "Rate limit exceeded. Please try again later.",
			wantErr:  github.ErrRateLimited,
		},
		{
			name:     "provider error",
			err:      &github.StatusError{StatusCode: 404},
			wantKind: viewstate.Error,
			notice:   "GitHub API error: 404",
			wantErr:  github.ErrProvider,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &MockSeriesFetcher{}
			if tc.err != nil {
				client.On("FetchCodeFrequency", mock.Anything, locator).Return(nil, tc.err)
			} else {
				client.On("FetchCodeFrequency", mock.Anything, locator).Return(tc.series, nil)
			}

			v := NewView(nav(), client, aggregate.New(time.UTC), 12)
			snap, err := v.Load(context.Background())

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantKind, snap.State.Kind)
			assert.Equal(t, tc.notice, snap.State.Notice)
			assert.Empty(t, snap.Result.Labels)
		})
	}
}

func TestRefreshReissuesSameFetch(t *testing.T) {
	client := &MockSeriesFetcher{}
	client.On("FetchCodeFrequency", mock.Anything, locator).Return(nil, github.ErrNetwork).Once()
	client.On("FetchCodeFrequency", mock.Anything, locator).Return([]models.WeeklyDatum{
		{WeekStart: 1609459200, Additions: 3, Deletions: 1},
	}, nil).Once()

	v := NewView(nav(), client, aggregate.New(time.UTC), 12)

	snap, err := v.Load(context.Background())
	assert.ErrorIs(t, err, github.ErrNetwork)
	assert.Equal(t, viewstate.Error, snap.State.Kind)

	snap, err = v.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, viewstate.Ready, snap.State.Kind)
	assert.Equal(t, nav(), snap.Navigation)
	client.AssertNumberOfCalls(t, "FetchCodeFrequency", 2)
}

func TestLoadWithoutLocator(t *testing.T) {
	v := NewView(Navigation{FullName: "octo/hello"}, &MockSeriesFetcher{}, aggregate.New(time.UTC), 12)
	_, err := v.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoLocator)
}

func TestCloseDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	client := &MockSeriesFetcher{}
	client.On("FetchCodeFrequency", mock.Anything, locator).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]models.WeeklyDatum{{WeekStart: 1609459200, Additions: 1}}, nil)

	v := NewView(nav(), client, aggregate.New(time.UTC), 12)

	done := make(chan error)
	go func() {
		_, err := v.Load(context.Background())
		done <- err
	}()
	<-entered

	_, err := v.Load(context.Background())
	assert.ErrorIs(t, err, ErrLoadInFlight)

	v.Close()
	assert.Equal(t, viewstate.Idle, v.Snapshot().State.Kind)
	close(release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, v.Snapshot().Result.Labels)
	assert.Equal(t, viewstate.Idle, v.Snapshot().State.Kind)

	_, err = v.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
