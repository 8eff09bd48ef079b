package query

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)

func newTestBuilder() *Builder {
	return NewBuilder(func() time.Time { return fixedNow }, time.UTC)
}

func TestCutoffDate(t *testing.T) {
	testCases := []struct {
		window TimeWindow
		days   int
	}{
		{OneWeek, 7},
		{TwoWeeks, 14},
		{OneMonth, 30},
		{SixMonths, 180},
		{OneYear, 365},
	}

	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	for _, tc := range testCases {
		t.Run(string(tc.window), func(t *testing.T) {
			got := CutoffDate(fixedNow, tc.window)
			assert.Equal(t, today.AddDate(0, 0, -tc.days), got)

			built := newTestBuilder().Build(Filters{Kind: Repositories, Window: tc.window})
			assert.Equal(t, "created:>"+today.AddDate(0, 0, -tc.days).Format("2006-01-02"), built.Query)
		})
	}
}

func TestCutoffDateUnknownWindowFallsBackToWeek(t *testing.T) {
	assert.Equal(t, CutoffDate(fixedNow, OneWeek), CutoffDate(fixedNow, "3decades"))
}

func TestCutoffDateUsesPinnedLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 23:30 UTC on the 10th is already the 11th in Tokyo.
	now := time.Date(2024, time.March, 10, 23, 30, 0, 0, time.UTC)
	b := NewBuilder(func() time.Time { return now }, tokyo)

	assert.Equal(t, "created:>2024-03-04", b.Build(Filters{Window: OneWeek}).Query)
}

func TestBuildRepositories(t *testing.T) {
	testCases := []struct {
		name    string
		filters Filters
		query   string
		sort    string
		order   string
	}{
		{
			name:    "no free text no language",
			filters: Filters{Kind: Repositories, Window: OneWeek},
			query:   "created:>2024-03-03",
			sort:    "stars",
			order:   "desc",
		},
		{
			name:    "free text is trimmed and prefixed",
			filters: Filters{Kind: Repositories, FreeText: "  react hooks ", Window: OneWeek, Sort: SortForks, Order: Asc},
			query:   "react hooks created:>2024-03-03",
			sort:    "forks",
			order:   "asc",
		},
		{
			name:    "whitespace free text is ignored",
			filters: Filters{Kind: Repositories, FreeText: "   ", Window: OneMonth},
			query:   "created:>2024-02-09",
			sort:    "stars",
			order:   "desc",
		},
		{
			name:    "language qualifier appended",
			filters: Filters{Kind: Repositories, FreeText: "cli", Window: TwoWeeks, Language: "go"},
			query:   "cli created:>2024-02-25 language:go",
			sort:    "stars",
			order:   "desc",
		},
		{
			name:    "updated forces descending",
			filters: Filters{Kind: Repositories, Window: OneWeek, Sort: SortUpdated, Order: Asc},
			query:   "created:>2024-03-03",
			sort:    "updated",
			order:   "desc",
		},
		{
			name:    "user sort key falls back to stars",
			filters: Filters{Kind: Repositories, Window: OneWeek, Sort: SortFollowers},
			query:   "created:>2024-03-03",
			sort:    "stars",
			order:   "desc",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			built := newTestBuilder().Build(tc.filters)
			assert.Equal(t, tc.query, built.Query)
			assert.Equal(t, tc.sort, built.Sort)
			assert.Equal(t, tc.order, built.Order)
		})
	}
}

func TestBuildUpdatedOrderIndependentWhenNotForced(t *testing.T) {
	b := newTestBuilder()
	b.ForceUpdatedDescending = false

	built := b.Build(Filters{Kind: Repositories, Window: OneWeek, Sort: SortUpdated, Order: Asc})
	assert.Equal(t, "asc", built.Order)
}

func TestBuildUsers(t *testing.T) {
	testCases := []struct {
		name    string
		filters Filters
		query   string
		sort    string
		order   string
	}{
		{
			name:    "empty text uses default query",
			filters: Defaults(Users),
			query:   DefaultUserQuery,
			sort:    "followers",
			order:   "desc",
		},
		{
			name:    "free text with language",
			filters: Filters{Kind: Users, FreeText: " location:berlin ", Language: "rust", Sort: SortJoined, Order: Asc},
			query:   "location:berlin language:rust",
			sort:    "joined",
			order:   "asc",
		},
		{
			name:    "repository sort key falls back to followers",
			filters: Filters{Kind: Users, FreeText: "octo", Sort: SortStars, Order: "sideways"},
			query:   "octo",
			sort:    "followers",
			order:   "desc",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			built := newTestBuilder().Build(tc.filters)
			assert.Equal(t, Users, built.Kind)
			assert.Equal(t, tc.query, built.Query)
			assert.Equal(t, tc.sort, built.Sort)
			assert.Equal(t, tc.order, built.Order)
		})
	}
}

func TestParseTimeWindow(t *testing.T) {
	w, err := ParseTimeWindow(" 6month ")
	require.NoError(t, err)
	assert.Equal(t, SixMonths, w)

	_, err = ParseTimeWindow("2024-01-01")
	assert.ErrorIs(t, err, ErrUnknownTimeWindow)
}
