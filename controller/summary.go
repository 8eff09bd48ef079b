package controller

import (
	"fmt"

	"githubexplorer/query"
)

// SearchResultCap is the most results the search API will page through.
const SearchResultCap = 1000

// Summary describes the listing above its results.
type Summary struct {
	Found   int
	Showing int
	Of      int
	Chips   []string
}

// Summarize reports counts and the non-default filters in effect.
func (c *Controller[T]) Summarize() Summary {
	snap := c.fetcher.Snapshot()
	f := c.Filters()

	s := Summary{
		Found:   snap.Page.TotalCount,
		Showing: len(snap.Page.Items),
		Of:      min(snap.Page.TotalCount, SearchResultCap),
		Chips:   []string{},
	}
	if f.FreeText != "" {
		s.Chips = append(s.Chips, fmt.Sprintf("Search: %q", f.FreeText))
	}
	if f.Language != "" {
		s.Chips = append(s.Chips, "Language: "+f.Language)
	}
	if f.Kind == query.Repositories && f.Window != c.defaults.Window {
		s.Chips = append(s.Chips, "Time: "+windowLabel(f.Window))
	}
	return s
}

func windowLabel(w query.TimeWindow) string {
	switch w {
	case query.TwoWeeks:
		return "2 Weeks"
	case query.OneMonth:
		return "1 Month"
	case query.SixMonths:
		return "6 Months"
	case query.OneYear:
		return "1 Year"
	default:
		return "1 Week"
	}
}
