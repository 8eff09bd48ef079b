// Package aggregate turns a weekly code-frequency series into chart series and
// summary totals.
package aggregate

import (
	"time"

	"githubexplorer/models"
)

// LabelLayout renders week labels as month/day/year.
const LabelLayout = "1/2/2006"

// Band classifies a week's net change for colouring.
type Band string

const (
	Gain Band = "gain"
	Loss Band = "loss"
)

// BandOf returns Gain for non-negative net changes and Loss otherwise.
func BandOf(net int64) Band {
	if net < 0 {
		return Loss
	}
	return Gain
}

// Totals sums the whole series.
type Totals struct {
	Additions int64 `json:"additions"`
	Deletions int64 `json:"deletions"`
}

// Net returns additions minus deletions.
func (t Totals) Net() int64 { return t.Additions - t.Deletions }

// Result holds per-point series for the windowed prefix and totals for the
// whole series. The two ranges differ on purpose.
//
// A window of zero or less is not an empty prefix: it charts every week, so
// Labels has len(series) entries. Callers wanting no chart must skip Aggregate.
type Result struct {
	Labels    []string `json:"labels"`
	Additions []int64  `json:"additions"`
	Deletions []int64  `json:"deletions"`
	Net       []int64  `json:"net"`
	Bands     []Band   `json:"bands"`
	Totals    Totals   `json:"totals"`
	Weeks     int      `json:"weeks"`
}

// Aggregator formats labels in a fixed location so output does not depend
// on the host timezone.
type Aggregator struct {
	loc *time.Location
}

// New returns an Aggregator labelling weeks in loc (UTC when nil).
func New(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc}
}

// Aggregate derives chart series from the first window entries of series and
// totals from all of it. A non-positive window uses the whole series.
func (a *Aggregator) Aggregate(series []models.WeeklyDatum, window int) Result {
	n := len(series)
	if window > 0 && window < n {
		n = window
	}

	r := Result{
		Labels:    make([]string, 0, n),
		Additions: make([]int64, 0, n),
		Deletions: make([]int64, 0, n),
		Net:       make([]int64, 0, n),
		Bands:     make([]Band, 0, n),
		Weeks:     len(series),
	}

	for i, w := range series {
		r.Totals.Additions += w.Additions
		r.Totals.Deletions += w.Deletions
		if i >= n {
			continue
		}
		net := w.Additions - w.Deletions
		r.Labels = append(r.Labels, time.Unix(w.WeekStart, 0).In(a.loc).Format(LabelLayout))
		r.Additions = append(r.Additions, w.Additions)
		r.Deletions = append(r.Deletions, w.Deletions)
		r.Net = append(r.Net, net)
		r.Bands = append(r.Bands, BandOf(net))
	}

	return r
}
