// Package query turns listing filters into GitHub search parameters.
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownTimeWindow is returned by ParseTimeWindow for unsupported tokens.
var ErrUnknownTimeWindow = errors.New("unknown time window")

// Kind selects the searched collection.
type Kind int

const (
	Repositories Kind = iota
	Users
)

// Path returns the search endpoint segment for the kind.
func (k Kind) Path() string {
	if k == Users {
		return "users"
	}
	return "repositories"
}

func (k Kind) String() string { return k.Path() }

// TimeWindow is a relative creation-date filter.
type TimeWindow string

const (
	OneWeek   TimeWindow = "1week"
	TwoWeeks  TimeWindow = "2week"
	OneMonth  TimeWindow = "1month"
	SixMonths TimeWindow = "6month"
	OneYear   TimeWindow = "1year"
)

var windowDays = map[TimeWindow]int{
	OneWeek:   7,
	TwoWeeks:  14,
	OneMonth:  30,
	SixMonths: 180,
	OneYear:   365,
}

// Days returns the offset of the window in days.
func (w TimeWindow) Days() (int, bool) {
	d, ok := windowDays[w]
	return d, ok
}

// ParseTimeWindow validates a window token.
func ParseTimeWindow(s string) (TimeWindow, error) {
	w := TimeWindow(strings.TrimSpace(s))
	if _, ok := w.Days(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeWindow, s)
	}
	return w, nil
}

// SortKey is a provider sort field.
type SortKey string

const (
	SortStars        SortKey = "stars"
	SortForks        SortKey = "forks"
	SortUpdated      SortKey = "updated"
	SortFollowers    SortKey = "followers"
	SortRepositories SortKey = "repositories"
	SortJoined       SortKey = "joined"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// DefaultUserQuery is searched when the users listing has no free text.
const DefaultUserQuery = "followers:>1000"

// Filters is the user-editable state of a listing.
type Filters struct {
	Kind     Kind
	FreeText string
	Window   TimeWindow
	Language string
	Sort     SortKey
	Order    Order
}

// Defaults returns the initial filters of a listing.
func Defaults(kind Kind) Filters {
	f := Filters{Kind: kind, Order: Desc}
	if kind == Users {
		f.Sort = SortFollowers
	} else {
		f.Window = OneWeek
		f.Sort = SortStars
	}
	return f
}

// Built holds the search parameters derived from Filters.
type Built struct {
	Kind  Kind
	Query string
	Sort  string
	Order string
}

// Builder maps filters to search parameters. The zero value is not usable;
// construct it with NewBuilder.
type Builder struct {
	now func() time.Time
	loc *time.Location

	// ForceUpdatedDescending keeps recency sorts newest-first regardless of
	// the requested order.
	ForceUpdatedDescending bool
}

// NewBuilder returns a builder using now as its clock and loc for calendar dates.
func NewBuilder(now func() time.Time, loc *time.Location) *Builder {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{now: now, loc: loc, ForceUpdatedDescending: true}
}

// CutoffDate returns the calendar day that starts the window, relative to now.
// Unknown windows fall back to one week.
func CutoffDate(now time.Time, w TimeWindow) time.Time {
	days, ok := w.Days()
	if !ok {
		days = windowDays[OneWeek]
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -days)
}

// Build derives the query string, sort and order for f.
func (b *Builder) Build(f Filters) Built {
	out := Built{Kind: f.Kind}

	var qualifiers []string
	text := strings.TrimSpace(f.FreeText)

	if f.Kind == Users {
		if text == "" {
			text = DefaultUserQuery
		}
		qualifiers = append(qualifiers, text)
	} else {
		if text != "" {
			qualifiers = append(qualifiers, text)
		}
		cutoff := CutoffDate(b.now().In(b.loc), f.Window)
		qualifiers = append(qualifiers, "created:>"+cutoff.Format(time.DateOnly))
	}

	if lang := strings.TrimSpace(f.Language); lang != "" {
		qualifiers = append(qualifiers, "language:"+lang)
	}
	out.Query = strings.Join(qualifiers, " ")

	out.Sort = string(normalizeSort(f.Kind, f.Sort))

	order := f.Order
	if order != Asc && order != Desc {
		order = Desc
	}
	if f.Kind == Repositories && out.Sort == string(SortUpdated) && b.ForceUpdatedDescending {
		order = Desc
	}
	out.Order = string(order)

	return out
}

func normalizeSort(kind Kind, s SortKey) SortKey {
	switch kind {
	case Users:
		switch s {
		case SortFollowers, SortRepositories, SortJoined:
			return s
		}
		return SortFollowers
	default:
		switch s {
		case SortStars, SortForks, SortUpdated:
			return s
		}
		return SortStars
	}
}
