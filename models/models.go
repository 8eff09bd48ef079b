// Package models defines the core data structures used throughout the application.
package models

import "time"

// PageSize is the fixed number of items requested per search page.
const PageSize = 20

// Item is a search result keyed by its provider id.
type Item interface {
	Key() int64
}

// Owner is the account that owns a repository
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// Repository represents a GitHub repository search result
type Repository struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Owner           Owner     `json:"owner"`
	Description     string    `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Language        string    `json:"language"`
	Topics          []string  `json:"topics,omitempty"`
	ForksCount      int       `json:"forks_count"`
	StargazersCount int       `json:"stargazers_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	WatchersCount   int       `json:"watchers_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Key returns the repository id.
func (r Repository) Key() int64 { return r.ID }

// User represents a GitHub user search result. The pointer fields are only
// populated once the user has been enriched with its detail record.
type User struct {
	ID        int64   `json:"id"`
	Login     string  `json:"login"`
	AvatarURL string  `json:"avatar_url"`
	HTMLURL   string  `json:"html_url"`
	Type      string  `json:"type"`
	Score     float64 `json:"score"`

	Name        string     `json:"name,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	Location    string     `json:"location,omitempty"`
	Company     string     `json:"company,omitempty"`
	Blog        string     `json:"blog,omitempty"`
	Followers   *int       `json:"followers,omitempty"`
	Following   *int       `json:"following,omitempty"`
	PublicRepos *int       `json:"public_repos,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Key returns the user id.
func (u User) Key() int64 { return u.ID }

// Enriched reports whether detail fields have been merged into the user.
func (u User) Enriched() bool { return u.Followers != nil }

// UserDetail is the record returned by the user detail endpoint
type UserDetail struct {
	ID          int64     `json:"id"`
	Login       string    `json:"login"`
	AvatarURL   string    `json:"avatar_url"`
	HTMLURL     string    `json:"html_url"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Bio         string    `json:"bio"`
	Location    string    `json:"location"`
	Company     string    `json:"company"`
	Blog        string    `json:"blog"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WithDetail returns a copy of u with the detail fields merged in.
func (u User) WithDetail(d UserDetail) User {
	followers, following, repos := d.Followers, d.Following, d.PublicRepos
	created, updated := d.CreatedAt, d.UpdatedAt

	u.Name = d.Name
	u.Bio = d.Bio
	u.Location = d.Location
	u.Company = d.Company
	u.Blog = d.Blog
	u.Followers = &followers
	u.Following = &following
	u.PublicRepos = &repos
	u.CreatedAt = &created
	u.UpdatedAt = &updated
	return u
}

// User returns the detail record as an enriched User.
func (d UserDetail) User() User {
	return User{
		ID:        d.ID,
		Login:     d.Login,
		AvatarURL: d.AvatarURL,
		HTMLURL:   d.HTMLURL,
		Type:      d.Type,
	}.WithDetail(d)
}

// Page is the accumulated view of a paginated collection.
//
// HasMore is a heuristic: it is true when the last fetched page came back
// full (len == PageSize). It can be wrong at provider result caps or when the
// total is an exact multiple of the page size.
type Page[T any] struct {
	Items      []T  `json:"items"`
	PageNumber int  `json:"page_number"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	HasMore    bool `json:"has_more"`
}

// WeeklyDatum is one week of a repository's code-frequency series.
type WeeklyDatum struct {
	WeekStart int64 `json:"week"`
	Additions int64 `json:"additions"`
	Deletions int64 `json:"deletions"`
}

// Time returns the start of the week as a UTC instant.
func (w WeeklyDatum) Time() time.Time {
	return time.Unix(w.WeekStart, 0).UTC()
}
