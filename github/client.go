package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"githubexplorer/logger"
	"githubexplorer/models"
)

const codeFrequencySuffix = "/stats/code_frequency"

// RateLimit represents GitHub's rate limit information
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Client represents a GitHub API client
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    *url.URL
}

// SearchRequest holds the parameters of one search page request.
type SearchRequest struct {
	Query   string
	Sort    string
	Order   string
	Page    int
	PerPage int
}

// SearchResult is the body of a search endpoint response.
type SearchResult[T any] struct {
	TotalCount        int  `json:"total_count"`
	IncompleteResults bool `json:"incomplete_results"`
	Items             []T  `json:"items"`
}

// NewClient creates a client for the public GitHub API. The token is optional.
func NewClient(token string) *Client {
	baseURL, _ := url.Parse("https://api.github.com")
	logger.Info("Initializing GitHub client", zap.String("base_url", baseURL.String()))
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
}

// SetBaseURL points the client at another API root.
func (c *Client) SetBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base url %q: scheme and host are required", raw)
	}
	c.baseURL = u
	return nil
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

func (c *Client) endpoint(path string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: c.baseURL.Path + path})
}

// SearchRepositories fetches one page of repository search results.
func (c *Client) SearchRepositories(ctx context.Context, req SearchRequest) (*SearchResult[models.Repository], error) {
	return search[models.Repository](ctx, c, "repositories", req)
}

// SearchUsers fetches one page of user search results.
func (c *Client) SearchUsers(ctx context.Context, req SearchRequest) (*SearchResult[models.User], error) {
	return search[models.User](ctx, c, "users", req)
}

func search[T any](ctx context.Context, c *Client, kind string, req SearchRequest) (*SearchResult[T], error) {
	reqURL := c.endpoint("/search/" + kind)

	q := reqURL.Query()
	q.Set("q", req.Query)
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Order != "" {
		q.Set("order", req.Order)
	}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("per_page", strconv.Itoa(req.PerPage))
	reqURL.RawQuery = q.Encode()

	logger.Info("Searching GitHub",
		zap.String("kind", kind),
		zap.String("query", req.Query),
		zap.Int("page", req.Page),
		zap.String("url", reqURL.String()))

	var result SearchResult[T]
	if err := c.getJSON(ctx, reqURL, "search "+kind, &result); err != nil {
		return nil, err
	}
	if result.Items == nil {
		result.Items = []T{}
	}

	logger.Info("Search completed",
		zap.String("kind", kind),
		zap.Int("page", req.Page),
		zap.Int("total_count", result.TotalCount),
		zap.Int("items", len(result.Items)))

	return &result, nil
}

// FetchUser fetches the detail record of a single user.
func (c *Client) FetchUser(ctx context.Context, login string) (*models.UserDetail, error) {
	if login == "" {
		return nil, fmt.Errorf("user login cannot be empty")
	}
	reqURL := c.endpoint("/users/" + login)

	var detail models.UserDetail
	if err := c.getJSON(ctx, reqURL, "fetch user", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FetchRepository fetches a single repository by owner and name.
func (c *Client) FetchRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	if owner == "" || name == "" {
		return nil, fmt.Errorf("repository owner and name cannot be empty")
	}
	reqURL := c.endpoint(fmt.Sprintf("/repos/%s/%s", owner, name))

	var repo models.Repository
	if err := c.getJSON(ctx, reqURL, "fetch repository", &repo); err != nil {
		return nil, err
	}

	logger.Info("Successfully fetched repository",
		zap.String("full_name", repo.FullName),
		zap.String("language", repo.Language),
		zap.Int("stars", repo.StargazersCount))
	return &repo, nil
}

// CodeFrequencyURL returns the code-frequency locator for a repository full name.
func (c *Client) CodeFrequencyURL(fullName string) string {
	return c.endpoint("/repos/" + fullName + codeFrequencySuffix).String()
}

// FetchCodeFrequency fetches the weekly additions/deletions series addressed by
// locator. GitHub reports deletions as negative numbers; they are returned as
// magnitudes. A 202 response yields ErrStatsComputing, an empty body an empty series.
func (c *Client) FetchCodeFrequency(ctx context.Context, locator string) ([]models.WeeklyDatum, error) {
	reqURL, err := c.resolveLocator(locator)
	if err != nil {
		return nil, err
	}

	logger.Info("Fetching code frequency", zap.String("url", reqURL.String()))

	resp, err := c.get(ctx, reqURL)
	if err != nil {
		logger.Error("Failed to fetch code frequency", zap.Error(err), zap.String("url", reqURL.String()))
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		logger.Info("Code frequency is still being computed", zap.String("url", reqURL.String()))
		return nil, ErrStatsComputing
	case http.StatusNoContent:
		return []models.WeeklyDatum{}, nil
	}
	if err := checkStatus(resp); err != nil {
		logger.Error("Failed to fetch code frequency",
			zap.Int("status_code", resp.StatusCode),
			zap.String("url", reqURL.String()))
		return nil, err
	}

	var raw [][]int64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		logger.Error("Failed to decode code frequency response", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	series := make([]models.WeeklyDatum, 0, len(raw))
	for i, triple := range raw {
		if len(triple) != 3 {
			return nil, fmt.Errorf("%w: entry %d has %d fields, want 3", ErrMalformedResponse, i, len(triple))
		}
		series = append(series, models.WeeklyDatum{
			WeekStart: triple[0],
			Additions: abs(triple[1]),
			Deletions: abs(triple[2]),
		})
	}

	logger.Info("Successfully fetched code frequency",
		zap.String("url", reqURL.String()),
		zap.Int("weeks", len(series)))
	return series, nil
}

// resolveLocator accepts absolute or API-relative code-frequency locators but
// only for the configured API host, so the token never leaves it.
func (c *Client) resolveLocator(locator string) (*url.URL, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCodeFreqURL, err)
	}
	if !u.IsAbs() {
		u = c.endpoint("/" + strings.TrimPrefix(u.Path, "/"))
	}
	if u.Host != c.baseURL.Host {
		return nil, fmt.Errorf("%w: host %q is not %q", ErrInvalidCodeFreqURL, u.Host, c.baseURL.Host)
	}
	if !strings.HasSuffix(u.Path, codeFrequencySuffix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCodeFreqURL, locator)
	}
	return u, nil
}

func (c *Client) get(ctx context.Context, reqURL *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", c.token))
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL *url.URL, op string, out any) error {
	resp, err := c.get(ctx, reqURL)
	if err != nil {
		logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		logger.Error("Request failed",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode),
			zap.String("url", reqURL.String()))
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Error("Failed to decode response", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusForbidden {
		rl := parseRateLimit(resp)
		logger.Warn("Rate limit exceeded",
			zap.Int("limit", rl.Limit),
			zap.Int("remaining", rl.Remaining),
			zap.Time("reset_time", rl.Reset))
		return &RateLimitError{RateLimit: rl}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// parseRateLimit parses rate limit information from response headers
func parseRateLimit(resp *http.Response) RateLimit {
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)

	rl := RateLimit{Limit: limit, Remaining: remaining}
	if reset > 0 {
		rl.Reset = time.Unix(reset, 0)
	}
	return rl
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
