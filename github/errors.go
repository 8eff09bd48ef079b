package github

import (
	"errors"
	"fmt"
	"time"
)

// Provider errors
var (
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrProvider           = errors.New("github api error")
	ErrNetwork            = errors.New("network failure")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrStatsComputing     = errors.New("statistics are being computed")
	ErrInvalidCodeFreqURL = errors.New("invalid code frequency locator")
)

// RateLimitError is returned for HTTP 403 responses.
type RateLimitError struct {
	RateLimit RateLimit
}

func (e *RateLimitError) Error() string {
	if e.RateLimit.Reset.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: resets at %s", ErrRateLimited, e.RateLimit.Reset.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// StatusError is returned for non-2xx responses other than 403.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status code %d", ErrProvider, e.StatusCode)
}

// Is makes errors.Is(err, ErrProvider) hold.
func (e *StatusError) Is(target error) bool { return target == ErrProvider }

// UserMessage renders err as a notice suitable for display next to a retry action.
func UserMessage(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded. Please try again later."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("GitHub API error: %d", statusErr.StatusCode)
	case errors.Is(err, ErrNetwork):
		return "Could not reach GitHub. Check your connection and try again."
	case errors.Is(err, ErrMalformedResponse):
		return "GitHub returned an unexpected response."
	default:
		return err.Error()
	}
}
