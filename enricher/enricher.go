// Package enricher fans out one detail lookup per search result and merges
// the answers back in place.
package enricher

import (
	"context"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"githubexplorer/logger"
	"githubexplorer/models"
)

// LookupFunc enriches a single item. A returned error leaves the item as it was.
type LookupFunc[T any] func(ctx context.Context, item T) (T, error)

// Enricher runs a LookupFunc over a page of items concurrently.
type Enricher[T models.Item] struct {
	lookup     LookupFunc[T]
	maxWorkers int
	limiter    *rate.Limiter
}

// Option configures an Enricher.
type Option func(*options)

type options struct {
	maxWorkers int
	rps        float64
}

// WithMaxWorkers caps concurrent lookups. Zero or less means one goroutine per item.
func WithMaxWorkers(n int) Option {
	return func(o *options) { o.maxWorkers = n }
}

// WithRate paces lookups to rps requests per second. Zero or less disables pacing.
func WithRate(rps float64) Option {
	return func(o *options) { o.rps = rps }
}

// New returns an Enricher around lookup.
func New[T models.Item](lookup LookupFunc[T], opts ...Option) *Enricher[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	limit := rate.Inf
	burst := 1
	if o.rps > 0 {
		limit = rate.Limit(o.rps)
		burst = max(1, int(o.rps))
	}

	return &Enricher[T]{
		lookup:     lookup,
		maxWorkers: o.maxWorkers,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Enrich returns items with each one replaced by its lookup result, in the
// input order. It waits for every lookup. Failed lookups are logged and
// their items returned unchanged, so Enrich never fails as a whole.
func (e *Enricher[T]) Enrich(ctx context.Context, items []T) []T {
	if len(items) == 0 {
		return items
	}

	workers := e.maxWorkers
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	mapper := iter.Mapper[T, T]{MaxGoroutines: workers}
	out := mapper.Map(items, func(item *T) T {
		return e.enrichOne(ctx, *item)
	})

	logger.Debug("Enriched page", zap.Int("items", len(out)), zap.Int("workers", workers))
	return out
}

func (e *Enricher[T]) enrichOne(ctx context.Context, base T) T {
	if err := e.limiter.Wait(ctx); err != nil {
		logger.Warn("Skipping enrichment", zap.Int64("id", base.Key()), zap.Error(err))
		return base
	}

	enriched, err := e.lookup(ctx, base)
	if err != nil {
		logger.Warn("Failed to enrich item, keeping base fields",
			zap.Int64("id", base.Key()),
			zap.Error(err))
		return base
	}
	return enriched
}

// UserDetailFetcher is the client call used to enrich users.
type UserDetailFetcher interface {
	FetchUser(ctx context.Context, login string) (*models.UserDetail, error)
}

// NewUserEnricher enriches search users with their profile details.
func NewUserEnricher(client UserDetailFetcher, opts ...Option) *Enricher[models.User] {
	return New(func(ctx context.Context, u models.User) (models.User, error) {
		detail, err := client.FetchUser(ctx, u.Login)
		if err != nil {
			return u, err
		}
		return u.WithDetail(*detail), nil
	}, opts...)
}
