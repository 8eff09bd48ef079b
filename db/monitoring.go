package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"githubexplorer/logger"
	"githubexplorer/models"
)

// DefaultMonitorWorkers bounds concurrent callbacks per favorites pass.
const DefaultMonitorWorkers = 5

// RepositoryCallback is run for each favorite repository on every pass.
type RepositoryCallback func(ctx context.Context, repo models.Repository) error

// MonitorFavorites starts a goroutine that runs callback over the favorite
// repositories every interval until ctx is done.
func (db *DB) MonitorFavorites(ctx context.Context, interval time.Duration, callback RepositoryCallback) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.CheckFavorites(ctx, DefaultMonitorWorkers, callback); err != nil {
					logger.Error("Error checking favorite repositories", zap.Error(err))
				}
			}
		}
	}()
}

// CheckFavorites runs one pass of callback over the favorite repositories
// with at most maxWorkers in flight. Every repository is visited even when
// some callbacks fail; the failures are joined into the returned error.
func (db *DB) CheckFavorites(ctx context.Context, maxWorkers int, callback RepositoryCallback) error {
	repos, err := db.FavoriteRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch favorites for monitoring: %w", err)
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMonitorWorkers
	}

	sem := make(chan struct{}, maxWorkers)
	errChan := make(chan error, len(repos))
	var wg sync.WaitGroup

	for _, repo := range repos {
		wg.Add(1)
		go func(repo models.Repository) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire semaphore
			defer func() { <-sem }() // Release semaphore

			if err := callback(ctx, repo); err != nil {
				errChan <- fmt.Errorf("error processing repository %s: %w", repo.FullName, err)
			}
		}(repo)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
