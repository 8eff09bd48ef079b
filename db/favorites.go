package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"githubexplorer/models"
)

// Storage keys of the two favorites lists.
const (
	KeyFavoriteRepos = "githubStats_favoriteRepos"
	KeyFavoriteUsers = "githubStats_favoriteUsers"
)

const (
	selectFavorites = `SELECT items FROM favorites WHERE key = ?`
	upsertFavorites = `
		INSERT INTO favorites (key, items, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = EXCLUDED.updated_at
	`
)

// FavoriteRepositories returns the saved repositories, oldest first.
func (db *DB) FavoriteRepositories(ctx context.Context) ([]models.Repository, error) {
	return loadFavorites[models.Repository](ctx, db, KeyFavoriteRepos)
}

// FavoriteUsers returns the saved users, oldest first.
func (db *DB) FavoriteUsers(ctx context.Context) ([]models.User, error) {
	return loadFavorites[models.User](ctx, db, KeyFavoriteUsers)
}

// AddFavoriteRepository saves repo unless a repository with its id is already saved.
func (db *DB) AddFavoriteRepository(ctx context.Context, repo models.Repository) ([]models.Repository, error) {
	if repo.ID == 0 || repo.FullName == "" {
		return nil, fmt.Errorf("%w: repository id and full name cannot be empty", ErrInvalidInput)
	}
	safeLogInfo("Adding favorite repository", zap.String("full_name", repo.FullName))
	return mutateFavorites(ctx, db, KeyFavoriteRepos, addItem(repo))
}

// RemoveFavoriteRepository drops the repository with the given id.
func (db *DB) RemoveFavoriteRepository(ctx context.Context, id int64) ([]models.Repository, error) {
	safeLogInfo("Removing favorite repository", zap.Int64("id", id))
	return mutateFavorites(ctx, db, KeyFavoriteRepos, removeItem[models.Repository](id))
}

// AddFavoriteUser saves user unless a user with its id is already saved.
func (db *DB) AddFavoriteUser(ctx context.Context, user models.User) ([]models.User, error) {
	if user.ID == 0 || user.Login == "" {
		return nil, fmt.Errorf("%w: user id and login cannot be empty", ErrInvalidInput)
	}
	safeLogInfo("Adding favorite user", zap.String("login", user.Login))
	return mutateFavorites(ctx, db, KeyFavoriteUsers, addItem(user))
}

// RemoveFavoriteUser drops the user with the given id.
func (db *DB) RemoveFavoriteUser(ctx context.Context, id int64) ([]models.User, error) {
	safeLogInfo("Removing favorite user", zap.Int64("id", id))
	return mutateFavorites(ctx, db, KeyFavoriteUsers, removeItem[models.User](id))
}

func loadFavorites[T any](ctx context.Context, db *DB, key string) ([]T, error) {
	stmt, err := db.getStmt(ctx, selectFavorites)
	if err != nil {
		return nil, err
	}

	var raw string
	if err := stmt.GetContext(ctx, &raw, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return decodeList[T](key, raw)
}

// mutateFavorites rewrites one list inside a transaction. mutate reports
// whether it changed anything; unchanged lists are not written back.
func mutateFavorites[T models.Item](ctx context.Context, db *DB, key string, mutate func([]T) ([]T, bool)) ([]T, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	items := []T{}
	var raw string
	err = tx.GetContext(ctx, &raw, db.conn.Rebind(selectFavorites), key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	default:
		if items, err = decodeList[T](key, raw); err != nil {
			return nil, err
		}
	}

	next, changed := mutate(items)
	if !changed {
		return items, nil
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, db.conn.Rebind(upsertFavorites), key, string(encoded), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	safeLogInfo("Favorites saved", zap.String("key", key), zap.Int("count", len(next)))
	return next, nil
}

func decodeList[T any](key, raw string) ([]T, error) {
	items := []T{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptFavorites, key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func addItem[T models.Item](item T) func([]T) ([]T, bool) {
	return func(items []T) ([]T, bool) {
		for _, it := range items {
			if it.Key() == item.Key() {
				return items, false
			}
		}
		return append(items, item), true
	}
}

func removeItem[T models.Item](id int64) func([]T) ([]T, bool) {
	return func(items []T) ([]T, bool) {
		out := make([]T, 0, len(items))
		for _, it := range items {
			if it.Key() != id {
				out = append(out, it)
			}
		}
		return out, len(out) != len(items)
	}
}
