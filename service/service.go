package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"githubexplorer/aggregate"
	"githubexplorer/config"
	"githubexplorer/controller"
	"githubexplorer/db"
	"githubexplorer/detail"
	"githubexplorer/enricher"
	"githubexplorer/fetcher"
	"githubexplorer/github"
	"githubexplorer/logger"
	"githubexplorer/models"
	"githubexplorer/query"
)

// FavoritesStore abstracts the favorites operations needed by the service
// (for testability)
type FavoritesStore interface {
	FavoriteRepositories(ctx context.Context) ([]models.Repository, error)
	FavoriteUsers(ctx context.Context) ([]models.User, error)
	AddFavoriteRepository(ctx context.Context, repo models.Repository) ([]models.Repository, error)
	RemoveFavoriteRepository(ctx context.Context, id int64) ([]models.Repository, error)
	AddFavoriteUser(ctx context.Context, user models.User) ([]models.User, error)
	RemoveFavoriteUser(ctx context.Context, id int64) ([]models.User, error)
	CheckFavorites(ctx context.Context, maxWorkers int, callback db.RepositoryCallback) error
	MonitorFavorites(ctx context.Context, interval time.Duration, callback db.RepositoryCallback)
	Close() error
}

// GitHubClientInterface abstracts the GitHub client operations needed by the service
// (for testability)
type GitHubClientInterface interface {
	SearchRepositories(ctx context.Context, req github.SearchRequest) (*github.SearchResult[models.Repository], error)
	SearchUsers(ctx context.Context, req github.SearchRequest) (*github.SearchResult[models.User], error)
	FetchUser(ctx context.Context, login string) (*models.UserDetail, error)
	FetchRepository(ctx context.Context, owner, name string) (*models.Repository, error)
	FetchCodeFrequency(ctx context.Context, locator string) ([]models.WeeklyDatum, error)
	CodeFrequencyURL(fullName string) string
}

// Service errors
var (
	ErrServiceInit     = fmt.Errorf("service initialization error")
	ErrServiceShutdown = fmt.Errorf("service shutdown error")
	ErrNoStore         = fmt.Errorf("favorites store is not open")
	ErrInvalidRepoName = fmt.Errorf("repository must be given as owner/name")
)

// Service wires configuration, the GitHub client and the favorites store
// into listing controllers and detail views.
type Service struct {
	config  *config.Config
	client  GitHubClientInterface
	store   FavoritesStore
	builder *query.Builder
	agg     *aggregate.Aggregator
	ctx     context.Context
	cancel  context.CancelFunc

	repos *controller.Controller[models.Repository]
	users *controller.Controller[models.User]
}

// NewService loads configuration, initializes the logger and builds the
// GitHub client. The favorites store is opened separately with OpenStore.
func NewService() (*Service, error) {
	cfg := config.NewConfig()
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("%w: failed to load configuration: %w", ErrServiceInit, err)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize logger: %w", ErrServiceInit, err)
	}

	client := github.NewClient(cfg.GitHubToken)
	if err := client.SetBaseURL(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceInit, err)
	}
	client.SetTimeout(cfg.RequestTimeout)

	s := newService(cfg, client, nil)

	logger.Info("Service initialized successfully",
		zap.String("api_url", cfg.APIBaseURL),
		zap.Bool("authenticated", cfg.GitHubToken != ""),
		zap.String("timezone", cfg.Location.String()),
		zap.Int("chart_window", cfg.ChartWindow))
	return s, nil
}

func newService(cfg *config.Config, client GitHubClientInterface, store FavoritesStore) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	builder := query.NewBuilder(time.Now, cfg.Location)
	builder.ForceUpdatedDescending = cfg.ForceUpdatedDesc

	repoFetcher := fetcher.New[models.Repository](client.SearchRepositories, "repositories")
	repoFetcher.DedupByID = cfg.DedupByID

	userEnricher := enricher.NewUserEnricher(client,
		enricher.WithMaxWorkers(cfg.EnrichWorkers),
		enricher.WithRate(cfg.EnrichRPS))
	userFetcher := fetcher.New[models.User](client.SearchUsers, "users").WithPostProcess(userEnricher.Enrich)
	userFetcher.DedupByID = cfg.DedupByID

	return &Service{
		config:  cfg,
		client:  client,
		store:   store,
		builder: builder,
		agg:     aggregate.New(cfg.Location),
		ctx:     ctx,
		cancel:  cancel,
		repos:   controller.New(builder, repoFetcher, query.Defaults(query.Repositories)),
		users:   controller.New(builder, userFetcher, query.Defaults(query.Users)),
	}
}

// OpenStore connects to the favorites database and creates its schema.
func (s *Service) OpenStore(ctx context.Context) error {
	database, err := db.New(s.config)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize database: %w", ErrServiceInit, err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return fmt.Errorf("%w: %w", ErrServiceInit, err)
	}
	s.store = database
	return nil
}

// Context is cancelled by Close or a shutdown signal.
func (s *Service) Context() context.Context { return s.ctx }

// Repositories returns the repository listing controller.
func (s *Service) Repositories() *controller.Controller[models.Repository] { return s.repos }

// Users returns the user listing controller.
func (s *Service) Users() *controller.Controller[models.User] { return s.users }

// Navigate builds the detail payload for a listed repository.
func (s *Service) Navigate(repo models.Repository) detail.Navigation {
	return detail.NavigateTo(repo, s.client.CodeFrequencyURL)
}

// Detail returns a code-frequency view for nav.
func (s *Service) Detail(nav detail.Navigation) *detail.View {
	return detail.NewView(nav, s.client, s.agg, s.config.ChartWindow)
}

// CodeFrequency loads the code-frequency view of owner/name.
func (s *Service) CodeFrequency(ctx context.Context, fullName string) (detail.Snapshot, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return detail.Snapshot{}, err
	}
	view := s.Detail(s.Navigate(models.Repository{FullName: owner + "/" + name}))
	defer view.Close()
	return view.Load(ctx)
}

// Favorites returns both saved lists.
func (s *Service) Favorites(ctx context.Context) ([]models.Repository, []models.User, error) {
	if s.store == nil {
		return nil, nil, ErrNoStore
	}
	repos, err := s.store.FavoriteRepositories(ctx)
	if err != nil {
		return nil, nil, err
	}
	users, err := s.store.FavoriteUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	return repos, users, nil
}

// AddFavoriteRepository looks up owner/name and saves it.
func (s *Service) AddFavoriteRepository(ctx context.Context, fullName string) ([]models.Repository, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	repo, err := s.client.FetchRepository(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repository %s: %w", fullName, err)
	}
	return s.store.AddFavoriteRepository(ctx, *repo)
}

// AddFavoriteUser looks up login and saves it.
func (s *Service) AddFavoriteUser(ctx context.Context, login string) ([]models.User, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	d, err := s.client.FetchUser(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", login, err)
	}
	return s.store.AddFavoriteUser(ctx, d.User())
}

// RemoveFavoriteRepository drops a saved repository by id.
func (s *Service) RemoveFavoriteRepository(ctx context.Context, id int64) ([]models.Repository, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.RemoveFavoriteRepository(ctx, id)
}

// RemoveFavoriteUser drops a saved user by id.
func (s *Service) RemoveFavoriteUser(ctx context.Context, id int64) ([]models.User, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.RemoveFavoriteUser(ctx, id)
}

// Watch summarizes every favorite repository now and then every
// WATCH_INTERVAL until a shutdown signal arrives.
func (s *Service) Watch() error {
	if s.store == nil {
		return ErrNoStore
	}

	logger.Info("Processing favorite repositories")
	if err := s.store.CheckFavorites(s.ctx, db.DefaultMonitorWorkers, s.summarizeRepository); err != nil {
		// Continue despite initial processing error
		logger.Warn("Error processing favorite repositories", zap.Error(err))
	}

	s.startMonitoring()
	s.waitForShutdown()
	return nil
}

// startMonitoring starts the favorites monitoring process
func (s *Service) startMonitoring() {
	logger.Info("Starting favorites monitoring",
		zap.Duration("interval", s.config.WatchInterval))
	s.store.MonitorFavorites(s.ctx, s.config.WatchInterval, s.summarizeRepository)
}

// waitForShutdown waits for the shutdown signal
func (s *Service) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case <-s.ctx.Done():
	}
	s.cancel()
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	s.cancel()
	s.repos.Unmount()
	s.users.Unmount()
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %w", ErrServiceShutdown, err)
	}
	return nil
}

// summarizeRepository loads one repository's code frequency and logs its totals.
func (s *Service) summarizeRepository(ctx context.Context, repo models.Repository) error {
	if ctx.Err() != nil {
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	view := s.Detail(s.Navigate(repo))
	defer view.Close()

	snap, err := view.Load(ctx)
	if err != nil && !errors.Is(err, detail.ErrClosed) {
		return fmt.Errorf("failed to load code frequency for %s: %w", repo.FullName, err)
	}

	totals := snap.Result.Totals
	logger.Info("Favorite repository summary",
		zap.String("full_name", repo.FullName),
		zap.Stringer("state", snap.State.Kind),
		zap.String("notice", snap.State.Notice),
		zap.Int("weeks", snap.Result.Weeks),
		zap.Int64("additions", totals.Additions),
		zap.Int64("deletions", totals.Deletions),
		zap.Int64("net", totals.Net()))
	return nil
}

func splitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoName, fullName)
	}
	return owner, name, nil
}
