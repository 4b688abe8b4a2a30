package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ippclub/nxsync/internal/attribution"
	"github.com/ippclub/nxsync/internal/cache"
	"github.com/ippclub/nxsync/internal/config"
	"github.com/ippclub/nxsync/internal/github"
	"github.com/ippclub/nxsync/internal/store"
	"github.com/ippclub/nxsync/pkg/git"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned when Run is called while another run is in progress
var ErrAlreadyRunning = errors.New("sync already running")

// ContributorSource builds the contributor map from merged pull requests
type ContributorSource interface {
	Build(ctx context.Context, cached *attribution.ContributorMap, lastProcessed time.Time) (*github.Build, error)
}

// Options selects how much cached state a run may reuse
type Options struct {
	FullRebuild bool // ignore the cache, truncate every table and resync base games
	NoCache     bool // ignore the cache without truncating
}

// Summary describes a finished run
type Summary struct {
	Groups           int
	PullRequests     int
	BaseGames        int
	BaseGamesSkipped bool
	Types            map[attribution.Bucket]Stats
	TouchedGroups    int
}

// Writes is the number of data rows changed by the per-type passes
func (s *Summary) Writes() int {
	n := 0
	for _, st := range s.Types {
		n += st.Writes()
	}
	return n
}

// ErrMissingToken is returned when the GitHub contributor build runs without a token
var ErrMissingToken = errors.New("a GitHub token is required to build the contributor map")

// githubSource builds the contributor map through the GitHub GraphQL API
type githubSource struct {
	builder *github.Builder
	token   string
}

func (g *githubSource) Build(ctx context.Context, cached *attribution.ContributorMap, lastProcessed time.Time) (*github.Build, error) {
	if g.token == "" {
		return nil, ErrMissingToken
	}
	return g.builder.Build(ctx, cached, lastProcessed)
}

// SyncService runs the synchronization pipeline
type SyncService struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        *store.SQLiteStore
	titledb      *git.Repo
	performance  *git.Repo
	cache        *cache.Store
	contributors ContributorSource
	mu           sync.Mutex
}

// NewSyncService creates a new SyncService instance that attributes
// contributors through the GitHub API configured in cfg.
func NewSyncService(cfg *config.Config, logger *zap.Logger) (*SyncService, error) {
	client := github.NewClient(cfg.GitHub.Endpoint, cfg.GitHub.Token, cfg.GitHub.RPS, cfg.GitHub.Burst, logger.Named("github"))
	src := &githubSource{
		builder: github.NewBuilder(client, cfg.Repos.Performance.Slug(), cfg.GitHub.PageSize, logger.Named("contributors")),
		token:   cfg.GitHub.Token,
	}
	return NewSyncServiceWithSource(cfg, src, logger)
}

// NewSyncServiceWithSource creates a new SyncService instance using src for
// contributor attribution. The database is opened and migrated here, so an
// unreachable database fails fast.
func NewSyncServiceWithSource(cfg *config.Config, src ContributorSource, logger *zap.Logger) (*SyncService, error) {
	dbStore, err := store.NewSQLiteStore(cfg.Database.Path, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return &SyncService{
		cfg:          cfg,
		logger:       logger,
		store:        dbStore,
		titledb:      git.NewRepo("titledb", cfg.Repos.Titledb.URL, cfg.Repos.Titledb.Path, cfg.GitHub.Token, logger.Named("git")),
		performance:  git.NewRepo("performance", cfg.Repos.Performance.URL, cfg.Repos.Performance.Path, cfg.GitHub.Token, logger.Named("git")),
		cache:        cache.New(cfg.Cache.Path),
		contributors: src,
	}, nil
}

// Close closes the service and its resources
func (s *SyncService) Close() error {
	return s.store.Close()
}

// Run opens a service, runs it once and closes it on every path
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Summary, error) {
	svc, err := NewSyncService(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()
	return svc.Run(ctx, opts)
}

// Run executes one full pipeline pass
func (s *SyncService) Run(ctx context.Context, opts Options) (*Summary, error) {
	if !s.mu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.mu.Unlock()

	started := time.Now()
	s.logger.Info("sync started", zap.Bool("full_rebuild", opts.FullRebuild), zap.Bool("no_cache", opts.NoCache))

	if err := s.mirrorAll(ctx); err != nil {
		return nil, err
	}

	snap, cached := s.loadSnapshot(opts)

	if opts.FullRebuild {
		if err := s.store.Truncate(ctx); err != nil {
			return nil, err
		}
	}

	src, err := Discover(s.cfg.Repos.Titledb.Path, s.cfg.Repos.Performance.Path, s.logger.Named("discovery"))
	if err != nil {
		return nil, err
	}
	if err := s.store.EnsureGroups(ctx, src.GroupIDs); err != nil {
		return nil, err
	}

	build, err := s.contributors.Build(ctx, snap.Contributors, snap.Metadata.LastProcessedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to build contributor map: %w", err)
	}

	dates, perfHead, err := s.buildDates(ctx, snap, cached)
	if err != nil {
		return nil, err
	}

	base := NewBaseGameSync(s.store, s.titledb, s.cfg.Repos.Titledb.Path, s.cfg.Sync.BatchSize, s.logger.Named("games"))
	games, err := base.Sync(ctx, src, snap.Metadata.TitledbFilteredHash, opts.FullRebuild)
	if err != nil {
		return nil, fmt.Errorf("failed to sync base games: %w", err)
	}

	engine := NewEngine(s.store, s.cfg.Repos.Performance.Path, build.Contributors, dates, s.logger.Named("engine"))
	result, err := engine.SyncAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sync data files: %w", err)
	}
	if err := s.store.TouchGroups(ctx, result.Touched); err != nil {
		return nil, err
	}

	next := &cache.Snapshot{
		Contributors: build.Contributors,
		Dates:        dates,
		Metadata: cache.Metadata{
			LastProcessedDate:   build.LatestMergedAt,
			TitledbFilteredHash: games.Hash,
			PerformanceHash:     perfHead,
		},
	}
	if err := s.cache.Save(next); err != nil {
		return nil, fmt.Errorf("failed to save cache: %w", err)
	}

	summary := &Summary{
		Groups:           len(src.GroupIDs),
		PullRequests:     build.PullRequests,
		BaseGames:        games.Games,
		BaseGamesSkipped: games.Skipped,
		Types:            result.Stats,
		TouchedGroups:    len(result.Touched),
	}
	s.logger.Info("sync completed",
		zap.Int("groups", summary.Groups),
		zap.Int("pull_requests", summary.PullRequests),
		zap.Int("base_games", summary.BaseGames),
		zap.Bool("base_games_skipped", summary.BaseGamesSkipped),
		zap.Int("writes", summary.Writes()),
		zap.Int("touched_groups", summary.TouchedGroups),
		zap.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}

// mirrorAll refreshes both repositories concurrently
func (s *SyncService) mirrorAll(ctx context.Context) error {
	repos := []*git.Repo{s.titledb, s.performance}

	var wg sync.WaitGroup
	errChan := make(chan error, len(repos))

	for _, repo := range repos {
		wg.Add(1)
		go func(r *git.Repo) {
			defer wg.Done()
			if err := r.Mirror(ctx); err != nil {
				errChan <- fmt.Errorf("failed to mirror repo %s: %w", r.Name, err)
			}
		}(repo)
	}

	wg.Wait()
	close(errChan)

	// Collect errors
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// loadSnapshot returns the cached state and whether it came from disk
func (s *SyncService) loadSnapshot(opts Options) (*cache.Snapshot, bool) {
	if opts.FullRebuild || opts.NoCache {
		return cache.Empty(), false
	}
	snap, err := s.cache.Load()
	if err != nil {
		s.logger.Warn("cache unavailable, rebuilding from scratch", zap.Error(err))
		return cache.Empty(), false
	}
	return snap, true
}

// buildDates walks only the commits after the cached performance hash when
// that hash is still an ancestor of HEAD, and the whole history otherwise.
func (s *SyncService) buildDates(ctx context.Context, snap *cache.Snapshot, cached bool) (*attribution.DateMap, string, error) {
	head, err := s.performance.HeadHash()
	if err != nil {
		return nil, "", err
	}

	since := ""
	if cached && snap.Metadata.PerformanceHash != "" {
		ok, err := s.performance.IsAncestorOfHead(snap.Metadata.PerformanceHash)
		switch {
		case err != nil:
			s.logger.Warn("cannot check cached history position", zap.Error(err))
		case ok:
			since = snap.Metadata.PerformanceHash
		default:
			s.logger.Warn("cached history position not found, walking full history",
				zap.String("hash", snap.Metadata.PerformanceHash))
		}
	}

	newer, err := attribution.BuildDateMap(ctx, s.performance, since)
	if err != nil {
		return nil, "", err
	}
	if since == "" {
		s.logger.Info("date map built", zap.Int("files", newer.Len()))
		return newer, head, nil
	}

	merged := snap.Dates.Merge(newer)
	s.logger.Info("date map extended", zap.Int("changed", newer.Len()), zap.Int("files", merged.Len()))
	return merged, head, nil
}
