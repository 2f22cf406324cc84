// Package service wires the ledger, tally cache, ranking engine and
// finalization service into the dependency set required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/seasonboard/internal/adapters/catalog"
	"github.com/okian/seasonboard/internal/adapters/ledger"
	"github.com/okian/seasonboard/internal/adapters/repository"
	"github.com/okian/seasonboard/internal/adapters/tallycache"
	"github.com/okian/seasonboard/internal/domain/finalization"
	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/ranking"
	"github.com/okian/seasonboard/internal/domain/scoring"
	"github.com/okian/seasonboard/internal/domain/types"
	"github.com/okian/seasonboard/pkg/logger"
	"github.com/okian/seasonboard/pkg/metrics"
)

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// External handles
	contract   ledger.Contract
	tallyStore tallycache.Store
	snapshots  repository.Store
	catalog    catalog.Catalog

	// Built on Start
	reader    *ledger.Reader
	cache     *tallycache.Cache
	engine    *ranking.Engine
	finalizer *finalization.Service

	// Configuration
	ledgerTimeout     time.Duration
	ledgerConcurrency int
	cacheFreshness    time.Duration
	maxEntries        int
	defaultPageSize   int
	maxPageSize       int
	keepSeasons       int
	scorer            *scoring.Scorer

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ledgerTimeout:     15 * time.Second,
		ledgerConcurrency: 16,
		cacheFreshness:    time.Hour,
		maxEntries:        100,
		defaultPageSize:   20,
		maxPageSize:       100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components. The contract, snapshot store and catalog are
// required; the tally store is optional.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	switch {
	case s.contract == nil:
		return fmt.Errorf("%w: ledger contract", ErrMissingDep)
	case s.snapshots == nil:
		return fmt.Errorf("%w: snapshot store", ErrMissingDep)
	case s.catalog == nil:
		return fmt.Errorf("%w: catalog", ErrMissingDep)
	}

	s.logger.Info(ctx, "starting leaderboard service...")

	s.reader = ledger.NewReader(s.contract,
		ledger.WithTimeout(s.ledgerTimeout),
		ledger.WithMaxConcurrency(s.ledgerConcurrency),
		ledger.WithLogger(s.logger.Named("ledger")),
	)

	engineOpts := []ranking.Option{
		ranking.WithSnapshots(s.snapshots),
		ranking.WithMaxEntries(s.maxEntries),
		ranking.WithPageSizes(s.defaultPageSize, s.maxPageSize),
		ranking.WithScorer(s.scorer),
		ranking.WithLogger(s.logger.Named("ranking")),
	}
	if s.tallyStore != nil {
		s.cache = tallycache.New(s.tallyStore, s.reader,
			tallycache.WithFreshness(s.cacheFreshness),
			tallycache.WithLogger(s.logger.Named("tallycache")),
		)
		engineOpts = append(engineOpts, ranking.WithTallies(s.cache))
	}
	s.engine = ranking.New(s.reader, engineOpts...)
	s.finalizer = finalization.New(s.snapshots, s.engine, s.reader,
		finalization.WithLogger(s.logger.Named("finalization")))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "leaderboard service started",
		logger.Bool("cache", s.cache != nil),
		logger.Duration("ledgerTimeout", s.ledgerTimeout),
		logger.Int("ledgerConcurrency", s.ledgerConcurrency),
		logger.Int("maxEntries", s.maxEntries),
	)
	return nil
}

// Stop releases closable dependencies.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping leaderboard service...")

	for name, dep := range map[string]any{"snapshots": s.snapshots, "tallies": s.tallyStore, "ledger": s.contract} {
		switch c := dep.(type) {
		case interface{ Close() error }:
			if err := c.Close(); err != nil {
				s.logger.Warn(ctx, "close failed", logger.String("dependency", name), logger.Error(err))
			}
		case interface{ Close() }:
			c.Close()
		}
	}

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) items(ctx context.Context) ([]model.Item, error) {
	items, err := s.catalog.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return items, nil
}

// Leaderboard computes one leaderboard page.
func (s *Service) Leaderboard(ctx context.Context, q types.Query) (types.Page, error) {
	if err := s.ready(); err != nil {
		return types.Page{}, err
	}
	items, err := s.items(ctx)
	if err != nil {
		return types.Page{}, err
	}
	return s.engine.Compute(ctx, items, q)
}

// SeasonState reports the lifecycle state of season.
func (s *Service) SeasonState(ctx context.Context, season uint64) (model.SeasonState, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	return s.finalizer.State(ctx, season)
}

// Snapshot returns a stored season.
func (s *Service) Snapshot(ctx context.Context, season uint64) (model.FinalizedPeriodMetadata, []model.FinalizedSnapshotRow, error) {
	if err := s.ready(); err != nil {
		return model.FinalizedPeriodMetadata{}, nil, err
	}
	return s.finalizer.Snapshot(ctx, season)
}

// Finalize snapshots season with the current catalog.
func (s *Service) Finalize(ctx context.Context, season uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	items, err := s.items(ctx)
	if err != nil {
		return err
	}
	return s.finalizer.FinalizeSeasonLeaderboard(ctx, season, items)
}

// IsSeasonFinalized reports whether season has a stored snapshot.
func (s *Service) IsSeasonFinalized(ctx context.Context, season uint64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.finalizer.IsSeasonFinalized(ctx, season)
}

// Verify checks the stored snapshot of season.
func (s *Service) Verify(ctx context.Context, season uint64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.finalizer.VerifySnapshot(ctx, season)
}

// Repair rebuilds the stored snapshot of season from the ledger.
func (s *Service) Repair(ctx context.Context, season uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	items, err := s.items(ctx)
	if err != nil {
		return err
	}
	return s.finalizer.RepairSnapshot(ctx, season, items)
}

// Cleanup applies snapshot retention. A negative keep uses the configured
// retention, where zero means retention is off.
func (s *Service) Cleanup(ctx context.Context, keep int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if keep < 0 {
		if s.keepSeasons == 0 {
			return 0, nil
		}
		keep = s.keepSeasons
	}
	return s.finalizer.Cleanup(ctx, keep)
}

// Tally returns the current-season tally of itemID, healing it from the
// ledger when needed.
func (s *Service) Tally(ctx context.Context, itemID string) (model.VoteTally, error) {
	if err := s.ready(); err != nil {
		return model.VoteTally{}, err
	}
	if _, err := ledger.ParseItemID(itemID); err != nil {
		return model.VoteTally{}, err
	}
	if s.cache != nil {
		return s.cache.Get(ctx, itemID, nil), nil
	}
	season, err := s.reader.CurrentSeason(ctx)
	if err != nil {
		return model.VoteTally{}, err
	}
	votes := s.reader.Votes(ctx, season, itemID)
	return model.VoteTally{ItemID: itemID, Votes: votes, VoterCount: model.HeuristicVoterCount(votes), CachedAt: time.Now().UTC()}, nil
}

// SyncTally forces a ledger read of itemID into the cache.
func (s *Service) SyncTally(ctx context.Context, itemID string) (model.VoteTally, error) {
	if err := s.ready(); err != nil {
		return model.VoteTally{}, err
	}
	if s.cache == nil {
		return model.VoteTally{}, ErrCacheDisabled
	}
	if _, err := ledger.ParseItemID(itemID); err != nil {
		return model.VoteTally{}, err
	}
	return s.cache.Sync(ctx, itemID)
}

// ClearTallies invalidates the given items, or the whole cache.
func (s *Service) ClearTallies(ctx context.Context, itemIDs ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.cache == nil {
		return ErrCacheDisabled
	}
	return s.cache.Clear(ctx, itemIDs...)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":           s.started,
		"cacheEnabled":      s.tallyStore != nil,
		"ledgerTimeoutMs":   s.ledgerTimeout.Milliseconds(),
		"ledgerConcurrency": s.ledgerConcurrency,
		"maxEntries":        s.maxEntries,
		"keepSeasons":       s.keepSeasons,
	}
	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	if items, err := s.catalog.Items(ctx); err == nil {
		stats["catalogItems"] = len(items)
		metrics.UpdateCatalogItems(len(items))
	}
	if s.cache != nil {
		if n, err := s.cache.Len(ctx); err == nil {
			stats["cachedTallies"] = n
		}
		if season, err := s.cache.Season(ctx); err == nil {
			stats["currentSeason"] = season
		}
	}
	if seasons, err := s.snapshots.Seasons(ctx); err == nil {
		stats["snapshottedSeasons"] = len(seasons)
		if len(seasons) > 0 {
			stats["latestSnapshot"] = seasons[len(seasons)-1]
		}
	}
	return stats
}
