// Package finalization freezes closed seasons into hash-stamped snapshots
// and serves them as historical truth.
package finalization

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/seasonboard/internal/adapters/repository"
	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/scoring"
	"github.com/okian/seasonboard/pkg/logger"
	"github.com/okian/seasonboard/pkg/metrics"
)

// Ranker computes a season's terminal ranking from the ledger.
type Ranker interface {
	ComputeSeason(ctx context.Context, items []model.Item, season uint64) ([]model.LeaderboardEntry, error)
}

// Ledger is the authoritative season state.
type Ledger interface {
	Period(ctx context.Context, season uint64) (model.Period, error)
	CurrentSeason(ctx context.Context) (uint64, error)
}

// Service moves seasons from FinalizedOnLedger to Snapshotted.
type Service struct {
	store  repository.Store
	ranker Ranker
	ledger Ledger
	now    func() time.Time
	logger logger.Logger
}

// New wires a finalization service.
func New(store repository.Store, ranker Ranker, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ranker: ranker,
		ledger: ledger,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports where season is in its lifecycle.
func (s *Service) State(ctx context.Context, season uint64) (model.SeasonState, error) {
	has, err := s.store.HasSeason(ctx, season)
	if err != nil {
		return "", err
	}
	if has {
		return model.SeasonSnapshotted, nil
	}
	p, err := s.ledger.Period(ctx, season)
	if err != nil {
		return "", fmt.Errorf("read season %d: %w", season, err)
	}
	if p.Finalized {
		return model.SeasonFinalizedOnLedger, nil
	}
	return model.SeasonOpen, nil
}

// IsSeasonFinalized reports whether a snapshot of season is stored.
func (s *Service) IsSeasonFinalized(ctx context.Context, season uint64) (bool, error) {
	return s.store.HasSeason(ctx, season)
}

// FinalizeSeasonLeaderboard snapshots season once the ledger has closed it.
// Calling it for an already snapshotted season is a no-op, and so is an
// empty ranking. Concurrent callers are arbitrated by the store's
// uniqueness constraints; the loser returns nil.
func (s *Service) FinalizeSeasonLeaderboard(ctx context.Context, season uint64, items []model.Item) error {
	log := s.logger
	fields := []logger.Field{logger.Uint64("season", season), logger.String("run_id", uuid.NewString())}

	has, err := s.store.HasSeason(ctx, season)
	if err != nil {
		metrics.RecordFinalization("error")
		return fmt.Errorf("check season %d: %w", season, err)
	}
	if has {
		metrics.RecordFinalization("already_finalized")
		log.Warn(ctx, "season already finalized, skipping", fields...)
		return nil
	}

	p, err := s.ledger.Period(ctx, season)
	if err != nil {
		metrics.RecordFinalization("error")
		return fmt.Errorf("read season %d: %w", season, err)
	}
	if !p.Finalized {
		metrics.RecordFinalization("not_finalized")
		return fmt.Errorf("%w: season %d", ErrNotFinalized, season)
	}
	p.SeasonNumber = season

	entries, err := s.ranker.ComputeSeason(ctx, items, season)
	if err != nil {
		metrics.RecordFinalization("error")
		return fmt.Errorf("rank season %d: %w", season, err)
	}
	if len(entries) == 0 {
		metrics.RecordFinalization("empty")
		log.Info(ctx, "season has no ranked items, nothing recorded", fields...)
		return nil
	}

	meta, rows := Build(p, entries, s.now().UTC())
	if err := s.store.Save(ctx, meta, rows); err != nil {
		if errors.Is(err, repository.ErrDuplicateFinalization) {
			metrics.RecordFinalization("duplicate")
			log.Warn(ctx, "season finalized concurrently, keeping existing snapshot", append(fields, logger.Error(err))...)
			return nil
		}
		metrics.RecordFinalization("error")
		return fmt.Errorf("persist season %d: %w", season, err)
	}

	metrics.RecordFinalization("ok")
	log.Info(ctx, "season finalized", append(fields,
		logger.Int("items", len(rows)),
		logger.String("top_item", meta.TopItemID),
		logger.String("hash", meta.SnapshotHash))...)
	return nil
}

// Build turns a ranking into snapshot metadata and rows stamped with the
// canonical hash. entries must be non-empty and ordered by rank.
//
// Shares are floored basis points with the leftover points handed to the
// largest remainders, so a non-zero season stores shares summing to exactly
// 100.00. Three equal tallies store 33.34, 33.33 and 33.33, not 33.33 each.
func Build(p model.Period, entries []model.LeaderboardEntry, finalizedAt time.Time) (model.FinalizedPeriodMetadata, []model.FinalizedSnapshotRow) {
	votes := make([]*big.Int, len(entries))
	for i, e := range entries {
		votes[i] = e.TotalVotes
	}
	total := scoring.Sum(votes)
	shares := scoring.Percentages(votes, total)

	rows := make([]model.FinalizedSnapshotRow, len(entries))
	for i, e := range entries {
		rows[i] = model.FinalizedSnapshotRow{
			SeasonNumber:      p.SeasonNumber,
			ItemID:            e.ItemID,
			FinalRank:         e.Rank,
			TotalVotes:        e.TotalVotes,
			PercentageOfTotal: shares[i],
			FinalizedAt:       finalizedAt,
		}
	}
	hash := Hash(rows)
	for i := range rows {
		rows[i].SnapshotHash = hash
	}

	meta := model.FinalizedPeriodMetadata{
		SeasonNumber:    p.SeasonNumber,
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		TotalVotes:      total,
		TotalItemsCount: len(rows),
		TopItemID:       rows[0].ItemID,
		TopItemVotes:    rows[0].TotalVotes,
		FinalizedAt:     finalizedAt,
		SnapshotHash:    hash,
	}
	return meta, rows
}

// CheckSnapshot recomputes season's hash from its stored rows. It returns an
// *IntegrityError on mismatch and repository.ErrNotFound for unknown seasons.
func (s *Service) CheckSnapshot(ctx context.Context, season uint64) error {
	meta, err := s.store.Metadata(ctx, season)
	if err != nil {
		return err
	}
	rows, err := s.store.Rows(ctx, season)
	if err != nil {
		return err
	}

	actual := Hash(rows)
	mismatch := func(reason string) error {
		return &IntegrityError{Season: season, Expected: meta.SnapshotHash, Actual: actual, Reason: reason}
	}
	switch {
	case len(rows) == 0:
		return mismatch("metadata without rows")
	case len(rows) != meta.TotalItemsCount:
		return mismatch(fmt.Sprintf("%d rows, metadata says %d", len(rows), meta.TotalItemsCount))
	case actual != meta.SnapshotHash:
		return mismatch("hash differs")
	}
	for _, r := range rows {
		if r.SnapshotHash != actual {
			return mismatch(fmt.Sprintf("row %s carries a different hash", r.ItemID))
		}
	}
	return nil
}

// VerifySnapshot reports whether season's snapshot is intact. A mismatch is
// logged and counted but never repaired here.
func (s *Service) VerifySnapshot(ctx context.Context, season uint64) (bool, error) {
	err := s.CheckSnapshot(ctx, season)
	var ierr *IntegrityError
	switch {
	case err == nil:
		metrics.RecordIntegrityCheck("ok")
		return true, nil
	case errors.As(err, &ierr):
		metrics.RecordIntegrityCheck("mismatch")
		s.logger.Warn(ctx, "snapshot integrity mismatch",
			logger.Uint64("season", season),
			logger.String("reason", ierr.Reason),
			logger.Error(err))
		return false, nil
	default:
		metrics.RecordIntegrityCheck("error")
		return false, err
	}
}

// RepairSnapshot replaces season's snapshot with a fresh one computed from
// the ledger. The ledger must still report the season as finalized. The
// stored copy is swapped only once the new ranking is complete, so a failed
// repair leaves it untouched.
func (s *Service) RepairSnapshot(ctx context.Context, season uint64, items []model.Item) error {
	p, err := s.ledger.Period(ctx, season)
	if err != nil {
		return fmt.Errorf("read season %d: %w", season, err)
	}
	if !p.Finalized {
		return fmt.Errorf("%w: season %d", ErrNotFinalized, season)
	}
	p.SeasonNumber = season

	entries, err := s.ranker.ComputeSeason(ctx, items, season)
	if err != nil {
		metrics.RecordFinalization("error")
		return fmt.Errorf("rank season %d: %w", season, err)
	}
	if len(entries) == 0 {
		metrics.RecordFinalization("empty")
		s.logger.Warn(ctx, "repair produced no ranked items, keeping stored snapshot", logger.Uint64("season", season))
		return nil
	}

	meta, rows := Build(p, entries, s.now().UTC())
	if err := s.store.Replace(ctx, meta, rows); err != nil {
		metrics.RecordFinalization("error")
		return fmt.Errorf("replace season %d: %w", season, err)
	}
	metrics.RecordFinalization("repaired")
	s.logger.Warn(ctx, "snapshot repaired",
		logger.Uint64("season", season),
		logger.Int("items", len(rows)),
		logger.String("hash", meta.SnapshotHash))
	return nil
}

// Cleanup deletes snapshots of seasons older than current - keepSeasons and
// returns how many were removed.
func (s *Service) Cleanup(ctx context.Context, keepSeasons int) (int64, error) {
	if keepSeasons < 0 {
		return 0, fmt.Errorf("keep seasons must not be negative: %d", keepSeasons)
	}
	current, err := s.ledger.CurrentSeason(ctx)
	if err != nil {
		return 0, fmt.Errorf("read current season: %w", err)
	}
	if current <= uint64(keepSeasons) {
		return 0, nil
	}
	n, err := s.store.DeleteBefore(ctx, current-uint64(keepSeasons))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(ctx, "old snapshots removed",
			logger.Int64("seasons", n),
			logger.Uint64("before", current-uint64(keepSeasons)))
	}
	return n, nil
}

// Snapshot returns the stored record of season.
func (s *Service) Snapshot(ctx context.Context, season uint64) (model.FinalizedPeriodMetadata, []model.FinalizedSnapshotRow, error) {
	meta, err := s.store.Metadata(ctx, season)
	if err != nil {
		return meta, nil, err
	}
	rows, err := s.store.Rows(ctx, season)
	return meta, rows, err
}
