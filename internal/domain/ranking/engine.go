// Package ranking turns the item catalog and vote tallies into leaderboards.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/period"
	"github.com/okian/seasonboard/internal/domain/scoring"
	"github.com/okian/seasonboard/internal/domain/types"
	"github.com/okian/seasonboard/pkg/logger"
	"github.com/okian/seasonboard/pkg/metrics"
)

// ErrLedgerIncomplete is returned by ComputeSeason when some tallies could
// not be read.
var ErrLedgerIncomplete = errors.New("ledger tallies incomplete")

// Tallies is the cached tally source.
type Tallies interface {
	GetBulk(ctx context.Context, itemIDs []string) (map[string]model.VoteTally, error)
	Season(ctx context.Context) (uint64, error)
}

// Ledger is the direct tally source.
type Ledger interface {
	VotesBulk(ctx context.Context, season uint64, itemIDs []string) map[string]*big.Int
	FetchVotesBulk(ctx context.Context, season uint64, itemIDs []string) (map[string]*big.Int, map[string]error)
	CurrentSeason(ctx context.Context) (uint64, error)
}

// Snapshots reads finalized seasons.
type Snapshots interface {
	HasSeason(ctx context.Context, season uint64) (bool, error)
	Metadata(ctx context.Context, season uint64) (model.FinalizedPeriodMetadata, error)
	Rows(ctx context.Context, season uint64) ([]model.FinalizedSnapshotRow, error)
}

// Engine computes rankings. It is safe for concurrent use.
type Engine struct {
	ledger    Ledger
	tallies   Tallies
	snapshots Snapshots
	scorer    *scoring.Scorer

	maxEntries      int
	defaultPageSize int
	maxPageSize     int

	now    func() time.Time
	logger logger.Logger
}

// New returns an engine reading the ledger directly unless WithTallies is
// given.
func New(ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger:          ledger,
		scorer:          scoring.NewScorer(),
		maxEntries:      defaultMaxEntries,
		defaultPageSize: defaultPageSize,
		maxPageSize:     defaultMaxPageSize,
		now:             time.Now,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute returns one page of the leaderboard selected by q. Tally failures
// degrade to zero votes; only a malformed query is an error.
func (e *Engine) Compute(ctx context.Context, items []model.Item, q types.Query) (types.Page, error) {
	start := time.Now()
	sel, err := period.Parse(q.Period)
	if err != nil {
		return types.Page{}, err
	}

	var (
		entries []model.LeaderboardEntry
		source  types.Source
		season  uint64
		updated = e.now().UTC()
	)
	switch sel.Kind {
	case period.KindSeason:
		season = sel.Season
		entries, source, updated = e.historical(ctx, items, sel.Season)
	default:
		now := e.now()
		eligible := make([]model.Item, 0, len(items))
		for _, it := range items {
			if sel.Includes(it.CreatedAt, now) {
				eligible = append(eligible, it)
			}
		}
		entries, source, season = e.live(ctx, eligible)
	}
	metrics.RecordRankingCompute(string(source), float64(time.Since(start).Microseconds())/1000, len(entries))

	page := e.paginate(view(entries, q), q)
	page.Season = season
	page.Source = source
	page.LastUpdated = updated
	return page, nil
}

// ComputeSeason ranks items for season straight from the ledger. Unlike
// Compute it fails when any tally cannot be read, so a closed season is never
// ranked on partial data.
func (e *Engine) ComputeSeason(ctx context.Context, items []model.Item, season uint64) ([]model.LeaderboardEntry, error) {
	votes, failed := e.ledger.FetchVotesBulk(ctx, season, itemIDs(items))
	if len(failed) > 0 {
		var first error
		for _, err := range failed {
			first = err
			break
		}
		return nil, fmt.Errorf("%w: %d of %d items failed for season %d: %w",
			ErrLedgerIncomplete, len(failed), len(items), season, first)
	}
	return e.rank(items, votes, nil), nil
}

func (e *Engine) live(ctx context.Context, items []model.Item) ([]model.LeaderboardEntry, types.Source, uint64) {
	ids := itemIDs(items)

	if e.tallies != nil {
		tallies, err := e.tallies.GetBulk(ctx, ids)
		if err == nil {
			votes := make(map[string]*big.Int, len(tallies))
			voters := make(map[string]int64, len(tallies))
			for id, t := range tallies {
				votes[id] = t.Votes
				voters[id] = t.VoterCount
			}
			season, _ := e.tallies.Season(ctx)
			return e.rank(items, votes, voters), types.SourceCache, season
		}
		e.logger.Warn(ctx, "tally cache unavailable, reading ledger directly", logger.Error(err))
	}

	season, err := e.ledger.CurrentSeason(ctx)
	if err != nil {
		metrics.RecordRankingDegraded()
		e.logger.Warn(ctx, "ledger unavailable, ranking with zero votes", logger.Error(err))
		return e.rank(items, nil, nil), types.SourceLedger, 0
	}
	return e.rank(items, e.ledger.VotesBulk(ctx, season, ids), nil), types.SourceLedger, season
}

func (e *Engine) historical(ctx context.Context, items []model.Item, season uint64) ([]model.LeaderboardEntry, types.Source, time.Time) {
	if e.snapshots != nil {
		entries, meta, err := e.fromSnapshot(ctx, items, season)
		switch {
		case err == nil && entries != nil:
			return entries, types.SourceSnapshot, meta.FinalizedAt
		case err != nil:
			e.logger.Warn(ctx, "snapshot read failed, ranking from ledger",
				logger.Uint64("season", season), logger.Error(err))
		}
	}
	votes := e.ledger.VotesBulk(ctx, season, itemIDs(items))
	return e.rank(items, votes, nil), types.SourceLedger, e.now().UTC()
}

// fromSnapshot returns nil entries when season has no snapshot.
func (e *Engine) fromSnapshot(ctx context.Context, items []model.Item, season uint64) ([]model.LeaderboardEntry, model.FinalizedPeriodMetadata, error) {
	var meta model.FinalizedPeriodMetadata
	ok, err := e.snapshots.HasSeason(ctx, season)
	if err != nil || !ok {
		return nil, meta, err
	}
	if meta, err = e.snapshots.Metadata(ctx, season); err != nil {
		return nil, meta, err
	}
	rows, err := e.snapshots.Rows(ctx, season)
	if err != nil {
		return nil, meta, err
	}

	byID := make(map[string]model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	entries := make([]model.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		it, ok := byID[r.ItemID]
		if !ok {
			it = model.Item{ID: r.ItemID}
		}
		weight := model.VoteWeight(r.TotalVotes)
		entries = append(entries, model.LeaderboardEntry{
			Rank:              r.FinalRank,
			ItemID:            r.ItemID,
			Item:              it,
			TotalVotes:        r.TotalVotes,
			VoteWeight:        weight,
			VoterCount:        model.HeuristicVoterCount(r.TotalVotes),
			PercentageOfTotal: r.PercentageOfTotal,
			ChangeDirection:   model.ChangeSame,
			AuxiliaryScore:    e.scorer.Auxiliary(it, weight),
		})
	}
	return entries, meta, nil
}

// rank orders items by raw votes and assigns sequential ranks, shares and
// change hints. voters may be nil.
func (e *Engine) rank(items []model.Item, votes map[string]*big.Int, voters map[string]int64) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(items))
	for _, it := range items {
		v := votes[it.ID]
		if v == nil {
			v = new(big.Int)
		}
		vc, ok := voters[it.ID]
		if !ok {
			vc = model.HeuristicVoterCount(v)
		}
		weight := model.VoteWeight(v)
		entries = append(entries, model.LeaderboardEntry{
			ItemID:         it.ID,
			Item:           it,
			TotalVotes:     v,
			VoteWeight:     weight,
			VoterCount:     vc,
			AuxiliaryScore: e.scorer.Auxiliary(it, weight),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].TotalVotes.Cmp(entries[j].TotalVotes); c != 0 {
			return c > 0
		}
		return entries[i].ItemID < entries[j].ItemID
	})
	if len(entries) > e.maxEntries {
		entries = entries[:e.maxEntries]
	}

	raw := make([]*big.Int, len(entries))
	for i := range entries {
		raw[i] = entries[i].TotalVotes
	}
	shares := scoring.Percentages(raw, scoring.Sum(raw))

	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].PercentageOfTotal = shares[i]
		if i < 3 || entries[i].Item.Verified {
			entries[i].ChangeDirection = model.ChangeUp
			entries[i].ChangeMagnitude = 1
		} else {
			entries[i].ChangeDirection = model.ChangeSame
		}
	}
	return entries
}

func (e *Engine) paginate(entries []model.LeaderboardEntry, q types.Query) types.Page {
	size := q.PageSize
	if size <= 0 {
		size = e.defaultPageSize
	}
	if size > e.maxPageSize {
		size = e.maxPageSize
	}
	page := max(q.Page, 1)

	total := len(entries)
	pages := (total + size - 1) / size
	from := min((page-1)*size, total)
	to := min(from+size, total)

	return types.Page{
		Entries:         entries[from:to],
		Page:            page,
		PageSize:        size,
		TotalCount:      total,
		TotalPages:      pages,
		HasNextPage:     page < pages,
		HasPreviousPage: page > 1,
	}
}

func itemIDs(items []model.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
