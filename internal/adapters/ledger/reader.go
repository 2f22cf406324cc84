package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/pkg/logger"
	"github.com/okian/seasonboard/pkg/metrics"
)

// Reader adds timeouts, bounded fan-out and soft-failure variants on top of
// a Contract.
type Reader struct {
	contract       Contract
	timeout        time.Duration
	maxConcurrency int
	logger         logger.Logger
}

// NewReader wraps contract.
func NewReader(contract Contract, opts ...Option) *Reader {
	r := &Reader{
		contract:       contract,
		timeout:        defaultTimeout,
		maxConcurrency: defaultMaxConcurrency,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ParseItemID converts a catalog item id into the contract's numeric id.
func ParseItemID(itemID string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(itemID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidItemID, itemID)
	}
	return id, nil
}

// observe runs fn under the per-call deadline and records the outcome.
func (r *Reader) observe(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metrics.AddLedgerInFlight(1)
	defer metrics.AddLedgerInFlight(-1)

	start := time.Now()
	err := fn(ctx)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case errors.Is(err, ErrDecode):
		outcome = "decode_error"
	default:
		outcome = "error"
	}
	metrics.RecordLedgerCall(method, outcome, float64(time.Since(start).Microseconds())/1000)

	if err != nil && !errors.Is(err, ErrTransient) {
		err = fmt.Errorf("%w: %s: %w", ErrTransient, method, err)
	}
	return err
}

// FetchVotes returns the raw votes of itemID in season. Failures are returned,
// wrapped in ErrTransient, so callers can tell "zero votes" from "unknown".
func (r *Reader) FetchVotes(ctx context.Context, season uint64, itemID string) (*big.Int, error) {
	id, err := ParseItemID(itemID)
	if err != nil {
		return nil, err
	}
	var votes *big.Int
	err = r.observe(ctx, methodVotesInSeason, func(ctx context.Context) error {
		var err error
		votes, err = r.contract.VotesInSeason(ctx, season, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if votes == nil {
		votes = new(big.Int)
	}
	return votes, nil
}

// Votes is the soft variant of FetchVotes: any failure reads as zero.
func (r *Reader) Votes(ctx context.Context, season uint64, itemID string) *big.Int {
	votes, err := r.FetchVotes(ctx, season, itemID)
	if err != nil {
		r.logger.Warn(ctx, "ledger vote read failed, using zero",
			logger.Uint64("season", season),
			logger.String("item_id", itemID),
			logger.Error(err))
		return new(big.Int)
	}
	return votes
}

// FetchVotesBulk reads every id concurrently, at most maxConcurrency calls in
// flight. Each id lands in exactly one of the two maps.
func (r *Reader) FetchVotesBulk(ctx context.Context, season uint64, itemIDs []string) (map[string]*big.Int, map[string]error) {
	votes := make(map[string]*big.Int, len(itemIDs))
	failed := make(map[string]error)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.maxConcurrency)

	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		g.Go(func() error {
			v, err := r.FetchVotes(ctx, season, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err
				return nil
			}
			votes[id] = v
			return nil
		})
	}
	_ = g.Wait()

	return votes, failed
}

// VotesBulk is the soft variant of FetchVotesBulk. Every id is present in
// the result; failed ids read as zero.
func (r *Reader) VotesBulk(ctx context.Context, season uint64, itemIDs []string) map[string]*big.Int {
	votes, failed := r.FetchVotesBulk(ctx, season, itemIDs)
	for id, err := range failed {
		votes[id] = new(big.Int)
		r.logger.Debug(ctx, "ledger vote read failed", logger.String("item_id", id), logger.Error(err))
	}
	if len(failed) > 0 {
		r.logger.Warn(ctx, "ledger bulk read partially failed, failed items read as zero",
			logger.Uint64("season", season),
			logger.Int("failed", len(failed)),
			logger.Int("requested", len(votes)))
	}
	return votes
}

// PeriodInfo returns the season tuple.
func (r *Reader) PeriodInfo(ctx context.Context, season uint64) (PeriodInfo, error) {
	var info PeriodInfo
	err := r.observe(ctx, methodPeriodInfo, func(ctx context.Context) error {
		var err error
		info, err = r.contract.PeriodInfo(ctx, season)
		return err
	})
	return info, err
}

// IsFinalized reports whether the contract has closed season.
func (r *Reader) IsFinalized(ctx context.Context, season uint64) (bool, error) {
	info, err := r.PeriodInfo(ctx, season)
	if err != nil {
		return false, err
	}
	return info.Finalized, nil
}

// CurrentSeason returns the season currently accepting votes.
func (r *Reader) CurrentSeason(ctx context.Context) (uint64, error) {
	var season uint64
	err := r.observe(ctx, methodCurrentSeason, func(ctx context.Context) error {
		var err error
		season, err = r.contract.CurrentSeason(ctx)
		return err
	})
	return season, err
}

// Period returns the season as a domain period.
func (r *Reader) Period(ctx context.Context, season uint64) (model.Period, error) {
	info, err := r.PeriodInfo(ctx, season)
	if err != nil {
		return model.Period{}, err
	}
	return info.Period(), nil
}
