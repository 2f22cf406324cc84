package tallycache

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/pkg/logger"
	"github.com/okian/seasonboard/pkg/metrics"
)

// Cache serves tallies from a Store and lazily heals entries that are
// missing, stale or zero. Reads never fail: when healing is impossible the
// caller's fallback is returned instead.
type Cache struct {
	store     Store
	ledger    Ledger
	freshness time.Duration
	now       func() time.Time
	logger    logger.Logger

	syncs singleflight.Group

	seasonMu     sync.Mutex
	season       uint64
	seasonLoaded time.Time
}

// New builds a cache over store, healing from ledger.
func New(store Store, ledger Ledger, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		ledger:    ledger,
		freshness: defaultFreshness,
		now:       time.Now,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Freshness returns the staleness window.
func (c *Cache) Freshness() time.Duration { return c.freshness }

// Season returns the current ledger season, memoised for the freshness window.
func (c *Cache) Season(ctx context.Context) (uint64, error) {
	c.seasonMu.Lock()
	defer c.seasonMu.Unlock()
	if c.season != 0 && c.now().Sub(c.seasonLoaded) <= c.freshness {
		return c.season, nil
	}
	s, err := c.ledger.CurrentSeason(ctx)
	if err != nil {
		if c.season != 0 {
			c.logger.Warn(ctx, "current season refresh failed, keeping previous", logger.Uint64("season", c.season), logger.Error(err))
			return c.season, nil
		}
		return 0, err
	}
	c.season = s
	c.seasonLoaded = c.now()
	return s, nil
}

func (c *Cache) isStale(t model.VoteTally) bool {
	return c.now().Sub(t.CachedAt) > c.freshness
}

// Get returns the tally for itemID. A non-zero entry is returned as is, even
// when stale. Zero or absent entries are re-read from the ledger when stale;
// if that fails fallbackVotes is returned with a heuristic voter count.
func (c *Cache) Get(ctx context.Context, itemID string, fallbackVotes *big.Int) model.VoteTally {
	season, err := c.Season(ctx)
	if err != nil {
		return c.fallback(ctx, itemID, fallbackVotes, "season", err)
	}
	key := Key{Season: season, ItemID: itemID}

	t, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return c.fallback(ctx, itemID, fallbackVotes, "store_read", err)
	}
	if ok && !t.IsZero() {
		metrics.RecordCacheLookup("hit")
		return t
	}
	if ok && !c.isStale(t) {
		metrics.RecordCacheLookup("zero_fresh")
		return t
	}

	if ok {
		metrics.RecordCacheLookup("zero_stale")
	} else {
		metrics.RecordCacheLookup("miss")
	}
	synced, err := c.sync(ctx, key)
	if err != nil {
		if synced.Votes != nil {
			// ledger answered, only the write-back failed
			c.logger.Warn(ctx, "tally write-back failed", logger.String("item_id", itemID), logger.Error(err))
			return synced
		}
		return c.fallback(ctx, itemID, fallbackVotes, "sync", err)
	}

	// another writer may have landed in between; the store is the answer
	if again, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return again
	}
	return synced
}

// GetBulk returns a tally for every id. Entries that are absent or stale are
// refreshed with one bounded ledger bulk read and written back. Items the
// ledger fails to answer keep their stale value, or read as zero when absent.
// An error means the store itself could not be read.
func (c *Cache) GetBulk(ctx context.Context, itemIDs []string) (map[string]model.VoteTally, error) {
	season, err := c.Season(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve season: %w", err)
	}
	got, err := c.store.GetMany(ctx, season, itemIDs)
	if err != nil {
		return nil, err
	}

	var need []string
	for _, id := range itemIDs {
		t, ok := got[id]
		if ok && !c.isStale(t) {
			metrics.RecordCacheLookup("hit")
			continue
		}
		if ok {
			metrics.RecordCacheLookup("stale")
		} else {
			metrics.RecordCacheLookup("miss")
		}
		need = append(need, id)
	}
	if len(need) == 0 {
		return got, nil
	}

	votes, failed := c.ledger.FetchVotesBulk(ctx, season, need)
	now := c.now()
	fresh := make([]model.VoteTally, 0, len(votes))
	for id, v := range votes {
		t := model.VoteTally{ItemID: id, Votes: v, VoterCount: model.HeuristicVoterCount(v), CachedAt: now}
		got[id] = t
		fresh = append(fresh, t)
	}
	if len(fresh) > 0 {
		if err := c.store.PutMany(ctx, season, fresh); err != nil {
			metrics.RecordCacheSync("write_error")
			c.logger.Warn(ctx, "tally write-back failed", logger.Int("items", len(fresh)), logger.Error(err))
		} else {
			metrics.RecordCacheSync("ok")
		}
	}

	for id, ferr := range failed {
		metrics.RecordCacheSync("ledger_error")
		if _, ok := got[id]; ok {
			continue
		}
		got[id] = model.VoteTally{ItemID: id, Votes: new(big.Int)}
		c.logger.Debug(ctx, "tally refresh failed, reading as zero", logger.String("item_id", id), logger.Error(ferr))
	}
	if len(failed) > 0 {
		c.logger.Warn(ctx, "tally bulk refresh partially failed",
			logger.Uint64("season", season),
			logger.Int("failed", len(failed)),
			logger.Int("refreshed", len(fresh)))
	}
	return got, nil
}

// IsStale reports whether itemID needs a refresh. Absent entries are stale.
func (c *Cache) IsStale(ctx context.Context, itemID string) bool {
	season, err := c.Season(ctx)
	if err != nil {
		return true
	}
	t, ok, err := c.store.Get(ctx, Key{Season: season, ItemID: itemID})
	if err != nil || !ok {
		return true
	}
	return c.isStale(t)
}

// Sync reads itemID from the ledger and writes it through. A failed ledger
// read leaves the cached entry untouched.
func (c *Cache) Sync(ctx context.Context, itemID string) (model.VoteTally, error) {
	season, err := c.Season(ctx)
	if err != nil {
		return model.VoteTally{}, fmt.Errorf("resolve season: %w", err)
	}
	return c.sync(ctx, Key{Season: season, ItemID: itemID})
}

func (c *Cache) sync(ctx context.Context, key Key) (model.VoteTally, error) {
	v, err, _ := c.syncs.Do(key.String(), func() (interface{}, error) {
		votes, err := c.ledger.FetchVotes(ctx, key.Season, key.ItemID)
		if err != nil {
			metrics.RecordCacheSync("ledger_error")
			return model.VoteTally{}, err
		}
		t := model.VoteTally{
			ItemID:     key.ItemID,
			Votes:      votes,
			VoterCount: model.HeuristicVoterCount(votes),
			CachedAt:   c.now(),
		}
		if err := c.store.PutMany(ctx, key.Season, []model.VoteTally{t}); err != nil {
			metrics.RecordCacheSync("write_error")
			return t, err
		}
		metrics.RecordCacheSync("ok")
		return t, nil
	})
	t, _ := v.(model.VoteTally)
	return cloneTally(t), err
}

// Clear drops the given items, or every entry when none are given.
func (c *Cache) Clear(ctx context.Context, itemIDs ...string) error {
	metrics.RecordCacheClear()
	if len(itemIDs) == 0 {
		return c.store.Purge(ctx)
	}
	return c.store.Delete(ctx, itemIDs...)
}

// Len returns the number of cached entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

func (c *Cache) fallback(ctx context.Context, itemID string, votes *big.Int, stage string, err error) model.VoteTally {
	metrics.RecordCacheFallback()
	c.logger.Warn(ctx, "tally unavailable, using fallback",
		logger.String("item_id", itemID),
		logger.String("stage", stage),
		logger.Error(err))
	v := new(big.Int)
	if votes != nil {
		v.Set(votes)
	}
	return model.VoteTally{ItemID: itemID, Votes: v, VoterCount: model.HeuristicVoterCount(v)}
}
