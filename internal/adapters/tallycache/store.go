// Package tallycache keeps per-item vote tallies close to the ranking engine
// and heals stale or empty entries from the ledger on read.
package tallycache

import (
	"context"
	"math/big"
	"strconv"

	"github.com/okian/seasonboard/internal/domain/model"
)

// Key addresses one cached tally. Tallies are scoped to a season so a season
// rollover never serves last season's counts.
type Key struct {
	Season uint64
	ItemID string
}

func (k Key) String() string {
	return strconv.FormatUint(k.Season, 10) + ":" + k.ItemID
}

// Store persists tallies. Writes are idempotent upserts; the last writer wins.
type Store interface {
	Get(ctx context.Context, key Key) (model.VoteTally, bool, error)
	// GetMany returns the entries that exist; absent ids are simply missing.
	GetMany(ctx context.Context, season uint64, itemIDs []string) (map[string]model.VoteTally, error)
	PutMany(ctx context.Context, season uint64, tallies []model.VoteTally) error
	// Delete removes the given items in every season.
	Delete(ctx context.Context, itemIDs ...string) error
	Purge(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Ledger is the subset of the ledger reader the cache needs.
type Ledger interface {
	FetchVotes(ctx context.Context, season uint64, itemID string) (*big.Int, error)
	FetchVotesBulk(ctx context.Context, season uint64, itemIDs []string) (map[string]*big.Int, map[string]error)
	CurrentSeason(ctx context.Context) (uint64, error)
}

func cloneTally(t model.VoteTally) model.VoteTally {
	if t.Votes != nil {
		t.Votes = new(big.Int).Set(t.Votes)
	}
	return t
}
