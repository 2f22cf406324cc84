package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// MemoryContract is an in-process Contract. It backs local runs without an
// RPC endpoint and stands in for the chain in tests.
type MemoryContract struct {
	mu      sync.RWMutex
	current uint64
	votes   map[uint64]map[uint64]*big.Int
	periods map[uint64]PeriodInfo
	fail    map[uint64]error
	failAll error
	calls   int
}

// Compile-time interface check
var _ Contract = (*MemoryContract)(nil)

// NewMemoryContract returns an empty ledger whose current season is season.
func NewMemoryContract(season uint64) *MemoryContract {
	return &MemoryContract{
		current: season,
		votes:   make(map[uint64]map[uint64]*big.Int),
		periods: make(map[uint64]PeriodInfo),
		fail:    make(map[uint64]error),
	}
}

// SetVotes records votes for item in season.
func (m *MemoryContract) SetVotes(season, item uint64, votes *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.votes[season] == nil {
		m.votes[season] = make(map[uint64]*big.Int)
	}
	m.votes[season][item] = new(big.Int).Set(votes)
}

// SetCurrentSeason moves the ledger to season.
func (m *MemoryContract) SetCurrentSeason(season uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = season
}

// Finalize marks season closed.
func (m *MemoryContract) Finalize(season uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.periods[season]
	info.Season = season
	info.Finalized = true
	if info.EndTime.IsZero() {
		info.EndTime = time.Now().UTC().Truncate(time.Second)
	}
	m.periods[season] = info
}

// SetPeriod replaces the stored period tuple for info.Season.
func (m *MemoryContract) SetPeriod(info PeriodInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[info.Season] = info
}

// FailItem makes every vote read of item return err. A nil err clears it.
func (m *MemoryContract) FailItem(item uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, item)
		return
	}
	m.fail[item] = err
}

// FailAll makes every call return err. A nil err clears it.
func (m *MemoryContract) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// Calls returns the number of contract calls served so far.
func (m *MemoryContract) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// VotesInSeason implements Contract.
func (m *MemoryContract) VotesInSeason(ctx context.Context, season, itemID uint64) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.failAll != nil {
		return nil, m.failAll
	}
	if err := m.fail[itemID]; err != nil {
		return nil, err
	}
	if v, ok := m.votes[season][itemID]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// PeriodInfo implements Contract. Unknown seasons read as open with totals
// summed from recorded votes.
func (m *MemoryContract) PeriodInfo(ctx context.Context, season uint64) (PeriodInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return PeriodInfo{}, err
	}
	if m.failAll != nil {
		return PeriodInfo{}, m.failAll
	}
	if season == 0 {
		return PeriodInfo{}, fmt.Errorf("season %d does not exist", season)
	}
	info := m.periods[season]
	info.Season = season
	total := new(big.Int)
	for _, v := range m.votes[season] {
		total.Add(total, v)
	}
	if info.TotalVotes == nil {
		info.TotalVotes = total
	}
	if info.TotalDelegations == nil {
		info.TotalDelegations = new(big.Int)
	}
	if info.ActiveItemCount == 0 {
		info.ActiveItemCount = uint64(len(m.votes[season]))
	}
	return info, nil
}

// CurrentSeason implements Contract.
func (m *MemoryContract) CurrentSeason(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.failAll != nil {
		return 0, m.failAll
	}
	return m.current, nil
}
