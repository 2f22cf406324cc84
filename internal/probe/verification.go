package probe

import (
	"errors"
	"fmt"
	"math/big"
)

// Probe errors.
var (
	ErrUnexpectedStatus   = errors.New("unexpected status")
	ErrVerificationFailed = errors.New("verification failed")
)

// percentages are rounded to two decimals per entry
const percentTolerance = 0.01

// CheckEntries validates a full default-ordered leaderboard: ranks run
// 1..n, votes never increase, ids are unique and percentages stay within
// 100.
func CheckEntries(entries []Entry, totalCount int) []string {
	var problems []string
	if len(entries) != totalCount {
		problems = append(problems, fmt.Sprintf("collected %d entries, totalCount says %d", len(entries), totalCount))
	}

	seen := make(map[string]int, len(entries))
	var prev *big.Int
	var pct float64
	for i, e := range entries {
		if e.Rank != i+1 {
			problems = append(problems, fmt.Sprintf("entry %d (%s) has rank %d", i+1, e.ItemID, e.Rank))
		}
		if at, dup := seen[e.ItemID]; dup {
			problems = append(problems, fmt.Sprintf("item %s listed at ranks %d and %d", e.ItemID, at, e.Rank))
		}
		seen[e.ItemID] = e.Rank

		votes, ok := new(big.Int).SetString(e.TotalVotes, 10)
		if !ok || votes.Sign() < 0 {
			problems = append(problems, fmt.Sprintf("item %s has malformed votes %q", e.ItemID, e.TotalVotes))
			continue
		}
		if prev != nil && votes.Cmp(prev) > 0 {
			problems = append(problems, fmt.Sprintf("item %s at rank %d has more votes than rank %d", e.ItemID, e.Rank, e.Rank-1))
		}
		prev = votes

		if e.PercentageOfTotal < 0 || e.PercentageOfTotal > 100 {
			problems = append(problems, fmt.Sprintf("item %s has percentage %.2f", e.ItemID, e.PercentageOfTotal))
		}
		pct += e.PercentageOfTotal
	}
	if pct > 100+percentTolerance*float64(max(len(entries), 1)) {
		problems = append(problems, fmt.Sprintf("percentages add up to %.2f", pct))
	}
	return problems
}
