package model

import (
	"math/big"
	"time"
)

// VoteDecimals is the number of implied decimals of a ledger vote amount.
const VoteDecimals = 18

// VoteScale is 10^VoteDecimals.
var VoteScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(VoteDecimals), nil)

// VoteTally is the cached aggregate vote weight of one item.
//
// VoterCount is best effort: the ledger does not expose it cheaply, so it is
// either approximated (0 or 1) or zero.
type VoteTally struct {
	ItemID     string
	Votes      *big.Int
	VoterCount int64
	CachedAt   time.Time
}

// IsZero reports whether the tally carries no votes.
func (t VoteTally) IsZero() bool {
	return t.Votes == nil || t.Votes.Sign() == 0
}

// HeuristicVoterCount is the voter count used when only the vote weight is
// known: one voter if anything was cast, none otherwise.
func HeuristicVoterCount(votes *big.Int) int64 {
	if votes != nil && votes.Sign() > 0 {
		return 1
	}
	return 0
}

// VoteWeight converts a raw fixed-point amount into whole votes.
func VoteWeight(votes *big.Int) float64 {
	if votes == nil || votes.Sign() == 0 {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(votes, VoteScale).Float64()
	return f
}

// WholeVotes converts whole votes into the raw fixed-point amount.
func WholeVotes(v float64) *big.Int {
	if v <= 0 {
		return new(big.Int)
	}
	r := new(big.Float).SetFloat64(v)
	r.Mul(r, new(big.Float).SetInt(VoteScale))
	out, _ := r.Int(nil)
	return out
}

// Period is a season of the voting contract.
type Period struct {
	SeasonNumber uint64
	StartTime    time.Time
	EndTime      time.Time
	Finalized    bool
}

// SeasonState is the lifecycle of a season as seen from this service.
type SeasonState string

// Season states.
const (
	SeasonOpen              SeasonState = "open"
	SeasonFinalizedOnLedger SeasonState = "finalized_on_ledger"
	SeasonSnapshotted       SeasonState = "snapshotted"
)
