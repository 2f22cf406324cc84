package model

import "math/big"

// ChangeDirection is the display hint attached to an entry.
type ChangeDirection string

// Change directions.
const (
	ChangeUp   ChangeDirection = "up"
	ChangeDown ChangeDirection = "down"
	ChangeSame ChangeDirection = "same"
	ChangeNew  ChangeDirection = "new"
)

// LeaderboardEntry is one computed row. Never persisted for an open season.
type LeaderboardEntry struct {
	Rank              int
	ItemID            string
	Item              Item
	TotalVotes        *big.Int
	VoteWeight        float64
	VoterCount        int64
	PercentageOfTotal float64
	ChangeDirection   ChangeDirection
	ChangeMagnitude   int
	// AuxiliaryScore combines vote weight with verification and recency
	// bonuses. It is informational only; ordering uses TotalVotes.
	AuxiliaryScore float64
}
