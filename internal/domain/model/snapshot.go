package model

import (
	"math/big"
	"time"
)

// FinalizedSnapshotRow is one immutable ranked row of a closed season.
type FinalizedSnapshotRow struct {
	SeasonNumber      uint64
	ItemID            string
	FinalRank         int
	TotalVotes        *big.Int
	PercentageOfTotal float64
	FinalizedAt       time.Time
	SnapshotHash      string
}

// FinalizedPeriodMetadata summarises a closed season. Written once.
type FinalizedPeriodMetadata struct {
	SeasonNumber    uint64
	StartTime       time.Time
	EndTime         time.Time
	TotalVotes      *big.Int
	TotalItemsCount int
	TopItemID       string
	TopItemVotes    *big.Int
	FinalizedAt     time.Time
	SnapshotHash    string
}
