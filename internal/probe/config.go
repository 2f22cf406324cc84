// Package probe walks a running seasonboard API and checks the invariants
// of what it serves: contiguous ranks, vote ordering, percentage totals and
// snapshot integrity.
package probe

import "time"

// Config holds the probe settings.
type Config struct {
	BaseURL  string        // Base URL of the service
	Period   string        // Period selector to walk
	PageSize int           // Page size requested per call
	Workers  int           // Concurrent page fetches
	Timeout  time.Duration // Per request timeout
	Seasons  []uint64      // Seasons whose snapshots are verified
	Verbose  bool          // Log every page
}

// Entry is the subset of a leaderboard entry the checks need.
type Entry struct {
	Rank              int     `json:"rank"`
	ItemID            string  `json:"itemId"`
	TotalVotes        string  `json:"totalVotes"`
	PercentageOfTotal float64 `json:"percentageOfTotal"`
}

type page struct {
	Entries    []Entry `json:"entries"`
	TotalCount int     `json:"totalCount"`
	TotalPages int     `json:"totalPages"`
	Page       int     `json:"page"`
	Source     string  `json:"source"`
}

type verifyResult struct {
	Season uint64 `json:"season"`
	Valid  bool   `json:"valid"`
}

// Report summarises one probe run.
type Report struct {
	Period         string
	Source         string
	Pages          int
	Entries        int
	TotalCount     int
	Problems       []string
	SeasonsChecked int
	SeasonsInvalid []uint64
	Duration       time.Duration
}

// OK reports whether the run found nothing wrong.
func (r Report) OK() bool {
	return len(r.Problems) == 0 && len(r.SeasonsInvalid) == 0
}
