// Package types contains the leaderboard query and page types shared by the
// ranking engine and its callers.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/seasonboard/internal/domain/model"
)

// SortBy selects the display order of a page. Ranks never change with it.
type SortBy string

// Sort keys.
const (
	SortVotes     SortBy = "votes"
	SortRank      SortBy = "rank"
	SortCreatedAt SortBy = "created_at"
	SortTitle     SortBy = "title"
)

// SortOrder is ascending or descending.
type SortOrder string

// Sort orders. The zero value means the key's natural order: ascending for
// rank and title, descending for votes and created_at.
const (
	OrderDesc SortOrder = "desc"
	OrderAsc  SortOrder = "asc"
)

// Source tells where a page's tallies came from.
type Source string

// Page sources.
const (
	SourceCache    Source = "cache"
	SourceLedger   Source = "ledger"
	SourceSnapshot Source = "snapshot"
)

// ParseSortBy accepts the sort keys, camelCase aliases included. Empty means votes.
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "votes", "totalvotes":
		return SortVotes, nil
	case "rank":
		return SortRank, nil
	case "created_at", "createdat", "created":
		return SortCreatedAt, nil
	case "title":
		return SortTitle, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ParseSortOrder accepts asc or desc. Empty yields the zero SortOrder, which
// leaves the choice to the sort key's natural order.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "desc":
		return OrderDesc, nil
	case "asc":
		return OrderAsc, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Filters narrow a computed ranking.
type Filters struct {
	// Search matches title, description and creator, case-insensitively.
	Search      string
	ContentType model.ContentType
	// MinVotes is expressed in whole votes.
	MinVotes float64
}

// Query is a leaderboard request.
type Query struct {
	Period    string
	Page      int
	PageSize  int
	SortBy    SortBy
	SortOrder SortOrder
	Filters   Filters
}

// Page is one page of a ranking.
type Page struct {
	Entries         []model.LeaderboardEntry
	Season          uint64
	Source          Source
	Page            int
	PageSize        int
	TotalCount      int
	TotalPages      int
	HasNextPage     bool
	HasPreviousPage bool
	LastUpdated     time.Time
}
