package ranking

import (
	"sort"
	"strings"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/types"
)

// view applies the post-ranking filters and display order. Ranks are left
// as computed.
func view(entries []model.LeaderboardEntry, q types.Query) []model.LeaderboardEntry {
	out := filter(entries, q.Filters)
	order(out, q.SortBy, q.SortOrder)
	return out
}

func filter(entries []model.LeaderboardEntry, f types.Filters) []model.LeaderboardEntry {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	minVotes := model.WholeVotes(f.MinVotes)

	out := make([]model.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if f.ContentType != "" && e.Item.ContentType != f.ContentType {
			continue
		}
		if f.MinVotes > 0 && e.TotalVotes.Cmp(minVotes) < 0 {
			continue
		}
		if search != "" && !matches(e.Item, search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matches(it model.Item, needle string) bool {
	for _, field := range []string{it.Title, it.Description, it.Creator} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// order sorts in place. Equal keys keep rank order.
func order(entries []model.LeaderboardEntry, by types.SortBy, dir types.SortOrder) {
	if by == "" {
		by = types.SortVotes
	}
	if dir == "" {
		switch by {
		case types.SortRank, types.SortTitle:
			dir = types.OrderAsc
		default:
			dir = types.OrderDesc
		}
	}

	cmp := func(a, b model.LeaderboardEntry) int {
		switch by {
		case types.SortVotes:
			return a.TotalVotes.Cmp(b.TotalVotes)
		case types.SortCreatedAt:
			return a.Item.CreatedAt.Compare(b.Item.CreatedAt)
		case types.SortTitle:
			return strings.Compare(strings.ToLower(a.Item.Title), strings.ToLower(b.Item.Title))
		}
		return a.Rank - b.Rank
	}

	sort.SliceStable(entries, func(i, j int) bool {
		c := cmp(entries[i], entries[j])
		if c == 0 {
			return entries[i].Rank < entries[j].Rank
		}
		if dir == types.OrderAsc {
			return c < 0
		}
		return c > 0
	})
}
