package api

import (
	"math/big"
	"time"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/types"
)

// Vote amounts travel as base-10 strings; JSON numbers cannot hold uint256.

type entryResponse struct {
	Rank              int                   `json:"rank"`
	ItemID            string                `json:"itemId"`
	Title             string                `json:"title,omitempty"`
	Creator           string                `json:"creator,omitempty"`
	ContentType       model.ContentType     `json:"contentType,omitempty"`
	Verified          bool                  `json:"verified"`
	Tags              []string              `json:"tags,omitempty"`
	CreatedAt         *time.Time            `json:"createdAt,omitempty"`
	TotalVotes        string                `json:"totalVotes"`
	VoteWeight        float64               `json:"voteWeight"`
	VoterCount        int64                 `json:"voterCount"`
	PercentageOfTotal float64               `json:"percentageOfTotal"`
	ChangeDirection   model.ChangeDirection `json:"changeDirection"`
	ChangeMagnitude   int                   `json:"changeMagnitude"`
	AuxiliaryScore    float64               `json:"auxiliaryScore"`
}

type pageResponse struct {
	Entries         []entryResponse `json:"entries"`
	TotalCount      int             `json:"totalCount"`
	TotalPages      int             `json:"totalPages"`
	Page            int             `json:"page"`
	PageSize        int             `json:"pageSize"`
	HasNextPage     bool            `json:"hasNextPage"`
	HasPreviousPage bool            `json:"hasPreviousPage"`
	LastUpdated     time.Time       `json:"lastUpdated"`
	Season          uint64          `json:"season,omitempty"`
	Source          types.Source    `json:"source"`
}

type snapshotRowResponse struct {
	ItemID            string  `json:"itemId"`
	FinalRank         int     `json:"finalRank"`
	TotalVotes        string  `json:"totalVotes"`
	PercentageOfTotal float64 `json:"percentageOfTotal"`
}

type snapshotResponse struct {
	Season          uint64                `json:"season"`
	StartTime       *time.Time            `json:"startTime,omitempty"`
	EndTime         *time.Time            `json:"endTime,omitempty"`
	TotalVotes      string                `json:"totalVotes"`
	TotalItemsCount int                   `json:"totalItemsCount"`
	TopItemID       string                `json:"topItemId"`
	TopItemVotes    string                `json:"topItemVotes"`
	FinalizedAt     time.Time             `json:"finalizedAt"`
	SnapshotHash    string                `json:"snapshotHash"`
	Rows            []snapshotRowResponse `json:"rows"`
}

type tallyResponse struct {
	ItemID     string     `json:"itemId"`
	Votes      string     `json:"votes"`
	VoteWeight float64    `json:"voteWeight"`
	VoterCount int64      `json:"voterCount"`
	CachedAt   *time.Time `json:"cachedAt,omitempty"`
}

type seasonStateResponse struct {
	Season    uint64            `json:"season"`
	State     model.SeasonState `json:"state"`
	Finalized bool              `json:"finalized"`
}

type finalizeResponse struct {
	Season uint64            `json:"season"`
	Status string            `json:"status"`
	State  model.SeasonState `json:"state,omitempty"`
}

type verifyResponse struct {
	Season uint64 `json:"season"`
	Valid  bool   `json:"valid"`
}

type cleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

func votesText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toPageResponse(p types.Page) pageResponse {
	entries := make([]entryResponse, len(p.Entries))
	for i, e := range p.Entries {
		entries[i] = entryResponse{
			Rank:              e.Rank,
			ItemID:            e.ItemID,
			Title:             e.Item.Title,
			Creator:           e.Item.Creator,
			ContentType:       e.Item.ContentType,
			Verified:          e.Item.Verified,
			Tags:              e.Item.Tags,
			CreatedAt:         optionalTime(e.Item.CreatedAt),
			TotalVotes:        votesText(e.TotalVotes),
			VoteWeight:        e.VoteWeight,
			VoterCount:        e.VoterCount,
			PercentageOfTotal: e.PercentageOfTotal,
			ChangeDirection:   e.ChangeDirection,
			ChangeMagnitude:   e.ChangeMagnitude,
			AuxiliaryScore:    e.AuxiliaryScore,
		}
	}
	return pageResponse{
		Entries:         entries,
		TotalCount:      p.TotalCount,
		TotalPages:      p.TotalPages,
		Page:            p.Page,
		PageSize:        p.PageSize,
		HasNextPage:     p.HasNextPage,
		HasPreviousPage: p.HasPreviousPage,
		LastUpdated:     p.LastUpdated,
		Season:          p.Season,
		Source:          p.Source,
	}
}

func toSnapshotResponse(meta model.FinalizedPeriodMetadata, rows []model.FinalizedSnapshotRow) snapshotResponse {
	out := snapshotResponse{
		Season:          meta.SeasonNumber,
		StartTime:       optionalTime(meta.StartTime),
		EndTime:         optionalTime(meta.EndTime),
		TotalVotes:      votesText(meta.TotalVotes),
		TotalItemsCount: meta.TotalItemsCount,
		TopItemID:       meta.TopItemID,
		TopItemVotes:    votesText(meta.TopItemVotes),
		FinalizedAt:     meta.FinalizedAt,
		SnapshotHash:    meta.SnapshotHash,
		Rows:            make([]snapshotRowResponse, len(rows)),
	}
	for i, r := range rows {
		out.Rows[i] = snapshotRowResponse{
			ItemID:            r.ItemID,
			FinalRank:         r.FinalRank,
			TotalVotes:        votesText(r.TotalVotes),
			PercentageOfTotal: r.PercentageOfTotal,
		}
	}
	return out
}

func toTallyResponse(t model.VoteTally) tallyResponse {
	return tallyResponse{
		ItemID:     t.ItemID,
		Votes:      votesText(t.Votes),
		VoteWeight: model.VoteWeight(t.Votes),
		VoterCount: t.VoterCount,
		CachedAt:   optionalTime(t.CachedAt),
	}
}
