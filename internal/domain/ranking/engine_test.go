package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/seasonboard/internal/adapters/ledger"
	"github.com/okian/seasonboard/internal/adapters/repository"
	"github.com/okian/seasonboard/internal/adapters/tallycache"
	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/period"
	"github.com/okian/seasonboard/internal/domain/types"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func votes(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), model.VoteScale)
}

func item(id string) model.Item {
	return model.Item{ID: id, Title: "item " + id, Creator: "c" + id, CreatedAt: testNow.Add(-time.Hour), ContentType: model.ContentImage}
}

func newEngine(mc *ledger.MemoryContract, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(ledger.NewReader(mc), opts...)
}

func TestComputeOrdering(t *testing.T) {
	Convey("Given items A=200, B=100, C=100 on the ledger", t, func() {
		ctx := context.Background()
		mc := ledger.NewMemoryContract(1)
		mc.SetVotes(1, 1, votes(200))
		mc.SetVotes(1, 2, votes(100))
		mc.SetVotes(1, 3, votes(100))
		items := []model.Item{item("3"), item("2"), item("1")}
		e := newEngine(mc)

		page, err := e.Compute(ctx, items, types.Query{})
		So(err, ShouldBeNil)

		Convey("Then ranks are sequential and ties do not share a rank", func() {
			So(len(page.Entries), ShouldEqual, 3)
			So(page.Entries[0].ItemID, ShouldEqual, "1")
			So(page.Entries[1].ItemID, ShouldEqual, "2")
			So(page.Entries[2].ItemID, ShouldEqual, "3")
			for i, en := range page.Entries {
				So(en.Rank, ShouldEqual, i+1)
			}
		})

		Convey("Then percentages are 50, 25, 25", func() {
			So(page.Entries[0].PercentageOfTotal, ShouldEqual, 50.0)
			So(page.Entries[1].PercentageOfTotal, ShouldEqual, 25.0)
			So(page.Entries[2].PercentageOfTotal, ShouldEqual, 25.0)
			So(page.Entries[0].VoteWeight, ShouldEqual, 200.0)
		})

		Convey("Then the page is sourced from the ledger for the current season", func() {
			So(page.Source, ShouldEqual, types.SourceLedger)
			So(page.Season, ShouldEqual, 1)
			So(page.LastUpdated.Equal(testNow), ShouldBeTrue)
			So(page.TotalCount, ShouldEqual, 3)
			So(page.TotalPages, ShouldEqual, 1)
		})
	})
}

func TestComputeTruncationAndShares(t *testing.T) {
	Convey("Given 150 items with uneven votes", t, func() {
		mc := ledger.NewMemoryContract(1)
		items := make([]model.Item, 150)
		for i := range items {
			items[i] = item(fmt.Sprintf("%d", i+1))
			mc.SetVotes(1, uint64(i+1), big.NewInt(int64(i*7919%1013+1)))
		}
		e := newEngine(mc)

		page, err := e.Compute(context.Background(), items, types.Query{PageSize: 100})
		So(err, ShouldBeNil)

		Convey("Then exactly 100 entries are ranked 1..100", func() {
			So(page.TotalCount, ShouldEqual, 100)
			So(len(page.Entries), ShouldEqual, 100)
			for i, en := range page.Entries {
				So(en.Rank, ShouldEqual, i+1)
			}
		})

		Convey("Then percentages sum to 100", func() {
			sum := 0.0
			for _, en := range page.Entries {
				sum += en.PercentageOfTotal
			}
			So(math.Abs(sum-100), ShouldBeLessThanOrEqualTo, 0.1)
		})
	})

	Convey("Given items without any votes", t, func() {
		e := newEngine(ledger.NewMemoryContract(1))
		page, err := e.Compute(context.Background(), []model.Item{item("1"), item("2")}, types.Query{})
		So(err, ShouldBeNil)
		for _, en := range page.Entries {
			So(en.PercentageOfTotal, ShouldEqual, 0)
		}
	})
}

func TestComputeDegradation(t *testing.T) {
	Convey("Given a ledger that is down and no cache", t, func() {
		mc := ledger.NewMemoryContract(1)
		mc.SetVotes(1, 1, votes(5))
		mc.FailAll(errors.New("rpc down"))
		e := newEngine(mc)

		page, err := e.Compute(context.Background(), []model.Item{item("1"), item("2")}, types.Query{})

		Convey("Then an all-zero ranking is returned without error", func() {
			So(err, ShouldBeNil)
			So(len(page.Entries), ShouldEqual, 2)
			for _, en := range page.Entries {
				So(en.TotalVotes.Sign(), ShouldEqual, 0)
			}
		})
	})

	Convey("Given a cache in front of the ledger", t, func() {
		mc := ledger.NewMemoryContract(2)
		mc.SetVotes(2, 1, votes(9))
		reader := ledger.NewReader(mc)
		store, err := tallycache.NewMemoryStore(10)
		So(err, ShouldBeNil)
		cache := tallycache.New(store, reader)
		e := New(reader, WithTallies(cache))

		page, err := e.Compute(context.Background(), []model.Item{item("1")}, types.Query{})
		So(err, ShouldBeNil)
		So(page.Source, ShouldEqual, types.SourceCache)
		So(page.Season, ShouldEqual, 2)
		So(page.Entries[0].VoteWeight, ShouldEqual, 9.0)
		So(page.Entries[0].VoterCount, ShouldEqual, 1)
	})

	Convey("An unknown period is rejected", t, func() {
		e := newEngine(ledger.NewMemoryContract(1))
		_, err := e.Compute(context.Background(), nil, types.Query{Period: "fortnight"})
		So(errors.Is(err, period.ErrInvalidSelector), ShouldBeTrue)
	})
}

func TestComputeViewAndPaging(t *testing.T) {
	Convey("Given 45 ranked items", t, func() {
		mc := ledger.NewMemoryContract(1)
		items := make([]model.Item, 45)
		for i := range items {
			items[i] = item(fmt.Sprintf("%d", i+1))
			mc.SetVotes(1, uint64(i+1), votes(int64(100-i)))
		}
		items[3].Title = "Golden Hour"
		items[3].ContentType = model.ContentVideo
		items[10].Verified = true
		items[20].CreatedAt = testNow.Add(-40 * 24 * time.Hour)
		e := newEngine(mc)
		ctx := context.Background()

		Convey("Change hints mark the top three and verified items", func() {
			page, _ := e.Compute(ctx, items, types.Query{PageSize: 20})
			So(page.Entries[0].ChangeDirection, ShouldEqual, model.ChangeUp)
			So(page.Entries[2].ChangeMagnitude, ShouldEqual, 1)
			So(page.Entries[3].ChangeDirection, ShouldEqual, model.ChangeSame)
			So(page.Entries[10].ChangeDirection, ShouldEqual, model.ChangeUp)
		})

		Convey("The last page is partial", func() {
			page, _ := e.Compute(ctx, items, types.Query{Page: 3, PageSize: 20})
			So(len(page.Entries), ShouldEqual, 5)
			So(page.TotalPages, ShouldEqual, 3)
			So(page.HasNextPage, ShouldBeFalse)
			So(page.HasPreviousPage, ShouldBeTrue)
			So(page.Entries[0].Rank, ShouldEqual, 41)
		})

		Convey("Pages beyond the end are empty", func() {
			page, _ := e.Compute(ctx, items, types.Query{Page: 9})
			So(page.Entries, ShouldBeEmpty)
			So(page.HasNextPage, ShouldBeFalse)
		})

		Convey("Oversized pages are capped", func() {
			page, _ := e.Compute(ctx, items, types.Query{PageSize: 1000})
			So(page.PageSize, ShouldEqual, 100)
		})

		Convey("Filters keep original ranks", func() {
			page, _ := e.Compute(ctx, items, types.Query{Filters: types.Filters{Search: "golden"}})
			So(len(page.Entries), ShouldEqual, 1)
			So(page.Entries[0].Rank, ShouldEqual, 4)

			page, _ = e.Compute(ctx, items, types.Query{Filters: types.Filters{ContentType: model.ContentVideo}})
			So(len(page.Entries), ShouldEqual, 1)

			page, _ = e.Compute(ctx, items, types.Query{PageSize: 100, Filters: types.Filters{MinVotes: 96}})
			So(page.TotalCount, ShouldEqual, 5)
		})

		Convey("Window selectors drop old items", func() {
			page, _ := e.Compute(ctx, items, types.Query{Period: "30d", PageSize: 100})
			So(page.TotalCount, ShouldEqual, 44)
		})

		Convey("Sorting reorders without re-ranking", func() {
			page, _ := e.Compute(ctx, items, types.Query{SortBy: types.SortVotes, SortOrder: types.OrderAsc})
			So(page.Entries[0].Rank, ShouldEqual, 45)

			page, _ = e.Compute(ctx, items, types.Query{SortBy: types.SortTitle})
			So(page.Entries[0].Item.Title, ShouldEqual, "Golden Hour")
			So(page.Entries[0].Rank, ShouldEqual, 4)

			page, _ = e.Compute(ctx, items, types.Query{SortBy: types.SortRank})
			So(page.Entries[0].Rank, ShouldEqual, 1)
		})
	})
}

func TestHistoricalSeasons(t *testing.T) {
	Convey("Given a finalized season 3 stored as a snapshot", t, func() {
		ctx := context.Background()
		store, err := repository.Open(ctx, repository.DialectSQLite, ":memory:")
		So(err, ShouldBeNil)
		defer store.Close()

		finalizedAt := testNow.Add(-24 * time.Hour)
		So(store.Save(ctx, model.FinalizedPeriodMetadata{
			SeasonNumber: 3, TotalVotes: votes(10), TotalItemsCount: 1, TopItemID: "1",
			TopItemVotes: votes(10), FinalizedAt: finalizedAt, SnapshotHash: "h",
		}, []model.FinalizedSnapshotRow{{
			SeasonNumber: 3, ItemID: "1", FinalRank: 1, TotalVotes: votes(10),
			PercentageOfTotal: 100, FinalizedAt: finalizedAt, SnapshotHash: "h",
		}}), ShouldBeNil)

		mc := ledger.NewMemoryContract(5)
		mc.SetVotes(3, 1, votes(999))
		mc.SetVotes(4, 1, votes(7))
		e := newEngine(mc, WithSnapshots(store))

		Convey("Then the snapshot is served instead of the ledger", func() {
			page, err := e.Compute(ctx, []model.Item{item("1")}, types.Query{Period: "season-3"})
			So(err, ShouldBeNil)
			So(page.Source, ShouldEqual, types.SourceSnapshot)
			So(page.Entries[0].VoteWeight, ShouldEqual, 10.0)
			So(page.Entries[0].ChangeDirection, ShouldEqual, model.ChangeSame)
			So(page.Entries[0].Item.Title, ShouldEqual, "item 1")
			So(page.LastUpdated.Equal(finalizedAt), ShouldBeTrue)
		})

		Convey("Then a season without snapshot is read from the ledger", func() {
			page, err := e.Compute(ctx, []model.Item{item("1")}, types.Query{Period: "season:4"})
			So(err, ShouldBeNil)
			So(page.Source, ShouldEqual, types.SourceLedger)
			So(page.Season, ShouldEqual, 4)
			So(page.Entries[0].VoteWeight, ShouldEqual, 7.0)
		})
	})
}

func TestComputeSeason(t *testing.T) {
	Convey("Given a closed season on the ledger", t, func() {
		mc := ledger.NewMemoryContract(2)
		mc.SetVotes(1, 1, votes(3))
		mc.SetVotes(1, 2, votes(1))
		e := newEngine(mc)
		items := []model.Item{item("1"), item("2")}

		Convey("When every read succeeds", func() {
			entries, err := e.ComputeSeason(context.Background(), items, 1)
			So(err, ShouldBeNil)
			So(entries[0].ItemID, ShouldEqual, "1")
			So(entries[0].PercentageOfTotal, ShouldEqual, 75.0)
		})

		Convey("When one read fails", func() {
			mc.FailItem(2, errors.New("reverted"))
			_, err := e.ComputeSeason(context.Background(), items, 1)
			So(errors.Is(err, ErrLedgerIncomplete), ShouldBeTrue)
		})
	})
}
