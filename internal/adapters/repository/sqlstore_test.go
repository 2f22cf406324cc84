package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/seasonboard/internal/domain/model"
)

func openSQLite(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), DialectSQLite, ":memory:", opts...)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fixture(season uint64, n int) (model.FinalizedPeriodMetadata, []model.FinalizedSnapshotRow) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]model.FinalizedSnapshotRow, n)
	total := new(big.Int)
	for i := range rows {
		votes := new(big.Int).Mul(big.NewInt(int64(n-i)), model.VoteScale)
		total.Add(total, votes)
		rows[i] = model.FinalizedSnapshotRow{
			SeasonNumber:      season,
			ItemID:            fmt.Sprintf("%d", 100+i),
			FinalRank:         i + 1,
			TotalVotes:        votes,
			PercentageOfTotal: 100 / float64(n),
			FinalizedAt:       at,
			SnapshotHash:      "abc",
		}
	}
	meta := model.FinalizedPeriodMetadata{
		SeasonNumber:    season,
		StartTime:       at.Add(-7 * 24 * time.Hour),
		EndTime:         at,
		TotalVotes:      total,
		TotalItemsCount: n,
		FinalizedAt:     at,
		SnapshotHash:    "abc",
	}
	if n > 0 {
		meta.TopItemID = rows[0].ItemID
		meta.TopItemVotes = rows[0].TotalVotes
	}
	return meta, rows
}

func TestSQLStoreSaveAndRead(t *testing.T) {
	Convey("Given an in-memory sqlite store with small batches", t, func() {
		ctx := context.Background()
		s := openSQLite(t, WithBatchSize(2))
		meta, rows := fixture(3, 5)

		Convey("When a season is saved", func() {
			So(s.Save(ctx, meta, rows), ShouldBeNil)

			Convey("Then metadata round-trips", func() {
				ok, err := s.HasSeason(ctx, 3)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)

				got, err := s.Metadata(ctx, 3)
				So(err, ShouldBeNil)
				So(got.SeasonNumber, ShouldEqual, 3)
				So(got.TotalVotes.Cmp(meta.TotalVotes), ShouldEqual, 0)
				So(got.TopItemID, ShouldEqual, "100")
				So(got.StartTime.Equal(meta.StartTime), ShouldBeTrue)
				So(got.FinalizedAt.Equal(meta.FinalizedAt), ShouldBeTrue)
				So(got.TotalItemsCount, ShouldEqual, 5)
			})

			Convey("Then rows come back ordered by rank", func() {
				got, err := s.Rows(ctx, 3)
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 5)
				for i, r := range got {
					So(r.FinalRank, ShouldEqual, i+1)
					So(r.TotalVotes.Cmp(rows[i].TotalVotes), ShouldEqual, 0)
				}
			})

			Convey("Then a second save is a duplicate", func() {
				err := s.Save(ctx, meta, rows)
				So(errors.Is(err, ErrDuplicateFinalization), ShouldBeTrue)
			})

			Convey("Then replace swaps the stored copy", func() {
				meta2, rows2 := fixture(3, 2)
				meta2.SnapshotHash = "def"
				So(s.Replace(ctx, meta2, rows2), ShouldBeNil)

				got, err := s.Metadata(ctx, 3)
				So(err, ShouldBeNil)
				So(got.SnapshotHash, ShouldEqual, "def")
				So(got.TotalItemsCount, ShouldEqual, 2)
				stored, err := s.Rows(ctx, 3)
				So(err, ShouldBeNil)
				So(len(stored), ShouldEqual, 2)
			})

			Convey("Then a failed replace keeps the stored copy", func() {
				meta2, rows2 := fixture(3, 3)
				meta2.SnapshotHash = "def"
				rows2[2].FinalRank = 1
				err := s.Replace(ctx, meta2, rows2)
				So(errors.Is(err, ErrDuplicateFinalization), ShouldBeTrue)

				got, err := s.Metadata(ctx, 3)
				So(err, ShouldBeNil)
				So(got.SnapshotHash, ShouldEqual, "abc")
				stored, err := s.Rows(ctx, 3)
				So(err, ShouldBeNil)
				So(len(stored), ShouldEqual, 5)
			})
		})

		Convey("When rows collide on rank", func() {
			rows[1].FinalRank = 1
			err := s.Save(ctx, meta, rows)

			Convey("Then nothing is persisted", func() {
				So(errors.Is(err, ErrDuplicateFinalization), ShouldBeTrue)
				ok, err := s.HasSeason(ctx, 3)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("Unknown seasons are not found", func() {
			_, err := s.Metadata(ctx, 42)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			got, err := s.Rows(ctx, 42)
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})
	})
}

func TestSQLStoreDelete(t *testing.T) {
	Convey("Given three stored seasons", t, func() {
		ctx := context.Background()
		s := openSQLite(t)
		for _, season := range []uint64{1, 2, 3} {
			meta, rows := fixture(season, 3)
			So(s.Save(ctx, meta, rows), ShouldBeNil)
		}

		Convey("DeleteBefore removes older seasons", func() {
			n, err := s.DeleteBefore(ctx, 3)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			seasons, err := s.Seasons(ctx)
			So(err, ShouldBeNil)
			So(seasons, ShouldResemble, []uint64{3})
			rows, _ := s.Rows(ctx, 1)
			So(rows, ShouldBeEmpty)
		})

		Convey("DeleteSeason removes one season", func() {
			ok, err := s.DeleteSeason(ctx, 2)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			ok, err = s.DeleteSeason(ctx, 2)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			seasons, _ := s.Seasons(ctx)
			So(seasons, ShouldResemble, []uint64{1, 3})
		})
	})
}

func TestDialect(t *testing.T) {
	Convey("Postgres placeholders are rebound", t, func() {
		So(DialectPostgres.rebind("a = ? AND b = ?"), ShouldEqual, "a = $1 AND b = $2")
		So(DialectSQLite.rebind("a = ?"), ShouldEqual, "a = ?")
	})

	Convey("Driver names are parsed", t, func() {
		d, err := ParseDialect(" SQLite ")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, DialectSQLite)
		_, err = ParseDialect("mysql")
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})
}

func TestPostgresSnapshotStore(t *testing.T) {
	dsn := os.Getenv("SEASONBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SEASONBOARD_TEST_POSTGRES_DSN not set")
	}
	Convey("Given a postgres snapshot store", t, func() {
		ctx := context.Background()
		s, err := Open(ctx, DialectPostgres, dsn)
		So(err, ShouldBeNil)
		defer s.Close()
		_, err = s.DeleteBefore(ctx, 1<<62)
		So(err, ShouldBeNil)

		meta, rows := fixture(9, 4)
		So(s.Save(ctx, meta, rows), ShouldBeNil)
		So(errors.Is(s.Save(ctx, meta, rows), ErrDuplicateFinalization), ShouldBeTrue)

		got, err := s.Rows(ctx, 9)
		So(err, ShouldBeNil)
		So(len(got), ShouldEqual, 4)
	})
}
