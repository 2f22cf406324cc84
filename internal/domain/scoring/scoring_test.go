package scoring

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/okian/seasonboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func bigs(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestScorerAuxiliary(t *testing.T) {
	Convey("Given a scorer with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		s := NewScorer(
			WithVerifiedBonus(5),
			WithRecencyBonus(10, 30*24*time.Hour),
			WithClock(func() time.Time { return now }),
		)

		Convey("When the item was created just now", func() {
			So(s.RecencyBonus(now), ShouldEqual, 10)
		})

		Convey("When the item is half way through the window", func() {
			So(s.RecencyBonus(now.Add(-15*24*time.Hour)), ShouldAlmostEqual, 5, 1e-9)
		})

		Convey("When the item is older than the window", func() {
			So(s.RecencyBonus(now.Add(-31*24*time.Hour)), ShouldEqual, 0)
		})

		Convey("When the creation time is unknown or in the future", func() {
			So(s.RecencyBonus(time.Time{}), ShouldEqual, 0)
			So(s.RecencyBonus(now.Add(time.Hour)), ShouldEqual, 10)
		})

		Convey("When scoring a verified old item", func() {
			item := model.Item{Verified: true, CreatedAt: now.Add(-60 * 24 * time.Hour)}
			So(s.Auxiliary(item, 12.5), ShouldEqual, 17.5)
		})

		Convey("When scoring an unverified fresh item", func() {
			item := model.Item{CreatedAt: now}
			So(s.Auxiliary(item, 1), ShouldEqual, 11)
		})
	})
}

func TestPercentages(t *testing.T) {
	Convey("Given vote amounts", t, func() {
		Convey("When votes are 200, 100, 100", func() {
			votes := bigs(200, 100, 100)
			pct := Percentages(votes, Sum(votes))

			Convey("Then shares are 50, 25, 25", func() {
				So(pct, ShouldResemble, []float64{50, 25, 25})
			})
		})

		Convey("When shares do not divide evenly", func() {
			votes := bigs(1, 1, 1)
			bps := BasisPoints(votes, Sum(votes))

			Convey("Then remainders are distributed to reach exactly 10000", func() {
				So(bps, ShouldResemble, []int64{3334, 3333, 3333})
			})
		})

		Convey("When all votes are zero", func() {
			votes := bigs(0, 0, 0)
			pct := Percentages(votes, Sum(votes))

			Convey("Then every share is exactly zero", func() {
				So(pct, ShouldResemble, []float64{0, 0, 0})
			})
		})

		Convey("When one hundred uneven amounts are split", func() {
			votes := make([]*big.Int, 100)
			for i := range votes {
				votes[i] = big.NewInt(int64(i*i*7 + 13))
			}
			pct := Percentages(votes, Sum(votes))

			Convey("Then the shares add up to 100 within tolerance", func() {
				var sum float64
				for _, p := range pct {
					sum += p
				}
				So(math.Abs(sum-100), ShouldBeLessThanOrEqualTo, 0.1)
			})
		})

		Convey("When amounts exceed 64 bits", func() {
			a, _ := new(big.Int).SetString("300000000000000000000000000000", 10)
			b, _ := new(big.Int).SetString("100000000000000000000000000000", 10)
			votes := []*big.Int{a, b, nil}
			pct := Percentages(votes, Sum(votes))

			Convey("Then integer arithmetic still yields exact shares", func() {
				So(pct, ShouldResemble, []float64{75, 25, 0})
			})
		})
	})
}
