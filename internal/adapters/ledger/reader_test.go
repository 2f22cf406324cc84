package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// slowContract blocks until the call context ends and tracks concurrency.
type slowContract struct {
	*MemoryContract
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *slowContract) VotesInSeason(ctx context.Context, season, itemID uint64) (*big.Int, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
		return big.NewInt(int64(itemID)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestReaderVotes(t *testing.T) {
	Convey("Given a reader over an in-memory ledger", t, func() {
		ctx := context.Background()
		mc := NewMemoryContract(2)
		mc.SetVotes(2, 1, big.NewInt(300))
		mc.SetVotes(2, 2, big.NewInt(100))
		r := NewReader(mc)

		Convey("FetchVotes returns recorded votes", func() {
			v, err := r.FetchVotes(ctx, 2, "1")
			So(err, ShouldBeNil)
			So(v.Int64(), ShouldEqual, 300)
		})

		Convey("Non-numeric item ids are rejected", func() {
			_, err := r.FetchVotes(ctx, 2, "abc")
			So(errors.Is(err, ErrInvalidItemID), ShouldBeTrue)
			So(r.Votes(ctx, 2, "abc").Sign(), ShouldEqual, 0)
		})

		Convey("When an item read fails", func() {
			mc.FailItem(2, errors.New("execution reverted"))

			Convey("Then the strict read reports a transient error", func() {
				_, err := r.FetchVotes(ctx, 2, "2")
				So(errors.Is(err, ErrTransient), ShouldBeTrue)
			})

			Convey("Then the soft read returns zero", func() {
				So(r.Votes(ctx, 2, "2").Sign(), ShouldEqual, 0)
			})

			Convey("Then the bulk read degrades only that item", func() {
				got := r.VotesBulk(ctx, 2, []string{"1", "2", "1"})
				So(len(got), ShouldEqual, 2)
				So(got["1"].Int64(), ShouldEqual, 300)
				So(got["2"].Sign(), ShouldEqual, 0)

				votes, failed := r.FetchVotesBulk(ctx, 2, []string{"1", "2"})
				So(votes, ShouldContainKey, "1")
				So(failed, ShouldContainKey, "2")
				So(votes, ShouldNotContainKey, "2")
			})
		})

		Convey("Period reads are strict", func() {
			mc.Finalize(2)
			done, err := r.IsFinalized(ctx, 2)
			So(err, ShouldBeNil)
			So(done, ShouldBeTrue)

			open, err := r.IsFinalized(ctx, 3)
			So(err, ShouldBeNil)
			So(open, ShouldBeFalse)

			mc.FailAll(errors.New("rpc down"))
			_, err = r.IsFinalized(ctx, 2)
			So(errors.Is(err, ErrTransient), ShouldBeTrue)
			_, err = r.CurrentSeason(ctx)
			So(errors.Is(err, ErrTransient), ShouldBeTrue)
		})

		Convey("CurrentSeason reads the ledger", func() {
			s, err := r.CurrentSeason(ctx)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, 2)
		})
	})
}

func TestReaderTimeoutsAndFanOut(t *testing.T) {
	Convey("Given a slow contract", t, func() {
		sc := &slowContract{MemoryContract: NewMemoryContract(1), delay: 20 * time.Millisecond}

		Convey("When the per-call timeout is shorter than the call", func() {
			r := NewReader(sc, WithTimeout(time.Millisecond))
			_, err := r.FetchVotes(context.Background(), 1, "5")

			Convey("Then the call fails as transient", func() {
				So(errors.Is(err, ErrTransient), ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("When the request context is already cancelled", func() {
			r := NewReader(sc)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			So(r.Votes(ctx, 1, "5").Sign(), ShouldEqual, 0)
		})

		Convey("When bulk reading more items than the concurrency limit", func() {
			r := NewReader(sc, WithMaxConcurrency(3))
			ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
			got := r.VotesBulk(context.Background(), 1, ids)

			Convey("Then every item is read and the limit holds", func() {
				So(len(got), ShouldEqual, len(ids))
				So(got["7"].Int64(), ShouldEqual, 7)
				So(sc.peak.Load(), ShouldBeLessThanOrEqualTo, 3)
				So(sc.peak.Load(), ShouldBeGreaterThan, 0)
			})
		})
	})
}
