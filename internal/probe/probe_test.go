package probe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/seasonboard/pkg/logger"
)

// fakeService pages a fixed list the way GET /leaderboard does.
type fakeService struct {
	entries  []Entry
	valid    map[uint64]bool
	requests atomic.Int32
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	switch {
	case r.URL.Path == "/healthz":
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == "/leaderboard":
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		lo := min((n-1)*size, len(f.entries))
		hi := min(lo+size, len(f.entries))
		_ = json.NewEncoder(w).Encode(page{
			Entries:    f.entries[lo:hi],
			TotalCount: len(f.entries),
			TotalPages: (len(f.entries) + size - 1) / size,
			Page:       n,
			Source:     "cache",
		})
	case strings.HasPrefix(r.URL.Path, "/seasons/"):
		raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/seasons/"), "/verify")
		s, _ := strconv.ParseUint(raw, 10, 64)
		_ = json.NewEncoder(w).Encode(verifyResult{Season: s, Valid: f.valid[s]})
	default:
		http.NotFound(w, r)
	}
}

func ranked(votes ...string) []Entry {
	out := make([]Entry, len(votes))
	for i, v := range votes {
		out[i] = Entry{Rank: i + 1, ItemID: strconv.Itoa(100 + i), TotalVotes: v, PercentageOfTotal: 10}
	}
	return out
}

func probeConfig(url string) *Config {
	return &Config{BaseURL: url, Period: "current", PageSize: 2, Workers: 3, Timeout: time.Second}
}

func TestRun(t *testing.T) {
	Convey("Given a service with five ranked entries", t, func() {
		fake := &fakeService{
			entries: ranked("50", "40", "40", "10", "0"),
			valid:   map[uint64]bool{1: true, 2: false},
		}
		srv := httptest.NewServer(fake)
		defer srv.Close()
		cfg := probeConfig(srv.URL)

		Convey("every page is walked and the ranking passes", func() {
			rep, err := Run(context.Background(), cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(rep.OK(), ShouldBeTrue)
			So(rep.Pages, ShouldEqual, 3)
			So(rep.Entries, ShouldEqual, 5)
			So(rep.Source, ShouldEqual, "cache")
			// health plus three pages
			So(fake.requests.Load(), ShouldEqual, 4)
		})

		Convey("an invalid snapshot fails the run", func() {
			cfg.Seasons = []uint64{1, 2}
			rep, err := Run(context.Background(), cfg, logger.Nop())
			So(errors.Is(err, ErrVerificationFailed), ShouldBeTrue)
			So(rep.SeasonsChecked, ShouldEqual, 2)
			So(rep.SeasonsInvalid, ShouldResemble, []uint64{2})
		})

		Convey("a broken ordering fails the run", func() {
			fake.entries[3].TotalVotes = "45"
			rep, err := Run(context.Background(), cfg, logger.Nop())
			So(errors.Is(err, ErrVerificationFailed), ShouldBeTrue)
			So(len(rep.Problems), ShouldEqual, 1)
		})
	})

	Convey("Given an unhealthy service", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := Run(context.Background(), probeConfig(srv.URL), logger.Nop())
		So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
		So(errors.Is(err, ErrVerificationFailed), ShouldBeFalse)
	})
}

func TestCheckEntries(t *testing.T) {
	Convey("Given collected entries", t, func() {
		Convey("a clean ranking has no problems", func() {
			So(CheckEntries(ranked("3", "2", "1"), 3), ShouldBeEmpty)
		})

		Convey("an empty ranking with zero total is clean", func() {
			So(CheckEntries(nil, 0), ShouldBeEmpty)
		})

		Convey("a rank gap is reported", func() {
			e := ranked("3", "2", "1")
			e[2].Rank = 4
			So(len(CheckEntries(e, 3)), ShouldEqual, 1)
		})

		Convey("duplicates and malformed votes are reported", func() {
			e := ranked("3", "2", "x")
			e[1].ItemID = e[0].ItemID
			So(len(CheckEntries(e, 3)), ShouldEqual, 2)
		})

		Convey("a count mismatch is reported", func() {
			So(len(CheckEntries(ranked("1"), 2)), ShouldEqual, 1)
		})

		Convey("percentages over 100 are reported", func() {
			e := ranked("3", "2")
			e[0].PercentageOfTotal = 70
			e[1].PercentageOfTotal = 40
			So(len(CheckEntries(e, 2)), ShouldEqual, 1)
		})
	})
}
