package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/seasonboard/internal/adapters/catalog"
	"github.com/okian/seasonboard/internal/adapters/ledger"
	"github.com/okian/seasonboard/internal/adapters/tallycache"
	"github.com/okian/seasonboard/internal/config"
	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.SnapshotDSN = "file::memory:"
	return cfg
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("SEASONBOARD_ADDR", ":8080")
	t.Setenv("SEASONBOARD_CACHE_SIZE", "1000")
	t.Setenv("SEASONBOARD_LEDGER_MAX_CONCURRENCY", "4")

	convey.Convey("Given SEASONBOARD_ environment variables", t, func() {
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
		convey.So(cfg.CacheSize, convey.ShouldEqual, 1000)
		convey.So(cfg.LedgerMaxConcurrency, convey.ShouldEqual, 4)
	})
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given a local configuration without an RPC endpoint", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		cat := catalog.Static{
			{ID: "1", Title: "First", ContentType: model.ContentImage},
			{ID: "2", Title: "Second", ContentType: model.ContentText},
		}

		svc, err := buildService(ctx, cfg, cat, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		r := newRouter(ctx, svc)

		convey.Convey("The leaderboard is served", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("The OpenAPI document is served", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("An open season cannot be finalized", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/seasons/1/finalize", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusConflict)
		})
	})
}

func TestBuildBackends(t *testing.T) {
	convey.Convey("Given backend builders", t, func() {
		ctx := context.Background()

		convey.Convey("an empty RPC URL yields the in-process ledger", func() {
			c, err := buildContract(ctx, testConfig(), logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			_, ok := c.(*ledger.MemoryContract)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("a malformed contract address is rejected before dialing", func() {
			cfg := testConfig()
			cfg.LedgerRPCURL = "http://127.0.0.1:1"
			cfg.LedgerContractAddress = "not-an-address"
			_, err := buildContract(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("the memory tally store is the default", func() {
			s, err := buildTallyStore(ctx, testConfig())
			convey.So(err, convey.ShouldBeNil)
			_, ok := s.(*tallycache.MemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("an unknown snapshot driver fails", func() {
			cfg := testConfig()
			cfg.SnapshotDriver = "oracle"
			_, err := buildSnapshotStore(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("sqlite snapshots open in memory", func() {
			s, err := buildSnapshotStore(ctx, testConfig())
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Close(), convey.ShouldBeNil)
		})
	})
}

func TestRunFailsOnMissingCatalog(t *testing.T) {
	convey.Convey("run stops before serving when the catalog is missing", t, func() {
		cfg := testConfig()
		cfg.CatalogPath = filepath.Join(t.TempDir(), "absent.yaml")
		err := run(context.Background(), cfg, logger.Nop())
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestCatalogReload(t *testing.T) {
	convey.Convey("watchCatalogReload returns once the context ends", t, func() {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		convey.So(os.WriteFile(path, []byte("items:\n  - id: \"1\"\n    title: one\n"), 0o600), convey.ShouldBeNil)
		cat, err := catalog.Open(path)
		convey.So(err, convey.ShouldBeNil)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		done := make(chan struct{})
		go func() {
			watchCatalogReload(ctx, cat, logger.Nop())
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		convey.So(ctx.Err(), convey.ShouldNotBeNil)
		convey.So(cat.Len(), convey.ShouldEqual, 1)
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
	})
}
