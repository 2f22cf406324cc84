package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/seasonboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LedgerTimeout(), convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.LedgerMaxConcurrency, convey.ShouldEqual, 16)
			convey.So(cfg.CacheFreshness(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.RecencyWindow(), convey.ShouldEqual, 30*24*time.Hour)
			convey.So(cfg.RankingMaxEntries, convey.ShouldEqual, 100)
			convey.So(cfg.SnapshotBatchSize, convey.ShouldEqual, 50)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the cache backend is unknown", func() {
			cfg.CacheBackend = "redis"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "cache_backend")
		})

		convey.Convey("When postgres caching has no DSN", func() {
			cfg.CacheBackend = config.CacheBackendPostgres
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When the snapshot driver is unknown", func() {
			cfg.SnapshotDriver = "mysql"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the page sizes are inconsistent", func() {
			cfg.DefaultPageSize = 200
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When retention is negative", func() {
			cfg.SnapshotKeepSeasons = -1
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}
