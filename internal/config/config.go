// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat so that SEASONBOARD_<KEY> env vars map 1:1 onto koanf tags.
// - Durations are expressed in explicit units (_ms, _seconds, _hours).
package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported backends.
const (
	CacheBackendMemory   = "memory"
	CacheBackendPostgres = "postgres"

	SnapshotDriverSQLite   = "sqlite"
	SnapshotDriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LedgerRPCURL is the JSON-RPC endpoint of the chain hosting the voting contract.
	LedgerRPCURL string `koanf:"ledger_rpc_url"`

	// LedgerContractAddress is the hex address of the voting contract.
	LedgerContractAddress string `koanf:"ledger_contract_address"`

	// LedgerTimeoutMS bounds every single ledger call.
	LedgerTimeoutMS int `koanf:"ledger_timeout_ms"`

	// LedgerMaxConcurrency caps the bulk fan-out towards the ledger endpoint.
	LedgerMaxConcurrency int `koanf:"ledger_max_concurrency"`

	// CacheBackend is memory or postgres.
	CacheBackend string `koanf:"cache_backend"`

	// CacheSize bounds the in-memory tally cache.
	CacheSize int `koanf:"cache_size"`

	// CacheFreshnessSeconds is the staleness window of a cached tally.
	CacheFreshnessSeconds int `koanf:"cache_freshness_seconds"`

	// CachePostgresDSN is required when CacheBackend is postgres.
	CachePostgresDSN string `koanf:"cache_postgres_dsn"`

	// SnapshotDriver is sqlite or postgres.
	SnapshotDriver string `koanf:"snapshot_driver"`

	// SnapshotDSN is the data source for the finalized snapshot store.
	SnapshotDSN string `koanf:"snapshot_dsn"`

	// SnapshotBatchSize is the number of rows per insert statement.
	SnapshotBatchSize int `koanf:"snapshot_batch_size"`

	// SnapshotKeepSeasons is the retention used by cleanup. Zero disables it.
	SnapshotKeepSeasons int `koanf:"snapshot_keep_seasons"`

	// RankingMaxEntries truncates every leaderboard.
	RankingMaxEntries int `koanf:"ranking_max_entries"`

	// RankingVerifiedBonus and RankingRecencyBonus feed the auxiliary score.
	RankingVerifiedBonus float64 `koanf:"ranking_verified_bonus"`
	RankingRecencyBonus  float64 `koanf:"ranking_recency_bonus"`

	// RankingRecencyWindowHours is the linear decay window of the recency bonus.
	RankingRecencyWindowHours int `koanf:"ranking_recency_window_hours"`

	// CatalogPath points at the YAML item catalog.
	CatalogPath string `koanf:"catalog_path"`

	// DefaultPageSize and MaxPageSize bound GET /leaderboard?pageSize.
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		LedgerTimeoutMS:           15_000,
		LedgerMaxConcurrency:      16,
		CacheBackend:              CacheBackendMemory,
		CacheSize:                 50_000,
		CacheFreshnessSeconds:     3600,
		SnapshotDriver:            SnapshotDriverSQLite,
		SnapshotDSN:               "file:seasonboard.db",
		SnapshotBatchSize:         50,
		SnapshotKeepSeasons:       0,
		RankingMaxEntries:         100,
		RankingVerifiedBonus:      5,
		RankingRecencyBonus:       10,
		RankingRecencyWindowHours: 30 * 24,
		CatalogPath:               "catalog.yaml",
		DefaultPageSize:           20,
		MaxPageSize:               100,
	}
}

// LedgerTimeout returns LedgerTimeoutMS as a duration.
func (c *Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutMS) * time.Millisecond
}

// CacheFreshness returns CacheFreshnessSeconds as a duration.
func (c *Config) CacheFreshness() time.Duration {
	return time.Duration(c.CacheFreshnessSeconds) * time.Second
}

// RecencyWindow returns RankingRecencyWindowHours as a duration.
func (c *Config) RecencyWindow() time.Duration {
	return time.Duration(c.RankingRecencyWindowHours) * time.Hour
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.LedgerTimeoutMS <= 0:
		return invalid("ledger_timeout_ms must be positive")
	case c.LedgerMaxConcurrency <= 0:
		return invalid("ledger_max_concurrency must be positive")
	case c.CacheFreshnessSeconds <= 0:
		return invalid("cache_freshness_seconds must be positive")
	case c.SnapshotBatchSize <= 0:
		return invalid("snapshot_batch_size must be positive")
	case c.SnapshotKeepSeasons < 0:
		return invalid("snapshot_keep_seasons must not be negative")
	case c.RankingMaxEntries <= 0:
		return invalid("ranking_max_entries must be positive")
	case c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize:
		return invalid("default_page_size must be positive and not exceed max_page_size")
	}

	switch c.CacheBackend {
	case CacheBackendMemory:
		if c.CacheSize <= 0 {
			return invalid("cache_size must be positive for the memory backend")
		}
	case CacheBackendPostgres:
		if c.CachePostgresDSN == "" {
			return invalid("cache_postgres_dsn is required for the postgres backend")
		}
	default:
		return invalid(fmt.Sprintf("unknown cache_backend %q", c.CacheBackend))
	}

	switch c.SnapshotDriver {
	case SnapshotDriverSQLite, SnapshotDriverPostgres:
	default:
		return invalid(fmt.Sprintf("unknown snapshot_driver %q", c.SnapshotDriver))
	}
	if c.SnapshotDSN == "" {
		return invalid("snapshot_dsn must not be empty")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
