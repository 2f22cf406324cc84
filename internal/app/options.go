package service

import (
	"time"

	"github.com/okian/seasonboard/internal/adapters/catalog"
	"github.com/okian/seasonboard/internal/adapters/ledger"
	"github.com/okian/seasonboard/internal/adapters/repository"
	"github.com/okian/seasonboard/internal/adapters/tallycache"
	"github.com/okian/seasonboard/internal/domain/scoring"
	"github.com/okian/seasonboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithContract sets the voting contract the service reads.
func WithContract(c ledger.Contract) Option {
	return func(s *Service) { s.contract = c }
}

// WithTallyStore enables the tally cache on top of store.
func WithTallyStore(store tallycache.Store) Option {
	return func(s *Service) { s.tallyStore = store }
}

// WithSnapshotStore sets where finalized seasons live.
func WithSnapshotStore(store repository.Store) Option {
	return func(s *Service) { s.snapshots = store }
}

// WithCatalog sets the item catalog.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithLedgerTimeout bounds each ledger call.
func WithLedgerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ledgerTimeout = d
		}
	}
}

// WithLedgerConcurrency bounds the bulk ledger fan-out.
func WithLedgerConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.ledgerConcurrency = n
		}
	}
}

// WithCacheFreshness sets the tally staleness window.
func WithCacheFreshness(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheFreshness = d
		}
	}
}

// WithMaxEntries caps ranked entries per leaderboard.
func WithMaxEntries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithPageSizes sets the default and maximum page sizes.
func WithPageSizes(def, max int) Option {
	return func(s *Service) {
		if def > 0 && max >= def {
			s.defaultPageSize, s.maxPageSize = def, max
		}
	}
}

// WithScorer sets the auxiliary scorer.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) { s.scorer = sc }
}

// WithKeepSeasons sets the default snapshot retention.
func WithKeepSeasons(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.keepSeasons = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
