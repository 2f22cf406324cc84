package ranking

import (
	"time"

	"github.com/okian/seasonboard/internal/domain/scoring"
	"github.com/okian/seasonboard/pkg/logger"
)

const (
	defaultMaxEntries  = 100
	defaultPageSize    = 20
	defaultMaxPageSize = 100
)

// Option configures an Engine.
type Option func(*Engine)

// WithTallies makes the engine read tallies through a cache first.
func WithTallies(t Tallies) Option {
	return func(e *Engine) { e.tallies = t }
}

// WithSnapshots lets historical seasons be served from stored snapshots.
func WithSnapshots(s Snapshots) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithMaxEntries caps the ranked set before pagination.
func WithMaxEntries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxEntries = n
		}
	}
}

// WithPageSizes sets the default and maximum page sizes.
func WithPageSizes(def, max int) Option {
	return func(e *Engine) {
		if def > 0 && max >= def {
			e.defaultPageSize, e.maxPageSize = def, max
		}
	}
}

// WithScorer sets the auxiliary scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
