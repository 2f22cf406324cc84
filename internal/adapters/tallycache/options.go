package tallycache

import (
	"time"

	"github.com/okian/seasonboard/pkg/logger"
)

const defaultFreshness = time.Hour

// Option configures a Cache.
type Option func(*Cache)

// WithFreshness sets how long a cached tally is trusted.
func WithFreshness(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}
