package ledger

import (
	"time"

	"github.com/okian/seasonboard/pkg/logger"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultMaxConcurrency = 16
)

// Option configures a Reader.
type Option func(*Reader)

// WithTimeout bounds every single contract call.
func WithTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxConcurrency bounds the bulk fan-out.
func WithMaxConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

// WithLogger sets the logger used for soft failures.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}
