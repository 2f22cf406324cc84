package finalization

import (
	"time"

	"github.com/okian/seasonboard/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for finalizedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
