package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrMissingDep     = errors.New("missing dependency")
	ErrCacheDisabled  = errors.New("tally cache disabled")
	ErrInvalidRequest = errors.New("invalid request")
)
