package repository

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrNotFound = errors.New("snapshot not found")
	// ErrDuplicateFinalization is returned when a season, item or rank is
	// already stored. The schema constraints are what make finalization safe
	// under concurrent callers.
	ErrDuplicateFinalization = errors.New("season already finalized")
	ErrUnknownDriver         = errors.New("unknown snapshot driver")
)
