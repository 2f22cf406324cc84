package finalization

import (
	"errors"
	"fmt"
)

// Sentinel kinds for finalization errors.
var (
	// ErrNotFinalized is returned when the ledger has not closed the season.
	ErrNotFinalized = errors.New("season not finalized on ledger")
	// ErrIntegrityMismatch marks a stored snapshot whose hash no longer
	// matches its rows.
	ErrIntegrityMismatch = errors.New("snapshot integrity mismatch")
)

// IntegrityError describes a failed snapshot verification.
type IntegrityError struct {
	Season   uint64
	Expected string
	Actual   string
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("season %d: %s: stored %s, computed %s", e.Season, e.Reason, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityMismatch }
