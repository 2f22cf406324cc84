package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	// ErrTransient marks a ledger call that failed in transport, timed out or
	// reverted. Callers retry on their next request; nothing retries in-band.
	ErrTransient = errors.New("ledger unavailable")
	// ErrInvalidItemID is returned for item ids the contract cannot address.
	ErrInvalidItemID = errors.New("invalid ledger item id")
	// ErrDecode is returned when a contract answer does not match the ABI.
	ErrDecode = errors.New("unexpected ledger result")
)
