package tallycache

import "errors"

// ErrStoreUnavailable is returned when the backing store cannot be reached.
var ErrStoreUnavailable = errors.New("tally store unavailable")
