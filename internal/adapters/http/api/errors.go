package api

import (
	"errors"
	"net/http"

	"github.com/okian/seasonboard/internal/adapters/ledger"
	"github.com/okian/seasonboard/internal/adapters/repository"
	"github.com/okian/seasonboard/internal/adapters/tallycache"
	service "github.com/okian/seasonboard/internal/app"
	"github.com/okian/seasonboard/internal/domain/finalization"
	"github.com/okian/seasonboard/internal/domain/period"
	"github.com/okian/seasonboard/internal/domain/ranking"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// statusFor maps domain errors onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, period.ErrInvalidSelector),
		errors.Is(err, ledger.ErrInvalidItemID),
		errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, finalization.ErrNotFinalized):
		return http.StatusConflict, "not_finalized"
	case errors.Is(err, service.ErrCacheDisabled):
		return http.StatusNotImplemented, "cache_disabled"
	case errors.Is(err, ledger.ErrTransient),
		errors.Is(err, tallycache.ErrStoreUnavailable),
		errors.Is(err, ranking.ErrLedgerIncomplete),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
