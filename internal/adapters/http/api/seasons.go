package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okian/seasonboard/internal/domain/model"
)

// SeasonHandler handles finalization requests.
type SeasonHandler struct {
	deps SeasonDependencies
}

// NewSeasonHandler creates a new season handler.
func NewSeasonHandler(deps SeasonDependencies) *SeasonHandler {
	return &SeasonHandler{deps: deps}
}

func seasonParam(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["season"]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: season must be a positive integer, got %q", ErrBadRequest, raw)
	}
	return n, nil
}

// HandleState handles GET /seasons/{season}/state.
func (h *SeasonHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	season, err := seasonParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	state, err := h.deps.SeasonState(r.Context(), season)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seasonStateResponse{
		Season:    season,
		State:     state,
		Finalized: state == model.SeasonSnapshotted,
	})
}

// HandleSnapshot handles GET /seasons/{season}/snapshot.
func (h *SeasonHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	season, err := seasonParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	meta, rows, err := h.deps.Snapshot(r.Context(), season)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(meta, rows))
}

// HandleFinalize handles POST /seasons/{season}/finalize. Finalizing an
// already snapshotted season succeeds without changes.
func (h *SeasonHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	season, err := seasonParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.Finalize(r.Context(), season); err != nil {
		writeFailure(w, err)
		return
	}
	state, err := h.deps.SeasonState(r.Context(), season)
	if err != nil {
		writeFailure(w, err)
		return
	}
	status := "finalized"
	if state != model.SeasonSnapshotted {
		// an empty ranking records nothing
		status = "empty"
	}
	writeJSON(w, http.StatusOK, finalizeResponse{Season: season, Status: status, State: state})
}

// HandleVerify handles GET /seasons/{season}/verify.
func (h *SeasonHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	season, err := seasonParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	ok, err := h.deps.Verify(r.Context(), season)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Season: season, Valid: ok})
}

// HandleRepair handles POST /seasons/{season}/repair.
func (h *SeasonHandler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	season, err := seasonParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.Repair(r.Context(), season); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{Season: season, Status: "repaired"})
}

// HandleCleanup handles POST /seasons/cleanup?keep=N. Without keep the
// configured retention applies.
func (h *SeasonHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	keep := -1
	if s := r.URL.Query().Get("keep"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: keep must be a non-negative integer", ErrBadRequest))
			return
		}
		keep = n
	}
	n, err := h.deps.Cleanup(r.Context(), keep)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{Deleted: n})
}
