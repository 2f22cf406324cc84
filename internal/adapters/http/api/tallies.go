package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// TallyHandler handles tally cache requests.
type TallyHandler struct {
	deps TallyDependencies
}

// NewTallyHandler creates a new tally handler.
func NewTallyHandler(deps TallyDependencies) *TallyHandler {
	return &TallyHandler{deps: deps}
}

// HandleGet handles GET /tallies/{itemId}.
func (h *TallyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Tally(r.Context(), mux.Vars(r)["itemId"])
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTallyResponse(t))
}

// HandleSync handles POST /tallies/{itemId}/sync.
func (h *TallyHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.SyncTally(r.Context(), mux.Vars(r)["itemId"])
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTallyResponse(t))
}

// HandleClear handles DELETE /tallies and DELETE /tallies/{itemId}.
func (h *TallyHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if id, ok := mux.Vars(r)["itemId"]; ok {
		ids = append(ids, id)
	}
	if err := h.deps.ClearTallies(r.Context(), ids...); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
