package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/types"
)

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	page, err := h.deps.Leaderboard(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func parseQuery(v url.Values) (types.Query, error) {
	q := types.Query{Period: v.Get("period")}
	var err error

	if q.Page, err = optionalInt(v, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = optionalInt(v, "pageSize"); err != nil {
		return q, err
	}
	if q.SortBy, err = types.ParseSortBy(v.Get("sortBy")); err != nil {
		return q, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if q.SortOrder, err = types.ParseSortOrder(v.Get("sortOrder")); err != nil {
		return q, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	q.Filters.Search = strings.TrimSpace(firstOf(v, "search", "searchQuery"))
	if ct := v.Get("contentType"); ct != "" {
		if q.Filters.ContentType, err = model.ParseContentType(ct); err != nil {
			return q, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	if mv := v.Get("minVotes"); mv != "" {
		f, err := strconv.ParseFloat(mv, 64)
		if err != nil || f < 0 {
			return q, fmt.Errorf("%w: minVotes must be a non-negative number", ErrBadRequest)
		}
		q.Filters.MinVotes = f
	}
	return q, nil
}

func optionalInt(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, key)
	}
	return n, nil
}

func firstOf(v url.Values, keys ...string) string {
	for _, k := range keys {
		if s := v.Get(k); s != "" {
			return s
		}
	}
	return ""
}
