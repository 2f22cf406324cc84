// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/internal/domain/types"
)

// LeaderboardDependencies computes leaderboard pages.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, q types.Query) (types.Page, error)
}

// SeasonDependencies drives season finalization.
type SeasonDependencies interface {
	SeasonState(ctx context.Context, season uint64) (model.SeasonState, error)
	Snapshot(ctx context.Context, season uint64) (model.FinalizedPeriodMetadata, []model.FinalizedSnapshotRow, error)
	Finalize(ctx context.Context, season uint64) error
	Verify(ctx context.Context, season uint64) (bool, error)
	Repair(ctx context.Context, season uint64) error
	Cleanup(ctx context.Context, keep int) (int64, error)
}

// TallyDependencies exposes the tally cache.
type TallyDependencies interface {
	Tally(ctx context.Context, itemID string) (model.VoteTally, error)
	SyncTally(ctx context.Context, itemID string) (model.VoteTally, error)
	ClearTallies(ctx context.Context, itemIDs ...string) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	SeasonDependencies
	TallyDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	seasonHandler      *SeasonHandler
	tallyHandler       *TallyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps),
		seasonHandler:      NewSeasonHandler(deps),
		tallyHandler:       NewTallyHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	route := func(path, endpoint string, h http.HandlerFunc, methods ...string) {
		r.HandleFunc(path, MetricsMiddleware(h, endpoint)).Methods(methods...)
	}

	route("/healthz", "healthz", s.healthHandler.HandleHealth, http.MethodGet)
	route("/stats", "stats", s.statsHandler.HandleStats, http.MethodGet)
	route("/leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard, http.MethodGet)

	// literal segment before the {season} patterns
	route("/seasons/cleanup", "seasons_cleanup", s.seasonHandler.HandleCleanup, http.MethodPost)
	route("/seasons/{season}/state", "season_state", s.seasonHandler.HandleState, http.MethodGet)
	route("/seasons/{season}/snapshot", "season_snapshot", s.seasonHandler.HandleSnapshot, http.MethodGet)
	route("/seasons/{season}/finalize", "season_finalize", s.seasonHandler.HandleFinalize, http.MethodPost)
	route("/seasons/{season}/verify", "season_verify", s.seasonHandler.HandleVerify, http.MethodGet)
	route("/seasons/{season}/repair", "season_repair", s.seasonHandler.HandleRepair, http.MethodPost)

	route("/tallies", "tallies_clear", s.tallyHandler.HandleClear, http.MethodDelete)
	route("/tallies/{itemId}", "tally", s.tallyHandler.HandleGet, http.MethodGet)
	route("/tallies/{itemId}", "tally_clear", s.tallyHandler.HandleClear, http.MethodDelete)
	route("/tallies/{itemId}/sync", "tally_sync", s.tallyHandler.HandleSync, http.MethodPost)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto its HTTP status.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
