package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sawpanic/fundrun/internal/domain/strategy"
	"github.com/sawpanic/fundrun/internal/persistence"
)

// Backtest handles POST /api/v1/backtest
func (h *Handlers) Backtest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request",
			"request body is not valid JSON: "+err.Error())
		return
	}

	if req.Coin == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_coin", "coin is required")
		return
	}
	if req.Strategy == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_strategy",
			"strategy is required; one of: "+strings.Join(strategy.Names(), ", "))
		return
	}
	if !validStrategy(req.Strategy) {
		h.writeError(w, r, http.StatusBadRequest, "unknown_strategy",
			fmt.Sprintf("unknown strategy %q; one of: %s", req.Strategy, strings.Join(strategy.Names(), ", ")))
		return
	}
	if !h.validateRunScope(w, r, &req.Days, req.Event) {
		return
	}
	if req.InitialCapital < 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_capital", "initial_capital must be positive")
		return
	}
	if req.PositionFraction < 0 || req.PositionFraction > 1 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_position_fraction",
			"position_fraction must be between 0 and 1")
		return
	}

	resp, err := h.svc.RunBacktest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "backtest_failed")
		return
	}

	// Responses carry at most maxResponseTrades trades; the artifacts hold
	// the full set.
	if resp.Run != nil && resp.Run.Result != nil && len(resp.Run.Result.Trades) > maxResponseTrades {
		resp.Run.Result.Trades = resp.Run.Result.Trades[:maxResponseTrades]
		resp.TradesTruncated = true
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Compare handles POST /api/v1/compare
func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request",
			"request body is not valid JSON: "+err.Error())
		return
	}

	if req.Coin == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_coin", "coin is required")
		return
	}
	if !h.validateRunScope(w, r, &req.Days, req.Event) {
		return
	}

	outcome, err := h.svc.CompareStrategies(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "compare_failed")
		return
	}

	h.writeJSON(w, http.StatusOK, CompareResponse{Comparison: outcome})
}

// Runs handles GET /api/v1/runs?coin=&limit=
func (h *Handlers) Runs(w http.ResponseWriter, r *http.Request) {
	if !h.svc.PersistenceEnabled() {
		h.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"database persistence is not enabled")
		return
	}

	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRunLimit {
			h.writeError(w, r, http.StatusBadRequest, "invalid_limit",
				fmt.Sprintf("limit must be an integer between 1 and %d", maxRunLimit))
			return
		}
		limit = parsed
	}

	runs, err := h.svc.ListRuns(r.Context(), r.URL.Query().Get("coin"), limit)
	if err != nil {
		h.writeServiceError(w, r, err, "runs_list_failed")
		return
	}
	if runs == nil {
		runs = []persistence.RunRecord{}
	}

	h.writeJSON(w, http.StatusOK, RunsResponse{
		Count: len(runs),
		Runs:  runs,
	})
}

// RunDetail handles GET /api/v1/runs/{id}
func (h *Handlers) RunDetail(w http.ResponseWriter, r *http.Request) {
	if !h.svc.PersistenceEnabled() {
		h.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"database persistence is not enabled")
		return
	}

	id := mux.Vars(r)["id"]
	run, trades, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "run_fetch_failed")
		return
	}
	if run == nil {
		h.writeError(w, r, http.StatusNotFound, "run_not_found",
			fmt.Sprintf("no stored run with ID %q", id))
		return
	}
	if trades == nil {
		trades = []persistence.TradeRecord{}
	}

	h.writeJSON(w, http.StatusOK, RunDetailResponse{
		Run:    run,
		Trades: trades,
	})
}

// validateRunScope checks the shared days/event fields of run requests,
// defaulting days when unset. It writes the error response itself.
func (h *Handlers) validateRunScope(w http.ResponseWriter, r *http.Request, days *int, event string) bool {
	if *days == 0 {
		*days = defaultDays
	}
	if *days < 1 || *days > maxDays {
		h.writeError(w, r, http.StatusBadRequest, "invalid_days",
			"days must be an integer between 1 and 365")
		return false
	}
	if event != "" {
		if _, ok := h.svc.Event(event); !ok {
			h.writeError(w, r, http.StatusNotFound, "unknown_event",
				fmt.Sprintf("event %q is not in the catalog", event))
			return false
		}
	}
	return true
}

func validStrategy(name string) bool {
	for _, n := range strategy.Names() {
		if n == name {
			return true
		}
	}
	return false
}
