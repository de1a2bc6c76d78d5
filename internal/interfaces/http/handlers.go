package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sawpanic/fundrun/internal/backtest"
	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/events"
	"github.com/sawpanic/fundrun/internal/persistence"
)

// Request and response bounds for the API surface.
const (
	defaultDays = 30
	maxDays     = 365

	defaultRunLimit = 20
	maxRunLimit     = 100

	// maxResponseTrades caps the trade list embedded in a backtest
	// response; the artifact files hold the complete set.
	maxResponseTrades = 100
)

// Service is what the handlers need from the engine. The application layer
// implements it; tests substitute fakes.
type Service interface {
	// FundingHistory returns the funding series for a coin covering the
	// last days of history, from the mock generator when mock is set.
	FundingHistory(ctx context.Context, coin string, days int, mock bool) (funding.Series, error)

	// RunBacktest executes one strategy run and persists it when storage
	// is enabled.
	RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error)

	// CompareStrategies races every registered strategy over one history.
	CompareStrategies(ctx context.Context, req CompareRequest) (*backtest.ComparisonOutcome, error)

	// Events returns the loaded catalog entries.
	Events() []events.Event

	// Event looks one catalog entry up by name.
	Event(name string) (events.Event, bool)

	// ListRuns returns stored runs, optionally filtered by coin.
	ListRuns(ctx context.Context, coin string, limit int) ([]persistence.RunRecord, error)

	// GetRun returns one stored run with its trades, nil when absent.
	GetRun(ctx context.Context, id string) (*persistence.RunRecord, []persistence.TradeRecord, error)

	// PersistenceEnabled reports whether stored-run endpoints can serve.
	PersistenceEnabled() bool
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	svc       Service
	dbHealth  persistence.RepositoryHealth
	metrics   *MetricsRegistry
	version   string
	startTime time.Time
}

// NewHandlers creates a new handlers instance. dbHealth may be nil when
// persistence is disabled.
func NewHandlers(svc Service, dbHealth persistence.RepositoryHealth, version string) *Handlers {
	metrics := DefaultMetrics
	if metrics == nil {
		InitializeMetrics()
		metrics = DefaultMetrics
	}

	return &Handlers{
		svc:       svc,
		dbHealth:  dbHealth,
		metrics:   metrics,
		version:   version,
		startTime: time.Now(),
	}
}

// Metrics returns the registry backing the /metrics endpoint
func (h *Handlers) Metrics() *MetricsRegistry {
	return h.metrics
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Fallback error response
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value("request_id").(string)
	if requestID == "" {
		requestID = "unknown"
	}

	errorResp := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}

	h.writeJSON(w, status, errorResp)
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// Events handles GET /api/v1/events, optionally filtered with ?coin=
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	all := h.svc.Events()

	if coin := r.URL.Query().Get("coin"); coin != "" {
		var filtered []events.Event
		for _, e := range all {
			if e.Instrument == coin {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}
	if all == nil {
		all = []events.Event{}
	}

	h.writeJSON(w, http.StatusOK, EventsResponse{
		Count:  len(all),
		Events: all,
	})
}

// Funding handles GET /api/v1/funding/{coin}?days=&mock=
func (h *Handlers) Funding(w http.ResponseWriter, r *http.Request) {
	coin := mux.Vars(r)["coin"]
	if coin == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_coin", "coin path parameter is required")
		return
	}

	days, ok := h.parseDays(w, r, r.URL.Query().Get("days"))
	if !ok {
		return
	}
	mock := isTruthy(r.URL.Query().Get("mock"))

	series, err := h.svc.FundingHistory(r.Context(), coin, days, mock)
	if err != nil {
		h.writeServiceError(w, r, err, "funding_fetch_failed")
		return
	}

	resp := FundingResponse{
		Coin:         coin,
		Source:       sourceName(mock),
		Observations: len(series),
		Series:       series,
	}
	if len(series) > 0 {
		resp.From = series[0].Time
		resp.To = series[len(series)-1].Time
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// parseDays validates the days parameter, writing the 400 itself on bad
// input so callers can simply return.
func (h *Handlers) parseDays(w http.ResponseWriter, r *http.Request, raw string) (int, bool) {
	if raw == "" {
		return defaultDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxDays {
		h.writeError(w, r, http.StatusBadRequest, "invalid_days",
			"days must be an integer between 1 and 365")
		return 0, false
	}
	return days, true
}

// writeServiceError maps engine failures onto HTTP statuses
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error, code string) {
	if r.Context().Err() == context.DeadlineExceeded {
		h.writeError(w, r, http.StatusGatewayTimeout, "timeout", "request deadline exceeded")
		return
	}
	h.writeError(w, r, http.StatusInternalServerError, code, err.Error())
}

func sourceName(mock bool) string {
	if mock {
		return "mock"
	}
	return "hyperliquid"
}

func isTruthy(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
