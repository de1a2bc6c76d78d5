package http

import (
	"time"

	"github.com/sawpanic/fundrun/internal/backtest"
	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
	"github.com/sawpanic/fundrun/internal/events"
	"github.com/sawpanic/fundrun/internal/persistence"
)

// ErrorResponse is the standardized error body for all API endpoints
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FundingResponse carries a funding-rate history slice
type FundingResponse struct {
	Coin         string         `json:"coin"`
	Source       string         `json:"source"` // "hyperliquid" or "mock"
	From         time.Time      `json:"from"`
	To           time.Time      `json:"to"`
	Observations int            `json:"observations"`
	Series       funding.Series `json:"series"`
}

// BacktestRequest asks for one strategy run over a coin's funding history.
// Days is ignored when Event is set; the run is then clipped to the window
// around the event. Params overrides the profile defaults when present.
type BacktestRequest struct {
	Coin             string           `json:"coin"`
	Strategy         string           `json:"strategy"`
	Days             int              `json:"days,omitempty"`
	Event            string           `json:"event,omitempty"`
	Mock             bool             `json:"mock,omitempty"`
	InitialCapital   float64          `json:"initial_capital,omitempty"`
	PositionFraction float64          `json:"position_fraction,omitempty"`
	Params           *strategy.Params `json:"params,omitempty"`
}

// BacktestResponse wraps a completed run with persistence and artifact info.
// TradesTruncated is set when the embedded trade list was capped; the stats
// and the artifact files still cover every trade.
type BacktestResponse struct {
	Run             *backtest.RunOutcome    `json:"run"`
	Persisted       bool                    `json:"persisted"`
	TradesTruncated bool                    `json:"trades_truncated,omitempty"`
	Artifacts       *backtest.ArtifactPaths `json:"artifacts,omitempty"`
}

// CompareRequest races every registered strategy over the same history
type CompareRequest struct {
	Coin  string `json:"coin"`
	Days  int    `json:"days,omitempty"`
	Event string `json:"event,omitempty"`
	Mock  bool   `json:"mock,omitempty"`
}

// CompareResponse wraps a completed strategy comparison
type CompareResponse struct {
	Comparison *backtest.ComparisonOutcome `json:"comparison"`
}

// EventsResponse lists the catalog entries available for windowed runs
type EventsResponse struct {
	Count  int            `json:"count"`
	Events []events.Event `json:"events"`
}

// RunsResponse lists stored backtest runs, newest first
type RunsResponse struct {
	Count int                     `json:"count"`
	Runs  []persistence.RunRecord `json:"runs"`
}

// RunDetailResponse is one stored run with its trades
type RunDetailResponse struct {
	Run    *persistence.RunRecord    `json:"run"`
	Trades []persistence.TradeRecord `json:"trades"`
}
