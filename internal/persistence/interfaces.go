// Package persistence defines the storage contracts for completed backtest
// runs. Implementations live in subpackages; the engine itself never
// depends on them, so running without a database stays the default.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateRun is returned when a run ID has already been stored.
var ErrDuplicateRun = errors.New("duplicate run")

// TimeRange bounds a query window, both ends inclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// RunRecord is one completed backtest run with its headline statistics.
// Event fields are nil for full-series runs.
type RunRecord struct {
	ID             string                 `json:"id" db:"id"`
	Coin           string                 `json:"coin" db:"coin"`
	Strategy       string                 `json:"strategy" db:"strategy"`
	Params         map[string]interface{} `json:"params" db:"params"`
	EventName      *string                `json:"event_name,omitempty" db:"event_name"`
	WindowStart    *time.Time             `json:"window_start,omitempty" db:"window_start"`
	WindowEnd      *time.Time             `json:"window_end,omitempty" db:"window_end"`
	InitialCapital float64                `json:"initial_capital" db:"initial_capital"`
	FinalCapital   float64                `json:"final_capital" db:"final_capital"`
	TotalReturnPct float64                `json:"total_return_pct" db:"total_return_pct"`
	TotalTrades    int                    `json:"total_trades" db:"total_trades"`
	WinRate        float64                `json:"win_rate" db:"win_rate"`
	MaxDrawdown    float64                `json:"max_drawdown" db:"max_drawdown"`
	SharpeRatio    float64                `json:"sharpe_ratio" db:"sharpe_ratio"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
}

// TradeRecord is one closed trade belonging to a stored run.
type TradeRecord struct {
	ID            int64     `json:"id" db:"id"`
	RunID         string    `json:"run_id" db:"run_id"`
	Instrument    string    `json:"instrument" db:"instrument"`
	Side          string    `json:"side" db:"side"`
	EntryTime     time.Time `json:"entry_time" db:"entry_time"`
	ExitTime      time.Time `json:"exit_time" db:"exit_time"`
	EntryRate     float64   `json:"entry_rate" db:"entry_rate"`
	ExitRate      float64   `json:"exit_rate" db:"exit_rate"`
	Notional      float64   `json:"notional_size" db:"notional_size"`
	FundingPnL    float64   `json:"funding_pnl" db:"funding_pnl"`
	PricePnL      float64   `json:"price_pnl" db:"price_pnl"`
	TotalPnL      float64   `json:"total_pnl" db:"total_pnl"`
	DurationHours float64   `json:"duration_hours" db:"duration_hours"`
}

// RunsRepo stores completed runs and their trades.
type RunsRepo interface {
	// SaveRun stores the run row and its trades atomically.
	SaveRun(ctx context.Context, run RunRecord, trades []TradeRecord) error

	// GetRun returns one run by ID, nil when absent.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns runs for a coin within the range, newest first.
	ListRuns(ctx context.Context, coin string, tr TimeRange, limit int) ([]RunRecord, error)

	// GetLatest returns the most recent runs across all coins.
	GetLatest(ctx context.Context, limit int) ([]RunRecord, error)

	// ListTrades returns the trades for a run in entry order.
	ListTrades(ctx context.Context, runID string) ([]TradeRecord, error)

	// Count returns the number of stored runs in the range.
	Count(ctx context.Context, tr TimeRange) (int64, error)

	// CountByStrategy returns run counts grouped by strategy name.
	CountByStrategy(ctx context.Context, tr TimeRange) (map[string]int64, error)

	// EnsureSchema creates the backing tables when missing.
	EnsureSchema(ctx context.Context) error
}

// Repository aggregates the configured repositories.
type Repository struct {
	Runs RunsRepo
}

// HealthCheck reports storage connectivity and pool state.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth exposes liveness checks for the storage layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
