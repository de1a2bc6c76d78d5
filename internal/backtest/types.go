// Package backtest simulates the capital consequences of following
// funding-rate signals: a position simulator, its performance statistics, the
// event windower that scopes a series around a catalyst, and the comparator
// that races every strategy over the same input.
package backtest

import (
	"time"

	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

// Side is the direction of an open position or closed trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func sideOf(kind strategy.Kind) Side {
	if kind == strategy.KindLong {
		return SideLong
	}
	return SideShort
}

// Position is the open-trade state for one instrument. Created on the first
// non-HOLD signal while flat, mutated by funding accrual every subsequent
// tick, and destroyed at closure.
type Position struct {
	Instrument string    `json:"instrument"`
	Side       Side      `json:"side"`
	EntryTime  time.Time `json:"entry_time"`
	EntryRate  float64   `json:"entry_rate"`
	Notional   float64   `json:"notional_size"`
	FundingPnL float64   `json:"accrued_funding_pnl"`
}

// Trade is the immutable record of a closed position. PricePnL is the
// rate-change leg alone; TotalPnL adds the funding accrued over the holding
// period.
type Trade struct {
	Instrument    string    `json:"instrument"`
	Side          Side      `json:"side"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
	EntryRate     float64   `json:"entry_rate"`
	ExitRate      float64   `json:"exit_rate"`
	Notional      float64   `json:"notional_size"`
	FundingPnL    float64   `json:"funding_pnl"`
	PricePnL      float64   `json:"price_pnl"`
	TotalPnL      float64   `json:"total_pnl"`
	DurationHours float64   `json:"duration_hours"`
}

// Snapshot is one point on the equity curve.
type Snapshot struct {
	Time    time.Time `json:"time"`
	Capital float64   `json:"capital"`
}

// Stats summarizes a set of closed trades. All fields are zero when no trade
// closed.
type Stats struct {
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgTradePnL    float64 `json:"avg_trade_pnl"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// Result is the complete outcome of one simulation run. The equity curve
// carries one snapshot per processed tick plus the initial seed; positions
// still open at the end of the series are returned as-is, never force-closed
// and never counted among Trades.
type Result struct {
	Trades         []Trade             `json:"trades"`
	EquityCurve    []Snapshot          `json:"equity_curve"`
	InitialCapital float64             `json:"initial_capital"`
	FinalCapital   float64             `json:"final_capital"`
	Stats          Stats               `json:"stats"`
	OpenPositions  map[string]Position `json:"open_positions,omitempty"`
}
