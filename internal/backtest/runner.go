package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

// Clock is injectable for deterministic run timestamps in tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using wall time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// RunRequest describes one simulation: which strategy over which series,
// optionally clipped to the window around an event.
type RunRequest struct {
	Series    funding.Series
	Strategy  string
	Params    strategy.Params
	Sim       SimConfig
	EventName string
	EventTime *time.Time
}

// RunOutcome is everything a single run produced: the annotated signals, the
// simulation result, and enough metadata to reproduce it.
type RunOutcome struct {
	ID         string           `json:"id"`
	Instrument string           `json:"instrument"`
	Strategy   string           `json:"strategy"`
	Params     strategy.Params  `json:"params"`
	EventName  string           `json:"event_name,omitempty"`
	Window     *EventWindow     `json:"-"`
	Signals    []strategy.Signal `json:"-"`
	Result     *Result          `json:"result"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// ComparisonOutcome is the comparator analog of RunOutcome.
type ComparisonOutcome struct {
	ID         string       `json:"id"`
	Instrument string       `json:"instrument"`
	EventName  string       `json:"event_name,omitempty"`
	Window     *EventWindow `json:"-"`
	Comparison *Comparison  `json:"comparison"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Runner executes backtest and comparison requests over already-materialized
// series. It performs no I/O of its own.
type Runner struct {
	clock Clock
}

// NewRunner creates a runner with a wall clock.
func NewRunner() *Runner {
	return &Runner{clock: RealClock{}}
}

// SetClock swaps the clock implementation (for testing).
func (r *Runner) SetClock(c Clock) { r.clock = c }

// Run windows, annotates, and simulates one strategy over the request's
// series.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	started := r.clock.Now()

	series, window, err := r.scope(req.Series, req.EventName, req.EventTime)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := strategy.New(req.Strategy, req.Params)
	if err != nil {
		return nil, fmt.Errorf("build strategy: %w", err)
	}

	signals := strategy.Annotate(series, s)
	result, err := Simulate(series, signals, req.Sim)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	outcome := &RunOutcome{
		ID:         uuid.New().String(),
		Instrument: series[0].Instrument,
		Strategy:   s.Name(),
		Params:     req.Params,
		EventName:  req.EventName,
		Window:     window,
		Signals:    signals,
		Result:     result,
		StartedAt:  started,
		FinishedAt: r.clock.Now(),
	}

	log.Info().
		Str("run_id", outcome.ID).
		Str("instrument", outcome.Instrument).
		Str("strategy", outcome.Strategy).
		Int("ticks", len(series)).
		Int("trades", len(result.Trades)).
		Float64("final_capital", result.FinalCapital).
		Msg("backtest run completed")

	return outcome, nil
}

// RunComparison windows the series and races every strategy over it.
func (r *Runner) RunComparison(ctx context.Context, series funding.Series, eventName string, eventTime *time.Time, params map[string]strategy.Params) (*ComparisonOutcome, error) {
	started := r.clock.Now()

	scoped, window, err := r.scope(series, eventName, eventTime)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmp, err := Compare(scoped, params)
	if err != nil {
		return nil, fmt.Errorf("compare strategies: %w", err)
	}

	outcome := &ComparisonOutcome{
		ID:         uuid.New().String(),
		Instrument: scoped[0].Instrument,
		EventName:  eventName,
		Window:     window,
		Comparison: cmp,
		StartedAt:  started,
		FinishedAt: r.clock.Now(),
	}

	log.Info().
		Str("run_id", outcome.ID).
		Str("instrument", outcome.Instrument).
		Int("ticks", cmp.Ticks).
		Int("strategies", len(cmp.Rows)).
		Strs("failed", cmp.Failed).
		Msg("strategy comparison completed")

	return outcome, nil
}

// scope clips the series to the event window when an event is set, and
// rejects inputs the engine cannot act on.
func (r *Runner) scope(series funding.Series, eventName string, eventTime *time.Time) (funding.Series, *EventWindow, error) {
	if err := series.Validate(); err != nil {
		return nil, nil, fmt.Errorf("input series: %w", err)
	}
	if eventTime == nil {
		return series, nil, nil
	}

	window := WindowAround(series, *eventTime)
	if window.Empty() {
		return nil, nil, fmt.Errorf("event %q: no observations in window %s..%s",
			eventName, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}
	return window.Series, &window, nil
}
