package backtest

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

// Simulator defaults.
const (
	DefaultInitialCapital   = 10000.0
	DefaultPositionFraction = 0.1
)

// SimConfig controls position sizing and starting capital.
type SimConfig struct {
	InitialCapital   float64 `json:"initial_capital" yaml:"initial_capital"`
	PositionFraction float64 `json:"position_fraction" yaml:"position_fraction"`
}

// DefaultSimConfig returns the stock simulation parameters: 10k starting
// capital, 10% of current capital per position.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		InitialCapital:   DefaultInitialCapital,
		PositionFraction: DefaultPositionFraction,
	}
}

func (c SimConfig) validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %g", c.InitialCapital)
	}
	if c.PositionFraction <= 0 || c.PositionFraction > 1 {
		return fmt.Errorf("position fraction must be in (0, 1], got %g", c.PositionFraction)
	}
	return nil
}

// book is the keyed store of open positions. The one-open-position-per-
// instrument invariant is enforced here, at the mutation boundary, rather
// than left to the simulator loop's discipline.
type book struct {
	open map[string]*Position
}

func newBook() *book {
	return &book{open: make(map[string]*Position)}
}

func (b *book) get(instrument string) (*Position, bool) {
	p, ok := b.open[instrument]
	return p, ok
}

func (b *book) place(p Position) error {
	if _, exists := b.open[p.Instrument]; exists {
		return fmt.Errorf("position already open for %s", p.Instrument)
	}
	b.open[p.Instrument] = &p
	return nil
}

func (b *book) remove(instrument string) (Position, bool) {
	p, ok := b.open[instrument]
	if !ok {
		return Position{}, false
	}
	delete(b.open, instrument)
	return *p, true
}

func (b *book) snapshot() map[string]Position {
	if len(b.open) == 0 {
		return nil
	}
	out := make(map[string]Position, len(b.open))
	for k, v := range b.open {
		out[k] = *v
	}
	return out
}

// Simulate walks a time-ordered series with its per-tick signals and manages
// at most one open position per instrument. Funding settles into any open
// position every tick before the tick's signal is acted on, so the opening
// tick itself accrues nothing and the closing tick still collects.
//
// The per-instrument state machine is FLAT -> (LONG|SHORT signal) -> OPEN ->
// (HOLD signal) -> FLAT; a non-HOLD signal while open changes nothing.
// Positions still open when the series ends are returned in the result, not
// force-closed.
func Simulate(series funding.Series, signals []strategy.Signal, cfg SimConfig) (*Result, error) {
	if cfg == (SimConfig{}) {
		cfg = DefaultSimConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input series: %w", err)
	}
	if len(signals) != len(series) {
		return nil, fmt.Errorf("signal count %d does not match series length %d", len(signals), len(series))
	}

	capital := cfg.InitialCapital
	positions := newBook()
	trades := make([]Trade, 0)
	curve := make([]Snapshot, 0, len(series)+1)
	curve = append(curve, Snapshot{Time: series[0].Time, Capital: capital})

	for i, obs := range series {
		sig := signals[i]

		// Funding settlement for the instrument's open position, before any
		// signal handling and regardless of what the signal says.
		if pos, ok := positions.get(obs.Instrument); ok {
			payment := pos.Notional * obs.Rate / 100
			capital += payment
			pos.FundingPnL += payment
		}

		switch {
		case sig.Kind.Active():
			if _, open := positions.get(obs.Instrument); !open {
				pos := Position{
					Instrument: obs.Instrument,
					Side:       sideOf(sig.Kind),
					EntryTime:  obs.Time,
					EntryRate:  obs.Rate,
					Notional:   capital * cfg.PositionFraction,
				}
				if err := positions.place(pos); err != nil {
					return nil, fmt.Errorf("open position: %w", err)
				}
				log.Debug().
					Str("instrument", obs.Instrument).
					Str("side", string(pos.Side)).
					Float64("entry_rate", obs.Rate).
					Float64("notional", pos.Notional).
					Time("time", obs.Time).
					Msg("position opened")
			}

		default: // HOLD
			if pos, open := positions.remove(obs.Instrument); open {
				pricePnL := closePnL(pos, obs.Rate)
				capital += pricePnL

				trade := Trade{
					Instrument:    pos.Instrument,
					Side:          pos.Side,
					EntryTime:     pos.EntryTime,
					ExitTime:      obs.Time,
					EntryRate:     pos.EntryRate,
					ExitRate:      obs.Rate,
					Notional:      pos.Notional,
					FundingPnL:    pos.FundingPnL,
					PricePnL:      pricePnL,
					TotalPnL:      pos.FundingPnL + pricePnL,
					DurationHours: obs.Time.Sub(pos.EntryTime).Hours(),
				}
				trades = append(trades, trade)
				log.Debug().
					Str("instrument", trade.Instrument).
					Str("side", string(trade.Side)).
					Float64("total_pnl", trade.TotalPnL).
					Float64("duration_hours", trade.DurationHours).
					Msg("position closed")
			}
		}

		curve = append(curve, Snapshot{Time: obs.Time, Capital: capital})
	}

	return &Result{
		Trades:         trades,
		EquityCurve:    curve,
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   capital,
		Stats:          ComputeStats(trades, cfg.InitialCapital, capital),
		OpenPositions:  positions.snapshot(),
	}, nil
}

// closePnL is the rate-change leg of a closing trade: a LONG wants the rate
// to have risen since entry, a SHORT wants it to have fallen.
func closePnL(pos Position, exitRate float64) float64 {
	change := exitRate - pos.EntryRate
	if pos.Side == SideShort {
		change = -change
	}
	return pos.Notional * change / 100
}
