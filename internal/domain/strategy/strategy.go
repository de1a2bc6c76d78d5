// Package strategy maps rolling funding-rate features to directional trading
// signals. Eight variants share one evaluation contract so they can be run
// interchangeably or side by side; each is a pure function of the feature set
// it is handed, with no state between ticks.
package strategy

import (
	"fmt"

	"github.com/sawpanic/fundrun/internal/domain/features"
	"github.com/sawpanic/fundrun/internal/domain/funding"
)

// Canonical strategy identifiers, in presentation order.
const (
	ZScoreName         = "zscore"
	PercentileName     = "percentile"
	MADeviationName    = "ma_deviation"
	VolBreakoutName    = "vol_breakout"
	ReversalName       = "reversal"
	MultiTimeframeName = "multi_timeframe"
	MeanReversionName  = "mean_reversion"
	MomentumName       = "momentum"
)

// Strategy evaluates one observation's feature set into a signal kind and a
// confidence score. Implementations must be pure: same features in, same
// verdict out.
type Strategy interface {
	Name() string
	FeatureConfig() features.Config
	Evaluate(f features.Set) (Kind, float64)
}

// Names lists every registered strategy in canonical order.
func Names() []string {
	return []string{
		ZScoreName,
		PercentileName,
		MADeviationName,
		VolBreakoutName,
		ReversalName,
		MultiTimeframeName,
		MeanReversionName,
		MomentumName,
	}
}

// DefaultParams returns the stock parameters for a strategy.
func DefaultParams(name string) (Params, error) {
	switch name {
	case ZScoreName:
		return Params{WindowHours: 24, Threshold: 2.0}, nil
	case PercentileName:
		return Params{WindowHours: 24, UpperPercentile: 95, LowerPercentile: 5}, nil
	case MADeviationName:
		return Params{ShortWindowHours: 8, LongWindowHours: 24, Threshold: 0.5}, nil
	case VolBreakoutName:
		return Params{WindowHours: 24, Threshold: 2.0}, nil
	case ReversalName:
		return Params{WindowHours: 16, Threshold: 0.3}, nil
	case MultiTimeframeName:
		return Params{ShortWindowHours: 8, LongWindowHours: 48}, nil
	case MeanReversionName:
		return Params{WindowHours: 24, Threshold: 1.5}, nil
	case MomentumName:
		return Params{WindowHours: 16, Threshold: 0.2}, nil
	}
	return Params{}, fmt.Errorf("unknown strategy %q", name)
}

// New constructs a strategy by name. Zero-valued params fall back to the
// strategy's defaults; out-of-range params are rejected.
func New(name string, p Params) (Strategy, error) {
	switch name {
	case ZScoreName:
		return NewZScore(p)
	case PercentileName:
		return NewPercentile(p)
	case MADeviationName:
		return NewMADeviation(p)
	case VolBreakoutName:
		return NewVolBreakout(p)
	case ReversalName:
		return NewReversal(p)
	case MultiTimeframeName:
		return NewMultiTimeframe(p)
	case MeanReversionName:
		return NewMeanReversion(p)
	case MomentumName:
		return NewMomentum(p)
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// All constructs every strategy with default parameters.
func All() []Strategy {
	names := Names()
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, err := New(name, Params{})
		if err != nil {
			// Defaults are static and always valid.
			panic(fmt.Sprintf("default strategy %s: %v", name, err))
		}
		out = append(out, s)
	}
	return out
}

// Annotate runs one strategy over a series, producing one signal per
// observation. The feature pass uses the strategy's own window configuration.
func Annotate(series funding.Series, s Strategy) []Signal {
	sets := features.Compute(series.Rates(), s.FeatureConfig())
	signals := make([]Signal, len(sets))
	for i, f := range sets {
		kind, confidence := s.Evaluate(f)
		signals[i] = Signal{
			Time:       series[i].Time,
			Instrument: series[i].Instrument,
			Kind:       kind,
			Confidence: confidence,
			Strategy:   s.Name(),
		}
	}
	return signals
}

func mustDefaults(name string) Params {
	d, err := DefaultParams(name)
	if err != nil {
		panic(err)
	}
	return d
}
