package strategy

import (
	"fmt"
	"math"

	"github.com/sawpanic/fundrun/internal/domain/features"
)

// slopeGate is the fixed magnitude a short-window slope must clear before the
// multi-timeframe strategy fires.
const slopeGate = 0.1

func validateWindow(name, field string, hours int) error {
	if hours < 1 {
		return fmt.Errorf("%s: %s must be at least 1 hour, got %d", name, field, hours)
	}
	return nil
}

func validateThreshold(name string, threshold float64) error {
	if math.IsNaN(threshold) || threshold <= 0 {
		return fmt.Errorf("%s: threshold must be positive, got %g", name, threshold)
	}
	return nil
}

// ZScore flags rates that sit more than a threshold of standard deviations
// away from the rolling mean. An elevated rate is shorted to collect the
// funding payments; a depressed one is bought.
type ZScore struct {
	params Params
}

func NewZScore(p Params) (*ZScore, error) {
	p = p.mergeDefaults(mustDefaults(ZScoreName))
	if err := validateWindow(ZScoreName, "window", p.WindowHours); err != nil {
		return nil, err
	}
	if err := validateThreshold(ZScoreName, p.Threshold); err != nil {
		return nil, err
	}
	return &ZScore{params: p}, nil
}

func (s *ZScore) Name() string { return ZScoreName }

func (s *ZScore) FeatureConfig() features.Config {
	return features.Config{WindowHours: s.params.WindowHours, TickHours: s.params.TickHours}
}

func (s *ZScore) Evaluate(f features.Set) (Kind, float64) {
	if f.Std == 0 {
		return KindHold, 0
	}
	z := (f.Rate - f.Mean) / f.Std
	switch {
	case z > s.params.Threshold:
		return KindShort, math.Abs(z) / s.params.Threshold
	case z < -s.params.Threshold:
		return KindLong, math.Abs(z) / s.params.Threshold
	}
	return KindHold, 0
}

// Percentile fires when the rate escapes its rolling percentile bounds.
// Confidence is the overshoot normalized by the bound-to-median gap.
type Percentile struct {
	params Params
}

func NewPercentile(p Params) (*Percentile, error) {
	p = p.mergeDefaults(mustDefaults(PercentileName))
	if err := validateWindow(PercentileName, "window", p.WindowHours); err != nil {
		return nil, err
	}
	if p.LowerPercentile <= 0 || p.UpperPercentile >= 100 || p.LowerPercentile >= p.UpperPercentile {
		return nil, fmt.Errorf("percentile: bounds must satisfy 0 < lower < upper < 100, got %g/%g",
			p.LowerPercentile, p.UpperPercentile)
	}
	return &Percentile{params: p}, nil
}

func (s *Percentile) Name() string { return PercentileName }

func (s *Percentile) FeatureConfig() features.Config {
	return features.Config{
		WindowHours:     s.params.WindowHours,
		TickHours:       s.params.TickHours,
		UpperPercentile: s.params.UpperPercentile,
		LowerPercentile: s.params.LowerPercentile,
	}
}

func (s *Percentile) Evaluate(f features.Set) (Kind, float64) {
	if f.Rate > f.Upper {
		return KindShort, math.Abs(boundDeviation(f.Rate-f.Upper, f.Upper-f.Median))
	}
	if f.Rate < f.Lower {
		return KindLong, math.Abs(boundDeviation(f.Lower-f.Rate, f.Median-f.Lower))
	}
	return KindHold, 0
}

func boundDeviation(overshoot, gap float64) float64 {
	if gap == 0 {
		return 0
	}
	return overshoot / gap
}

// MADeviation compares a short rolling mean against a long one and fires when
// the percent spread between them exceeds the threshold.
type MADeviation struct {
	params Params
}

func NewMADeviation(p Params) (*MADeviation, error) {
	p = p.mergeDefaults(mustDefaults(MADeviationName))
	if err := validateWindow(MADeviationName, "short window", p.ShortWindowHours); err != nil {
		return nil, err
	}
	if err := validateWindow(MADeviationName, "long window", p.LongWindowHours); err != nil {
		return nil, err
	}
	if err := validateThreshold(MADeviationName, p.Threshold); err != nil {
		return nil, err
	}
	return &MADeviation{params: p}, nil
}

func (s *MADeviation) Name() string { return MADeviationName }

func (s *MADeviation) FeatureConfig() features.Config {
	return features.Config{
		WindowHours:      s.params.LongWindowHours,
		ShortWindowHours: s.params.ShortWindowHours,
		LongWindowHours:  s.params.LongWindowHours,
		TickHours:        s.params.TickHours,
	}
}

func (s *MADeviation) Evaluate(f features.Set) (Kind, float64) {
	deviation := (f.ShortMean - f.LongMean) / f.LongMean * 100
	switch {
	case deviation > s.params.Threshold:
		return KindShort, math.Abs(deviation) / s.params.Threshold
	case deviation < -s.params.Threshold:
		return KindLong, math.Abs(deviation) / s.params.Threshold
	}
	return KindHold, 0
}

// VolBreakout detects volatility expansion: the rolling std z-scored against
// its own rolling mean. Direction follows the latest rate change, shorting a
// spike upward and buying a spike downward.
type VolBreakout struct {
	params Params
}

func NewVolBreakout(p Params) (*VolBreakout, error) {
	p = p.mergeDefaults(mustDefaults(VolBreakoutName))
	if err := validateWindow(VolBreakoutName, "window", p.WindowHours); err != nil {
		return nil, err
	}
	if err := validateThreshold(VolBreakoutName, p.Threshold); err != nil {
		return nil, err
	}
	return &VolBreakout{params: p}, nil
}

func (s *VolBreakout) Name() string { return VolBreakoutName }

func (s *VolBreakout) FeatureConfig() features.Config {
	return features.Config{WindowHours: s.params.WindowHours, TickHours: s.params.TickHours}
}

func (s *VolBreakout) Evaluate(f features.Set) (Kind, float64) {
	if f.VolMean == 0 {
		return KindHold, 0
	}
	volZ := (f.Std - f.VolMean) / f.VolMean
	if volZ > s.params.Threshold {
		if f.Diff > 0 {
			return KindShort, volZ / s.params.Threshold
		}
		if f.Diff < 0 {
			return KindLong, volZ / s.params.Threshold
		}
	}
	return KindHold, 0
}

// Reversal marks window extremes and bets on the snap-back once the point's
// position within the window range is extreme enough.
type Reversal struct {
	params Params
}

func NewReversal(p Params) (*Reversal, error) {
	p = p.mergeDefaults(mustDefaults(ReversalName))
	if err := validateWindow(ReversalName, "window", p.WindowHours); err != nil {
		return nil, err
	}
	if err := validateThreshold(ReversalName, p.Threshold); err != nil {
		return nil, err
	}
	return &Reversal{params: p}, nil
}

func (s *Reversal) Name() string { return ReversalName }

func (s *Reversal) FeatureConfig() features.Config {
	return features.Config{WindowHours: s.params.WindowHours, TickHours: s.params.TickHours}
}

func (s *Reversal) Evaluate(f features.Set) (Kind, float64) {
	// A window where every value is equal marks the point as both extremes;
	// the min candidate wins, and the zero range keeps it from firing.
	candidate := KindHold
	if f.IsMax {
		candidate = KindShort
	}
	if f.IsMin {
		candidate = KindLong
	}
	if candidate == KindHold {
		return KindHold, 0
	}

	span := f.Max - f.Min
	if span == 0 {
		return KindHold, 0
	}

	var strength float64
	if candidate == KindShort {
		strength = (f.Rate - f.Min) / span
	} else {
		strength = (f.Max - f.Rate) / span
	}
	if strength > s.params.Threshold {
		return candidate, strength
	}
	return KindHold, 0
}

// MultiTimeframe trades only when the short- and long-window trends agree,
// with the short slope clearing a fixed magnitude gate.
type MultiTimeframe struct {
	params Params
}

func NewMultiTimeframe(p Params) (*MultiTimeframe, error) {
	p = p.mergeDefaults(mustDefaults(MultiTimeframeName))
	if err := validateWindow(MultiTimeframeName, "short window", p.ShortWindowHours); err != nil {
		return nil, err
	}
	if err := validateWindow(MultiTimeframeName, "long window", p.LongWindowHours); err != nil {
		return nil, err
	}
	return &MultiTimeframe{params: p}, nil
}

func (s *MultiTimeframe) Name() string { return MultiTimeframeName }

func (s *MultiTimeframe) FeatureConfig() features.Config {
	return features.Config{
		WindowHours:      s.params.LongWindowHours,
		ShortWindowHours: s.params.ShortWindowHours,
		LongWindowHours:  s.params.LongWindowHours,
		TickHours:        s.params.TickHours,
	}
}

func (s *MultiTimeframe) Evaluate(f features.Set) (Kind, float64) {
	consistency := sign(f.ShortSlope) * sign(f.LongSlope)
	if consistency > 0 {
		strength := math.Abs(f.ShortSlope) + math.Abs(f.LongSlope)
		if f.ShortSlope > slopeGate {
			return KindShort, strength * consistency
		}
		if f.ShortSlope < -slopeGate {
			return KindLong, strength * consistency
		}
	}
	return KindHold, 0
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	case math.IsNaN(x):
		return math.NaN()
	}
	return 0
}

// MeanReversion fires when the rate is stretched away from its rolling mean
// and the stretch has already started to unwind.
type MeanReversion struct {
	params Params
}

func NewMeanReversion(p Params) (*MeanReversion, error) {
	p = p.mergeDefaults(mustDefaults(MeanReversionName))
	if err := validateWindow(MeanReversionName, "window", p.WindowHours); err != nil {
		return nil, err
	}
	if err := validateThreshold(MeanReversionName, p.Threshold); err != nil {
		return nil, err
	}
	return &MeanReversion{params: p}, nil
}

func (s *MeanReversion) Name() string { return MeanReversionName }

func (s *MeanReversion) FeatureConfig() features.Config {
	return features.Config{WindowHours: s.params.WindowHours, TickHours: s.params.TickHours}
}

func (s *MeanReversion) Evaluate(f features.Set) (Kind, float64) {
	// Dev and DevDelta are NaN during warmup and on zero-variance windows;
	// every comparison below is false then, so the strategy holds.
	speed := -f.DevDelta
	if f.Dev > s.params.Threshold && speed > 0 {
		return KindShort, math.Abs(f.Dev) / s.params.Threshold
	}
	if f.Dev < -s.params.Threshold && speed < 0 {
		return KindLong, math.Abs(f.Dev) / s.params.Threshold
	}
	return KindHold, 0
}

// Momentum trades accelerating moves: the rate change over a full window lag,
// gated by the sign of that momentum's own latest change.
type Momentum struct {
	params Params
}

func NewMomentum(p Params) (*Momentum, error) {
	p = p.mergeDefaults(mustDefaults(MomentumName))
	if err := validateWindow(MomentumName, "window", p.WindowHours); err != nil {
		return nil, err
	}
	if err := validateThreshold(MomentumName, p.Threshold); err != nil {
		return nil, err
	}
	return &Momentum{params: p}, nil
}

func (s *Momentum) Name() string { return MomentumName }

func (s *Momentum) FeatureConfig() features.Config {
	return features.Config{WindowHours: s.params.WindowHours, TickHours: s.params.TickHours}
}

func (s *Momentum) Evaluate(f features.Set) (Kind, float64) {
	if f.Momentum > s.params.Threshold && f.MomentumDelta > 0 {
		return KindShort, math.Abs(f.Momentum) / s.params.Threshold
	}
	if f.Momentum < -s.params.Threshold && f.MomentumDelta < 0 {
		return KindLong, math.Abs(f.Momentum) / s.params.Threshold
	}
	return KindHold, 0
}
