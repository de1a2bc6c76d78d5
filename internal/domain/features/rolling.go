// Package features computes rolling statistical features over a funding-rate
// series. All features are causal: the value at index i is derived from the
// trailing window ending at i and never looks ahead.
package features

import (
	"math"
	"sort"
)

// Default rolling parameters. One tick is one funding settlement.
const (
	DefaultTickHours       = 8
	DefaultUpperPercentile = 95.0
	DefaultLowerPercentile = 5.0
)

// Config describes the rolling windows a feature pass should use. Hours-based
// windows are converted to point counts via Points. Zero values fall back to
// defaults; short/long windows default to the primary window.
type Config struct {
	WindowHours      int
	ShortWindowHours int
	LongWindowHours  int
	TickHours        int
	UpperPercentile  float64
	LowerPercentile  float64
}

func (c Config) withDefaults() Config {
	if c.TickHours <= 0 {
		c.TickHours = DefaultTickHours
	}
	if c.UpperPercentile <= 0 {
		c.UpperPercentile = DefaultUpperPercentile
	}
	if c.LowerPercentile <= 0 {
		c.LowerPercentile = DefaultLowerPercentile
	}
	if c.ShortWindowHours <= 0 {
		c.ShortWindowHours = c.WindowHours
	}
	if c.LongWindowHours <= 0 {
		c.LongWindowHours = c.WindowHours
	}
	return c
}

// Points converts an hours-based window into a rolling point count, floored
// at one point so degenerate windows still produce defined output.
func Points(windowHours, tickHours int) int {
	if tickHours <= 0 {
		tickHours = DefaultTickHours
	}
	points := windowHours / tickHours
	if points < 1 {
		points = 1
	}
	return points
}

// Set holds every rolling feature for one observation. Fields derived from
// first differences or zero-variance ratios are NaN where undefined (warmup
// ticks, constant windows); strategy comparisons against NaN never fire, so
// undefined statistics degrade to HOLD instead of raising.
type Set struct {
	Rate float64

	// Primary window statistics.
	Mean   float64
	Std    float64 // sample std; 0 for a single point or a constant window
	Upper  float64 // upper percentile bound, linear interpolation
	Lower  float64
	Median float64
	Max    float64
	Min    float64
	IsMax  bool // rate equals the rolling max
	IsMin  bool

	// Short/long window trend features.
	ShortMean  float64
	LongMean   float64
	ShortSlope float64 // first difference of ShortMean, NaN at index 0
	LongSlope  float64

	// Volatility-of-volatility: rolling mean of the Std series.
	VolMean float64

	// Difference features.
	Diff          float64 // rate first difference, NaN at index 0
	Momentum      float64 // rate difference over the window-length lag
	MomentumDelta float64 // first difference of Momentum
	Dev           float64 // (rate-mean)/std, NaN when std is 0
	DevDelta      float64 // first difference of Dev
}

// Compute produces one feature Set per input rate. Output length always
// equals input length; fewer than a full window of points degrades to the
// available points (minimum periods of one).
func Compute(rates []float64, cfg Config) []Set {
	cfg = cfg.withDefaults()
	n := len(rates)
	if n == 0 {
		return nil
	}

	w := Points(cfg.WindowHours, cfg.TickHours)
	wShort := Points(cfg.ShortWindowHours, cfg.TickHours)
	wLong := Points(cfg.LongWindowHours, cfg.TickHours)

	sets := make([]Set, n)
	stds := make([]float64, n)
	nan := math.NaN()

	for i := range rates {
		window := rates[windowStart(i, w) : i+1]
		mean := rollingMean(window)
		std := sampleStd(window, mean)
		maxV, minV := extrema(window)

		sorted := append([]float64(nil), window...)
		sort.Float64s(sorted)

		sets[i] = Set{
			Rate:      rates[i],
			Mean:      mean,
			Std:       std,
			Upper:     quantile(sorted, cfg.UpperPercentile/100),
			Lower:     quantile(sorted, cfg.LowerPercentile/100),
			Median:    quantile(sorted, 0.5),
			Max:       maxV,
			Min:       minV,
			IsMax:     rates[i] == maxV,
			IsMin:     rates[i] == minV,
			ShortMean: rollingMean(rates[windowStart(i, wShort) : i+1]),
			LongMean:  rollingMean(rates[windowStart(i, wLong) : i+1]),
		}
		stds[i] = std
	}

	prevDev := nan
	prevMomentum := nan
	for i := range sets {
		sets[i].VolMean = rollingMean(stds[windowStart(i, w) : i+1])

		if i == 0 {
			sets[i].Diff = nan
			sets[i].ShortSlope = nan
			sets[i].LongSlope = nan
		} else {
			sets[i].Diff = rates[i] - rates[i-1]
			sets[i].ShortSlope = sets[i].ShortMean - sets[i-1].ShortMean
			sets[i].LongSlope = sets[i].LongMean - sets[i-1].LongMean
		}

		momentum := nan
		if i >= w {
			momentum = rates[i] - rates[i-w]
		}
		sets[i].Momentum = momentum
		sets[i].MomentumDelta = momentum - prevMomentum
		prevMomentum = momentum

		dev := nan
		if sets[i].Std != 0 {
			dev = (rates[i] - sets[i].Mean) / sets[i].Std
		}
		sets[i].Dev = dev
		sets[i].DevDelta = dev - prevDev
		prevDev = dev
	}

	return sets
}

func windowStart(i, w int) int {
	start := i - w + 1
	if start < 0 {
		start = 0
	}
	return start
}

func rollingMean(window []float64) float64 {
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// sampleStd is the ddof=1 standard deviation. A single point or a constant
// window is exactly 0, so zero-variance checks downstream stay reliable.
func sampleStd(window []float64, mean float64) float64 {
	if len(window) < 2 {
		return 0
	}
	constant := true
	for _, v := range window[1:] {
		if v != window[0] {
			constant = false
			break
		}
	}
	if constant {
		return 0
	}

	sumSq := 0.0
	for _, v := range window {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(window)-1))
}

func extrema(window []float64) (maxV, minV float64) {
	maxV, minV = window[0], window[0]
	for _, v := range window[1:] {
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}
	return maxV, minV
}

// quantile interpolates linearly between order statistics of a sorted slice,
// with q in [0, 1].
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
