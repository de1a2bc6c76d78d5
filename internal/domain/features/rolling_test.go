package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoints(t *testing.T) {
	assert.Equal(t, 3, Points(24, 8))
	assert.Equal(t, 1, Points(8, 8))
	assert.Equal(t, 2, Points(16, 8))
	assert.Equal(t, 6, Points(48, 8))

	// Sub-tick windows floor at one point instead of failing.
	assert.Equal(t, 1, Points(4, 8))
	assert.Equal(t, 1, Points(0, 8))

	// Zero tick interval falls back to the default settlement interval.
	assert.Equal(t, 3, Points(24, 0))
}

func TestComputeOutputLength(t *testing.T) {
	for _, n := range []int{1, 2, 5, 50} {
		rates := make([]float64, n)
		for i := range rates {
			rates[i] = float64(i) * 0.01
		}
		sets := Compute(rates, Config{WindowHours: 24})
		assert.Len(t, sets, n)
	}

	assert.Nil(t, Compute(nil, Config{WindowHours: 24}))
}

func TestComputeIsCausal(t *testing.T) {
	rates := []float64{0.01, 0.03, -0.02, 0.05, 0.00, 0.02}
	cfg := Config{WindowHours: 24, ShortWindowHours: 8, LongWindowHours: 48}

	full := Compute(rates, cfg)
	prefix := Compute(rates[:4], cfg)

	// Appending future points must not change any already-computed feature.
	for i := range prefix {
		assert.True(t, sameSet(prefix[i], full[i]),
			"feature set %d changed when future points were appended:\nprefix %+v\nfull   %+v", i, prefix[i], full[i])
	}
}

// sameSet compares sets treating NaN as equal to NaN, which DeepEqual does not.
func sameSet(a, b Set) bool {
	fa := setFloats(a)
	fb := setFloats(b)
	for i := range fa {
		if math.IsNaN(fa[i]) != math.IsNaN(fb[i]) {
			return false
		}
		if !math.IsNaN(fa[i]) && fa[i] != fb[i] {
			return false
		}
	}
	return a.IsMax == b.IsMax && a.IsMin == b.IsMin
}

func setFloats(s Set) []float64 {
	return []float64{
		s.Rate, s.Mean, s.Std, s.Upper, s.Lower, s.Median, s.Max, s.Min,
		s.ShortMean, s.LongMean, s.ShortSlope, s.LongSlope, s.VolMean,
		s.Diff, s.Momentum, s.MomentumDelta, s.Dev, s.DevDelta,
	}
}

func TestComputeRollingWindowMath(t *testing.T) {
	rates := []float64{1, 2, 3, 4, 5}
	sets := Compute(rates, Config{WindowHours: 24}) // 3 points

	// Warmup: single point.
	assert.Equal(t, 1.0, sets[0].Mean)
	assert.Equal(t, 0.0, sets[0].Std)

	// Two points: mean over what is available.
	assert.Equal(t, 1.5, sets[1].Mean)
	assert.InDelta(t, math.Sqrt(0.5), sets[1].Std, 1e-12)

	// Full window [3,4,5].
	last := sets[4]
	assert.Equal(t, 4.0, last.Mean)
	assert.InDelta(t, 1.0, last.Std, 1e-12)
	assert.Equal(t, 5.0, last.Max)
	assert.Equal(t, 3.0, last.Min)
	assert.True(t, last.IsMax)
	assert.False(t, last.IsMin)
}

func TestComputeQuantileInterpolation(t *testing.T) {
	sets := Compute([]float64{0, 10}, Config{WindowHours: 16}) // 2 points

	got := sets[1]
	assert.InDelta(t, 9.5, got.Upper, 1e-12)  // 95th of [0,10]
	assert.InDelta(t, 0.5, got.Lower, 1e-12)  // 5th
	assert.InDelta(t, 5.0, got.Median, 1e-12) // 50th

	// A single-point window collapses every quantile to the point itself.
	assert.Equal(t, 0.0, sets[0].Upper)
	assert.Equal(t, 0.0, sets[0].Lower)
	assert.Equal(t, 0.0, sets[0].Median)
}

func TestComputeConstantWindowHasZeroStd(t *testing.T) {
	rates := []float64{0.01, 0.01, 0.01, 0.01, 0.01}
	sets := Compute(rates, Config{WindowHours: 24})

	for i, s := range sets {
		assert.Equal(t, 0.0, s.Std, "tick %d", i)
		assert.True(t, math.IsNaN(s.Dev), "tick %d deviation should be undefined", i)
	}
}

func TestComputeDifferenceFeatures(t *testing.T) {
	rates := []float64{0.01, 0.04, 0.02, 0.08}
	sets := Compute(rates, Config{WindowHours: 16}) // 2 points, momentum lag 2

	assert.True(t, math.IsNaN(sets[0].Diff))
	assert.InDelta(t, 0.03, sets[1].Diff, 1e-12)
	assert.InDelta(t, -0.02, sets[2].Diff, 1e-12)

	assert.True(t, math.IsNaN(sets[0].Momentum))
	assert.True(t, math.IsNaN(sets[1].Momentum))
	assert.InDelta(t, 0.01, sets[2].Momentum, 1e-12) // 0.02 - 0.01
	assert.InDelta(t, 0.04, sets[3].Momentum, 1e-12) // 0.08 - 0.04

	assert.True(t, math.IsNaN(sets[2].MomentumDelta))
	assert.InDelta(t, 0.03, sets[3].MomentumDelta, 1e-12)
}

func TestComputeTrendSlopes(t *testing.T) {
	rates := []float64{1, 2, 3, 4}
	sets := Compute(rates, Config{WindowHours: 24, ShortWindowHours: 8, LongWindowHours: 16})

	assert.True(t, math.IsNaN(sets[0].ShortSlope))
	assert.True(t, math.IsNaN(sets[0].LongSlope))

	// Short window is 1 point, so its mean tracks the rate and the slope is
	// the raw first difference.
	assert.InDelta(t, 1.0, sets[2].ShortSlope, 1e-12)

	// Long window is 2 points: means are 1.5, 2.5, 3.5 after warmup.
	assert.InDelta(t, 1.0, sets[2].LongSlope, 1e-12)
}

func TestComputeVolMean(t *testing.T) {
	rates := []float64{1, 5, 1, 5, 1}
	sets := Compute(rates, Config{WindowHours: 16}) // 2 points

	// Std series: 0 (single point), then sqrt(8) for each two-point window.
	want := math.Sqrt(8)
	require.InDelta(t, want, sets[1].Std, 1e-12)

	assert.Equal(t, 0.0, sets[0].VolMean)
	assert.InDelta(t, want/2, sets[1].VolMean, 1e-12) // mean of [0, sqrt(8)]
	assert.InDelta(t, want, sets[2].VolMean, 1e-12)   // mean of [sqrt(8), sqrt(8)]
}
