package hyperliquid

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/domain/funding"
)

const (
	mockInterval = 8 * time.Hour
	mockBaseline = 0.01
	mockTrendAmp = 0.02
	mockNoiseStd = 0.01
	mockBumpPeak = 0.08
	mockBumpSpan = 3
	mockRateCap  = 0.1
)

// Mock generates synthetic funding history on the exchange's 8h settlement
// grid: a small positive baseline plus a sinusoidal drift, Gaussian noise,
// and a positive spike around the midpoint standing in for an event. The
// RNG is seeded from the coin name so the same request always yields the
// same series.
type Mock struct {
	// Seed overrides the coin-derived seed when non-zero.
	Seed int64
}

// NewMock returns a generator seeded per coin.
func NewMock() *Mock {
	return &Mock{}
}

// FundingHistory produces a deterministic series covering [start, end].
func (m *Mock) FundingHistory(ctx context.Context, coin string, start, end time.Time) (funding.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("invalid time range: start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var grid []time.Time
	for t := start.UTC(); !t.After(end); t = t.Add(mockInterval) {
		grid = append(grid, t)
	}

	seed := m.Seed
	if seed == 0 {
		seed = coinSeed(coin)
	}
	rng := rand.New(rand.NewSource(seed))

	mid := len(grid) / 2
	series := make(funding.Series, len(grid))
	for i, t := range grid {
		r := mockBaseline +
			mockTrendAmp*math.Sin(0.1*float64(i)) +
			rng.NormFloat64()*mockNoiseStd +
			eventBump(i, mid)
		series[i] = funding.Observation{
			Time:       t,
			Rate:       clipRate(r),
			Instrument: coin,
		}
	}

	log.Debug().
		Str("coin", coin).
		Int("observations", len(series)).
		Int64("seed", seed).
		Msg("generated mock funding history")

	return series, nil
}

// eventBump is a triangular spike peaking at the midpoint and fading to
// zero over mockBumpSpan settlements on either side.
func eventBump(i, mid int) float64 {
	d := i - mid
	if d < 0 {
		d = -d
	}
	if d > mockBumpSpan {
		return 0
	}
	return mockBumpPeak * (1 - float64(d)/float64(mockBumpSpan+1))
}

func clipRate(r float64) float64 {
	return math.Max(-mockRateCap, math.Min(mockRateCap, r))
}

func coinSeed(coin string) int64 {
	h := fnv.New64a()
	h.Write([]byte(coin))
	return int64(h.Sum64())
}
