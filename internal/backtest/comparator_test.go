package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

func constantSeries(n int, rate float64) funding.Series {
	rates := make([]float64, n)
	for i := range rates {
		rates[i] = rate
	}
	return testSeries(testStart, "BTC", rates...)
}

func TestCompare_RunsEveryStrategyInCanonicalOrder(t *testing.T) {
	cmp, err := Compare(constantSeries(20, 0.01), nil)
	require.NoError(t, err)

	require.Len(t, cmp.Rows, len(strategy.Names()))
	for i, name := range strategy.Names() {
		assert.Equal(t, name, cmp.Rows[i].Strategy)
	}
	assert.Empty(t, cmp.Failed)
	assert.Equal(t, 20, cmp.Ticks)
}

func TestCompare_ConstantSeriesFiresNothing(t *testing.T) {
	cmp, err := Compare(constantSeries(20, 0.01), nil)
	require.NoError(t, err)

	for _, row := range cmp.Rows {
		assert.Zerof(t, row.TotalSignals, "strategy %s fired on a flat series", row.Strategy)
		assert.Zero(t, row.LongSignals)
		assert.Zero(t, row.ShortSignals)
		assert.Zero(t, row.SignalFreqPct)
	}
}

func TestCompare_FailingStrategyIsIsolated(t *testing.T) {
	params := map[string]strategy.Params{
		strategy.ZScoreName: {Threshold: -1},
	}

	cmp, err := Compare(constantSeries(10, 0.01), params)
	require.NoError(t, err)

	assert.Equal(t, []string{strategy.ZScoreName}, cmp.Failed)
	require.Len(t, cmp.Rows, len(strategy.Names())-1)
	for _, row := range cmp.Rows {
		assert.NotEqual(t, strategy.ZScoreName, row.Strategy)
	}
}

func TestCompare_EmptySeriesRejected(t *testing.T) {
	_, err := Compare(nil, nil)
	assert.ErrorIs(t, err, funding.ErrEmptySeries)
}

func TestSummarize_Tallies(t *testing.T) {
	at := testStart
	sigs := []strategy.Signal{
		{Time: at, Kind: strategy.KindLong, Confidence: 1.0},
		{Time: at.Add(8 * time.Hour), Kind: strategy.KindLong, Confidence: 2.0},
		{Time: at.Add(16 * time.Hour), Kind: strategy.KindLong, Confidence: 3.0},
		{Time: at.Add(24 * time.Hour), Kind: strategy.KindShort, Confidence: 1.5},
		{Time: at.Add(32 * time.Hour), Kind: strategy.KindShort, Confidence: 2.5},
		// HOLD confidence never counts, whatever its value.
		{Time: at.Add(40 * time.Hour), Kind: strategy.KindHold, Confidence: 99},
		{Time: at.Add(48 * time.Hour), Kind: strategy.KindHold},
		{Time: at.Add(56 * time.Hour), Kind: strategy.KindHold},
		{Time: at.Add(64 * time.Hour), Kind: strategy.KindHold},
		{Time: at.Add(72 * time.Hour), Kind: strategy.KindHold},
	}

	row := Summarize("zscore", sigs)
	assert.Equal(t, "zscore", row.Strategy)
	assert.Equal(t, 5, row.TotalSignals)
	assert.Equal(t, 3, row.LongSignals)
	assert.Equal(t, 2, row.ShortSignals)
	assert.InDelta(t, 2.0, row.AvgConfidence, 1e-9)
	assert.InDelta(t, 50.0, row.SignalFreqPct, 1e-9)
	assert.InDelta(t, 60.0, row.LongPct, 1e-9)
	assert.InDelta(t, 40.0, row.ShortPct, 1e-9)
}

func TestSummarize_Rounding(t *testing.T) {
	sigs := []strategy.Signal{
		{Kind: strategy.KindLong, Confidence: 0.12345},
		{Kind: strategy.KindHold},
		{Kind: strategy.KindHold},
	}

	row := Summarize("zscore", sigs)
	assert.Equal(t, 0.123, row.AvgConfidence)
	assert.Equal(t, 33.33, row.SignalFreqPct)
	assert.Equal(t, 100.0, row.LongPct)
	assert.Equal(t, 0.0, row.ShortPct)
}

func TestSummarize_NoSignals(t *testing.T) {
	row := Summarize("momentum", []strategy.Signal{{Kind: strategy.KindHold}})
	assert.Zero(t, row.TotalSignals)
	assert.Zero(t, row.AvgConfidence)
	assert.Zero(t, row.SignalFreqPct)
	assert.Zero(t, row.LongPct)
	assert.Zero(t, row.ShortPct)
}
