package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

type fakeClock struct{ at time.Time }

func (c fakeClock) Now() time.Time { return c.at }

// spikedSeries is a low-variance baseline with one large outlier injected at
// the given index.
func spikedSeries(n, spikeAt int, spike float64) funding.Series {
	cycle := []float64{0.01, -0.01, 0.02, -0.02, 0.0}
	rates := make([]float64, n)
	for i := range rates {
		rates[i] = cycle[i%len(cycle)]
	}
	rates[spikeAt] = spike
	return testSeries(testStart, "BTC", rates...)
}

func TestRunner_Run(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	runner := NewRunner()
	runner.SetClock(fakeClock{at: now})

	series := spikedSeries(30, 20, 0.08)
	outcome, err := runner.Run(context.Background(), RunRequest{
		Series:   series,
		Strategy: strategy.ZScoreName,
		Params:   strategy.Params{WindowHours: 24, TickHours: 1},
		Sim:      DefaultSimConfig(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.ID)
	assert.Equal(t, "BTC", outcome.Instrument)
	assert.Equal(t, strategy.ZScoreName, outcome.Strategy)
	assert.Nil(t, outcome.Window)
	assert.Equal(t, now, outcome.StartedAt)
	assert.Equal(t, now, outcome.FinishedAt)

	require.Len(t, outcome.Signals, len(series))
	// The outlier is the only active signal: a short opened at the spike and
	// closed one tick later.
	assert.Equal(t, strategy.KindShort, outcome.Signals[20].Kind)
	require.Len(t, outcome.Result.Trades, 1)
	assert.Equal(t, SideShort, outcome.Result.Trades[0].Side)
	assert.Equal(t, series[20].Time, outcome.Result.Trades[0].EntryTime)
	assert.Len(t, outcome.Result.EquityCurve, len(series)+1)
}

func TestRunner_RunScopesToEventWindow(t *testing.T) {
	eventTime := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	series := testSeries(eventTime.Add(-48*time.Hour), "BTC", make([]float64, 19)...)

	runner := NewRunner()
	outcome, err := runner.Run(context.Background(), RunRequest{
		Series:    series,
		Strategy:  strategy.ZScoreName,
		Sim:       DefaultSimConfig(),
		EventName: "cpi-print",
		EventTime: &eventTime,
	})
	require.NoError(t, err)

	require.NotNil(t, outcome.Window)
	assert.Equal(t, "cpi-print", outcome.EventName)
	assert.Equal(t, 3, outcome.Window.EventIndex)
	assert.Len(t, outcome.Signals, 13)
	assert.Len(t, outcome.Result.EquityCurve, 14)
}

func TestRunner_RunEmptyEventWindow(t *testing.T) {
	series := testSeries(testStart, "BTC", 0.01, 0.02, 0.03)
	farAway := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	runner := NewRunner()
	_, err := runner.Run(context.Background(), RunRequest{
		Series:    series,
		Strategy:  strategy.ZScoreName,
		Sim:       DefaultSimConfig(),
		EventName: "halving",
		EventTime: &farAway,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no observations")
}

func TestRunner_RunUnknownStrategy(t *testing.T) {
	runner := NewRunner()
	_, err := runner.Run(context.Background(), RunRequest{
		Series:   testSeries(testStart, "BTC", 0.01),
		Strategy: "astrology",
		Sim:      DefaultSimConfig(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestRunner_RunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner()
	_, err := runner.Run(ctx, RunRequest{
		Series:   testSeries(testStart, "BTC", 0.01),
		Strategy: strategy.ZScoreName,
		Sim:      DefaultSimConfig(),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RunComparison(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	runner := NewRunner()
	runner.SetClock(fakeClock{at: now})

	outcome, err := runner.RunComparison(context.Background(), constantSeries(20, 0.01), "", nil, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.ID)
	assert.Equal(t, "BTC", outcome.Instrument)
	assert.Nil(t, outcome.Window)
	assert.Equal(t, 20, outcome.Comparison.Ticks)
	assert.Len(t, outcome.Comparison.Rows, len(strategy.Names()))
	assert.Equal(t, now, outcome.StartedAt)
}
