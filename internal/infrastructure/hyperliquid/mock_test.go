package hyperliquid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mockStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mockEnd   = mockStart.Add(30 * 24 * time.Hour)
)

func TestMock_FundingHistory_Deterministic(t *testing.T) {
	m := NewMock()

	first, err := m.FundingHistory(context.Background(), "BTC", mockStart, mockEnd)
	require.NoError(t, err)
	second, err := m.FundingHistory(context.Background(), "BTC", mockStart, mockEnd)
	require.NoError(t, err)

	require.Equal(t, first, second, "same coin and span must reproduce the series")
}

func TestMock_FundingHistory_SettlementGrid(t *testing.T) {
	m := NewMock()
	end := mockStart.Add(48 * time.Hour)

	series, err := m.FundingHistory(context.Background(), "ETH", mockStart, end)
	require.NoError(t, err)

	// 0h through 48h inclusive on an 8h grid
	require.Len(t, series, 7)
	assert.True(t, series[0].Time.Equal(mockStart))
	for i := 1; i < len(series); i++ {
		assert.Equal(t, 8*time.Hour, series[i].Time.Sub(series[i-1].Time))
	}
	for _, obs := range series {
		assert.Equal(t, "ETH", obs.Instrument)
	}
	require.NoError(t, series.Validate())
}

func TestMock_FundingHistory_RatesClipped(t *testing.T) {
	m := NewMock()

	series, err := m.FundingHistory(context.Background(), "SOL", mockStart, mockEnd)
	require.NoError(t, err)

	for _, obs := range series {
		assert.LessOrEqual(t, obs.Rate, 0.1)
		assert.GreaterOrEqual(t, obs.Rate, -0.1)
	}
}

func TestMock_FundingHistory_MidpointSpike(t *testing.T) {
	m := NewMock()

	series, err := m.FundingHistory(context.Background(), "BTC", mockStart, mockEnd)
	require.NoError(t, err)

	maxIdx := 0
	for i, obs := range series {
		if obs.Rate > series[maxIdx].Rate {
			maxIdx = i
		}
	}

	mid := len(series) / 2
	assert.GreaterOrEqual(t, maxIdx, mid-mockBumpSpan, "spike should sit near the midpoint")
	assert.LessOrEqual(t, maxIdx, mid+mockBumpSpan, "spike should sit near the midpoint")
	assert.Greater(t, series[maxIdx].Rate, 0.04, "spike should stand clear of the baseline")
}

func TestMock_FundingHistory_SeedOverride(t *testing.T) {
	a := &Mock{Seed: 1}
	b := &Mock{Seed: 2}

	seriesA, err := a.FundingHistory(context.Background(), "BTC", mockStart, mockEnd)
	require.NoError(t, err)
	seriesB, err := b.FundingHistory(context.Background(), "BTC", mockStart, mockEnd)
	require.NoError(t, err)

	require.NotEqual(t, seriesA, seriesB, "distinct seeds should draw distinct noise")
}

func TestMock_FundingHistory_InputValidation(t *testing.T) {
	m := NewMock()

	_, err := m.FundingHistory(context.Background(), "", mockStart, mockEnd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coin is required")

	_, err = m.FundingHistory(context.Background(), "BTC", mockEnd, mockStart)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid time range")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.FundingHistory(ctx, "BTC", mockStart, mockEnd)
	require.ErrorIs(t, err, context.Canceled)
}
