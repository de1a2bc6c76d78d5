package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundrun/internal/backtest"
	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/events"
	"github.com/sawpanic/fundrun/internal/persistence"
)

// fakeService records the calls the handlers make and serves canned data.
type fakeService struct {
	series     funding.Series
	historyErr error

	backtestResp *BacktestResponse
	backtestErr  error

	comparison *backtest.ComparisonOutcome
	compareErr error

	catalog []events.Event

	runs    []persistence.RunRecord
	runsErr error
	run     *persistence.RunRecord
	trades  []persistence.TradeRecord
	runErr  error

	persistence bool

	lastCoin        string
	lastDays        int
	lastMock        bool
	lastBacktestReq BacktestRequest
	lastCompareReq  CompareRequest
	lastRunLimit    int
}

func (f *fakeService) FundingHistory(ctx context.Context, coin string, days int, mock bool) (funding.Series, error) {
	f.lastCoin, f.lastDays, f.lastMock = coin, days, mock
	return f.series, f.historyErr
}

func (f *fakeService) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	f.lastBacktestReq = req
	return f.backtestResp, f.backtestErr
}

func (f *fakeService) CompareStrategies(ctx context.Context, req CompareRequest) (*backtest.ComparisonOutcome, error) {
	f.lastCompareReq = req
	return f.comparison, f.compareErr
}

func (f *fakeService) Events() []events.Event { return f.catalog }

func (f *fakeService) Event(name string) (events.Event, bool) {
	for _, e := range f.catalog {
		if e.Name == name {
			return e, true
		}
	}
	return events.Event{}, false
}

func (f *fakeService) ListRuns(ctx context.Context, coin string, limit int) ([]persistence.RunRecord, error) {
	f.lastCoin, f.lastRunLimit = coin, limit
	return f.runs, f.runsErr
}

func (f *fakeService) GetRun(ctx context.Context, id string) (*persistence.RunRecord, []persistence.TradeRecord, error) {
	return f.run, f.trades, f.runErr
}

func (f *fakeService) PersistenceEnabled() bool { return f.persistence }

// fakeDBHealth satisfies persistence.RepositoryHealth with a fixed report.
type fakeDBHealth struct {
	hc persistence.HealthCheck
}

func (f *fakeDBHealth) Health(ctx context.Context) persistence.HealthCheck { return f.hc }
func (f *fakeDBHealth) Ping(ctx context.Context) error                    { return nil }

func newTestServer(t *testing.T, svc Service, dbHealth persistence.RepositoryHealth) *Server {
	t.Helper()

	h := NewHandlers(svc, dbHealth, "test")
	s, err := NewServer(h, ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	})
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func sampleCatalog() []events.Event {
	return []events.Event{
		{Name: "btc-halving-2024", Instrument: "BTC", Timestamp: "2024-04-20T00:00:00Z", Impact: events.ImpactHigh},
		{Name: "eth-dencun", Instrument: "ETH", Timestamp: "2024-03-13T00:00:00Z", Impact: events.ImpactMedium},
	}
}

func TestEventsEndpoint(t *testing.T) {
	svc := &fakeService{catalog: sampleCatalog()}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "GET", "/api/v1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)

	var resp EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	rec = doRequest(s, "GET", "/api/v1/events?coin=BTC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "btc-halving-2024", resp.Events[0].Name)
}

func TestFundingEndpoint(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := &fakeService{
		series: funding.Series{
			{Time: base, Rate: 0.01, Instrument: "BTC"},
			{Time: base.Add(8 * time.Hour), Rate: 0.02, Instrument: "BTC"},
			{Time: base.Add(16 * time.Hour), Rate: -0.01, Instrument: "BTC"},
		},
	}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "GET", "/api/v1/funding/BTC?days=7&mock=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "BTC", svc.lastCoin)
	assert.Equal(t, 7, svc.lastDays)
	assert.True(t, svc.lastMock)

	var resp FundingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTC", resp.Coin)
	assert.Equal(t, "mock", resp.Source)
	assert.Equal(t, 3, resp.Observations)
	assert.True(t, resp.From.Equal(base))
	assert.True(t, resp.To.Equal(base.Add(16*time.Hour)))
}

func TestFundingEndpoint_DefaultsDays(t *testing.T) {
	svc := &fakeService{series: funding.Series{{Time: time.Now(), Rate: 0.01, Instrument: "BTC"}}}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "GET", "/api/v1/funding/BTC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultDays, svc.lastDays)
	assert.False(t, svc.lastMock)
}

func TestFundingEndpoint_InvalidDays(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)

	for _, q := range []string{"days=0", "days=9999", "days=abc"} {
		rec := doRequest(s, "GET", "/api/v1/funding/BTC?"+q, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "invalid_days", decodeError(t, rec).Code, q)
	}
}

func TestFundingEndpoint_FetchError(t *testing.T) {
	svc := &fakeService{historyErr: assert.AnError}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "GET", "/api/v1/funding/BTC", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "funding_fetch_failed", decodeError(t, rec).Code)
}

func TestBacktestEndpoint(t *testing.T) {
	svc := &fakeService{
		catalog: sampleCatalog(),
		backtestResp: &BacktestResponse{
			Run: &backtest.RunOutcome{
				ID:         "run-1",
				Instrument: "BTC",
				Strategy:   "zscore",
				Result:     &backtest.Result{InitialCapital: 10000, FinalCapital: 10100},
			},
			Persisted: true,
		},
	}
	s := newTestServer(t, svc, nil)

	body := bytes.NewBufferString(`{"coin":"BTC","strategy":"zscore","days":5,"event":"btc-halving-2024"}`)
	rec := doRequest(s, "POST", "/api/v1/backtest", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "BTC", svc.lastBacktestReq.Coin)
	assert.Equal(t, "zscore", svc.lastBacktestReq.Strategy)
	assert.Equal(t, 5, svc.lastBacktestReq.Days)
	assert.Equal(t, "btc-halving-2024", svc.lastBacktestReq.Event)

	var resp BacktestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Run)
	assert.Equal(t, "run-1", resp.Run.ID)
	assert.True(t, resp.Persisted)
}

func TestBacktestEndpoint_CapsTrades(t *testing.T) {
	trades := make([]backtest.Trade, maxResponseTrades+25)
	for i := range trades {
		trades[i] = backtest.Trade{Instrument: "BTC", TotalPnL: 1}
	}
	svc := &fakeService{
		backtestResp: &BacktestResponse{
			Run: &backtest.RunOutcome{
				ID:         "run-2",
				Instrument: "BTC",
				Strategy:   "zscore",
				Result: &backtest.Result{
					Trades: trades,
					Stats:  backtest.Stats{TotalTrades: len(trades)},
				},
			},
		},
	}
	s := newTestServer(t, svc, nil)

	body := bytes.NewBufferString(`{"coin":"BTC","strategy":"zscore"}`)
	rec := doRequest(s, "POST", "/api/v1/backtest", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BacktestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.TradesTruncated)
	assert.Len(t, resp.Run.Result.Trades, maxResponseTrades)
	assert.Equal(t, maxResponseTrades+25, resp.Run.Result.Stats.TotalTrades)
}

func TestBacktestEndpoint_Validation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"bad json", `{"coin":`, http.StatusBadRequest, "invalid_request"},
		{"missing coin", `{"strategy":"zscore"}`, http.StatusBadRequest, "missing_coin"},
		{"missing strategy", `{"coin":"BTC"}`, http.StatusBadRequest, "missing_strategy"},
		{"unknown strategy", `{"coin":"BTC","strategy":"astrology"}`, http.StatusBadRequest, "unknown_strategy"},
		{"bad days", `{"coin":"BTC","strategy":"zscore","days":-1}`, http.StatusBadRequest, "invalid_days"},
		{"unknown event", `{"coin":"BTC","strategy":"zscore","event":"nope"}`, http.StatusNotFound, "unknown_event"},
		{"bad capital", `{"coin":"BTC","strategy":"zscore","initial_capital":-5}`, http.StatusBadRequest, "invalid_capital"},
		{"bad fraction", `{"coin":"BTC","strategy":"zscore","position_fraction":1.5}`, http.StatusBadRequest, "invalid_position_fraction"},
	}

	s := newTestServer(t, &fakeService{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, "POST", "/api/v1/backtest", bytes.NewBufferString(tt.body))
			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestCompareEndpoint(t *testing.T) {
	svc := &fakeService{
		comparison: &backtest.ComparisonOutcome{
			ID:         "cmp-1",
			Instrument: "BTC",
			Comparison: &backtest.Comparison{Ticks: 96},
		},
	}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "POST", "/api/v1/compare", bytes.NewBufferString(`{"coin":"BTC"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// days defaults when omitted
	assert.Equal(t, defaultDays, svc.lastCompareReq.Days)

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Comparison)
	assert.Equal(t, "cmp-1", resp.Comparison.ID)
	assert.Equal(t, 96, resp.Comparison.Comparison.Ticks)
}

func TestCompareEndpoint_RequiresCoin(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(s, "POST", "/api/v1/compare", bytes.NewBufferString(`{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_coin", decodeError(t, rec).Code)
}

func TestRunsEndpoint_PersistenceDisabled(t *testing.T) {
	s := newTestServer(t, &fakeService{persistence: false}, nil)

	for _, path := range []string{"/api/v1/runs", "/api/v1/runs/abc"} {
		rec := doRequest(s, "GET", path, nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, "persistence_disabled", decodeError(t, rec).Code, path)
	}
}

func TestRunsEndpoint(t *testing.T) {
	svc := &fakeService{
		persistence: true,
		runs: []persistence.RunRecord{
			{ID: "run-2", Coin: "BTC", Strategy: "zscore"},
			{ID: "run-1", Coin: "BTC", Strategy: "momentum"},
		},
	}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "GET", "/api/v1/runs?coin=BTC&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTC", svc.lastCoin)
	assert.Equal(t, 5, svc.lastRunLimit)

	var resp RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "run-2", resp.Runs[0].ID)

	rec = doRequest(s, "GET", "/api/v1/runs?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_limit", decodeError(t, rec).Code)
}

func TestRunDetailEndpoint(t *testing.T) {
	svc := &fakeService{
		persistence: true,
		run:         &persistence.RunRecord{ID: "run-1", Coin: "BTC", Strategy: "zscore"},
		trades: []persistence.TradeRecord{
			{ID: 1, RunID: "run-1", Instrument: "BTC", Side: "SHORT"},
		},
	}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "GET", "/api/v1/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Run)
	assert.Equal(t, "run-1", resp.Run.ID)
	require.Len(t, resp.Trades, 1)
	assert.Equal(t, "SHORT", resp.Trades[0].Side)
}

func TestRunDetailEndpoint_Missing(t *testing.T) {
	s := newTestServer(t, &fakeService{persistence: true}, nil)

	rec := doRequest(s, "GET", "/api/v1/runs/ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "run_not_found", decodeError(t, rec).Code)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(s, "GET", "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint_not_found", decodeError(t, rec).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)

	req := httptest.NewRequest("OPTIONS", "/api/v1/backtest", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	// non-local origins get no allowance
	req = httptest.NewRequest("OPTIONS", "/api/v1/backtest", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerAddress(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)
	assert.Equal(t, "127.0.0.1:0", s.GetAddress())
}
