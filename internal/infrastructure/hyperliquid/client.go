// Package hyperliquid fetches perpetual funding-rate history from the
// Hyperliquid info API. The client guards the exchange with a token-bucket
// rate limiter and a circuit breaker, and consults the funding cache before
// touching the network. A deterministic mock generator and a live websocket
// watcher live alongside it for offline runs and streaming mode.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/infrastructure/cache"
)

const (
	// DefaultBaseURL is the Hyperliquid mainnet info endpoint host.
	DefaultBaseURL = "https://api.hyperliquid.xyz"

	infoPath = "/info"
)

// Config tunes the REST client. Zero fields fall back to defaults.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	CacheTTL        time.Duration
}

// DefaultConfig returns the production client settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         30 * time.Second,
		RequestsPerSec:  5,
		Burst:           10,
		BreakerFailures: 3,
		BreakerTimeout:  30 * time.Second,
		CacheTTL:        15 * time.Minute,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = def.RequestsPerSec
	}
	if c.Burst <= 0 {
		c.Burst = def.Burst
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = def.BreakerFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = def.BreakerTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
}

// Client talks to the Hyperliquid info API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   cache.Cache
}

// NewClient builds a rate-limited, breaker-guarded client. The cache may be
// nil, in which case every call goes to the network.
func NewClient(cfg Config, store cache.Cache) *Client {
	cfg.applyDefaults()

	settings := gobreaker.Settings{
		Name:        "hyperliquid",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		cache:   store,
	}
}

type fundingRequest struct {
	Type      string `json:"type"`
	Coin      string `json:"coin"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// fundingRow is one settlement as the exchange reports it. The rate arrives
// as a fractional string and the timestamp in epoch milliseconds.
type fundingRow struct {
	Coin        string `json:"coin"`
	FundingRate string `json:"fundingRate"`
	Time        int64  `json:"time"`
}

// FundingHistory returns the funding settlements for coin in [start, end],
// sorted ascending by time with rates in percent units. Cached spans are
// served without a network call.
func (c *Client) FundingHistory(ctx context.Context, coin string, start, end time.Time) (funding.Series, error) {
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("invalid time range: start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	key := cache.FundingKey(coin, start, end)
	if series, ok := c.fromCache(ctx, key); ok {
		log.Debug().Str("coin", coin).Int("observations", len(series)).Msg("funding history served from cache")
		return series, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := fundingRequest{
		Type:      "fundingHistory",
		Coin:      coin,
		StartTime: start.UnixMilli(),
		EndTime:   end.UnixMilli(),
	}

	payload, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch funding history for %s: %w", coin, err)
	}

	var rows []fundingRow
	if err := json.Unmarshal(payload.([]byte), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse funding history for %s: %w", coin, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("hyperliquid returned no funding history for %s", coin)
	}

	series := make(funding.Series, 0, len(rows))
	for i, row := range rows {
		fractional, err := strconv.ParseFloat(row.FundingRate, 64)
		if err != nil {
			return nil, fmt.Errorf("funding row %d: bad rate %q: %w", i, row.FundingRate, err)
		}
		series = append(series, funding.Observation{
			Time:       time.UnixMilli(row.Time).UTC(),
			Rate:       fractional * 100,
			Instrument: coin,
		})
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})

	c.toCache(ctx, key, series)

	log.Info().
		Str("coin", coin).
		Int("observations", len(series)).
		Time("start", start).
		Time("end", end).
		Msg("fetched funding history")

	return series, nil
}

// doRequest posts the info payload and returns the raw response body.
func (c *Client) doRequest(ctx context.Context, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+infoPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func (c *Client) fromCache(ctx context.Context, key string) (funding.Series, bool) {
	if c.cache == nil {
		return nil, false
	}

	value, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, fetching from network")
		return nil, false
	}
	if !hit {
		return nil, false
	}

	var series funding.Series
	if err := json.Unmarshal(value, &series); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, fetching from network")
		return nil, false
	}
	return series, true
}

func (c *Client) toCache(ctx context.Context, key string, series funding.Series) {
	if c.cache == nil {
		return
	}

	value, err := json.Marshal(series)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.cache.Set(ctx, key, value, c.cfg.CacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
