package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/fundrun/internal/backtest"
	"github.com/sawpanic/fundrun/internal/config"
	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
	"github.com/sawpanic/fundrun/internal/events"
	"github.com/sawpanic/fundrun/internal/infrastructure/cache"
	"github.com/sawpanic/fundrun/internal/infrastructure/db"
	"github.com/sawpanic/fundrun/internal/infrastructure/hyperliquid"
	httpapi "github.com/sawpanic/fundrun/internal/interfaces/http"
	"github.com/sawpanic/fundrun/internal/persistence"
)

// FundingSource fetches funding-rate history for one coin over a time range.
// The live Hyperliquid client and the mock generator both satisfy it.
type FundingSource interface {
	FundingHistory(ctx context.Context, coin string, start, end time.Time) (funding.Series, error)
}

// Service is the engine behind both the CLI and the HTTP API. It owns the
// funding sources, the event catalog, strategy profiles, the runner, and
// optional persistence.
type Service struct {
	cfg      Config
	catalog  *events.Catalog
	profiles *config.ProfilesConfig
	store    cache.Cache
	live     FundingSource
	mock     FundingSource
	runner   *backtest.Runner
	manager  *db.Manager
	runs     persistence.RunsRepo
	metrics  *httpapi.MetricsRegistry
	clock    backtest.Clock
}

// NewService wires the engine from configuration.
func NewService(cfg Config) (*Service, error) {
	catalog, err := events.Load(cfg.Paths.EventsFile)
	if err != nil {
		return nil, fmt.Errorf("event catalog: %w", err)
	}

	profiles, err := config.LoadProfiles(cfg.Paths.ProfilesFile)
	if err != nil {
		log.Warn().Err(err).
			Str("path", cfg.Paths.ProfilesFile).
			Msg("strategy profiles unavailable, using defaults")
		profiles = config.GetDefaultProfiles()
	}

	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	store := newCacheStore(cfg.Redis)

	metrics := httpapi.DefaultMetrics
	if metrics == nil {
		httpapi.InitializeMetrics()
		metrics = httpapi.DefaultMetrics
	}

	svc := &Service{
		cfg:      cfg,
		catalog:  catalog,
		profiles: profiles,
		store:    store,
		live:     hyperliquid.NewClient(cfg.Hyperliquid.ClientConfig(), store),
		mock:     hyperliquid.NewMock(),
		runner:   backtest.NewRunner(),
		manager:  manager,
		metrics:  metrics,
		clock:    backtest.RealClock{},
	}
	if manager.IsEnabled() {
		svc.runs = manager.Repository().Runs
	}
	return svc, nil
}

// newCacheStore picks the Redis backend when configured and reachable,
// otherwise the in-process map.
func newCacheStore(cfg RedisConfig) cache.Cache {
	if cfg.Addr == "" {
		return cache.NewMemory()
	}

	c, err := cache.NewRedis(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, falling back to memory cache")
		return cache.NewMemory()
	}
	return c
}

// SetSources swaps the funding sources (for testing).
func (s *Service) SetSources(live, mock FundingSource) {
	s.live = live
	s.mock = mock
}

// SetClock swaps the clock implementation (for testing).
func (s *Service) SetClock(c backtest.Clock) {
	s.clock = c
	s.runner.SetClock(c)
}

// SetRunsRepo swaps the persistence backend (for testing).
func (s *Service) SetRunsRepo(repo persistence.RunsRepo) {
	s.runs = repo
}

// Manager exposes the database manager for health wiring.
func (s *Service) Manager() *db.Manager {
	return s.manager
}

// Config returns the configuration the service was built from.
func (s *Service) Config() Config {
	return s.cfg
}

// Close releases the cache and database connections.
func (s *Service) Close() error {
	if err := s.store.Close(); err != nil {
		log.Warn().Err(err).Msg("cache close failed")
	}
	if s.manager != nil {
		return s.manager.Close()
	}
	return nil
}

// FundingHistory returns the last days of funding history for a coin.
func (s *Service) FundingHistory(ctx context.Context, coin string, days int, mock bool) (funding.Series, error) {
	if days <= 0 {
		days = s.cfg.Backtest.DefaultDays
	}
	end := s.clock.Now().UTC()
	return s.fetch(ctx, coin, end.AddDate(0, 0, -days), end, mock)
}

// fetch pulls history from the selected source, timing the step.
func (s *Service) fetch(ctx context.Context, coin string, start, end time.Time, mock bool) (funding.Series, error) {
	timer := s.metrics.StartStepTimer(string(httpapi.StepFetch))

	src := s.live
	name := "hyperliquid"
	if mock {
		src = s.mock
		name = "mock"
	}

	series, err := src.FundingHistory(ctx, coin, start, end)
	if err != nil {
		timer.Stop(string(httpapi.ResultError))
		s.metrics.RecordPipelineError(string(httpapi.StepFetch), errorType(err))
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	timer.Stop(string(httpapi.ResultSuccess))
	return series, nil
}

// errorType buckets fetch failures for the error counter.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, gobreaker.ErrOpenState):
		return "breaker_open"
	default:
		return "api_error"
	}
}

// Events returns the loaded catalog entries.
func (s *Service) Events() []events.Event {
	return s.catalog.All()
}

// Event looks one catalog entry up by name.
func (s *Service) Event(name string) (events.Event, bool) {
	return s.catalog.Get(name)
}

// PersistenceEnabled reports whether stored runs can be served.
func (s *Service) PersistenceEnabled() bool {
	return s.runs != nil
}

// paramsFor resolves a strategy's parameters from the active profile. The
// strategy registry merges defaults over anything left zero.
func (s *Service) paramsFor(name string) strategy.Params {
	profile, err := s.profiles.ActiveProfile()
	if err != nil {
		return strategy.Params{}
	}
	return profile.ParamsFor(name)
}

// allParams resolves every registered strategy's parameters.
func (s *Service) allParams() map[string]strategy.Params {
	out := make(map[string]strategy.Params, len(strategy.Names()))
	for _, name := range strategy.Names() {
		out[name] = s.paramsFor(name)
	}
	return out
}
