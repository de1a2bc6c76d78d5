package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/backtest"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
	httpapi "github.com/sawpanic/fundrun/internal/interfaces/http"
)

// runScope is the resolved time span of a run: either the last N days, or
// the window around a catalog event.
type runScope struct {
	start     time.Time
	end       time.Time
	eventName string
	eventTime *time.Time
}

// resolveScope turns the request's days/event fields into fetch bounds. An
// event takes precedence over days; the fetch covers exactly the window the
// runner will clip to.
func (s *Service) resolveScope(days int, eventName string) (runScope, error) {
	if eventName == "" {
		if days <= 0 {
			days = s.cfg.Backtest.DefaultDays
		}
		end := s.clock.Now().UTC()
		return runScope{start: end.AddDate(0, 0, -days), end: end}, nil
	}

	ev, ok := s.catalog.Get(eventName)
	if !ok {
		return runScope{}, fmt.Errorf("event %q is not in the catalog", eventName)
	}

	t := ev.Time
	return runScope{
		start:     t.Add(-backtest.WindowLookback),
		end:       t.Add(backtest.WindowLookahead),
		eventName: ev.Name,
		eventTime: &t,
	}, nil
}

// RunBacktest fetches history, runs one strategy over it, persists the
// outcome when storage is enabled, and writes run artifacts.
func (s *Service) RunBacktest(ctx context.Context, req httpapi.BacktestRequest) (*httpapi.BacktestResponse, error) {
	s.metrics.IncrementActiveBacktests()
	defer s.metrics.DecrementActiveBacktests()

	scope, err := s.resolveScope(req.Days, req.Event)
	if err != nil {
		return nil, err
	}

	series, err := s.fetch(ctx, req.Coin, scope.start, scope.end, req.Mock)
	if err != nil {
		return nil, err
	}

	params := s.paramsFor(req.Strategy)
	if req.Params != nil {
		params = *req.Params
	}

	sim := s.cfg.Backtest.SimConfig()
	if req.InitialCapital > 0 {
		sim.InitialCapital = req.InitialCapital
	}
	if req.PositionFraction > 0 {
		sim.PositionFraction = req.PositionFraction
	}

	timer := s.metrics.StartStepTimer(string(httpapi.StepSimulate))
	outcome, err := s.runner.Run(ctx, backtest.RunRequest{
		Series:    series,
		Strategy:  req.Strategy,
		Params:    params,
		Sim:       sim,
		EventName: scope.eventName,
		EventTime: scope.eventTime,
	})
	if err != nil {
		timer.Stop(string(httpapi.ResultError))
		s.metrics.RecordPipelineError(string(httpapi.StepSimulate), "simulation_failed")
		return nil, err
	}
	timer.Stop(string(httpapi.ResultSuccess))

	s.recordSignals(outcome.Strategy, outcome.Signals)

	return &httpapi.BacktestResponse{
		Run:       outcome,
		Persisted: s.persistRun(ctx, outcome),
		Artifacts: s.writeRunArtifacts(outcome),
	}, nil
}

// CompareStrategies fetches history once and races every registered
// strategy over it.
func (s *Service) CompareStrategies(ctx context.Context, req httpapi.CompareRequest) (*backtest.ComparisonOutcome, error) {
	scope, err := s.resolveScope(req.Days, req.Event)
	if err != nil {
		return nil, err
	}

	series, err := s.fetch(ctx, req.Coin, scope.start, scope.end, req.Mock)
	if err != nil {
		return nil, err
	}

	timer := s.metrics.StartStepTimer(string(httpapi.StepCompare))
	outcome, err := s.runner.RunComparison(ctx, series, scope.eventName, scope.eventTime, s.allParams())
	if err != nil {
		timer.Stop(string(httpapi.ResultError))
		s.metrics.RecordPipelineError(string(httpapi.StepCompare), "comparison_failed")
		return nil, err
	}
	timer.Stop(string(httpapi.ResultSuccess))

	s.writeComparisonArtifacts(outcome)
	return outcome, nil
}

// recordSignals counts the actionable signals a run produced.
func (s *Service) recordSignals(name string, signals []strategy.Signal) {
	for _, sig := range signals {
		if sig.Kind.Active() {
			s.metrics.RecordSignal(name, string(sig.Kind))
		}
	}
}

// writeRunArtifacts writes the run's CSV/JSON/report files. Artifact
// failures are logged, never fatal: the run already succeeded.
func (s *Service) writeRunArtifacts(outcome *backtest.RunOutcome) *backtest.ArtifactPaths {
	if s.cfg.Paths.ArtifactsDir == "" {
		return nil
	}

	timer := s.metrics.StartStepTimer(string(httpapi.StepArtifacts))
	w := backtest.NewWriter(s.cfg.Paths.ArtifactsDir, outcome.FinishedAt)

	steps := []func(*backtest.RunOutcome) error{
		w.WriteTrades,
		w.WriteEquity,
		w.WriteResults,
		w.WriteReport,
		w.WriteSummaryJSON,
	}
	for _, write := range steps {
		if err := write(outcome); err != nil {
			timer.Stop(string(httpapi.ResultError))
			s.metrics.RecordPipelineError(string(httpapi.StepArtifacts), "write_failed")
			log.Error().Err(err).Str("run_id", outcome.ID).Msg("artifact write failed")
			return nil
		}
	}

	timer.Stop(string(httpapi.ResultSuccess))
	return w.GetArtifactPaths()
}

// writeComparisonArtifacts writes the comparison CSV and report.
func (s *Service) writeComparisonArtifacts(outcome *backtest.ComparisonOutcome) {
	if s.cfg.Paths.ArtifactsDir == "" {
		return
	}

	timer := s.metrics.StartStepTimer(string(httpapi.StepArtifacts))
	w := backtest.NewWriter(s.cfg.Paths.ArtifactsDir, outcome.FinishedAt)
	if err := w.WriteComparison(outcome); err != nil {
		timer.Stop(string(httpapi.ResultError))
		s.metrics.RecordPipelineError(string(httpapi.StepArtifacts), "write_failed")
		log.Error().Err(err).Str("run_id", outcome.ID).Msg("comparison artifact write failed")
		return
	}
	timer.Stop(string(httpapi.ResultSuccess))
}
