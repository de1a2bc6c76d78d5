package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/backtest"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
	httpapi "github.com/sawpanic/fundrun/internal/interfaces/http"
	"github.com/sawpanic/fundrun/internal/persistence"
)

// ErrPersistenceDisabled is returned by stored-run queries when no database
// is configured.
var ErrPersistenceDisabled = errors.New("database persistence is not enabled")

// persistRun saves a completed run. Storage failures are logged and
// reported as unpersisted, never surfaced: the run itself succeeded.
func (s *Service) persistRun(ctx context.Context, outcome *backtest.RunOutcome) bool {
	if s.runs == nil {
		return false
	}

	timer := s.metrics.StartStepTimer(string(httpapi.StepPersist))
	run, trades := toRecords(outcome)

	if err := s.runs.SaveRun(ctx, run, trades); err != nil {
		timer.Stop(string(httpapi.ResultError))
		s.metrics.RecordPipelineError(string(httpapi.StepPersist), "db_error")
		log.Error().Err(err).Str("run_id", outcome.ID).Msg("failed to persist run")
		return false
	}

	timer.Stop(string(httpapi.ResultSuccess))
	return true
}

// ListRuns returns stored runs, newest first, optionally filtered by coin.
func (s *Service) ListRuns(ctx context.Context, coin string, limit int) ([]persistence.RunRecord, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}

	if coin == "" {
		return s.runs.GetLatest(ctx, limit)
	}

	tr := persistence.TimeRange{To: s.clock.Now().UTC()}
	return s.runs.ListRuns(ctx, coin, tr, limit)
}

// GetRun returns one stored run with its trades, nil when absent.
func (s *Service) GetRun(ctx context.Context, id string) (*persistence.RunRecord, []persistence.TradeRecord, error) {
	if s.runs == nil {
		return nil, nil, ErrPersistenceDisabled
	}

	run, err := s.runs.GetRun(ctx, id)
	if err != nil || run == nil {
		return nil, nil, err
	}

	trades, err := s.runs.ListTrades(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, trades, nil
}

// toRecords flattens a run outcome into its storage shape.
func toRecords(outcome *backtest.RunOutcome) (persistence.RunRecord, []persistence.TradeRecord) {
	run := persistence.RunRecord{
		ID:             outcome.ID,
		Coin:           outcome.Instrument,
		Strategy:       outcome.Strategy,
		Params:         paramsToMap(outcome.Params),
		InitialCapital: outcome.Result.InitialCapital,
		FinalCapital:   outcome.Result.FinalCapital,
		TotalReturnPct: outcome.Result.Stats.TotalReturnPct,
		TotalTrades:    outcome.Result.Stats.TotalTrades,
		WinRate:        outcome.Result.Stats.WinRate,
		MaxDrawdown:    outcome.Result.Stats.MaxDrawdown,
		SharpeRatio:    outcome.Result.Stats.SharpeRatio,
		CreatedAt:      outcome.FinishedAt,
	}

	if outcome.EventName != "" {
		name := outcome.EventName
		run.EventName = &name
	}
	if outcome.Window != nil {
		start, end := outcome.Window.Start, outcome.Window.End
		run.WindowStart, run.WindowEnd = &start, &end
	}

	trades := make([]persistence.TradeRecord, 0, len(outcome.Result.Trades))
	for _, t := range outcome.Result.Trades {
		trades = append(trades, persistence.TradeRecord{
			RunID:         outcome.ID,
			Instrument:    t.Instrument,
			Side:          string(t.Side),
			EntryTime:     t.EntryTime,
			ExitTime:      t.ExitTime,
			EntryRate:     t.EntryRate,
			ExitRate:      t.ExitRate,
			Notional:      t.Notional,
			FundingPnL:    t.FundingPnL,
			PricePnL:      t.PricePnL,
			TotalPnL:      t.TotalPnL,
			DurationHours: t.DurationHours,
		})
	}

	return run, trades
}

// paramsToMap converts strategy parameters into the JSONB storage shape.
func paramsToMap(p strategy.Params) map[string]interface{} {
	b, err := json.Marshal(p)
	if err != nil {
		return map[string]interface{}{}
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}
