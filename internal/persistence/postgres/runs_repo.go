// Package postgres implements the persistence contracts on PostgreSQL
// through sqlx and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/fundrun/internal/persistence"
)

const runColumns = `id, coin, strategy, params, event_name, window_start, window_end,
	initial_capital, final_capital, total_return_pct, total_trades,
	win_rate, max_drawdown, sharpe_ratio, created_at`

const tradeColumns = `id, run_id, instrument, side, entry_time, exit_time, entry_rate,
	exit_rate, notional_size, funding_pnl, price_pnl, total_pnl, duration_hours`

// runsRepo implements RunsRepo for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a new PostgreSQL runs repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{
		db:      db,
		timeout: timeout,
	}
}

// SaveRun stores the run row and its trades in one transaction
func (r *runsRepo) SaveRun(ctx context.Context, run persistence.RunRecord, trades []persistence.TradeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(trades)/100+1))
	defer cancel()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO backtest_runs (
			id, coin, strategy, params, event_name, window_start, window_end,
			initial_capital, final_capital, total_return_pct, total_trades,
			win_rate, max_drawdown, sharpe_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.ExecContext(ctx, query,
		run.ID, run.Coin, run.Strategy, paramsJSON,
		run.EventName, run.WindowStart, run.WindowEnd,
		run.InitialCapital, run.FinalCapital, run.TotalReturnPct, run.TotalTrades,
		run.WinRate, run.MaxDrawdown, run.SharpeRatio)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("run %s: %w", run.ID, persistence.ErrDuplicateRun)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(trades) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO backtest_trades (
				run_id, instrument, side, entry_time, exit_time, entry_rate,
				exit_rate, notional_size, funding_pnl, price_pnl, total_pnl,
				duration_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trade insert: %w", err)
		}
		defer stmt.Close()

		for _, trade := range trades {
			_, err = stmt.ExecContext(ctx,
				run.ID, trade.Instrument, trade.Side, trade.EntryTime, trade.ExitTime,
				trade.EntryRate, trade.ExitRate, trade.Notional, trade.FundingPnL,
				trade.PricePnL, trade.TotalPnL, trade.DurationHours)
			if err != nil {
				return fmt.Errorf("failed to insert trade for run %s: %w", run.ID, err)
			}
		}
	}

	return tx.Commit()
}

// GetRun returns one run by ID, nil when absent
func (r *runsRepo) GetRun(ctx context.Context, id string) (*persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, query, id)

	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns retrieves runs for a coin within a time range, newest first
func (r *runsRepo) ListRuns(ctx context.Context, coin string, tr persistence.TimeRange, limit int) ([]persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		WHERE coin = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC
		LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, coin, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs by coin: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetLatest returns the most recent runs across all coins
func (r *runsRepo) GetLatest(ctx context.Context, limit int) ([]persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListTrades returns the trades for a run ordered by entry time
func (r *runsRepo) ListTrades(ctx context.Context, runID string) ([]persistence.TradeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + tradeColumns + `
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY entry_time ASC`

	rows, err := r.db.QueryxContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run: %w", err)
	}
	defer rows.Close()

	var trades []persistence.TradeRecord
	for rows.Next() {
		var trade persistence.TradeRecord
		err := rows.Scan(
			&trade.ID, &trade.RunID, &trade.Instrument, &trade.Side,
			&trade.EntryTime, &trade.ExitTime, &trade.EntryRate, &trade.ExitRate,
			&trade.Notional, &trade.FundingPnL, &trade.PricePnL, &trade.TotalPnL,
			&trade.DurationHours)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// Count returns total runs stored within a time range
func (r *runsRepo) Count(ctx context.Context, tr persistence.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM backtest_runs
		WHERE created_at >= $1 AND created_at <= $2`

	var count int64
	err := r.db.QueryRowxContext(ctx, query, tr.From, tr.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}

// CountByStrategy returns run counts grouped by strategy
func (r *runsRepo) CountByStrategy(ctx context.Context, tr persistence.TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT strategy, COUNT(*)
		FROM backtest_runs
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY strategy
		ORDER BY strategy`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs by strategy: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var strategy string
		var count int64
		if err := rows.Scan(&strategy, &count); err != nil {
			return nil, fmt.Errorf("failed to scan strategy count: %w", err)
		}
		counts[strategy] = count
	}

	return counts, nil
}

// EnsureSchema creates the run and trade tables when missing
func (r *runsRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	schema := `
		CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			coin TEXT NOT NULL,
			strategy TEXT NOT NULL,
			params JSONB,
			event_name TEXT,
			window_start TIMESTAMPTZ,
			window_end TIMESTAMPTZ,
			initial_capital DOUBLE PRECISION NOT NULL,
			final_capital DOUBLE PRECISION NOT NULL,
			total_return_pct DOUBLE PRECISION NOT NULL,
			total_trades INTEGER NOT NULL,
			win_rate DOUBLE PRECISION NOT NULL,
			max_drawdown DOUBLE PRECISION NOT NULL,
			sharpe_ratio DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS backtest_trades (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			instrument TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			entry_rate DOUBLE PRECISION NOT NULL,
			exit_rate DOUBLE PRECISION NOT NULL,
			notional_size DOUBLE PRECISION NOT NULL,
			funding_pnl DOUBLE PRECISION NOT NULL,
			price_pnl DOUBLE PRECISION NOT NULL,
			total_pnl DOUBLE PRECISION NOT NULL,
			duration_hours DOUBLE PRECISION NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_backtest_runs_coin_created
			ON backtest_runs (coin, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_backtest_trades_run
			ON backtest_trades (run_id);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	return nil
}

// Helper methods

// rowScanner covers both sqlx.Row and sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*persistence.RunRecord, error) {
	var run persistence.RunRecord
	var paramsJSON []byte

	err := row.Scan(
		&run.ID, &run.Coin, &run.Strategy, &paramsJSON,
		&run.EventName, &run.WindowStart, &run.WindowEnd,
		&run.InitialCapital, &run.FinalCapital, &run.TotalReturnPct, &run.TotalTrades,
		&run.WinRate, &run.MaxDrawdown, &run.SharpeRatio, &run.CreatedAt)

	if err != nil {
		return nil, err
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	} else {
		run.Params = make(map[string]interface{})
	}

	return &run, nil
}

func scanRuns(rows *sqlx.Rows) ([]persistence.RunRecord, error) {
	var runs []persistence.RunRecord

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}
