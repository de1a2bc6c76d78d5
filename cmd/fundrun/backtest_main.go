package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundrun/internal/application"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
	httpapi "github.com/sawpanic/fundrun/internal/interfaces/http"
)

// runTimeout bounds one CLI backtest or comparison end to end, fetch
// included.
const runTimeout = 5 * time.Minute

// runBacktest executes one strategy over fetched funding history.
func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("strategy")
	if !knownStrategy(name) {
		return fmt.Errorf("unknown strategy %q (valid: %s)", name, strings.Join(strategy.Names(), ", "))
	}

	capital, _ := cmd.Flags().GetFloat64("capital")
	fraction, _ := cmd.Flags().GetFloat64("fraction")
	output, _ := cmd.Flags().GetString("output")
	store, _ := cmd.Flags().GetBool("store")

	if output != "" {
		cfg.Paths.ArtifactsDir = output
	}
	if store && !cfg.Database.Enabled {
		return fmt.Errorf("--store requires a configured database (database.enabled plus dsn)")
	}
	if !store {
		cfg.Database.Enabled = false
	}

	svc, err := application.NewService(cfg)
	if err != nil {
		return fmt.Errorf("engine startup failed: %w", err)
	}
	defer svc.Close()

	scope := readScopeFlags(cmd.Flags(), cfg)
	req := httpapi.BacktestRequest{
		Coin:             scope.coin,
		Strategy:         name,
		Days:             scope.days,
		Event:            scope.event,
		Mock:             scope.mock,
		InitialCapital:   capital,
		PositionFraction: fraction,
		Params:           paramOverrides(cmd),
	}

	fmt.Printf("🔬 Running %s backtest for %s...\n\n", name, scope.coin)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	resp, err := svc.RunBacktest(ctx, req)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printRunSummary(resp)
	return nil
}

// paramOverrides builds a parameter override only when a tuning flag was
// actually set, so profile defaults survive otherwise.
func paramOverrides(cmd *cobra.Command) *strategy.Params {
	if !cmd.Flags().Changed("window") && !cmd.Flags().Changed("threshold") {
		return nil
	}

	window, _ := cmd.Flags().GetInt("window")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	return &strategy.Params{WindowHours: window, Threshold: threshold}
}

func knownStrategy(name string) bool {
	for _, n := range strategy.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// printRunSummary renders the outcome of one run.
func printRunSummary(resp *httpapi.BacktestResponse) {
	run := resp.Run
	stats := run.Result.Stats

	fmt.Printf("✅ Backtest completed!\n\n")
	fmt.Printf("📊 %s on %s", run.Strategy, run.Instrument)
	if run.EventName != "" {
		fmt.Printf(" around %s", run.EventName)
	}
	fmt.Printf("\n")
	fmt.Printf("   • Capital: %.2f → %.2f (%+.2f%%)\n",
		run.Result.InitialCapital, run.Result.FinalCapital, stats.TotalReturnPct)
	fmt.Printf("   • Trades: %d (win rate %.1f%%)\n", stats.TotalTrades, stats.WinRate)
	fmt.Printf("   • Max drawdown: %.2f  Sharpe: %.2f\n", stats.MaxDrawdown, stats.SharpeRatio)
	if len(run.Result.OpenPositions) > 0 {
		fmt.Printf("   • Open at end: %d position(s)\n", len(run.Result.OpenPositions))
	}
	if resp.Persisted {
		fmt.Printf("   • Stored run: %s\n", run.ID)
	}
	if resp.Artifacts != nil {
		fmt.Printf("\n💾 Artifacts: %s\n", resp.Artifacts.OutputDir)
	}
}
