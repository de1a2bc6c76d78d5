package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundrun/internal/backtest"
	httpapi "github.com/sawpanic/fundrun/internal/interfaces/http"
)

// runCompare races every registered strategy over one fetched series.
func runCompare(cmd *cobra.Command, args []string) error {
	svc, cfg, err := newService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	scope := readScopeFlags(cmd.Flags(), cfg)

	fmt.Printf("📊 Comparing strategies for %s...\n\n", scope.coin)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	outcome, err := svc.CompareStrategies(ctx, httpapi.CompareRequest{
		Coin:  scope.coin,
		Days:  scope.days,
		Event: scope.event,
		Mock:  scope.mock,
	})
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	printComparison(outcome)
	return nil
}

// printComparison renders the summary table, one row per strategy.
func printComparison(outcome *backtest.ComparisonOutcome) {
	cmp := outcome.Comparison

	header := fmt.Sprintf("Strategy comparison for %s", outcome.Instrument)
	if outcome.EventName != "" {
		header += " around " + outcome.EventName
	}
	fmt.Printf("%s (%d ticks)\n\n", header, cmp.Ticks)

	fmt.Printf("%-16s %8s %6s %6s %9s %6s\n",
		"STRATEGY", "SIGNALS", "LONG", "SHORT", "AVG CONF", "FREQ%")
	for _, row := range cmp.Rows {
		fmt.Printf("%-16s %8d %6d %6d %9.3f %6.1f\n",
			row.Strategy, row.TotalSignals, row.LongSignals, row.ShortSignals,
			row.AvgConfidence, row.SignalFreqPct)
	}

	if len(cmp.Failed) > 0 {
		fmt.Printf("\n⚠️  Failed: %s\n", strings.Join(cmp.Failed, ", "))
	}
}
