package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundrun/internal/domain/funding"
)

// runFetch pulls funding history and writes it as CSV or JSON.
func runFetch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "csv" && format != "json" {
		return fmt.Errorf("invalid format %q (valid: csv, json)", format)
	}

	svc, cfg, err := newService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	coin, _ := cmd.Flags().GetString("coin")
	days, _ := cmd.Flags().GetInt("days")
	mock, _ := cmd.Flags().GetBool("mock")
	output, _ := cmd.Flags().GetString("output")
	if coin == "" {
		coin = cfg.Backtest.DefaultCoin
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	series, err := svc.FundingHistory(ctx, coin, days, mock)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "csv":
		err = writeSeriesCSV(w, series)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(series)
	}
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	if output != "" {
		fmt.Printf("💾 Wrote %d observations to %s\n", len(series), output)
	}
	return nil
}

func writeSeriesCSV(w io.Writer, series funding.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "rate", "instrument"}); err != nil {
		return err
	}

	for _, obs := range series {
		row := []string{
			obs.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(obs.Rate, 'f', 6, 64),
			obs.Instrument,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
