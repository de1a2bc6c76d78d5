package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundrun/internal/application"
	"github.com/sawpanic/fundrun/internal/domain/funding"
)

func TestReadScopeFlags_Defaults(t *testing.T) {
	cmd := &cobra.Command{}
	addScopeFlags(cmd.Flags())

	cfg := application.DefaultConfig()
	scope := readScopeFlags(cmd.Flags(), cfg)

	if scope.coin != cfg.Backtest.DefaultCoin {
		t.Errorf("coin = %s, want config default %s", scope.coin, cfg.Backtest.DefaultCoin)
	}
	if scope.days != 0 {
		t.Errorf("days = %d, want 0 (engine applies its own default)", scope.days)
	}
	if scope.mock || scope.event != "" {
		t.Errorf("unexpected scope: %+v", scope)
	}
}

func TestReadScopeFlags_Overrides(t *testing.T) {
	cmd := &cobra.Command{}
	addScopeFlags(cmd.Flags())
	if err := cmd.Flags().Parse([]string{"--coin", "ETH", "--days", "14", "--event", "dencun", "--mock"}); err != nil {
		t.Fatal(err)
	}

	scope := readScopeFlags(cmd.Flags(), application.DefaultConfig())
	if scope.coin != "ETH" || scope.days != 14 || scope.event != "dencun" || !scope.mock {
		t.Errorf("unexpected scope: %+v", scope)
	}
}

func TestParamOverrides(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("window", 0, "")
	cmd.Flags().Float64("threshold", 0, "")

	if p := paramOverrides(cmd); p != nil {
		t.Errorf("untouched flags should yield nil, got %+v", p)
	}

	if err := cmd.Flags().Parse([]string{"--threshold", "3.5"}); err != nil {
		t.Fatal(err)
	}
	p := paramOverrides(cmd)
	if p == nil || p.Threshold != 3.5 {
		t.Errorf("threshold override lost: %+v", p)
	}
	if p.WindowHours != 0 {
		t.Errorf("window should stay zero for registry defaults, got %d", p.WindowHours)
	}
}

func TestKnownStrategy(t *testing.T) {
	if !knownStrategy("zscore") {
		t.Error("zscore should be known")
	}
	if knownStrategy("astrology") {
		t.Error("astrology should not be known")
	}
}

func TestWriteSeriesCSV(t *testing.T) {
	series := funding.Series{
		{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Rate: 0.00125, Instrument: "BTC"},
		{Time: time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC), Rate: -0.0005, Instrument: "BTC"},
	}

	var buf bytes.Buffer
	if err := writeSeriesCSV(&buf, series); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "time,rate,instrument" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2024-03-01T00:00:00Z,0.001250,BTC" {
		t.Errorf("row = %q", lines[1])
	}
}
