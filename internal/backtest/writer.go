package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// tradeColumns is the fixed trades.csv header. Downstream notebooks key on
// these names and this order.
var tradeColumns = []string{
	"instrument", "side", "entry_time", "exit_time", "duration",
	"entry_rate", "exit_rate", "funding_pnl", "trade_pnl", "total_pnl",
}

// ArtifactPaths locates everything a run wrote to disk.
type ArtifactPaths struct {
	OutputDir     string `json:"output_dir"`
	TradesCSV     string `json:"trades_csv"`
	EquityCSV     string `json:"equity_csv"`
	ResultsJSONL  string `json:"results_jsonl"`
	ReportMD      string `json:"report_md"`
	SummaryJSON   string `json:"summary_json"`
	ComparisonCSV string `json:"comparison_csv"`
}

// Writer handles writing run artifacts to disk. Each run gets its own
// timestamped directory under the base path.
type Writer struct {
	outputDir string
	stamp     string
}

// NewWriter creates an artifact writer rooted at baseDir. The run directory
// name is derived from at so tests can pin it.
func NewWriter(baseDir string, at time.Time) *Writer {
	stamp := at.UTC().Format("2006-01-02_150405")
	return &Writer{
		outputDir: filepath.Join(baseDir, stamp),
		stamp:     stamp,
	}
}

// GetOutputDir returns the full output directory path.
func (w *Writer) GetOutputDir() string {
	return w.outputDir
}

func (w *Writer) ensureDir() error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// WriteTrades writes every closed trade to trades.csv in the fixed column
// order.
func (w *Writer) WriteTrades(outcome *RunOutcome) error {
	if err := w.ensureDir(); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(w.outputDir, "trades.csv"))
	if err != nil {
		return fmt.Errorf("failed to create trades file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(tradeColumns); err != nil {
		return fmt.Errorf("failed to write trades header: %w", err)
	}

	for _, t := range outcome.Result.Trades {
		row := []string{
			t.Instrument,
			string(t.Side),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.DurationHours, 'f', 2, 64),
			strconv.FormatFloat(t.EntryRate, 'f', 6, 64),
			strconv.FormatFloat(t.ExitRate, 'f', 6, 64),
			strconv.FormatFloat(t.FundingPnL, 'f', 6, 64),
			strconv.FormatFloat(t.PricePnL, 'f', 6, 64),
			strconv.FormatFloat(t.TotalPnL, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write trade row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush trades file: %w", err)
	}
	return nil
}

// WriteEquity writes the equity curve to equity.csv.
func (w *Writer) WriteEquity(outcome *RunOutcome) error {
	if err := w.ensureDir(); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(w.outputDir, "equity.csv"))
	if err != nil {
		return fmt.Errorf("failed to create equity file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write([]string{"time", "capital"}); err != nil {
		return fmt.Errorf("failed to write equity header: %w", err)
	}
	for _, snap := range outcome.Result.EquityCurve {
		row := []string{
			snap.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(snap.Capital, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write equity row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush equity file: %w", err)
	}
	return nil
}

// WriteResults writes the run to JSONL format: one line per closed trade,
// then the full outcome as the final line.
func (w *Writer) WriteResults(outcome *RunOutcome) error {
	if err := w.ensureDir(); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(w.outputDir, "results.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer file.Close()

	for _, t := range outcome.Result.Trades {
		jsonData, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}
		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
		if _, err := file.WriteString("\n"); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}

	summaryData, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	if _, err := file.Write(summaryData); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}
	if _, err := file.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}

// WriteReport writes a markdown report for a single run.
func (w *Writer) WriteReport(outcome *RunOutcome) error {
	if err := w.ensureDir(); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(w.outputDir, "report.md"))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(w.generateRunReport(outcome)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// maxReportTrades caps the trades table so reports on long series stay
// readable. The full set is always in trades.csv.
const maxReportTrades = 25

func (w *Writer) generateRunReport(outcome *RunOutcome) string {
	var report strings.Builder
	res := outcome.Result
	stats := res.Stats

	report.WriteString("# Funding Backtest Report\n\n")
	report.WriteString(fmt.Sprintf("**Generated**: %s\n", outcome.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	report.WriteString(fmt.Sprintf("**Run ID**: %s\n", outcome.ID))
	report.WriteString(fmt.Sprintf("**Instrument**: %s\n", outcome.Instrument))
	report.WriteString(fmt.Sprintf("**Strategy**: %s\n", outcome.Strategy))
	if outcome.Window != nil {
		report.WriteString(fmt.Sprintf("**Event**: %s (%s to %s)\n",
			outcome.EventName,
			outcome.Window.Start.UTC().Format("2006-01-02 15:04"),
			outcome.Window.End.UTC().Format("2006-01-02 15:04")))
	}
	report.WriteString("\n")

	report.WriteString("## Performance\n\n")
	report.WriteString(fmt.Sprintf("- **Initial Capital**: $%.2f\n", res.InitialCapital))
	report.WriteString(fmt.Sprintf("- **Final Capital**: $%.2f\n", res.FinalCapital))
	report.WriteString(fmt.Sprintf("- **Total Return**: $%.2f (%.2f%%)\n", stats.TotalReturn, stats.TotalReturnPct))
	report.WriteString(fmt.Sprintf("- **Trades**: %d (%d won, %d lost, %.1f%% win rate)\n",
		stats.TotalTrades, stats.WinningTrades, stats.LosingTrades, stats.WinRate))
	report.WriteString(fmt.Sprintf("- **Average Trade PnL**: $%.2f\n", stats.AvgTradePnL))
	report.WriteString(fmt.Sprintf("- **Max Drawdown**: $%.2f\n", stats.MaxDrawdown))
	report.WriteString(fmt.Sprintf("- **Sharpe Ratio**: %.2f\n\n", stats.SharpeRatio))

	if len(res.Trades) > 0 {
		report.WriteString("## Trades\n\n")
		report.WriteString("| # | Side | Entry | Exit | Hours | Entry Rate | Exit Rate | Funding PnL | Price PnL | Total PnL |\n")
		report.WriteString("|---|------|-------|------|------:|-----------:|----------:|------------:|----------:|----------:|\n")
		for i, t := range res.Trades {
			if i >= maxReportTrades {
				report.WriteString(fmt.Sprintf("\n_%d more trades in trades.csv_\n", len(res.Trades)-maxReportTrades))
				break
			}
			report.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %.1f | %.4f%% | %.4f%% | $%.2f | $%.2f | $%.2f |\n",
				i+1, t.Side,
				t.EntryTime.UTC().Format("2006-01-02 15:04"),
				t.ExitTime.UTC().Format("2006-01-02 15:04"),
				t.DurationHours, t.EntryRate, t.ExitRate,
				t.FundingPnL, t.PricePnL, t.TotalPnL))
		}
		report.WriteString("\n")
	}

	if len(res.OpenPositions) > 0 {
		report.WriteString("## Open Positions\n\n")
		report.WriteString("| Instrument | Side | Entry | Entry Rate | Notional | Accrued Funding |\n")
		report.WriteString("|------------|------|-------|-----------:|---------:|----------------:|\n")
		for _, pos := range res.OpenPositions {
			report.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f%% | $%.2f | $%.2f |\n",
				pos.Instrument, pos.Side,
				pos.EntryTime.UTC().Format("2006-01-02 15:04"),
				pos.EntryRate, pos.Notional, pos.FundingPnL))
		}
		report.WriteString("\nOpen positions are reported as-is and excluded from all statistics.\n\n")
	}

	report.WriteString("## Methodology\n\n")
	report.WriteString("1. Funding accrues on every tick a position is held, including the closing tick\n")
	report.WriteString("2. Each position is sized as a fixed fraction of the capital at entry\n")
	report.WriteString("3. A position closes on the first HOLD or opposite-direction signal\n")
	report.WriteString("4. Trade PnL combines the funding leg and the rate-change leg\n\n")

	paths := w.GetArtifactPaths()
	report.WriteString("## Artifact Paths\n\n")
	report.WriteString(fmt.Sprintf("- **Trades CSV**: `%s`\n", paths.TradesCSV))
	report.WriteString(fmt.Sprintf("- **Equity CSV**: `%s`\n", paths.EquityCSV))
	report.WriteString(fmt.Sprintf("- **Results JSONL**: `%s`\n", paths.ResultsJSONL))
	report.WriteString(fmt.Sprintf("- **Summary JSON**: `%s`\n", paths.SummaryJSON))
	report.WriteString(fmt.Sprintf("- **Output Directory**: `%s`\n", w.outputDir))

	return report.String()
}

// WriteSummaryJSON writes a compact summary JSON file for a single run.
func (w *Writer) WriteSummaryJSON(outcome *RunOutcome) error {
	if err := w.ensureDir(); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(w.outputDir, "summary.json"))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	paths := w.GetArtifactPaths()
	stats := outcome.Result.Stats
	summary := map[string]interface{}{
		"run_id":           outcome.ID,
		"generated_at":     outcome.FinishedAt.UTC().Format(time.RFC3339),
		"instrument":       outcome.Instrument,
		"strategy":         outcome.Strategy,
		"event":            outcome.EventName,
		"ticks":            len(outcome.Signals),
		"total_trades":     stats.TotalTrades,
		"open_positions":   len(outcome.Result.OpenPositions),
		"initial_capital":  outcome.Result.InitialCapital,
		"final_capital":    outcome.Result.FinalCapital,
		"total_return_pct": stats.TotalReturnPct,
		"win_rate":         stats.WinRate,
		"max_drawdown":     stats.MaxDrawdown,
		"sharpe_ratio":     stats.SharpeRatio,
		"artifacts": map[string]string{
			"trades":  paths.TradesCSV,
			"equity":  paths.EquityCSV,
			"results": paths.ResultsJSONL,
			"report":  paths.ReportMD,
			"summary": paths.SummaryJSON,
		},
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}

// WriteComparison writes the per-strategy table to comparison.csv and a
// companion markdown report.
func (w *Writer) WriteComparison(outcome *ComparisonOutcome) error {
	if err := w.ensureDir(); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(w.outputDir, "comparison.csv"))
	if err != nil {
		return fmt.Errorf("failed to create comparison file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	header := []string{
		"strategy", "total_signals", "long_signals", "short_signals",
		"avg_confidence", "signal_freq_pct", "long_pct", "short_pct",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write comparison header: %w", err)
	}
	for _, row := range outcome.Comparison.Rows {
		record := []string{
			row.Strategy,
			strconv.Itoa(row.TotalSignals),
			strconv.Itoa(row.LongSignals),
			strconv.Itoa(row.ShortSignals),
			strconv.FormatFloat(row.AvgConfidence, 'f', 3, 64),
			strconv.FormatFloat(row.SignalFreqPct, 'f', 2, 64),
			strconv.FormatFloat(row.LongPct, 'f', 2, 64),
			strconv.FormatFloat(row.ShortPct, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write comparison row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush comparison file: %w", err)
	}

	return w.writeComparisonReport(outcome)
}

func (w *Writer) writeComparisonReport(outcome *ComparisonOutcome) error {
	file, err := os.Create(filepath.Join(w.outputDir, "report.md"))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	var report strings.Builder
	report.WriteString("# Strategy Comparison Report\n\n")
	report.WriteString(fmt.Sprintf("**Generated**: %s\n", outcome.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	report.WriteString(fmt.Sprintf("**Run ID**: %s\n", outcome.ID))
	report.WriteString(fmt.Sprintf("**Instrument**: %s\n", outcome.Instrument))
	report.WriteString(fmt.Sprintf("**Ticks**: %d\n", outcome.Comparison.Ticks))
	if outcome.Window != nil {
		report.WriteString(fmt.Sprintf("**Event**: %s (%s to %s)\n",
			outcome.EventName,
			outcome.Window.Start.UTC().Format("2006-01-02 15:04"),
			outcome.Window.End.UTC().Format("2006-01-02 15:04")))
	}
	report.WriteString("\n")

	report.WriteString("## Signal Profile\n\n")
	report.WriteString("| Strategy | Signals | Long | Short | Avg Confidence | Signal Freq | Long Share | Short Share |\n")
	report.WriteString("|----------|--------:|-----:|------:|---------------:|------------:|-----------:|------------:|\n")
	for _, row := range outcome.Comparison.Rows {
		report.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.3f | %.2f%% | %.2f%% | %.2f%% |\n",
			row.Strategy, row.TotalSignals, row.LongSignals, row.ShortSignals,
			row.AvgConfidence, row.SignalFreqPct, row.LongPct, row.ShortPct))
	}
	report.WriteString("\n")

	if len(outcome.Comparison.Failed) > 0 {
		report.WriteString("## Failed Strategies\n\n")
		for _, name := range outcome.Comparison.Failed {
			report.WriteString(fmt.Sprintf("- %s\n", name))
		}
		report.WriteString("\nFailed strategies are excluded from the table above; see the run log for causes.\n\n")
	}

	report.WriteString("## Artifact Paths\n\n")
	report.WriteString(fmt.Sprintf("- **Comparison CSV**: `%s`\n", filepath.Join(w.outputDir, "comparison.csv")))
	report.WriteString(fmt.Sprintf("- **Output Directory**: `%s`\n", w.outputDir))

	if _, err := file.WriteString(report.String()); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}
	return nil
}

// GetArtifactPaths returns the paths of all artifacts a run may generate.
func (w *Writer) GetArtifactPaths() *ArtifactPaths {
	return &ArtifactPaths{
		OutputDir:     w.outputDir,
		TradesCSV:     filepath.Join(w.outputDir, "trades.csv"),
		EquityCSV:     filepath.Join(w.outputDir, "equity.csv"),
		ResultsJSONL:  filepath.Join(w.outputDir, "results.jsonl"),
		ReportMD:      filepath.Join(w.outputDir, "report.md"),
		SummaryJSON:   filepath.Join(w.outputDir, "summary.json"),
		ComparisonCSV: filepath.Join(w.outputDir, "comparison.csv"),
	}
}
