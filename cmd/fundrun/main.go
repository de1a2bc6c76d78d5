package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/fundrun/internal/application"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
	httpapi "github.com/sawpanic/fundrun/internal/interfaces/http"
)

const (
	appName = "FundRun"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	httpapi.InitializeMetrics()

	rootCmd := &cobra.Command{
		Use:     "fundrun",
		Short:   "Funding-rate backtesting engine for Hyperliquid perpetuals",
		Version: version,
		Long: `FundRun backtests funding-rate trading strategies over Hyperliquid
perpetual funding history: fetch real or synthetic rates, generate signals
with one of eight anomaly strategies, simulate positions around market
events, and compare strategies side by side.

Run 'fundrun' in a terminal for the interactive menu; the subcommands
cover non-interactive automation.`,
		Run: runDefaultEntry,
	}

	rootCmd.PersistentFlags().String("config", application.DefaultConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("log-level")
		level, err := zerolog.ParseLevel(name)
		if err != nil {
			return fmt.Errorf("invalid log level %q", name)
		}
		zerolog.SetGlobalLevel(level)
		return nil
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one strategy over funding history",
		Long:  "Fetch funding history, generate signals with one strategy, simulate positions, and write run artifacts",
		RunE:  runBacktest,
	}
	addScopeFlags(backtestCmd.Flags())
	backtestCmd.Flags().String("strategy", strategy.ZScoreName, "Strategy to run ("+strings.Join(strategy.Names(), "|")+")")
	backtestCmd.Flags().Int("window", 0, "Override the strategy's rolling window in hours")
	backtestCmd.Flags().Float64("threshold", 0, "Override the strategy's trigger threshold")
	backtestCmd.Flags().Float64("capital", 0, "Starting capital (defaults to config)")
	backtestCmd.Flags().Float64("fraction", 0, "Fraction of capital per position (defaults to config)")
	backtestCmd.Flags().String("output", "", "Artifacts directory (defaults to config)")
	backtestCmd.Flags().Bool("store", false, "Store the run in Postgres (requires database config)")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Race every strategy over the same history",
		Long:  "Run all registered strategies over one fetched series and render the signal summary table",
		RunE:  runCompare,
	}
	addScopeFlags(compareCmd.Flags())

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch funding history to stdout or a file",
		Long:  "Fetch (or synthesize with --mock) funding-rate history and write it as CSV or JSON",
		RunE:  runFetch,
	}
	fetchCmd.Flags().String("coin", "", "Instrument to fetch (defaults to config)")
	fetchCmd.Flags().Int("days", 0, "History depth in days (defaults to config)")
	fetchCmd.Flags().Bool("mock", false, "Use the deterministic mock source instead of the live API")
	fetchCmd.Flags().String("format", "csv", "Output format (csv|json)")
	fetchCmd.Flags().String("output", "", "Write to this file instead of stdout")

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List catalog events",
		Long:  "List the market events available for event-windowed runs",
		RunE:  runEvents,
	}
	eventsCmd.Flags().String("coin", "", "Only show events for this instrument")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Serve the backtest engine over a local-only JSON API with health and Prometheus metrics endpoints",
		RunE:  runServe,
	}
	serveCmd.Flags().String("host", "", "Bind host (defaults to config)")
	serveCmd.Flags().Int("port", 0, "Bind port (defaults to config)")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live funding updates",
		Long:  "Subscribe to the exchange websocket and print funding updates as they arrive",
		RunE:  runWatch,
	}
	watchCmd.Flags().String("coin", "", "Instrument to watch (defaults to config)")

	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// runDefaultEntry routes a bare invocation: menu on a TTY, usage hint
// otherwise.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "❌ The interactive menu requires a TTY terminal.\n")
		fmt.Fprintf(os.Stderr, "   Use subcommands for non-interactive automation:\n\n")
		fmt.Fprintf(os.Stderr, "   fundrun backtest --coin BTC --strategy zscore --days 30 --mock\n")
		fmt.Fprintf(os.Stderr, "   fundrun compare --coin BTC --event <name> --mock\n")
		fmt.Fprintf(os.Stderr, "   fundrun --help\n")
		os.Exit(2)
	}

	runMenu(cmd, args)
}

// runMenu starts the interactive menu.
func runMenu(cmd *cobra.Command, args []string) {
	svc, cfg, err := newService(cmd)
	if err != nil {
		log.Error().Err(err).Msg("menu startup failed")
		os.Exit(1)
	}
	defer svc.Close()

	ui := &menuUI{svc: svc, cfg: cfg, reader: bufio.NewReader(os.Stdin)}
	if err := ui.run(); err != nil {
		log.Error().Err(err).Msg("menu session failed")
		os.Exit(1)
	}
}

// menuUI drives the interactive session over one engine instance.
type menuUI struct {
	svc    *application.Service
	cfg    application.Config
	reader *bufio.Reader
}

func (ui *menuUI) run() error {
	fmt.Printf(`
 ╔═══════════════════════════════════════════════╗
 ║              🚀 %s %s                 ║
 ║     Funding-Rate Backtesting for Perps        ║
 ╚═══════════════════════════════════════════════╝
`, appName, version)

	for {
		fmt.Printf(`
 1. 🔬 Backtest - run one strategy
 2. 📊 Compare - race all strategies
 3. 📅 Events - list the event catalog
 0. 🚪 Exit

Enter your choice (0-3): `)

		choice, err := ui.readLine()
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		switch choice {
		case "1":
			err = ui.backtestPrompt()
		case "2":
			err = ui.comparePrompt()
		case "3":
			printEvents(ui.svc.Events())
		case "0", "q", "exit":
			fmt.Println("👋 Goodbye!")
			return nil
		default:
			fmt.Printf("Unknown choice %q\n", choice)
		}

		if err != nil {
			fmt.Printf("⚠️  %v\n", err)
		}
	}
}

func (ui *menuUI) backtestPrompt() error {
	coin := ui.prompt("Coin", ui.cfg.Backtest.DefaultCoin)
	name := ui.prompt("Strategy", strategy.ZScoreName)
	days := ui.promptInt("Days", ui.cfg.Backtest.DefaultDays)
	mock := ui.promptBool("Use mock data", true)

	resp, err := ui.svc.RunBacktest(context.Background(), httpapi.BacktestRequest{
		Coin:     coin,
		Strategy: name,
		Days:     days,
		Mock:     mock,
	})
	if err != nil {
		return err
	}

	printRunSummary(resp)
	return nil
}

func (ui *menuUI) comparePrompt() error {
	coin := ui.prompt("Coin", ui.cfg.Backtest.DefaultCoin)
	days := ui.promptInt("Days", ui.cfg.Backtest.DefaultDays)
	mock := ui.promptBool("Use mock data", true)

	outcome, err := ui.svc.CompareStrategies(context.Background(), httpapi.CompareRequest{
		Coin: coin,
		Days: days,
		Mock: mock,
	})
	if err != nil {
		return err
	}

	printComparison(outcome)
	return nil
}

func (ui *menuUI) readLine() (string, error) {
	line, err := ui.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (ui *menuUI) prompt(label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)
	line, err := ui.readLine()
	if err != nil || line == "" {
		return def
	}
	return line
}

func (ui *menuUI) promptInt(label string, def int) int {
	line := ui.prompt(label, strconv.Itoa(def))
	n, err := strconv.Atoi(line)
	if err != nil {
		return def
	}
	return n
}

func (ui *menuUI) promptBool(label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	line := ui.prompt(fmt.Sprintf("%s (%s)", label, hint), "")
	if line == "" {
		return def
	}
	return strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
}
