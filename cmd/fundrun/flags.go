package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/fundrun/internal/application"
)

// addScopeFlags registers the run-scope flags shared by backtest and compare.
func addScopeFlags(fs *pflag.FlagSet) {
	fs.String("coin", "", "Instrument to run against (defaults to config)")
	fs.Int("days", 0, "History depth in days (defaults to config)")
	fs.String("event", "", "Catalog event name; takes precedence over --days")
	fs.Bool("mock", false, "Use the deterministic mock source instead of the live API")
}

// scopeFlags carries the resolved run-scope flag values.
type scopeFlags struct {
	coin  string
	days  int
	event string
	mock  bool
}

// readScopeFlags resolves the scope flags against config defaults. Days
// stays zero here; the engine applies its own default.
func readScopeFlags(fs *pflag.FlagSet, cfg application.Config) scopeFlags {
	coin, _ := fs.GetString("coin")
	days, _ := fs.GetInt("days")
	event, _ := fs.GetString("event")
	mock, _ := fs.GetBool("mock")

	if coin == "" {
		coin = cfg.Backtest.DefaultCoin
	}
	return scopeFlags{coin: coin, days: days, event: event, mock: mock}
}

// loadConfig reads the config file named by the persistent --config flag.
func loadConfig(cmd *cobra.Command) (application.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return application.LoadConfig(path)
}

// newService builds the engine from the command's config. Commands that
// need to mutate the config first call application.NewService themselves.
func newService(cmd *cobra.Command) (*application.Service, application.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}

	svc, err := application.NewService(cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("engine startup failed: %w", err)
	}
	return svc, cfg, nil
}
