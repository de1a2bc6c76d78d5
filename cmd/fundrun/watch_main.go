package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundrun/internal/infrastructure/hyperliquid"
)

// runWatch streams live funding updates until interrupted.
func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	coin, _ := cmd.Flags().GetString("coin")
	if coin == "" {
		coin = cfg.Backtest.DefaultCoin
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	watcher := hyperliquid.NewWatcher(cfg.Hyperliquid.WSURL)
	updates, err := watcher.Watch(ctx, coin)
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	fmt.Printf("📡 Watching live funding for %s (Ctrl-C to stop)\n\n", coin)
	for obs := range updates {
		fmt.Printf("%s  %-6s  funding %+.6f%%\n",
			obs.Time.UTC().Format("15:04:05"), obs.Instrument, obs.Rate)
	}

	if ctx.Err() != nil {
		fmt.Println("\n👋 Watch stopped")
		return nil
	}
	return fmt.Errorf("funding stream closed unexpectedly")
}
