package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/fundrun/internal/application"
	httpapi "github.com/sawpanic/fundrun/internal/interfaces/http"
	"github.com/sawpanic/fundrun/internal/persistence"
)

const shutdownTimeout = 30 * time.Second

// runServe starts the HTTP API and blocks until interrupted.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		cfg.HTTP.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTP.Port, _ = cmd.Flags().GetInt("port")
	}

	svc, err := application.NewService(cfg)
	if err != nil {
		return fmt.Errorf("engine startup failed: %w", err)
	}
	defer svc.Close()

	var dbHealth persistence.RepositoryHealth
	if svc.Manager().IsEnabled() {
		dbHealth = svc.Manager().Health()
	}
	handlers := httpapi.NewHandlers(svc, dbHealth, version)

	serverCfg := httpapi.DefaultServerConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port

	server, err := httpapi.NewServer(handlers, serverCfg)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	addr := server.GetAddress()
	fmt.Printf("🚀 %s API listening on http://%s\n", appName, addr)
	fmt.Printf("   • Health:  http://%s/health\n", addr)
	fmt.Printf("   • Metrics: http://%s/metrics\n", addr)
	fmt.Printf("   • API:     http://%s/api/v1\n", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info().Msg("server shutdown complete")
	return nil
}
