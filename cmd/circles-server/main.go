// Package main provides the circles proxy backend server: it holds the
// real AI credential and serves summarization to clients that only
// carry a proxy token.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Omashka/circles-sub001/internal/ai"
	"github.com/Omashka/circles-sub001/internal/config"
	"github.com/Omashka/circles-sub001/internal/metrics"
	"github.com/Omashka/circles-sub001/internal/server"
)

func main() {
	cfg := config.Load()

	// The server is the direct-provider end of the chain: it must never
	// route through another proxy.
	cfg.ProxyBaseURL = ""
	cfg.ProxyToken = ""

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	if cfg.ServerToken == "" {
		logger.Error("CIRCLES_SERVER_TOKEN is required")
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	gateway := ai.New(cfg, logger, collector)
	srv := server.New(gateway, cfg.ServerToken, cfg.ServerPort, logger, collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
