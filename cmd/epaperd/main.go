package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/HenriMatthijssen/ePaper/internal/app"
	"github.com/HenriMatthijssen/ePaper/internal/config"
	"github.com/HenriMatthijssen/ePaper/internal/device"
	"github.com/HenriMatthijssen/ePaper/internal/metrics"
	"github.com/HenriMatthijssen/ePaper/internal/server"
)

func main() {
	cfg := config.FromEnv()
	logger := server.Logger(cfg)
	logger.Info().Str("version", metrics.Version).Str("block", cfg.BlockPath).Msg("epaperd starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := app.Run(ctx, cfg, logger, app.Options{Metrics: metrics.New()})
	if errors.Is(err, device.ErrNoDisplay) {
		device.Halt(logger, err)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("epaperd exited")
	}
}
