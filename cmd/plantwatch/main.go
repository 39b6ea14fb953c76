package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantwatch/internal/config"
	"plantwatch/internal/logger"
	"plantwatch/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := service.New(cfg)

	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Error().Err(err).Msg("service exited")
			cancel()
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	case <-ctx.Done():
	}

	// give graceful shutdown some time
	time.Sleep(500 * time.Millisecond)
	log.Info().Msg("exited")
}
