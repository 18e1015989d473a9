package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/ipfs/go-log/v2"
	"github.com/layer-3/sfa-farcaster/internal/app"
	"github.com/layer-3/sfa-farcaster/internal/config"
)

var logger = log.Logger("sfa")

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	level, err := log.LevelFromString(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	log.SetAllLoggers(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to build app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Errorw("failed to close app", "err", err)
		}
	}()

	go func() {
		initCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
		if err := a.Init(initCtx); err != nil {
			logger.Warnw("wallet features unavailable", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("failed to shut down server", "err", err)
		}
	}()

	logger.Infow("listening", "addr", cfg.ListenAddr, "public_url", cfg.PublicURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorw("failed to serve", "err", err)
		os.Exit(1)
	}
}
