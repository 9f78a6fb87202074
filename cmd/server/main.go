package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neexbeast/weather-advisory/internal/api"
	"github.com/neexbeast/weather-advisory/internal/app"
	"github.com/neexbeast/weather-advisory/internal/cache"
	"github.com/neexbeast/weather-advisory/internal/config"
	"github.com/neexbeast/weather-advisory/internal/observability"
	"github.com/neexbeast/weather-advisory/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx := context.Background()
	metrics := observability.NewMetrics()

	a, err := app.New(ctx, cfg, log, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing dependencies", "err", err)
		}
	}()

	var redisPinger api.Pinger
	if a.Redis != nil {
		redisPinger = cache.Pinger{Client: a.Redis}
	}

	handlers := api.NewHandlers(a.Orchestrator, a.Weather, log)
	router := api.NewRouter(handlers, cfg.BearerToken, a.Pool, redisPinger, log)

	sched := scheduler.New(a.Orchestrator, cfg.AlertSchedule, cfg.AlertLocation, log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BatchTimeout + 15*time.Second, // POST /weather-alerts/run is synchronous
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}
