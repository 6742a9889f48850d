package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lifenavigator/internal/app"
	"lifenavigator/internal/platform/config"
	"lifenavigator/internal/platform/httpserver"
	"lifenavigator/internal/platform/logger"
	"lifenavigator/internal/platform/scheduler"
)

// main wires dependencies, starts the HTTP server and the maintenance jobs,
// and drains both on SIGINT/SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close failed", "error", err)
		}
	}()

	sched, err := scheduler.New(log)
	if err != nil {
		return err
	}
	for _, job := range a.Jobs() {
		if err := sched.Add(job); err != nil {
			return err
		}
	}
	sched.Start()

	log.Info("starting lifenavigator", "addr", cfg.Server.Addr, "env", cfg.Server.Environment)
	srv := httpserver.New(cfg.Server.Addr, a.Router(),
		httpserver.WithLogger(log),
		httpserver.WithDrainTimeout(10*time.Second),
	)
	serveErr := srv.Run(ctx)
	if serveErr != nil {
		log.Error("server error", "error", serveErr)
	}

	if err := sched.Shutdown(); err != nil {
		log.Error("scheduler shutdown failed", "error", err)
	}
	return serveErr
}
