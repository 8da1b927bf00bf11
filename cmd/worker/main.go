// Package main is the entry point for the kardex queue worker. It drains
// queued stock movements through the same posting service as the API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"kardex/internal/app"
	"kardex/internal/jobs"
	"kardex/pkg/config"
	"kardex/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
		Service:     "kardex-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting kardex worker",
		"queue", cfg.Worker.Queue,
		"concurrency", cfg.Worker.Concurrency,
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	defer a.Close()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   app.QueueOpts(cfg),
		Queue:       cfg.Worker.Queue,
		Concurrency: cfg.Worker.Concurrency,
		Job:         jobs.NewApplyMovementJob(a.Movements),
		Logger:      log,
	})
	if err != nil {
		log.Fatalw("failed to create worker", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := worker.Run(ctx); err != nil {
			log.Errorw("worker stopped with error", "error", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		reportPoolStats(ctx, a)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

func reportPoolStats(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Pool.LogStats(ctx)
		}
	}
}
