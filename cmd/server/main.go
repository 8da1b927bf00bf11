// Package main is the entry point for the kardex API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"kardex/internal/app"
	"kardex/internal/domain/auth"
	v1 "kardex/internal/infrastructure/http/v1"
	"kardex/internal/infrastructure/http/v1/handlers"
	"kardex/internal/infrastructure/http/v1/middleware"
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
		Service:     "kardex-server",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting kardex server", "env", cfg.App.Env)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	defer a.Close()

	queue := jobs.NewClient(app.QueueOpts(cfg), cfg.Worker.Queue)
	defer func() { _ = queue.Close() }()

	// --- Auth ---
	var validator middleware.JWTValidator
	switch {
	case cfg.JWT.Secret != "":
		jwtConfig := auth.DefaultJWTConfig(cfg.JWT.Secret)
		jwtConfig.Issuer = cfg.JWT.Issuer
		validator = auth.NewJWTService(jwtConfig)
	case cfg.App.IsDevelopment():
		log.Warn("JWT_SECRET not set, API authentication disabled")
	default:
		log.Fatal("JWT_SECRET is required outside development")
	}

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := v1.NewRouter(v1.RouterConfig{
		Logger:          log,
		JWTValidator:    validator,
		WriteRoles:      cfg.JWT.WriteRoles,
		MovementService: a.Movements,
		StockService:    a.Stock,
		KardexService:   a.Kardex,
		AuditReader:     a.Audit,
		Enqueuer:        queue,
		HealthChecks: map[string]handlers.Pinger{
			"database": a.Pool,
			"redis":    a.RedisPinger(),
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
