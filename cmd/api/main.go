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

	"github.com/airobot/server/internal/app"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/config"
	"github.com/airobot/server/internal/db"
	"github.com/airobot/server/internal/jobs"
	"github.com/airobot/server/internal/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env from CWD or server/ (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "robot-api")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	logger.Info("opening database", zap.String("target", cfg.DatabaseTarget()))
	gdb, err := db.Open(ctx, db.Options{Driver: cfg.DBDriver, Path: cfg.DBPath, URL: cfg.DatabaseURL}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	if err := db.Migrate(gdb, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var c cache.Cache
	if addr := cfg.RedisAddr(); addr != "" {
		rc, err := cache.NewRedis(ctx, addr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, using in-process cache", zap.String("addr", addr), zap.Error(err))
			c = cache.NewMemory(logger)
		} else {
			defer func() { _ = rc.Close() }()
			c = rc
		}
	} else {
		c = cache.NewMemory(logger)
	}

	a := app.Build(cfg, gdb, c, nil, logger)
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, chat uses keyword matching only")
	}

	scheduler := jobs.NewScheduler(logger)
	if err := a.Schedule(scheduler); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.Bool("dev_mode", cfg.DevMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
