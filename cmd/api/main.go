package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edashow/mediaflow/internal/api"
	"github.com/edashow/mediaflow/internal/bootstrap"
	"github.com/edashow/mediaflow/internal/config"
	"github.com/edashow/mediaflow/internal/logging"
	"github.com/edashow/mediaflow/internal/queue"
	"github.com/edashow/mediaflow/internal/ratelimit"
	"github.com/edashow/mediaflow/internal/youtube"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.Log.Level, cfg.Log.Development).Named("api")
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Warn("runtime close error", zap.Error(err))
		}
	}()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close error", zap.Error(err))
		}
	}()

	opts := api.Options{
		Queue:          queueClient,
		MediaStore:     rt.Media,
		Storage:        rt.Storage,
		LocalInputDir:  cfg.Worker.LocalInputDir,
		Optimizer:      rt.Optimizer,
		Settings:       rt.Settings,
		Publisher:      rt.Events,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		CORSOrigins:    cfg.API.CORSOrigins,
	}

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewRedisTokenBucket(rt.Redis, cfg.RateLimit.Capacity, cfg.RateLimit.Window, ratelimit.DefaultKeyPrefix)
		if err != nil {
			return err
		}
		opts.RateLimiter = limiter
	}

	if cfg.YouTube.APIKey != "" {
		yt, err := youtube.NewCachedClient(youtube.NewClient(youtube.Config{
			APIKey:  cfg.YouTube.APIKey,
			BaseURL: cfg.YouTube.BaseURL,
			Timeout: cfg.YouTube.Timeout,
		}), rt.Redis, cfg.YouTube.CacheTTL, logger)
		if err != nil {
			return err
		}
		opts.YouTube = yt
	} else {
		logger.Info("YOUTUBE_API_KEY not set, youtube routes disabled")
	}

	app := api.NewServer(logger, opts)
	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.API.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
