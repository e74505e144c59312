// Package bootstrap opens the infrastructure shared by the api and worker
// binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edashow/mediaflow/internal/config"
	"github.com/edashow/mediaflow/internal/events"
	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/edashow/mediaflow/internal/settings"
	"github.com/edashow/mediaflow/internal/storage"
	"github.com/edashow/mediaflow/internal/store"
	"github.com/edashow/mediaflow/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Runtime holds the opened dependencies. Close releases them in reverse
// order of opening.
type Runtime struct {
	Logger    *zap.Logger
	Redis     *redis.Client
	Media     store.MediaStore
	Logs      store.OptimizationLogStore
	Settings  settings.Store
	Optimizer *optimizer.Optimizer
	Storage   storage.ObjectStore
	Events    events.Publisher

	closers []func(context.Context) error
}

type step struct {
	name string
	run  func(context.Context, *Runtime, config.Config) error
}

// Open runs the init steps in order and stops at the first failure, closing
// whatever was already opened.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{Logger: logger}
	steps := []step{
		{"tracing", openTracing},
		{"redis", openRedis},
		{"media store", openMediaStore},
		{"settings", openSettings},
		{"optimizer", openOptimizer},
		{"object storage", openStorage},
		{"events", openEvents},
	}
	for _, s := range steps {
		started := time.Now()
		if err := s.run(ctx, rt, cfg); err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = rt.Close(closeCtx)
			cancel()
			return nil, fmt.Errorf("init %s: %w", s.name, err)
		}
		logger.Debug("init step done", zap.String("step", s.name), zap.Duration("took", time.Since(started)))
	}
	return rt, nil
}

func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

func openTracing(ctx context.Context, rt *Runtime, cfg config.Config) error {
	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, rt.Logger)
	if err != nil {
		return err
	}
	rt.onClose(shutdown)
	return nil
}

func openRedis(ctx context.Context, rt *Runtime, cfg config.Config) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}
	rt.Redis = client
	rt.onClose(func(context.Context) error { return client.Close() })
	return nil
}

// openMediaStore uses Postgres when a DSN is configured and the in-memory
// store otherwise.
func openMediaStore(ctx context.Context, rt *Runtime, cfg config.Config) error {
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn == "" || dsn == "memory" {
		mem := store.NewMemoryStore()
		rt.Media, rt.Logs = mem, mem
		rt.Logger.Warn("no postgres dsn, media records are kept in memory")
		return nil
	}
	pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	rt.Media, rt.Logs = pg, pg
	rt.onClose(func(context.Context) error { return pg.Close() })
	return nil
}

func openSettings(ctx context.Context, rt *Runtime, cfg config.Config) error {
	var db *sql.DB
	if pg, ok := rt.Media.(*store.PostgresStore); ok {
		db = pg.DB()
	}

	base, err := settings.Open(ctx, cfg.Settings.Driver, db, cfg.Settings.SQLitePath, cfg.Settings.FilePath, rt.Logger)
	if err != nil {
		return err
	}
	cached, err := settings.NewCachedStore(base, rt.Redis, cfg.Settings.CacheTTL, rt.Logger)
	if err != nil {
		return err
	}
	rt.Settings = cached
	return nil
}

func openOptimizer(_ context.Context, rt *Runtime, cfg config.Config) error {
	if err := optimizer.Startup(); err != nil {
		return err
	}
	rt.onClose(func(context.Context) error {
		optimizer.Shutdown()
		return nil
	})
	var fetchOpts []optimizer.LogoFetcherOption
	if cfg.Optimizer.LogoAllowPrivate {
		fetchOpts = append(fetchOpts, optimizer.AllowPrivateNetworks())
	}
	rt.Optimizer = optimizer.New(rt.Logger,
		optimizer.WithSettings(rt.Settings),
		optimizer.WithLogoFetcher(optimizer.NewHTTPLogoFetcher(cfg.Optimizer.LogoTimeout, cfg.Optimizer.LogoMaxBytes, fetchOpts...)),
	)
	rt.Logger.Info("optimizer ready", zap.String("backend", optimizer.BackendName()))
	return nil
}

func openStorage(ctx context.Context, rt *Runtime, cfg config.Config) error {
	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	rt.Storage = objects
	return nil
}

func openEvents(_ context.Context, rt *Runtime, cfg config.Config) error {
	pub, err := events.Open(cfg.Events, rt.Logger)
	if err != nil {
		return err
	}
	rt.Events = pub
	rt.onClose(func(context.Context) error { return pub.Close() })
	return nil
}
