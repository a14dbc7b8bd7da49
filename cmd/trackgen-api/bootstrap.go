package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BearBump/trackgen/config"
	"github.com/BearBump/trackgen/internal/broker/kafka"
	"github.com/BearBump/trackgen/internal/cache"
	"github.com/BearBump/trackgen/internal/cache/memcache"
	"github.com/BearBump/trackgen/internal/cache/rediscache"
	"github.com/BearBump/trackgen/internal/metrics"
	"github.com/BearBump/trackgen/internal/services/trackingnumbers"
	"github.com/BearBump/trackgen/internal/storage/pgcache"
	"github.com/pkg/errors"
)

const (
	driverRedis    = "redis"
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

type trackGenApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    trackGenOpts
	deps    serverDeps
	closers []func()
}

// pingStore is what every cache driver provides.
type pingStore interface {
	cache.Store
	cache.Pinger
}

func mustBootstrapTrackGenAPI() *trackGenApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if p := os.Getenv("swaggerPath"); p != "" {
		cfg.TrackGen.SwaggerPath = p
	}
	applyDefaults(cfg)

	log := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := &trackGenApp{ctx: ctx, cancel: cancel}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown requested during startup")
			os.Exit(0)
		}
		panic(err)
	}
	app.closers = append(app.closers, closeStore)

	m := metrics.New("trackgen")
	svc := trackingnumbers.New(store, time.Duration(cfg.TrackGen.TTLSeconds)*time.Second).
		WithKeyIncludesCustomerName(cfg.TrackGen.KeyIncludesCustomerName).
		WithCollapse(cfg.TrackGen.CollapseInflight).
		WithObserver(m).
		WithLogger(log)

	if cfg.Kafka.IssuedTopicName != "" && cfg.Kafka.Host != "" {
		brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
		p := kafka.NewProducer(brokers)
		svc.WithProducer(p, cfg.Kafka.IssuedTopicName)
		app.closers = append(app.closers, func() { _ = p.Close() })
		log.Info("issued notifications enabled", "topic", cfg.Kafka.IssuedTopicName, "brokers", brokers)
	}

	deps := serverDeps{svc: svc, ready: store, metrics: m, log: log}
	if cfg.TrackGen.RateLimitPerMinute > 0 {
		rl := rediscache.NewRateLimiter(redisOptions(cfg.Redis))
		deps.limiter = rl
		app.closers = append(app.closers, func() { _ = rl.Close() })
	}

	swaggerPath := cfg.TrackGen.SwaggerPath
	if _, err := os.Stat(swaggerPath); err != nil {
		log.Warn("swagger file not found, docs disabled", "path", swaggerPath)
		swaggerPath = ""
	}

	app.opts = trackGenOpts{
		grpcAddr:           cfg.TrackGen.GRPCAddr,
		httpAddr:           cfg.TrackGen.HTTPAddr,
		swaggerPath:        swaggerPath,
		rateLimitPerMinute: int64(cfg.TrackGen.RateLimitPerMinute),
	}
	app.deps = deps
	return app
}

func applyDefaults(cfg *config.Config) {
	if cfg.TrackGen.GRPCAddr == "" {
		cfg.TrackGen.GRPCAddr = ":50051"
	}
	if cfg.TrackGen.HTTPAddr == "" {
		cfg.TrackGen.HTTPAddr = ":8080"
	}
	if cfg.TrackGen.SwaggerPath == "" {
		cfg.TrackGen.SwaggerPath = "api/trackgen.swagger.json"
	}
	if cfg.TrackGen.TTLSeconds <= 0 {
		cfg.TrackGen.TTLSeconds = int(trackingnumbers.DefaultTTL / time.Second)
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = driverRedis
	}
	if cfg.Cache.SweepIntervalSeconds <= 0 {
		cfg.Cache.SweepIntervalSeconds = 60
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
}

func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func redisOptions(c config.RedisConfig) rediscache.Options {
	return rediscache.Options{
		Addr:         fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  time.Duration(c.DialTimeoutMillis) * time.Millisecond,
		ReadTimeout:  time.Duration(c.ReadTimeoutMillis) * time.Millisecond,
		WriteTimeout: time.Duration(c.WriteTimeoutMillis) * time.Millisecond,
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (pingStore, func(), error) {
	sweep := time.Duration(cfg.Cache.SweepIntervalSeconds) * time.Second

	switch cfg.Cache.Driver {
	case driverRedis:
		rc := rediscache.New(redisOptions(cfg.Redis))
		log.Info("cache driver", "driver", driverRedis, "addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		return rc, func() { _ = rc.Close() }, nil

	case driverPostgres:
		connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port,
			cfg.Database.DBName, cfg.Database.SSLMode)
		st, err := openPostgresWithRetry(ctx, connString, cfg.Database.MaxConns, 60*time.Second, time.Second)
		if err != nil {
			return nil, nil, err
		}
		go runPurgeLoop(ctx, st, sweep, log)
		log.Info("cache driver", "driver", driverPostgres, "host", cfg.Database.Host)
		return st, st.Close, nil

	case driverMemory:
		mc := memcache.New()
		go mc.RunSweeper(ctx, sweep)
		log.Warn("cache driver is in-process; idempotency is not shared between replicas", "driver", driverMemory)
		return mc, func() {}, nil
	}

	return nil, nil, errors.Errorf("unknown cache driver %q", cfg.Cache.Driver)
}

// openPostgresWithRetry ждёт, пока поднимется postgres, но прерывается по ctx (SIGTERM на старте).
func openPostgresWithRetry(ctx context.Context, connString string, maxConns int32, wait, every time.Duration) (*pgcache.Storage, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	var lastErr error
	for {
		st, err := pgcache.New(ctx, connString, maxConns)
		if err == nil {
			return st, nil
		}
		lastErr = err

		retry := time.NewTimer(every)
		select {
		case <-ctx.Done():
			retry.Stop()
			return nil, errors.Wrap(ctx.Err(), "wait for postgres")
		case <-deadline.C:
			retry.Stop()
			return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
		case <-retry.C:
		}
	}
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func runPurgeLoop(ctx context.Context, p purger, interval time.Duration, log *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Warn("purge expired entries", "err", err)
				continue
			}
			if n > 0 {
				log.Debug("purged expired entries", "count", n)
			}
		}
	}
}

func (a *trackGenApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *trackGenApp) Run() error {
	return runTrackGenAPI(a.ctx, a.opts, a.deps)
}
