package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/felle787/LocalRadar2/internal/adapter/geocode"
	"github.com/felle787/LocalRadar2/internal/adapter/httpserver"
	"github.com/felle787/LocalRadar2/internal/adapter/identity"
	"github.com/felle787/LocalRadar2/internal/adapter/memory"
	"github.com/felle787/LocalRadar2/internal/adapter/metrics"
	"github.com/felle787/LocalRadar2/internal/adapter/postgres"
	"github.com/felle787/LocalRadar2/internal/adapter/redis"
	"github.com/felle787/LocalRadar2/internal/app"
	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/platform/config"
	"github.com/felle787/LocalRadar2/internal/platform/logging"
	"github.com/felle787/LocalRadar2/internal/session"
)

const (
	venueMemoryTTL        = 10 * time.Second
	venueEvictionInterval = 1 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, reg prometheus.Registerer) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg))
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupRedis returns nils when REDIS_URL is unset; config validation requires it in production.
func setupRedis(cfg *config.Config, reg prometheus.Registerer) (*goredis.Client, *redis.CircuitBreakerHook) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, using in-memory profile store and no shared venue cache")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisMetrics := metrics.NewRedisMetrics(reg)
	breaker := redis.NewCircuitBreakerHook(redisMetrics, 0)
	client, err := redis.NewClient(ctx, cfg.RedisURL, breaker, redis.NewMetricsHook(redisMetrics))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client, breaker
}

func setupGeocoder(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) domain.Geocoder {
	if cfg.GeocoderURL == "" {
		slog.Info("GEOCODER_URL not set, venues are saved without coordinates")
		return geocode.Noop{}
	}

	client, err := geocode.NewClient(geocode.Config{
		BaseURL:       cfg.GeocoderURL,
		UserAgent:     cfg.GeocoderUserAgent,
		RatePerSecond: cfg.GeocoderRate,
	}, nil, clock, metrics.NewGeocodeMetrics(reg))
	if err != nil {
		slog.Error("Failed to create geocoder", "error", err)
		os.Exit(1)
	}
	return client
}

func healthChecks(pool *pgxpool.Pool, rdb *goredis.Client, breaker *redis.CircuitBreakerHook, profiles domain.ProfileStore) []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}
	if rdb != nil {
		checks = append(checks,
			httpserver.HealthCheck{Name: "redis_breaker", Check: breaker.Check},
			httpserver.HealthCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			},
		)
	}
	return append(checks, httpserver.ProfileStoreCheck(profiles))
}

func runGracefulShutdown(srv *httpserver.Server, manager *session.Manager, identitySvc *identity.Service, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		manager.Close()
		identitySvc.Close()
		stopBackground()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	registry := metrics.NewRegistry()

	pool := setupDB(cfg, registry)
	defer pool.Close()

	redisClient, redisBreaker := setupRedis(cfg, registry)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	accounts := postgres.NewAccountRepo(pool)
	venues := postgres.NewVenueRepo(pool)
	events := postgres.NewEventRepo(pool)

	var (
		profiles   domain.ProfileStore
		venueCache *redis.VenueCache
	)
	cacheMetrics := metrics.NewCacheMetrics(registry)
	if redisClient != nil {
		profiles = redis.NewProfileStore(redisClient)
		venueCache = redis.NewVenueCache(redisClient, venues, clock, venueMemoryTTL, cacheMetrics)
	} else {
		// Pass nil explicitly to avoid a typed-nil Cmdable.
		profiles = memory.NewProfileStore()
		venueCache = redis.NewVenueCache(nil, venues, clock, venueMemoryTTL, cacheMetrics)
	}
	stopEviction := venueCache.StartEvictionTimer(venueEvictionInterval)
	defer stopEviction()

	invalidator := redis.NewVenueInvalidator(redisClient, venueCache)
	go invalidator.Start(backgroundCtx)

	identitySvc := identity.NewService(accounts, clock, identity.Config{
		Secret:     cfg.SessionSecret,
		SessionTTL: cfg.SessionTTL,
	})

	manager := session.NewManager(identitySvc, profiles, clock, session.Config{
		BootstrapTimeout: cfg.ProfileBootstrapTimeout,
		WriteTimeout:     cfg.ProfileWriteTimeout,
	}, metrics.NewBootstrapMetrics(registry))
	manager.Start()

	appSvc := app.NewService(app.Deps{
		Sessions:    manager,
		Profiles:    profiles,
		Venues:      venues,
		VenueSource: venueCache,
		Invalidator: invalidator,
		Events:      events,
		Geocoder:    setupGeocoder(cfg, clock, registry),
		Clock:       clock,
	}, app.Config{SaveTimeout: cfg.VenueSaveTimeout})

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Sessions:     manager,
		Resumer:      identitySvc,
		App:          appSvc,
		Clock:        clock,
		Registry:     registry,
		HealthChecks: healthChecks(pool, redisClient, redisBreaker, profiles),
	})

	done := runGracefulShutdown(srv, manager, identitySvc, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
