package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipstack/sync-service/config"
	"github.com/flipstack/sync-service/internal/engine"
	"github.com/flipstack/sync-service/internal/events"
	"github.com/flipstack/sync-service/internal/handlers"
	"github.com/flipstack/sync-service/internal/middleware"
	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/platform/marketplaces"
	"github.com/flipstack/sync-service/internal/platform/rest"
	"github.com/flipstack/sync-service/internal/probe"
	"github.com/flipstack/sync-service/internal/scheduler"
	"github.com/flipstack/sync-service/internal/store"
	"github.com/flipstack/sync-service/internal/sweepers"
	"github.com/flipstack/sync-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting sync service")

	ctx := context.Background()

	telemetryCleanup := telemetry.MustInit(ctx, telemetry.GetConfigFromEnv())
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryCleanup(cleanupCtx); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	st, err := store.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer st.Close()

	logger.Info().Msg("Database connected")

	registry := platform.NewRegistry()
	marketplaces.RegisterAll(registry, platformConfigs(cfg), platform.DefaultBreakerConfig(), logger)
	logger.Info().Strs("platforms", registry.Slugs()).Msg("Marketplace adapters registered")

	engineCfg := &engine.Config{
		PriceEpsilon:   cfg.Engine.PriceEpsilon,
		MaxRetries:     cfg.Engine.MaxRetries,
		InitialBackoff: time.Duration(cfg.Engine.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Engine.MaxBackoffMs) * time.Millisecond,
		AdapterTimeout: cfg.Engine.AdapterTimeout,
		ProbeTimeout:   cfg.Engine.ProbeTimeout,
	}
	prober := probe.New(registry, cfg.Engine.ProbeTimeout)
	eng := engine.New(st, registry, prober, engineCfg)

	sched := scheduler.New(eng, st, &scheduler.Config{
		Cron:          cfg.Scheduler.Cron,
		RunTimeout:    cfg.Scheduler.RunTimeout,
		DedupCapacity: cfg.Scheduler.DedupCapacity,
	})
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	var consumer *events.SaleConsumer
	if cfg.NATS.Enabled {
		consumer, err = events.NewSaleConsumer(cfg.NATS.URL, cfg.NATS.Subject, sched)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		if err := consumer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to subscribe to sale events")
		}
	} else {
		logger.Warn().Msg("NATS disabled, sale events will not be consumed")
	}

	sweeperCtx, cancelSweeper := context.WithCancel(ctx)
	defer cancelSweeper()
	var driftSweeper *sweepers.DriftSweeper
	if cfg.Sweeper.Enabled {
		driftSweeper = sweepers.NewDriftSweeper(st, sched, logger, cfg.Sweeper.Interval)
		go driftSweeper.Start(sweeperCtx)
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handlers.New(st, sched, registry)

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware())
	internal.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	{
		internal.GET("/health", h.HealthCheck)
		internal.GET("/platforms", h.ListPlatforms)

		products := internal.Group("/products")
		{
			products.POST("/:productId/sync", h.TriggerSync)
			products.GET("/:productId/outcomes", h.ListOutcomes)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	if consumer != nil {
		consumer.Close()
	}
	if driftSweeper != nil {
		driftSweeper.Stop()
	}
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// platformConfigs maps the config file's platform sections onto REST
// client configs, falling back to adapter defaults for anything unset.
func platformConfigs(cfg *config.Config) map[string]rest.Config {
	out := make(map[string]rest.Config, len(cfg.Platforms))
	for slug, pc := range cfg.Platforms {
		out[slug] = rest.Config{
			BaseURL:           pc.BaseURL,
			APIKey:            pc.APIKey,
			RequestsPerSecond: pc.RequestsPerSecond,
			Burst:             pc.Burst,
			Timeout:           pc.Timeout,
		}
	}
	return out
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "sync-service").Logger()
	log.Logger = logger
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
