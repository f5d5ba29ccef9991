package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pageflow/internal/api"
	"github.com/dunamismax/pageflow/internal/config"
	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/dunamismax/pageflow/internal/external"
	"github.com/dunamismax/pageflow/internal/pipeline"
	"github.com/dunamismax/pageflow/internal/ratelimit"
	"github.com/dunamismax/pageflow/internal/store"
	"github.com/dunamismax/pageflow/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("load .env failed: %v", err)
	}
	cfg := config.Load()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Printf)); err != nil {
		logger.Printf("set GOMAXPROCS failed: %v", err)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := pipeline.Startup(cfg.Conversion.VipsCacheMB); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	tools := external.Probe(cfg.Tools)
	processor := pipeline.NewProcessor(pipeline.Options{
		Logger:            log.New(os.Stdout, "[pipeline] ", log.LstdFlags|log.Lmsgprefix),
		Renderer:          tools.Renderer,
		Office:            tools.Office,
		Compressor:        tools.Compressor,
		TempDir:           cfg.Conversion.TempDir,
		DecodeConcurrency: cfg.Conversion.DecodeConcurrency,
	})
	for _, c := range processor.Capabilities() {
		logger.Printf("capability name=%s available=%t detail=%q", c.Name, c.Available, c.Detail)
	}

	logStore, closeStore := openLogStore(ctx, cfg.Database, logger)
	defer closeStore()

	opts := api.Options{
		Logger:         logger,
		Converter:      processor,
		LogStore:       logStore,
		UserIDHeader:   cfg.API.UserIDHeader,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		Defaults: domain.ConversionRequest{
			OutputFormat: domain.ParseOutputFormat(cfg.Conversion.DefaultOutputFormat),
			Quality:      cfg.Conversion.DefaultQuality,
			DPI:          cfg.Conversion.DefaultDPI,
		},
	}

	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(cfg.RateLimit.RedisOptions())
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis client close error: %v", err)
			}
		}()
		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   cfg.RateLimit.Window,
		})
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		opts.RateLimiter = limiter
		logger.Printf("rate limiting enabled capacity=%d window=%s", cfg.RateLimit.Capacity, cfg.RateLimit.Window)
	}

	app := api.NewServer(opts)
	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func openLogStore(ctx context.Context, cfg config.DatabaseConfig, logger *log.Logger) (store.ConversionLogStore, func()) {
	if cfg.DSN == "" {
		logger.Printf("conversion logs kept in memory")
		return store.NewMemoryConversionLogStore(0), func() {}
	}

	pg, err := store.NewPostgresConversionLogStore(ctx, cfg.DSN)
	if err != nil {
		logger.Fatalf("postgres conversion log store failed: %v", err)
	}
	logger.Printf("conversion logs stored in postgres")
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Printf("postgres close error: %v", err)
		}
	}
}
