package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	API        APIConfig
	Conversion ConversionConfig
	Tools      ToolsConfig
	RateLimit  RateLimitConfig
	Database   DatabaseConfig
	Tracing    TracingConfig
}

type APIConfig struct {
	Addr           string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// UserIDHeader names the header used as the rate limit subject before
	// falling back to the client address.
	UserIDHeader string
}

type ConversionConfig struct {
	DefaultQuality      int
	DefaultDPI          int
	DefaultOutputFormat string
	TempDir             string
	DecodeConcurrency   int
	VipsCacheMB         int
}

type ToolsConfig struct {
	SofficeBin     string
	GhostscriptBin string
	Timeout        time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Capacity      int
	Window        time.Duration
}

func (r RateLimitConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.RedisAddr,
		Password: r.RedisPassword,
		DB:       r.RedisDB,
	}
}

type DatabaseConfig struct {
	// DSN selects the Postgres conversion log store. Empty keeps logs in memory.
	DSN string
}

type TracingConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

func Load() Config {
	return Config{
		API: APIConfig{
			Addr:           env("PAGEFLOW_API_ADDR", ":8080"),
			MaxUploadBytes: int64(envInt("PAGEFLOW_MAX_UPLOAD_BYTES", 64<<20)),
			ReadTimeout:    envDuration("PAGEFLOW_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   envDuration("PAGEFLOW_WRITE_TIMEOUT", 5*time.Minute),
			IdleTimeout:    envDuration("PAGEFLOW_IDLE_TIMEOUT", 120*time.Second),
			UserIDHeader:   env("PAGEFLOW_USER_ID_HEADER", "X-User-ID"),
		},
		Conversion: ConversionConfig{
			DefaultQuality:      envInt("PAGEFLOW_DEFAULT_QUALITY", 80),
			DefaultDPI:          envInt("PAGEFLOW_DEFAULT_DPI", 0),
			DefaultOutputFormat: env("PAGEFLOW_DEFAULT_FORMAT", "pdf"),
			TempDir:             env("PAGEFLOW_TEMP_DIR", os.TempDir()),
			DecodeConcurrency:   envInt("PAGEFLOW_DECODE_CONCURRENCY", max(2, runtime.NumCPU())),
			VipsCacheMB:         envInt("PAGEFLOW_VIPS_CACHE_MB", 128),
		},
		Tools: ToolsConfig{
			SofficeBin:     env("PAGEFLOW_SOFFICE_BIN", "soffice"),
			GhostscriptBin: env("PAGEFLOW_GHOSTSCRIPT_BIN", "gs"),
			Timeout:        envDuration("PAGEFLOW_TOOL_TIMEOUT", 120*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       envBool("PAGEFLOW_RATE_LIMIT_ENABLED", false),
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Capacity:      envInt("PAGEFLOW_RATE_LIMIT_CAPACITY", 30),
			Window:        envDuration("PAGEFLOW_RATE_LIMIT_WINDOW", time.Minute),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Tracing: TracingConfig{
			ServiceName:  env("OTEL_SERVICE_NAME", "pageflow"),
			Exporter:     env("PAGEFLOW_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("PAGEFLOW_TRACE_SAMPLE_RATIO", 1),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
