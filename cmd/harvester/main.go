package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/closetloop/catalog-harvester/pkg/cache"
	"github.com/closetloop/catalog-harvester/pkg/harvest"
	"github.com/closetloop/catalog-harvester/pkg/logging"
)

func main() {
	// .env is optional; real deployments configure via environment.
	_ = godotenv.Load()

	logger := logging.Setup(logging.FromEnv())

	baseURL := strings.TrimRight(getEnv("BASE_URL", ""), "/")
	if baseURL == "" {
		logger.Fatal().Msg("BASE_URL is required")
	}
	platform := getEnv("PLATFORM", "storefront")

	cfg := harvest.DefaultConfig(platform, baseURL)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.Fetcher.MaxRetries = getEnvInt("MAX_RETRIES", cfg.Fetcher.MaxRetries)
	cfg.Fetcher.Timeout = getEnvDuration("TIMEOUT", cfg.Fetcher.Timeout)
	cfg.Fetcher.UserAgent = getEnv("USER_AGENT", cfg.Fetcher.UserAgent)
	cfg.Page.Delay = getEnvDuration("DELAY", cfg.Page.Delay)

	// Optional Redis page cache. Without REDIS_ADDR every page is
	// fetched fresh.
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			logger.Fatal().Err(err).Str("addr", addr).Msg("Failed to connect to Redis")
		}
		cancel()
		cfg.Fetcher.Cache = cache.NewManager(redisClient, getEnvDuration("CACHE_TTL", 0))
		logger.Info().Str("addr", addr).Msg("Page cache enabled")
	}

	// Optional Prometheus endpoint for long-running deployments.
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		logger.Info().Str("addr", addr).Msg("Metrics endpoint enabled")
	}

	var collections []string
	for _, handle := range strings.Split(getEnv("COLLECTIONS", ""), ",") {
		if handle = strings.TrimSpace(handle); handle != "" {
			collections = append(collections, handle)
		}
	}
	endpoints := harvest.Endpoints(baseURL, collections)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := harvest.NewPipeline(cfg).Run(ctx, endpoints)

	sink := &harvest.JSONFileSink{
		Path:            getEnv("OUTPUT_FILE", "catalog.json"),
		IncludeMetadata: getEnv("INCLUDE_METADATA", "true") != "false",
		Platform:        platform,
		BaseURL:         baseURL,
	}
	// Fresh context: partial results from an interrupted run are
	// still worth persisting.
	if err := sink.Write(context.Background(), result); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write output")
	}
	logger.Info().Str("path", sink.Path).Int("items", len(result.Products)).Msg("Output written")

	if !result.Success {
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
