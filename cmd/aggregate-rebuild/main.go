// cmd/aggregate-rebuild/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"marketplace/internal/pkg/config"
	"marketplace/internal/pkg/database"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/pkg/redis"
	catalogapp "marketplace/internal/service/catalog/application"
	cataloginfra "marketplace/internal/service/catalog/infrastructure"
	reviewapp "marketplace/internal/service/review/application"
	"marketplace/internal/service/review/domain/port"
	reviewinfra "marketplace/internal/service/review/infrastructure"
	reviewadapter "marketplace/internal/service/review/infrastructure/adapter"
	"marketplace/internal/tracing"
)

const serviceName = "aggregate-rebuild"

// 一次性全量重建商品评分、店铺评分与店铺信用，存在失败目标时以非零状态退出
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	concurrency := flag.Int("concurrency", 0, "parallel recalculations, defaults to lifecycle.recalcConcurrency")
	noCache := flag.Bool("no-cache", false, "skip refreshing the Redis stats cache")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init(serviceName, "info", false)
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(serviceName, cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Ctx(ctx)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracer provider")
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() { _ = database.Close(db) }()

	var cache port.StatsCache
	if !*noCache {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, rebuilding without stats cache")
		} else {
			defer client.Close()
			if cache, err = reviewinfra.NewRedisStatsCache(client, cfg.Redis.StatsTTL); err != nil {
				log.Fatal().Err(err).Msg("Failed to load stats cache scripts")
			}
		}
	}

	if *concurrency <= 0 {
		*concurrency = cfg.Lifecycle.RecalcConcurrency
	}
	catalog := catalogapp.NewCatalogService(cataloginfra.NewGormCatalogRepository(db), otel.Tracer(serviceName))
	recalc := reviewapp.NewRecalculator(
		reviewinfra.NewGormReviewRepository(db),
		reviewinfra.NewGormCreditRepository(db),
		reviewadapter.NewCatalogAdapter(catalog),
		cache,
		metrics.New(nil),
		otel.Tracer(serviceName),
		*concurrency,
	)

	report, err := recalc.RebuildAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("🛑 Rebuild aborted")
		os.Exit(1)
	}
	if report.Failed > 0 {
		log.Error().Int("failed", report.Failed).Msg("Rebuild finished with failures")
		os.Exit(2)
	}
	log.Info().Int("products", report.Products).Int("sellers", report.Sellers).Msg("✅ Rebuild complete")
}
