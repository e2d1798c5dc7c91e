// cmd/order-service/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"marketplace/internal/pkg/bootstrap"
	"marketplace/internal/pkg/config"
	"marketplace/internal/pkg/database"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/pkg/mq"
	"marketplace/internal/pkg/policy"
	"marketplace/internal/pkg/redis"
	"marketplace/internal/pkg/worker"
	catalogapp "marketplace/internal/service/catalog/application"
	cataloginfra "marketplace/internal/service/catalog/infrastructure"
	orderapp "marketplace/internal/service/order/application"
	orderinfra "marketplace/internal/service/order/infrastructure"
	orderadapter "marketplace/internal/service/order/infrastructure/adapter"
	"marketplace/internal/service/order/interfaces"
	reviewapp "marketplace/internal/service/review/application"
	"marketplace/internal/service/review/domain/port"
	reviewinfra "marketplace/internal/service/review/infrastructure"
	reviewadapter "marketplace/internal/service/review/infrastructure/adapter"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init(serviceName, "info", false)
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.App.Name, cfg.Log.Level, cfg.Log.Pretty)
	ctx := context.Background()
	log := logger.Ctx(ctx)

	// 1. 基础设施
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if cfg.Database.AutoMigrate {
		if err := migrate(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	expiry, err := policy.NewExpiryPolicy(cfg.Lifecycle.ReservationWindow, cfg.Lifecycle.ReviewWindow,
		cfg.Lifecycle.ReservationPolicy, cfg.Lifecycle.ReviewPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compile expiry policy")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	tracer := otel.Tracer(serviceName)

	cleanups := []func(context.Context) error{
		func(context.Context) error { return database.Close(db) },
	}

	// 统计缓存是可选的：Redis 不可用时直接从源数据计算
	var statsCache port.StatsCache
	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without stats cache")
	} else {
		cache, err := reviewinfra.NewRedisStatsCache(redisClient, cfg.Redis.StatsTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load stats cache scripts")
		}
		statsCache = cache
		cleanups = append(cleanups, func(context.Context) error { return redisClient.Close() })
	}

	eventWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.OrderEventTopic)
	dltWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.DLTTopic)
	reminderWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.ReminderTopic)
	settlementReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.SettlementTopic, cfg.Kafka.GroupID)
	dltReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.DLTTopic, cfg.Kafka.GroupID+"-dlt")
	cleanups = append(cleanups,
		func(context.Context) error { return eventWriter.Close() },
		func(context.Context) error { return dltWriter.Close() },
		func(context.Context) error { return reminderWriter.Close() },
		closeReader(settlementReader),
		closeReader(dltReader),
	)

	// 2. 领域服务
	catalog := catalogapp.NewCatalogService(cataloginfra.NewGormCatalogRepository(db), tracer)
	catalogForReviews := reviewadapter.NewCatalogAdapter(catalog)

	orderRepo := orderinfra.NewGormOrderRepository(db)
	pendingRepo := reviewinfra.NewGormPendingReviewRepository(db)
	reviewRepo := reviewinfra.NewGormReviewRepository(db)
	creditRepo := reviewinfra.NewGormCreditRepository(db)

	recalc := reviewapp.NewRecalculator(reviewRepo, creditRepo, catalogForReviews, statsCache, m, tracer, cfg.Lifecycle.RecalcConcurrency)
	pending := reviewapp.NewPendingReviewService(pendingRepo, reviewRepo, catalogForReviews, expiry, m, tracer, cfg.Lifecycle.SweepBatchSize)
	reminders := reviewadapter.NewReminderKafkaAdapter(reminderWriter)

	orders := orderapp.NewOrderApplicationService(
		orderRepo,
		orderadapter.NewCatalogAdapter(catalog),
		orderadapter.NewPendingReviewAdapter(pending),
		orderadapter.NewEventKafkaAdapter(eventWriter),
		expiry,
		m,
		tracer,
		orderapp.WithSweepBatchSize(cfg.Lifecycle.SweepBatchSize),
		orderapp.WithProcessingTimeout(cfg.Lifecycle.ProcessingTimeout),
		orderapp.WithMaxCodeAttempts(cfg.Lifecycle.MaxOrderCodeCollision),
	)

	// 3. 驱动适配器与后台任务
	settlement := interfaces.NewSettlementConsumer(settlementReader, orders, mq.NewFailureHandler(dltWriter), m)
	dlt := interfaces.NewDltConsumer(dltReader, cfg.Kafka.DLTTopic)
	ops := interfaces.NewOpsHandler(db, prometheus.DefaultGatherer)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:    cfg.App.Name,
		Port:           cfg.App.Port,
		JaegerEndpoint: cfg.Jaeger.Endpoint,
		RegisterHandlers: func(mux *http.ServeMux) {
			ops.RegisterRoutes(mux)
		},
		Workers: []bootstrap.Worker{
			settlement.Run,
			dlt.Run,
			worker.Polling("order-sweeper", cfg.Lifecycle.OrderSweepInterval, true, func(ctx context.Context) error {
				_, err := orders.SweepExpiredOrders(ctx)
				return err
			}),
			worker.Polling("pending-review-sweeper", cfg.Lifecycle.PendingSweepInterval, true, func(ctx context.Context) error {
				_, err := pending.SweepExpired(ctx)
				return err
			}),
			worker.Polling("review-reminders", cfg.Lifecycle.ReminderPollInterval, false, func(ctx context.Context) error {
				_, err := pending.RemindDue(ctx, reminders, cfg.Lifecycle.ReminderInterval, cfg.Lifecycle.SweepBatchSize)
				return err
			}),
			worker.Polling("aggregate-rebuild", cfg.Lifecycle.RebuildInterval, false, func(ctx context.Context) error {
				_, err := recalc.RebuildAll(ctx)
				return err
			}),
		},
		Cleanups: cleanups,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Service exited with error")
	}
}

func migrate(db *gorm.DB) error {
	models := append(cataloginfra.Models(), orderinfra.Models()...)
	models = append(models, reviewinfra.Models()...)
	return database.Migrate(db, models...)
}

func closeReader(r *kafka.Reader) func(context.Context) error {
	return func(context.Context) error { return r.Close() }
}
