// Package config 加载服务运行时配置：YAML 文件为基础，.env 与环境变量覆盖，最后统一校验。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Log       LogConfig       `yaml:"log"`
}

type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver       string        `yaml:"driver"` // mysql | postgres | sqlite
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"maxOpenConns"`
	MaxIdleConns int           `yaml:"maxIdleConns"`
	ConnMaxLife  time.Duration `yaml:"connMaxLife"`
	AutoMigrate  bool          `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StatsTTL time.Duration `yaml:"statsTTL"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	OrderEventTopic string   `yaml:"orderEventTopic"`
	SettlementTopic string   `yaml:"settlementTopic"`
	DLTTopic        string   `yaml:"dltTopic"`
	ReminderTopic   string   `yaml:"reminderTopic"`
	GroupID         string   `yaml:"groupId"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// LifecycleConfig 订单与评价相关的时间窗口和后台任务节奏
type LifecycleConfig struct {
	ReservationWindow     time.Duration `yaml:"reservationWindow"`
	ReviewWindow          time.Duration `yaml:"reviewWindow"`
	ReservationPolicy     string        `yaml:"reservationPolicy"` // CEL 表达式，返回秒数
	ReviewPolicy          string        `yaml:"reviewPolicy"`
	OrderSweepInterval    time.Duration `yaml:"orderSweepInterval"`
	PendingSweepInterval  time.Duration `yaml:"pendingSweepInterval"`
	RebuildInterval       time.Duration `yaml:"rebuildInterval"`
	ReminderPollInterval  time.Duration `yaml:"reminderPollInterval"`
	ReminderInterval      time.Duration `yaml:"reminderInterval"` // 同一条待评价两次提醒的最小间隔
	SweepBatchSize        int           `yaml:"sweepBatchSize"`
	RecalcConcurrency     int           `yaml:"recalcConcurrency"`
	ProcessingTimeout     time.Duration `yaml:"processingTimeout"`
	MaxOrderCodeCollision int           `yaml:"maxOrderCodeCollision"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default 返回开发环境可直接运行的默认配置
func Default() Config {
	return Config{
		App:      AppConfig{Name: "order-service", Env: "development", Port: 8080},
		Database: DatabaseConfig{Driver: "mysql", DSN: "root:root@tcp(localhost:3306)/marketplace?charset=utf8mb4&parseTime=True&loc=UTC", MaxOpenConns: 50, MaxIdleConns: 10, ConnMaxLife: 30 * time.Minute, AutoMigrate: true},
		Redis:    RedisConfig{Addr: "localhost:6379", StatsTTL: 10 * time.Minute},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			OrderEventTopic: "order-events",
			SettlementTopic: "ledger-settlements",
			DLTTopic:        "ledger-settlements-dlt",
			ReminderTopic:   "review-reminders",
			GroupID:         "order-service-settlement",
		},
		Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		Lifecycle: LifecycleConfig{
			ReservationWindow:     2 * time.Minute,
			ReviewWindow:          30 * 24 * time.Hour,
			OrderSweepInterval:    15 * time.Second,
			PendingSweepInterval:  time.Hour,
			RebuildInterval:       6 * time.Hour,
			ReminderPollInterval:  time.Hour,
			ReminderInterval:      72 * time.Hour,
			SweepBatchSize:        500,
			RecalcConcurrency:     8,
			ProcessingTimeout:     10 * time.Second,
			MaxOrderCodeCollision: 5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 读取配置。path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv 按 .env.<APP_ENV> 然后 .env 的顺序加载，文件不存在时忽略。
// godotenv 不会覆盖已经存在的环境变量。
func loadDotEnv() {
	if env := os.Getenv("APP_ENV"); env != "" {
		_ = godotenv.Load(".env." + env)
	}
	_ = godotenv.Load()
}

func applyEnv(cfg *Config) error {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DB_DSN", cfg.Database.DSN)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Jaeger.Endpoint)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Lifecycle.ReservationPolicy = getEnv("RESERVATION_POLICY", cfg.Lifecycle.ReservationPolicy)
	cfg.Lifecycle.ReviewPolicy = getEnv("REVIEW_POLICY", cfg.Lifecycle.ReviewPolicy)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = splitCSV(brokers)
	}

	var err error
	if cfg.App.Port, err = getEnvInt("HTTP_PORT", cfg.App.Port); err != nil {
		return errors.Wrap(err, "invalid HTTP_PORT")
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return errors.Wrap(err, "invalid REDIS_DB")
	}
	if cfg.Lifecycle.ReservationWindow, err = getEnvDuration("RESERVATION_WINDOW", cfg.Lifecycle.ReservationWindow); err != nil {
		return errors.Wrap(err, "invalid RESERVATION_WINDOW")
	}
	if cfg.Lifecycle.ReviewWindow, err = getEnvDuration("REVIEW_WINDOW", cfg.Lifecycle.ReviewWindow); err != nil {
		return errors.Wrap(err, "invalid REVIEW_WINDOW")
	}
	if cfg.Lifecycle.OrderSweepInterval, err = getEnvDuration("ORDER_SWEEP_INTERVAL", cfg.Lifecycle.OrderSweepInterval); err != nil {
		return errors.Wrap(err, "invalid ORDER_SWEEP_INTERVAL")
	}
	return nil
}

// Validate 校验配置的完整性
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return errors.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn must not be empty")
	}
	if c.App.Port <= 0 {
		return errors.New("app port must be > 0")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers must not be empty")
	}
	if c.Kafka.OrderEventTopic == "" || c.Kafka.SettlementTopic == "" || c.Kafka.DLTTopic == "" || c.Kafka.ReminderTopic == "" {
		return errors.New("kafka topics must not be empty")
	}
	l := c.Lifecycle
	if l.ReservationWindow <= 0 || l.ReviewWindow <= 0 {
		return errors.New("reservation and review windows must be > 0")
	}
	if l.OrderSweepInterval <= 0 || l.PendingSweepInterval <= 0 || l.RebuildInterval <= 0 || l.ReminderPollInterval <= 0 || l.ReminderInterval <= 0 {
		return errors.New("sweep and rebuild intervals must be > 0")
	}
	if l.SweepBatchSize <= 0 {
		return errors.New("sweep batch size must be > 0")
	}
	if l.RecalcConcurrency <= 0 {
		return errors.New("recalc concurrency must be > 0")
	}
	if l.ProcessingTimeout <= 0 {
		return errors.New("processing timeout must be > 0")
	}
	if l.MaxOrderCodeCollision <= 0 {
		return errors.New("max order code collision attempts must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
