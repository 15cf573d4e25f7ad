package config

import (
	"fmt"
	"os"
	"time"

	"food-delivery/internal/util"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	LockBackendFile  = "file"
	LockBackendRedis = "redis"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Env  string `envconfig:"ENV" default:"development"`
}

// StoreConfig selects the data directory and lock backend. With the redis
// backend LockTTL is refreshed every LockTTL/3 while a lock is held.
type StoreConfig struct {
	DataDir     string        `envconfig:"DATA_DIR" default:"./data"`
	LockBackend string        `envconfig:"LOCK_BACKEND" default:"file"`
	LockKey     string        `envconfig:"LOCK_KEY" default:"food-delivery:datastore"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"10s"`
}

// DatabaseConfig points at the status history database. An empty URL
// disables history.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type KafkaConfig struct {
	Enabled       bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	TopicOrder    string   `envconfig:"KAFKA_TOPIC_ORDER_EVENTS" default:"order-events"`
	ConsumerGroup string   `envconfig:"KAFKA_CONSUMER_GROUP" default:"food-delivery-history"`
}

type ObservabilityConfig struct {
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
	JaegerEndpoint string `envconfig:"JAEGER_ENDPOINT" default:"http://localhost:14268/api/traces"`
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	logger := util.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Error loading .env file, continuing with environment", zap.Error(err))
	}

	cfg := &Config{}
	sections := []interface{}{&cfg.Server, &cfg.Store, &cfg.Database, &cfg.Redis, &cfg.Kafka, &cfg.Observ}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to process configuration: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Config loaded",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Store.DataDir),
		zap.String("lock_backend", cfg.Store.LockBackend),
		zap.Bool("kafka_enabled", cfg.Kafka.Enabled),
		zap.Bool("history_enabled", cfg.HistoryEnabled()))
	return cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Store.LockBackend {
	case LockBackendFile, LockBackendRedis:
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q, expected %q or %q",
			c.Store.LockBackend, LockBackendFile, LockBackendRedis)
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.Store.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set when Kafka is enabled")
	}
	return nil
}

// HistoryEnabled reports whether a history database is configured
func (c *Config) HistoryEnabled() bool {
	return c.Database.URL != ""
}
