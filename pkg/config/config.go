// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Data, Recommend, Postgres, Kafka, Analytics, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/validation"
)

// Data source identifiers accepted by DataConfig.Source.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Recommend RecommendConfig `yaml:"recommend"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int             `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"readTimeout" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	CORS            CORSConfig      `yaml:"cors"`
}

// RateLimitConfig caps requests per client IP. Health probes are exempt.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute" validate:"required_if=Enabled true,min=0"`
}

// CORSConfig lists the browser origins allowed to call the API. An empty
// list disables CORS headers.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// DataConfig selects where the title index and similarity matrix are read
// from at startup.
type DataConfig struct {
	Source      string        `yaml:"source" validate:"oneof=csv postgres"`
	MatrixPath  string        `yaml:"matrixPath" validate:"required_if=Source csv"`
	IndexPath   string        `yaml:"indexPath" validate:"required_if=Source csv"`
	LoadTimeout time.Duration `yaml:"loadTimeout" validate:"gt=0"`
}

// RecommendConfig bounds the number of titles a single query may return.
type RecommendConfig struct {
	DefaultLimit int `yaml:"defaultLimit" validate:"min=1,ltefield=MaxResults"`
	MaxResults   int `yaml:"maxResults" validate:"min=1"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// AnalyticsConfig toggles the Kafka-backed recommendation analytics pipeline.
// ConsumerGroup is the group of the in-process aggregator. It must differ
// from kafka.consumerGroup, which the standalone analytics service joins, so
// each reader sees every partition.
type AnalyticsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	BufferSize    int    `yaml:"bufferSize" validate:"min=0"`
	ConsumerGroup string `yaml:"consumerGroup"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"min=1,max=65535"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values, or an error if the result fails validation.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Analytics.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid config: analytics enabled but no kafka brokers configured")
	}
	if c.Analytics.Enabled && c.Kafka.Topics.AnalyticsEvents == "" {
		return fmt.Errorf("invalid config: analytics enabled but no analytics topic configured")
	}
	if c.Analytics.Enabled && (c.Analytics.ConsumerGroup == "" || c.Analytics.ConsumerGroup == c.Kafka.ConsumerGroup) {
		return fmt.Errorf("invalid config: analytics.consumerGroup %q must be set and differ from kafka.consumerGroup", c.Analytics.ConsumerGroup)
	}
	return nil
}

// AggregatorKafka returns the Kafka settings for the in-process analytics
// consumer: the shared brokers and topics under analytics.consumerGroup.
func (c *Config) AggregatorKafka() KafkaConfig {
	kc := c.Kafka
	kc.ConsumerGroup = c.Analytics.ConsumerGroup
	return kc
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 600,
			},
		},
		Data: DataConfig{
			Source:      SourceCSV,
			MatrixPath:  "data/matrix.csv",
			IndexPath:   "indices.csv",
			LoadTimeout: 2 * time.Minute,
		},
		Recommend: RecommendConfig{
			DefaultLimit: 10,
			MaxResults:   100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "movies",
			User:            "movies",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "movie-recommender-group",
			Topics: KafkaTopics{
				AnalyticsEvents: "recommendation-events",
			},
		},
		Analytics: AnalyticsConfig{
			Enabled:       false,
			BufferSize:    10000,
			ConsumerGroup: "movie-recommender-stats",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads MR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MR_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit.Enabled = n > 0
			cfg.Server.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("MR_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORS.AllowOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("MR_DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("MR_DATA_MATRIX_PATH"); v != "" {
		cfg.Data.MatrixPath = v
	}
	if v := os.Getenv("MR_DATA_INDEX_PATH"); v != "" {
		cfg.Data.IndexPath = v
	}
	if v := os.Getenv("MR_RECOMMEND_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recommend.DefaultLimit = n
		}
	}
	if v := os.Getenv("MR_RECOMMEND_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recommend.MaxResults = n
		}
	}
	if v := os.Getenv("MR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MR_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("MR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MR_ANALYTICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = enabled
		}
	}
	if v := os.Getenv("MR_ANALYTICS_CONSUMER_GROUP"); v != "" {
		cfg.Analytics.ConsumerGroup = v
	}
	if v := os.Getenv("MR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MR_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
