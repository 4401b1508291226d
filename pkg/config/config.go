// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document sources understood by the indexer.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the search API;
	// "*" allows any.
	CORSOrigins []string `yaml:"corsOrigins"`
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

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables every Kafka integration.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete        string `yaml:"indexComplete"`
	PublicationsIngested string `yaml:"publicationsIngested"`
	AnalyticsEvents      string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	OpTimeout time.Duration `yaml:"opTimeout"`
}

// IndexerConfig controls where the index artifact lives and where the
// documents it is built from come from.
type IndexerConfig struct {
	ArtifactPath    string        `yaml:"artifactPath"`
	Source          string        `yaml:"source"`
	InputPath       string        `yaml:"inputPath"`
	RebuildInterval time.Duration `yaml:"rebuildInterval"`
	// RebuildSettle delays a requested rebuild so a burst of ingestion
	// events produces one build.
	RebuildSettle time.Duration `yaml:"rebuildSettle"`
}

// SearchConfig controls result page sizes.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxResults   int `yaml:"maxResults"`
}

// AnalyticsConfig controls event batching and snapshot persistence. A zero
// SnapshotInterval disables snapshots; a zero SnapshotRetention keeps every
// snapshot.
type AnalyticsConfig struct {
	BufferSize        int           `yaml:"bufferSize"`
	BatchSize         int           `yaml:"batchSize"`
	FlushInterval     time.Duration `yaml:"flushInterval"`
	SnapshotInterval  time.Duration `yaml:"snapshotInterval"`
	SnapshotRetention int           `yaml:"snapshotRetention"`
}

// AuthConfig controls crawler API keys on the ingestion API.
type AuthConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RateLimitWindow time.Duration `yaml:"rateLimitWindow"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
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

// Validate rejects configurations no service can run with.
func (c *Config) Validate() error {
	if c.Indexer.ArtifactPath == "" {
		return fmt.Errorf("indexer.artifactPath is required")
	}
	switch c.Indexer.Source {
	case SourceFile:
		if c.Indexer.InputPath == "" {
			return fmt.Errorf("indexer.inputPath is required when source is %q", SourceFile)
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("indexer.source must be %q or %q, got %q", SourceFile, SourcePostgres, c.Indexer.Source)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.defaultLimit must be positive")
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must be >= search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Indexer.RebuildInterval < 0 || c.Indexer.RebuildSettle < 0 {
		return fmt.Errorf("indexer.rebuildInterval and indexer.rebuildSettle must not be negative")
	}
	if c.Auth.Enabled && c.Auth.RateLimitWindow <= 0 {
		return fmt.Errorf("auth.rateLimitWindow must be positive when auth is enabled")
	}
	if c.Analytics.BatchSize < 1 || c.Analytics.BufferSize < c.Analytics.BatchSize {
		return fmt.Errorf("analytics.bufferSize (%d) must be >= analytics.batchSize (%d) >= 1",
			c.Analytics.BufferSize, c.Analytics.BatchSize)
	}
	if c.Analytics.SnapshotRetention < 0 {
		return fmt.Errorf("analytics.snapshotRetention must not be negative")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "scholarsearch",
			User:            "scholarsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "scholarsearch-group",
			Topics: KafkaTopics{
				IndexComplete:        "index.complete",
				PublicationsIngested: "publications.ingested",
				AnalyticsEvents:      "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			CacheTTL:  5 * time.Minute,
			OpTimeout: 100 * time.Millisecond,
		},
		Indexer: IndexerConfig{
			ArtifactPath:  "data/index.json",
			Source:        SourceFile,
			InputPath:     "data/publications.json",
			RebuildSettle: 2 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 25,
			MaxResults:   100,
		},
		Analytics: AnalyticsConfig{
			BufferSize:        10000,
			BatchSize:         100,
			FlushInterval:     5 * time.Second,
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 1440,
		},
		Auth: AuthConfig{
			Enabled:         false,
			RateLimitWindow: time.Minute,
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

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v, ok := os.LookupEnv("SP_KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_REDIS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.CacheTTL = d
		}
	}
	if v := os.Getenv("SP_INDEXER_ARTIFACT_PATH"); v != "" {
		cfg.Indexer.ArtifactPath = v
	}
	if v := os.Getenv("SP_INDEXER_SOURCE"); v != "" {
		cfg.Indexer.Source = v
	}
	if v := os.Getenv("SP_INDEXER_INPUT_PATH"); v != "" {
		cfg.Indexer.InputPath = v
	}
	if v := os.Getenv("SP_INDEXER_REBUILD_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Indexer.RebuildInterval = d
		}
	}
	if v := os.Getenv("SP_INDEXER_REBUILD_SETTLE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Indexer.RebuildSettle = d
		}
	}
	if v := os.Getenv("SP_ANALYTICS_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analytics.SnapshotInterval = d
		}
	}
	if v, ok := os.LookupEnv("SP_SERVER_CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("SP_AUTH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = b
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

// splitList splits a comma separated value, dropping blanks so that an empty
// variable yields an empty list.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
