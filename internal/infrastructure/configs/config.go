package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/tenantwire/internal/infrastructure/env"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig           `koanf:"http"`
	RateLimiter RateLimiterConfig    `koanf:"rateLimiter"`
	Logger      logging.LoggerConfig `koanf:"logger"`
	Postgres    PostgresConfig       `koanf:"postgres"`
	Mongo       MongoConfig          `koanf:"mongo"`
	Redis       RedisConfig          `koanf:"redis"`
	RabbitMQ    RabbitMQConfig       `koanf:"rabbitmq"`
	Audit       AuditConfig          `koanf:"audit"`
	TenantCache TenantCacheConfig    `koanf:"tenant_cache"`
	Tracing     TracingConfig        `koanf:"tracing"`
	WS          WSConfig             `koanf:"ws"`
}

type HTTPConfig struct {
	Host            string        `koanf:"host"`
	Port            uint16        `koanf:"port"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	AllowedHeaders  []string      `koanf:"allowed_headers"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int           `koanf:"requestsPerTimeFrame"`
	TimeFrame            time.Duration `koanf:"timeFrame"`
}

type PostgresConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	Migrate         bool          `koanf:"migrate"`
}

type MongoConfig struct {
	URI               string        `koanf:"uri"`
	Database          string        `koanf:"database"`
	ConnectionTimeout time.Duration `koanf:"connection_timeout"`
	Retention         time.Duration `koanf:"retention"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type RabbitMQConfig struct {
	URI      string `koanf:"uri"`
	Exchange string `koanf:"exchange"`
}

type AuditConfig struct {
	// Sink is one of postgres, mongo or memory.
	Sink            string `koanf:"sink"`
	AnonymousActor  string `koanf:"anonymous_actor"`
	QueueSize       int    `koanf:"queue_size"`
	Workers         int    `koanf:"workers"`
	MemoryCapacity  uint   `koanf:"memory_capacity"`
	DefaultPageSize uint64 `koanf:"default_page_size"`
	MaxPageSize     uint64 `koanf:"max_page_size"`

	// StaticTenants maps actor ids to tenants when no tenant directory
	// is reachable, typically for local runs on the memory sink.
	StaticTenants map[string]string `koanf:"static_tenants"`
}

type TenantCacheConfig struct {
	TTL      time.Duration `koanf:"ttl"`
	Capacity uint          `koanf:"capacity"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Exporter    string `koanf:"exporter"`
	Endpoint    string `koanf:"endpoint"`
	Environment string `koanf:"environment"`
	ServiceName string `koanf:"service_name"`
}

type WSConfig struct {
	SendBuffer      int           `koanf:"send_buffer"`
	PingPeriod      time.Duration `koanf:"ping_period"`
	PongWait        time.Duration `koanf:"pong_wait"`
	WriteWait       time.Duration `koanf:"write_wait"`
	MaxMessageSize  int64         `koanf:"max_message_size"`
	CommandsPerTime int           `koanf:"commands_per_time"`
	CommandWindow   time.Duration `koanf:"command_window"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Audit.Sink {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when audit.sink is postgres")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri is required when audit.sink is mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown audit.sink %q: supported sinks: [postgres, mongo, memory]", c.Audit.Sink)
	}

	if c.Audit.Workers <= 0 || c.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit.workers and audit.queue_size must be positive")
	}

	return nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.shutdown_timeout", 10*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization", "X-Actor-ID", "X-Request-ID"})

	setDefault(k, "rateLimiter.requestsPerTimeFrame", 100)
	setDefault(k, "rateLimiter.timeFrame", 5*time.Second)

	setDefault(k, "logger.file_path", "./logs/")
	setDefault(k, "logger.encoding", "json")
	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.logger", "zap")
	setDefault(k, "logger.app_name", "tenantwire")

	setDefault(k, "postgres.max_conns", 25)
	setDefault(k, "postgres.min_conns", 2)
	setDefault(k, "postgres.max_conn_lifetime", time.Hour)
	setDefault(k, "postgres.max_conn_idle_time", 30*time.Minute)
	setDefault(k, "postgres.migrate", true)

	setDefault(k, "mongo.database", "tenantwire")
	setDefault(k, "mongo.connection_timeout", 20*time.Second)
	setDefault(k, "mongo.retention", 90*24*time.Hour)

	setDefault(k, "redis.pool_size", 10)
	setDefault(k, "redis.dial_timeout", 5*time.Second)
	setDefault(k, "redis.read_timeout", 3*time.Second)
	setDefault(k, "redis.write_timeout", 3*time.Second)

	setDefault(k, "rabbitmq.exchange", "changefeed")

	setDefault(k, "audit.sink", "postgres")
	setDefault(k, "audit.anonymous_actor", "EXTERNAL_CLIENT")
	setDefault(k, "audit.queue_size", 1024)
	setDefault(k, "audit.workers", 4)
	setDefault(k, "audit.memory_capacity", 1000)
	setDefault(k, "audit.default_page_size", 50)
	setDefault(k, "audit.max_page_size", 500)

	setDefault(k, "tenant_cache.ttl", 5*time.Minute)
	setDefault(k, "tenant_cache.capacity", 10000)

	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.exporter", "otlp")
	setDefault(k, "tracing.endpoint", "http://localhost:4318/v1/traces")
	setDefault(k, "tracing.environment", "development")
	setDefault(k, "tracing.service_name", "tenantwire")

	setDefault(k, "ws.send_buffer", 64)
	setDefault(k, "ws.ping_period", 54*time.Second)
	setDefault(k, "ws.pong_wait", 60*time.Second)
	setDefault(k, "ws.write_wait", 10*time.Second)
	setDefault(k, "ws.max_message_size", 32*1024)
	setDefault(k, "ws.commands_per_time", 30)
	setDefault(k, "ws.command_window", 10*time.Second)
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetInt("HTTP_READ_TIMEOUT_SECONDS", 0); readTimeout > 0 {
		k.Set("http.read_timeout", time.Duration(readTimeout)*time.Second)
	}
	if writeTimeout := env.GetInt("HTTP_WRITE_TIMEOUT_SECONDS", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", time.Duration(writeTimeout)*time.Second)
	}

	if limit := env.GetInt("RATE_LIMIT_REQUESTS_PER_TIME_FRAME", 0); limit > 0 {
		k.Set("rateLimiter.requestsPerTimeFrame", limit)
	}
	if frame := env.GetDuration("RATE_LIMIT_TIME_FRAME", 0); frame > 0 {
		k.Set("rateLimiter.timeFrame", frame)
	}

	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if logger := env.GetString("LOGGER_LOGGER", ""); logger != "" {
		k.Set("logger.logger", logger)
	}
	if filePath := env.GetString("LOGGER_FILE_PATH", ""); filePath != "" {
		k.Set("logger.file_path", filePath)
	}

	if dsn := env.GetString("DATABASE_DSN", ""); dsn != "" {
		k.Set("postgres.dsn", dsn)
	}
	if uri := env.GetString("MONGODB_URI", ""); uri != "" {
		k.Set("mongo.uri", uri)
	}
	if database := env.GetString("MONGODB_DATABASE", ""); database != "" {
		k.Set("mongo.database", database)
	}
	if url := env.GetString("REDIS_URL", ""); url != "" {
		k.Set("redis.url", url)
	}
	if uri := env.GetString("RABBITMQ_URI", ""); uri != "" {
		k.Set("rabbitmq.uri", uri)
	}

	if sink := env.GetString("AUDIT_SINK", ""); sink != "" {
		k.Set("audit.sink", sink)
	}
	if actor := env.GetString("AUDIT_ANONYMOUS_ACTOR", ""); actor != "" {
		k.Set("audit.anonymous_actor", actor)
	}
	if queueSize := env.GetInt("AUDIT_QUEUE_SIZE", 0); queueSize > 0 {
		k.Set("audit.queue_size", queueSize)
	}
	if workers := env.GetInt("AUDIT_WORKERS", 0); workers > 0 {
		k.Set("audit.workers", workers)
	}

	if ttl := env.GetDuration("TENANT_CACHE_TTL", 0); ttl > 0 {
		k.Set("tenant_cache.ttl", ttl)
	}

	if env.GetBool("TRACING_ENABLED", false) {
		k.Set("tracing.enabled", true)
	}
	if exporter := env.GetString("TRACING_EXPORTER", ""); exporter != "" {
		k.Set("tracing.exporter", exporter)
	}
	if endpoint := env.GetString("TRACING_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
	}
	if environment := env.GetString("ENVIRONMENT", ""); environment != "" {
		k.Set("tracing.environment", environment)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
