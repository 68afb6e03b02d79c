package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	Server    Server
	Log       Log
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Outbox    Outbox
	Telemetry Telemetry
	RateLimit RateLimit
	Platform  Platform
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"TESSERA_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	JWTSigningKey   string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"tessera"`
	JWTAudience     string        `env:"JWT_AUDIENCE" envDefault:"tessera-api"`
	// AdminTokenHash is a bcrypt hash of the X-Admin-Token value.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Database selects Postgres when URL is set; otherwise stores are in-memory.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig enables the compliance decision cache when URL is set.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka enables the outbox producer when Brokers is set.
type Kafka struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"KAFKA_TOPIC" envDefault:"tessera.events"`
	Partitions        int32    `env:"KAFKA_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
}

type Outbox struct {
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// Telemetry enables OTLP tracing when Endpoint is set.
type Telemetry struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"tessera"`
}

// RateLimit is the per-caller budget on bearer routes. The window is shared
// through Redis when REDIS_URL is set.
type RateLimit struct {
	Disabled bool          `env:"RATE_LIMIT_DISABLED"`
	Read     int           `env:"RATE_LIMIT_READ" envDefault:"600"`
	Write    int           `env:"RATE_LIMIT_WRITE" envDefault:"120"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Platform holds the ledger and distribution policy knobs.
type Platform struct {
	OperatorID         string        `env:"PLATFORM_OPERATOR_ID" envDefault:"00000000-0000-0000-0000-000000000001"`
	PlatformFeeBP      int64         `env:"PLATFORM_FEE_BP" envDefault:"250"`
	ManagerFeeBP       int64         `env:"MANAGER_FEE_BP" envDefault:"500"`
	DenominatorMode    string        `env:"DISTRIBUTION_DENOMINATOR" envDefault:"total_supply"`
	MaxBatchSize       int           `env:"DISTRIBUTION_MAX_BATCH" envDefault:"500"`
	ComplianceCacheTTL time.Duration `env:"COMPLIANCE_CACHE_TTL" envDefault:"5m"`
}

// Load parses the environment into a Config and checks cross-field rules.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Platform.DenominatorMode {
	case "total_supply", "held_shares":
	default:
		return fmt.Errorf("DISTRIBUTION_DENOMINATOR must be total_supply or held_shares, got %q", c.Platform.DenominatorMode)
	}
	if c.Platform.MaxBatchSize <= 0 {
		return fmt.Errorf("DISTRIBUTION_MAX_BATCH must be positive")
	}
	if !c.RateLimit.Disabled && (c.RateLimit.Read <= 0 || c.RateLimit.Write <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_READ, RATE_LIMIT_WRITE and RATE_LIMIT_WINDOW must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	return nil
}
