package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/vidtube/backend/pkg/config"
	"github.com/vidtube/backend/pkg/database"
	"github.com/vidtube/backend/pkg/tracing"
)

const (
	defaultAccessSecret  = "change-this-access-token-secret"
	defaultRefreshSecret = "change-this-refresh-token-secret"
	minSecretLength      = 32
)

// Storage drivers.
const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Media drivers.
const (
	MediaS3     = "s3"
	MediaMemory = "memory"
)

// Config holds all configuration for the vidtube API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"vidtube"`

	// HTTP server
	HTTPPort        int           `env:"PORT" envDefault:"8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	UploadTempDir   string        `env:"UPLOAD_TEMP_DIR" envDefault:"./public/temp"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ORIGIN" envDefault:"*" envSeparator:","`

	// Storage
	StorageDriver      string        `env:"STORAGE_DRIVER" envDefault:"mongo"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// MongoDB
	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"DB_NAME" envDefault:"videotube"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"vidtube"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"vidtube"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"vidtube"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis backs the auth rate limiter. Empty disables limiting.
	RedisURL            string        `env:"REDIS_URL"`
	RateLimitRequests   int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	RateLimitWindow     time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitFailClosed bool          `env:"RATE_LIMIT_FAIL_CLOSED" envDefault:"false"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tokens
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET" envDefault:"change-this-access-token-secret"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"24h"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET" envDefault:"change-this-refresh-token-secret"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	TokenIssuer        string        `env:"TOKEN_ISSUER" envDefault:"vidtube"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"10"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"true"`

	// Media host
	MediaDriver       string `env:"MEDIA_DRIVER" envDefault:"memory"`
	MediaBaseURL      string `env:"MEDIA_BASE_URL"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// pprof
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load vidtube config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StorageDriver {
	case StorageMongo, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want mongo, postgres or memory)", c.StorageDriver)
	}

	switch c.MediaDriver {
	case MediaMemory:
	case MediaS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when MEDIA_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown MEDIA_DRIVER %q (want s3 or memory)", c.MediaDriver)
	}

	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	// Outside development the secrets must be set explicitly, strong and distinct.
	if c.IsDevelopment() {
		return nil
	}
	secrets := []struct {
		name, value, sentinel string
	}{
		{"ACCESS_TOKEN_SECRET", c.AccessTokenSecret, defaultAccessSecret},
		{"REFRESH_TOKEN_SECRET", c.RefreshTokenSecret, defaultRefreshSecret},
	}
	for _, s := range secrets {
		if s.value == s.sentinel {
			return fmt.Errorf("%s must be explicitly set via environment variable in %q mode", s.name, c.Environment)
		}
		if len(s.value) < minSecretLength {
			return fmt.Errorf("%s must be at least %d characters long, got %d", s.name, minSecretLength, len(s.value))
		}
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the PostgreSQL pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Mongo returns the MongoDB client configuration.
func (c *Config) Mongo() database.MongoConfig {
	m := database.DefaultMongoConfig()
	m.URI = c.MongoURI
	m.Database = c.MongoDatabase
	return m
}

// LocalMediaBaseURL is the URL prefix of uploads kept by the memory media host.
func (c *Config) LocalMediaBaseURL() string {
	if c.MediaBaseURL != "" {
		return c.MediaBaseURL
	}
	return fmt.Sprintf("http://localhost:%d", c.HTTPPort)
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{URL: c.RedisURL}
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing() tracing.Config {
	t := tracing.DefaultConfig(c.ServiceName)
	t.Environment = c.Environment
	t.OTLPEndpoint = c.OTelEndpoint
	t.SampleRate = c.OTelSampleRate
	t.Enabled = c.OTelEnabled
	return t
}
