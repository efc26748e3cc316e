package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store and transport drivers.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverNATS     = "nats"

	PrincipalSourceDirectory = "directory"
	PrincipalSourceToken     = "token"
)

// Config holds all configuration for the chat-realtime-api service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"chat-realtime-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"CHAT_REALTIME_API_PORT" envDefault:"8190"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OpenTelemetry
	EnableTracing   bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ContentPIILevel string `env:"LOG_CONTENT_PII_LEVEL" envDefault:"hashed"`

	// Auth (Keycloak) - uses global auth vars
	AuthEnabled     bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer      string `env:"ISSUER"`
	AuthAudience    string `env:"AUDIENCE"`
	AuthJWKSURL     string `env:"JWKS_URL"`
	AuthDevSecret   string `env:"AUTH_DEV_SECRET"`
	PrincipalSource string `env:"PRINCIPAL_SOURCE" envDefault:"directory"`

	JWKSRefreshInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`
	AuthClockSkew       time.Duration `env:"AUTH_CLOCK_SKEW" envDefault:"60s"`

	// Drivers
	DocumentStore  string `env:"DOCUMENT_STORE" envDefault:"memory"`
	ReadStateStore string `env:"READSTATE_STORE" envDefault:"memory"`
	CacheDriver    string `env:"CACHE_DRIVER" envDefault:"memory"`
	FabricDriver   string `env:"FABRIC_DRIVER" envDefault:"memory"`

	// MongoDB document store
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"chat"`

	// Postgres read cursors
	DatabaseDSN    string        `env:"DB_POSTGRESQL_WRITE_DSN"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate    bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	// Cache
	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	MemoryCacheSize int    `env:"MEMORY_CACHE_SIZE" envDefault:"50000"`

	// Messaging fabric
	NATSURL        string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSQueueGroup string `env:"NATS_QUEUE_GROUP" envDefault:"chat-realtime"`

	// Directory lookups
	MembershipLookupTimeout time.Duration `env:"MEMBERSHIP_LOOKUP_TIMEOUT" envDefault:"10s"`
	LightLookupTimeout      time.Duration `env:"LIGHT_LOOKUP_TIMEOUT" envDefault:"2500ms"`
	MembershipCacheTTL      time.Duration `env:"MEMBERSHIP_CACHE_TTL" envDefault:"24h"`
	RoleCacheTTL            time.Duration `env:"ROLE_CACHE_TTL" envDefault:"10m"`
	PrincipalCacheTTL       time.Duration `env:"PRINCIPAL_CACHE_TTL" envDefault:"10m"`
	MemberSetCacheTTL       time.Duration `env:"MEMBER_SET_CACHE_TTL" envDefault:"5m"`

	// Realtime behaviour
	SingleFocusChannel    bool          `env:"SINGLE_FOCUS_CHANNEL" envDefault:"true"`
	TypingTTL             time.Duration `env:"TYPING_TTL" envDefault:"8s"`
	TypingSweepInterval   time.Duration `env:"TYPING_SWEEP_INTERVAL" envDefault:"2s"`
	RateLimitEventsPerSec float64       `env:"RATE_LIMIT_EVENTS_PER_SEC" envDefault:"20"`
	RateLimitBurst        int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	WSWriteTimeout        time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSPongTimeout         time.Duration `env:"WS_PONG_TIMEOUT" envDefault:"60s"`
	WSSendBuffer          int           `env:"WS_SEND_BUFFER" envDefault:"256"`
	WSMaxMessageBytes     int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"65536"`

	// Welcome DM sent when a user joins a workspace
	WelcomeSenderID string        `env:"WELCOME_SENDER_ID"`
	WelcomeMessage  string        `env:"WELCOME_MESSAGE" envDefault:"Welcome to the workspace! Say hi to your teammates."`
	WelcomeLockTTL  time.Duration `env:"WELCOME_LOCK_TTL" envDefault:"30s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthAudience) == "" {
			return fmt.Errorf("AUDIENCE is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("JWKS_URL is required when AUTH_ENABLED is true")
		}
	} else if strings.TrimSpace(c.AuthDevSecret) == "" {
		return fmt.Errorf("AUTH_DEV_SECRET is required when AUTH_ENABLED is false")
	}

	switch c.PrincipalSource {
	case PrincipalSourceDirectory, PrincipalSourceToken:
	default:
		return fmt.Errorf("PRINCIPAL_SOURCE must be %q or %q", PrincipalSourceDirectory, PrincipalSourceToken)
	}

	if err := oneOf("DOCUMENT_STORE", c.DocumentStore, DriverMongo, DriverMemory); err != nil {
		return err
	}
	if err := oneOf("READSTATE_STORE", c.ReadStateStore, DriverPostgres, DriverMemory); err != nil {
		return err
	}
	if err := oneOf("CACHE_DRIVER", c.CacheDriver, DriverRedis, DriverMemory); err != nil {
		return err
	}
	if err := oneOf("FABRIC_DRIVER", c.FabricDriver, DriverNATS, DriverMemory); err != nil {
		return err
	}

	if c.ReadStateStore == DriverPostgres && strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("DB_POSTGRESQL_WRITE_DSN is required when READSTATE_STORE is postgres")
	}
	if c.MembershipLookupTimeout <= 0 || c.LightLookupTimeout <= 0 {
		return fmt.Errorf("lookup timeouts must be positive")
	}
	if c.RateLimitEventsPerSec <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_EVENTS_PER_SEC and RATE_LIMIT_BURST must be positive")
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}

	return nil
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func oneOf(name, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value)
}
