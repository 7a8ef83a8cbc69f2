// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	Service   ServiceConfig   `envPrefix:"SERVICE_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	NATS      NATSConfig      `envPrefix:"NATS_"`
	Cache     CacheConfig     `envPrefix:"CACHE_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	LogLevel  string          `env:"LOG_LEVEL" envDefault:"info"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `env:"NAME" envDefault:"be-mt-approvals"`
	Version     string `env:"VERSION" envDefault:"dev"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8086"`
	GRPCPort        int           `env:"GRPC_PORT" envDefault:"9086"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	Host        string        `env:"HOST" envDefault:"localhost"`
	Port        int           `env:"PORT" envDefault:"5432"`
	User        string        `env:"USER" envDefault:"postgres"`
	Password    string        `env:"PASSWORD"`
	Database    string        `env:"NAME" envDefault:"mt_approvals"`
	SSLMode     string        `env:"SSL_MODE" envDefault:"disable"`
	MaxConns    int32         `env:"MAX_CONNS" envDefault:"10"`
	MinConns    int32         `env:"MIN_CONNS" envDefault:"2"`
	MaxConnTime time.Duration `env:"MAX_CONN_TIME" envDefault:"1h"`
	MaxIdleTime time.Duration `env:"MAX_IDLE_TIME" envDefault:"30m"`
	HealthCheck time.Duration `env:"HEALTH_CHECK" envDefault:"1m"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"ISSUER"`
}

// NATSConfig holds the notification broker address. An empty URL disables publishing.
type NATSConfig struct {
	URL string `env:"URL"`
}

// CacheConfig controls approval-context caching. An empty RedisAddr selects the in-memory store.
type CacheConfig struct {
	TTL        time.Duration `env:"TTL" envDefault:"30s"`
	MaxEntries int           `env:"MAX_ENTRIES" envDefault:"1000"`
	RedisAddr  string        `env:"REDIS_ADDR"`
	RedisDB    int           `env:"REDIS_DB" envDefault:"0"`
}

// RateLimitConfig controls the request limiters. RPS and Burst apply per authenticated
// user; IPRPS and IPBurst apply per remote address before authentication.
type RateLimitConfig struct {
	RPS     float64 `env:"RPS" envDefault:"10"`
	Burst   int     `env:"BURST" envDefault:"20"`
	IPRPS   float64 `env:"IP_RPS" envDefault:"50"`
	IPBurst int     `env:"IP_BURST" envDefault:"100"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
