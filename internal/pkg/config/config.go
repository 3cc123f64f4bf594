package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is built once at startup and passed explicitly to the components that
// need it. Nothing reads the environment after Load returns.
type Config struct {
	Port     string `env:"PORT,      default=8000"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	// CORSOrigin is echoed back with credentials allowed, so it must name a
	// concrete origin.
	CORSOrigin string `env:"CORS_ORIGIN, required"`

	Auth    AuthConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Storage StorageConfig
}

type AuthConfig struct {
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,  required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL,     default=15m"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET, required"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL,    default=240h"`
	CookieSecure       bool          `env:"COOKIE_SECURE,        default=true"`
	RefreshLockTTL     time.Duration `env:"REFRESH_LOCK_TTL,     default=5s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=videotube"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type StorageConfig struct {
	Region         string `env:"S3_REGION,             default=us-east-1"`
	Endpoint       string `env:"S3_ENDPOINT"`
	AccessKey      string `env:"S3_ACCESS_KEY"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Bucket         string `env:"S3_BUCKET,             default=videotube-media"`
	PublicURL      string `env:"S3_PUBLIC_URL"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,      default=5242880"`
	CleanupWorkers int    `env:"MEDIA_CLEANUP_WORKERS, default=4"`
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if cfg.CORSOrigin == "*" {
		return nil, fmt.Errorf("config: CORS_ORIGIN must be a concrete origin when credentials are allowed")
	}
	if cfg.Auth.AccessTokenSecret == cfg.Auth.RefreshTokenSecret {
		return nil, fmt.Errorf("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	return &cfg, nil
}
