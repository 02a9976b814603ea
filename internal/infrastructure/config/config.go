package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

type Config struct {
	Port        string `env:"PORT,         default=5000"`
	Env         string `env:"ENV,          default=development"`
	JWTSecret   string `env:"JWT_SECRET,   required"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	FrontendURL string `env:"FRONTEND_URL, default=http://localhost:5173"`
	// PublicURL is the externally reachable base of this API; locally stored
	// images are linked under it.
	PublicURL string `env:"APP_URL, default=http://localhost:5000"`
	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the socket peer is always the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	Mongo   MongoConfig
	Redis   RedisConfig
	SMTP    SMTPConfig
	Storage StorageConfig
	Auth    AuthConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=revivereads"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// SMTPConfig configures outbound mail. An empty host logs emails instead of
// sending them.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,     default=587"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"MAIL_FROM,     default=ReviveReads <no-reply@revivereads.local>"`
	Workers  int    `env:"MAIL_WORKERS,  default=4"`
}

type StorageConfig struct {
	Driver        string `env:"STORAGE_DRIVER,   default=local"`
	UploadDir     string `env:"UPLOAD_DIR,       default=uploads"`
	ImageMaxWidth int    `env:"IMAGE_MAX_WIDTH,  default=1200"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET,     default=revivereads"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL,    default=false"`
	// MinioPublicURL is the base images are served from, bucket included.
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`
}

type AuthConfig struct {
	TokenTTL        time.Duration `env:"TOKEN_TTL,          default=72h"`
	OTPTTL          time.Duration `env:"OTP_TTL,            default=5m"`
	OTPResend       time.Duration `env:"OTP_RESEND_INTERVAL, default=1m"`
	ResetTTL        time.Duration `env:"RESET_TTL,          default=15m"`
	MaxFailedLogins int           `env:"MAX_FAILED_LOGINS,  default=5"`
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION,   default=15m"`
	RateLimit       int           `env:"AUTH_RATE_LIMIT,    default=10"`
	RateWindow      time.Duration `env:"AUTH_RATE_WINDOW,   default=15m"`
}

// Production reports whether the service runs behind HTTPS in production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// AllowedOrigins splits FRONTEND_URL on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageMinio:
		if c.Storage.MinioEndpoint == "" {
			return fmt.Errorf("config: MINIO_ENDPOINT is required when STORAGE_DRIVER=minio")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Auth.RateLimit <= 0 {
		return fmt.Errorf("config: AUTH_RATE_LIMIT must be positive")
	}
	return nil
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
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
