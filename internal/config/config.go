package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	DBDriver               string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT"`
	DBSSLMode              string `env:"DB_SSLMODE" envDefault:"disable"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	JWTSecret               string `env:"JWT_SECRET"`

	StorageBucket string `env:"STORAGE_BUCKET"`

	RedisAddr       string `env:"REDIS_ADDR"`
	WalletAuditSpec string `env:"WALLET_AUDIT_SPEC" envDefault:"@every 1h"`

	FeedRefreshInterval time.Duration `env:"FEED_REFRESH_INTERVAL" envDefault:"2m"`
	WalletRateLimit     string        `env:"WALLET_RATE_LIMIT" envDefault:"30-M"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOriginSuffix    string        `env:"CORS_ORIGIN_SUFFIX" envDefault:"vercel.app"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case "mysql":
		if cfg.DBPort == "" {
			cfg.DBPort = "3306"
		}
	case "postgres":
		if cfg.DBPort == "" {
			cfg.DBPort = "5432"
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.FirebaseProjectID == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("either FIREBASE_PROJECT_ID or JWT_SECRET must be set")
	}
	return &cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
