// Package config reads process settings from the environment, an optional
// .env file and command-line flags.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"imagecaster/internal/db"
	"imagecaster/internal/storage"
)

// ErrHelp is returned when help output was requested and printed.
var ErrHelp = errors.New("help requested")

const (
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`

	StorageBackend string `long:"storage" env:"STORAGE_BACKEND" default:"s3" choice:"s3" choice:"postgres" choice:"memory" description:"Object store backend"`
	S3Endpoint     string `long:"s3-endpoint" env:"S3_ENDPOINT" description:"S3-compatible endpoint (empty for AWS)"`
	S3Region       string `long:"s3-region" env:"S3_REGION" default:"auto" description:"S3 region"`
	S3Bucket       string `long:"s3-bucket" env:"S3_BUCKET" description:"Bucket holding documents and media"`
	S3AccessKey    string `long:"s3-access-key" env:"S3_ACCESS_KEY" description:"S3 access key"`
	S3SecretKey    string `long:"s3-secret-key" env:"S3_SECRET_KEY" description:"S3 secret key"`
	DatabaseURL    string `long:"database-url" env:"DATABASE_URL" description:"Postgres URL for the postgres backend"`

	MediaBaseURL string `long:"media-base-url" env:"MEDIA_BASE_URL" description:"Public URL stored objects are served from"`
	RedisAddr    string `long:"redis-addr" env:"REDIS_ADDR" default:"127.0.0.1:6379" description:"Redis address for the task queue"`

	TelegramBotToken string  `long:"telegram-bot-token" env:"TELEGRAM_BOT_TOKEN" description:"Bot token for admin auth and channel posts"`
	TelegramChannel  string  `long:"telegram-channel" env:"TELEGRAM_CHANNEL" description:"Channel to announce new episodes in (@name or numeric id)"`
	AdminIDs         []int64 `long:"admin-id" env:"ADMIN_IDS" env-delim:"," description:"Telegram user ids allowed to manage the show"`

	RebuildWebhookURL string        `long:"rebuild-webhook-url" env:"REBUILD_WEBHOOK_URL" description:"Deploy hook called after the feed changes"`
	PublishInterval   time.Duration `long:"publish-interval" env:"PUBLISH_INTERVAL" default:"5m" description:"How often scheduled episodes are checked"`
	MaxFetchSize      int64         `long:"max-fetch-size" env:"MAX_FETCH_SIZE" default:"524288000" description:"Largest audio file fetched from a URL, in bytes"`

	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"json" choice:"json" choice:"console" description:"Log output format"`
}

// Load reads .env if present, then parses args with environment fallbacks.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	}
	if c.PublishInterval <= 0 {
		return errors.New("PUBLISH_INTERVAL must be positive")
	}
	return nil
}

// IsAdmin reports whether the Telegram user may manage the show.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// NewStore opens the configured object store.
func NewStore(ctx context.Context, c *Config) (storage.Store, error) {
	switch c.StorageBackend {
	case BackendS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
	case BackendPostgres:
		if err := db.InitDB(c.DatabaseURL); err != nil {
			return nil, err
		}
		return db.Store{}, nil
	case BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}
