package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/away-reply/internal/activity"
	"github.com/benvon/away-reply/internal/events"
	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/benvon/away-reply/internal/store"
	"github.com/benvon/away-reply/internal/validation"
	"github.com/joho/godotenv"
)

// TelegramConfig holds the MTProto credentials, needed only by the userbot
type TelegramConfig struct {
	APIID       int    `validate:"required,gt=0"`
	APIHash     string `validate:"required"`
	Phone       string
	Password    string
	SessionPath string `validate:"required"`
}

// Config holds application configuration
type Config struct {
	Telegram TelegramConfig `validate:"-"`

	OfflineThreshold time.Duration `validate:"gt=0"`
	ReplyPolicy      string        `validate:"reply_policy"`
	ReplyCooldown    time.Duration `validate:"gte=1s"`
	ActivitySources  []string      `validate:"min=1,dive,activity_source"`
	ReplyRate        string
	PruneInterval    time.Duration `validate:"gte=0"`

	StorageBackend string `validate:"storage_backend"`
	BlacklistPath  string `validate:"required_if=StorageBackend file"`
	RepliedPath    string `validate:"required_if=StorageBackend file"`
	RepliesPath    string `validate:"required_if=StorageBackend file"`
	SQLitePath     string `validate:"required_if=StorageBackend sqlite"`
	DatabaseURL    string `validate:"required_if=StorageBackend postgres"`
	RedisURL       string `validate:"required_if=StorageBackend redis"`
	RedisPrefix    string

	HandlerTimeout time.Duration `validate:"gte=0"`
	StatusAddr     string        `validate:"omitempty,hostname_port"`
	DebugMode      bool
	LogFormat      string `validate:"log_format"`
	OTELEnabled    bool
	OTELEndpoint   string
}

// LoadDotEnv loads an optional .env file from the working directory.
// It reports whether a file was found.
func LoadDotEnv() (bool, error) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load .env: %w", err)
	}
	return true, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var parseErrs []error
	duration := func(key string, defaultValue time.Duration) time.Duration {
		d, err := getEnvDuration(key, defaultValue)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			APIID:       getEnvInt("API_ID", 0),
			APIHash:     getEnv("API_HASH", ""),
			Phone:       getEnv("TELEGRAM_PHONE", ""),
			Password:    getEnv("TELEGRAM_PASSWORD", ""),
			SessionPath: getEnv("SESSION_PATH", "auto_reply_userbot.session"),
		},
		OfflineThreshold: duration("OFFLINE_THRESHOLD", activity.DefaultOfflineThreshold),
		ReplyPolicy:      getEnv("REPLY_POLICY", store.PolicyCooldown),
		ReplyCooldown:    duration("REPLY_COOLDOWN", store.DefaultCooldown),
		ActivitySources:  getEnvList("ACTIVITY_SIGNALS", []string{string(models.SourceOutgoing)}),
		ReplyRate:        getEnvAllowEmpty("REPLY_RATE", "20-M"),
		PruneInterval:    duration("HISTORY_PRUNE_INTERVAL", time.Hour),
		StorageBackend:   getEnv("STORAGE_BACKEND", storage.BackendFile),
		BlacklistPath:    getEnv("BLACKLIST_PATH", "blacklist.json"),
		RepliedPath:      getEnv("REPLIED_PATH", "replied.json"),
		RepliesPath:      getEnv("REPLIES_PATH", "replies.txt"),
		SQLitePath:       getEnv("SQLITE_PATH", "away_reply.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:      getEnv("REDIS_PREFIX", "awayreply"),
		HandlerTimeout:   duration("HANDLER_TIMEOUT", events.DefaultHandlerTimeout),
		StatusAddr:       getEnv("STATUS_ADDR", ""),
		DebugMode:        getEnvBool("DEBUG_MODE", false),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if len(parseErrs) > 0 {
		return nil, errors.Join(parseErrs...)
	}
	if err := validation.Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateTelegram checks the credentials the userbot needs to log in
func (c *Config) ValidateTelegram() error {
	if err := validation.Struct(c.Telegram); err != nil {
		return fmt.Errorf("API_ID and API_HASH must be set: %w", err)
	}
	return nil
}

// StorageOptions maps the configuration onto storage.Open
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:       c.StorageBackend,
		BlacklistPath: c.BlacklistPath,
		RepliedPath:   c.RepliedPath,
		RepliesPath:   c.RepliesPath,
		SQLitePath:    c.SQLitePath,
		DatabaseURL:   c.DatabaseURL,
		RedisURL:      c.RedisURL,
		RedisPrefix:   c.RedisPrefix,
	}
}

// HasSource reports whether the given update kind counts as owner activity
func (c *Config) HasSource(src models.ActivitySource) bool {
	for _, s := range c.ActivitySources {
		if s == string(src) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to ""
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("3m") or whole seconds ("180")
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
