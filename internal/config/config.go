package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Discord  DiscordConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Archive  ArchiveConfig
	Feedback FeedbackConfig
	Limiter  LimiterConfig
}

// AppConfig controls process level behavior and the ops HTTP surface.
type AppConfig struct {
	Name    string
	Env     string
	Host    string
	Port    string
	Version string
}

// DiscordConfig holds gateway credentials and well-known channel ids.
type DiscordConfig struct {
	BotToken          string
	OperatorChannelID string
	HistoryLimit      int
	DeleteGraceSec    int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// ArchiveConfig tunes the transcript pipeline output locations and the
// attachment fetch fan-out.
type ArchiveConfig struct {
	AttachmentDir   string
	DocumentDir     string
	ActivityLogPath string
	FetchWorkers    int
	FetchTimeoutSec int
}

// FeedbackConfig signs feedback prompt capability tokens.
type FeedbackConfig struct {
	PromptSecret string
}

// LimiterConfig tunes the per-user cooldown window.
type LimiterConfig struct {
	CooldownSeconds int
	UseRedis        bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "ticket-archiver"),
			Env:     getEnv("APP_ENV", "development"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			Port:    getEnv("APP_PORT", "8080"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Discord: DiscordConfig{
			BotToken:          os.Getenv("DISCORD_BOT_TOKEN"),
			OperatorChannelID: os.Getenv("DISCORD_OPERATOR_CHANNEL_ID"),
			HistoryLimit:      getEnvAsInt("DISCORD_HISTORY_LIMIT", 100),
			DeleteGraceSec:    getEnvAsInt("DISCORD_DELETE_GRACE_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Archive: ArchiveConfig{
			AttachmentDir:   getEnv("ARCHIVE_ATTACHMENT_DIR", "attachments"),
			DocumentDir:     getEnv("ARCHIVE_DOCUMENT_DIR", "logs"),
			ActivityLogPath: getEnv("ACTIVITY_LOG_PATH", "logs/activity.log"),
			FetchWorkers:    getEnvAsInt("ARCHIVE_FETCH_WORKERS", 4),
			FetchTimeoutSec: getEnvAsInt("ARCHIVE_FETCH_TIMEOUT_SECONDS", 15),
		},
		Feedback: FeedbackConfig{
			PromptSecret: getEnv("FEEDBACK_PROMPT_SECRET", "dev-secret"),
		},
		Limiter: LimiterConfig{
			CooldownSeconds: getEnvAsInt("LIMITER_COOLDOWN_SECONDS", 300),
			UseRedis:        getEnvAsBool("LIMITER_USE_REDIS", false),
		},
	}

	return cfg, nil
}

// Addr returns the ops HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// DeleteGrace returns the channel deletion grace delay.
func (d DiscordConfig) DeleteGrace() time.Duration {
	if d.DeleteGraceSec <= 0 {
		return 0
	}
	return time.Duration(d.DeleteGraceSec) * time.Second
}

// FetchTimeout returns the per-attachment fetch deadline.
func (a ArchiveConfig) FetchTimeout() time.Duration {
	if a.FetchTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(a.FetchTimeoutSec) * time.Second
}

// Cooldown returns the limiter window.
func (l LimiterConfig) Cooldown() time.Duration {
	if l.CooldownSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(l.CooldownSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
