package app

import (
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/dialogforge-backend/internal/data/db"
	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
	"github.com/yungbote/dialogforge-backend/internal/observability"
	"github.com/yungbote/dialogforge-backend/internal/platform/anthropic"
	"github.com/yungbote/dialogforge-backend/internal/platform/envutil"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

type Config struct {
	Port        string
	CORSOrigins []string

	DBDriver   string
	Postgres   db.PostgresConfig
	SQLitePath string

	Anthropic        anthropic.Config
	EmotionMaxTokens int

	CycleInterval    time.Duration
	CycleConcurrency int
	CycleLockTTL     time.Duration
	Policy           dialogjob.Policy

	JWTSecretKey string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisChannel   string
	ChatSessionTTL time.Duration

	Otel observability.OtelConfig
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig(log *logger.Logger) Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded", "error", err)
	}
	policy := dialogjob.DefaultPolicy()
	policy.Quiescence = envutil.Seconds("JOB_QUIESCENCE_SECONDS", policy.Quiescence)
	policy.StuckTimeout = envutil.Seconds("JOB_STUCK_TIMEOUT_SECONDS", policy.StuckTimeout)
	policy.Retention = time.Duration(envutil.Int("JOB_RETENTION_DAYS", int(policy.Retention/(24*time.Hour)))) * 24 * time.Hour
	policy.BatchSize = envutil.Int("CYCLE_BATCH_SIZE", policy.BatchSize)

	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		CORSOrigins: splitList(envutil.String("CORS_ORIGINS", "")),

		DBDriver: strings.ToLower(envutil.String("DB_DRIVER", DBDriverPostgres)),
		Postgres: db.PostgresConfig{
			Host:     envutil.String("POSTGRES_HOST", "localhost"),
			Port:     envutil.String("POSTGRES_PORT", "5432"),
			User:     envutil.String("POSTGRES_USER", "postgres"),
			Password: envutil.String("POSTGRES_PASSWORD", ""),
			Name:     envutil.String("POSTGRES_NAME", "dialogforge"),
			SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
		},
		SQLitePath: envutil.String("SQLITE_PATH", "dialogforge.db"),

		Anthropic: anthropic.Config{
			APIKey:         envutil.String("ANTHROPIC_API_KEY", ""),
			BaseURL:        envutil.String("ANTHROPIC_BASE_URL", anthropic.DefaultBaseURL),
			Version:        envutil.String("ANTHROPIC_VERSION", anthropic.DefaultVersion),
			Model:          envutil.String("ANTHROPIC_MODEL", anthropic.DefaultModel),
			MaxTokens:      envutil.Int("ANTHROPIC_MAX_TOKENS", 1024),
			ConnectTimeout: envutil.Seconds("ANTHROPIC_CONNECT_TIMEOUT_SECONDS", 10*time.Second),
			Timeout:        envutil.Seconds("ANTHROPIC_TIMEOUT_SECONDS", 60*time.Second),
			MaxRetries:     envutil.Int("ANTHROPIC_MAX_RETRIES", 2),
			MaxRetrySleep:  envutil.Seconds("ANTHROPIC_MAX_RETRY_SLEEP_SECONDS", 20*time.Second),
		},
		EmotionMaxTokens: envutil.Int("ANTHROPIC_EMOTION_MAX_TOKENS", 512),

		CycleInterval:    envutil.Seconds("CYCLE_INTERVAL_SECONDS", 30*time.Second),
		CycleConcurrency: envutil.Int("CYCLE_CONCURRENCY", 4),
		CycleLockTTL:     envutil.Seconds("CYCLE_LOCK_TTL_SECONDS", 10*time.Minute),
		Policy:           policy,

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),

		RedisAddr:      envutil.String("REDIS_ADDR", ""),
		RedisPassword:  envutil.String("REDIS_PASSWORD", ""),
		RedisDB:        envutil.Int("REDIS_DB", 0),
		RedisChannel:   envutil.String("REDIS_CHANNEL", "dialog_jobs"),
		ChatSessionTTL: envutil.Seconds("CHAT_SESSION_TTL_SECONDS", time.Hour),

		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "dialogforge"),
			Environment: envutil.String("ENVIRONMENT", "development"),
			Version:     envutil.String("SERVICE_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1),
		},
	}
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY is not set; every /api request will be rejected")
	}
	if cfg.DBDriver != DBDriverPostgres && cfg.DBDriver != DBDriverSQLite {
		log.Warn("Unknown DB_DRIVER; falling back to postgres", "db_driver", cfg.DBDriver)
		cfg.DBDriver = DBDriverPostgres
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
