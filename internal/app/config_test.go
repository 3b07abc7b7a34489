package app

import (
	"testing"
	"time"

	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("JOB_QUIESCENCE_SECONDS", "")
	t.Setenv("REDIS_CHANNEL", "")
	cfg := LoadConfig(logger.Nop())
	if cfg.DBDriver != DBDriverPostgres {
		t.Fatalf("DBDriver: %q", cfg.DBDriver)
	}
	if cfg.Policy.Quiescence != 30*time.Second || cfg.Policy.StuckTimeout != 5*time.Minute {
		t.Fatalf("policy defaults: %+v", cfg.Policy)
	}
	if cfg.Policy.Retention != 7*24*time.Hour {
		t.Fatalf("retention: %s", cfg.Policy.Retention)
	}
	if cfg.RedisChannel != "dialog_jobs" || cfg.Anthropic.Version != "2023-06-01" {
		t.Fatalf("unexpected defaults: channel=%q version=%q", cfg.RedisChannel, cfg.Anthropic.Version)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("JOB_QUIESCENCE_SECONDS", "5")
	t.Setenv("JOB_RETENTION_DAYS", "2")
	t.Setenv("CYCLE_CONCURRENCY", "9")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "k=v")
	cfg := LoadConfig(logger.Nop())
	if cfg.DBDriver != DBDriverSQLite {
		t.Fatalf("DBDriver: %q", cfg.DBDriver)
	}
	if cfg.Policy.Quiescence != 5*time.Second || cfg.Policy.Retention != 48*time.Hour {
		t.Fatalf("policy overrides: %+v", cfg.Policy)
	}
	if cfg.CycleConcurrency != 9 {
		t.Fatalf("CycleConcurrency: %d", cfg.CycleConcurrency)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins: %v", cfg.CORSOrigins)
	}
	if cfg.Otel.Headers["k"] != "v" {
		t.Fatalf("otel headers: %v", cfg.Otel.Headers)
	}

	t.Setenv("DB_DRIVER", "mysql")
	if got := LoadConfig(logger.Nop()).DBDriver; got != DBDriverPostgres {
		t.Fatalf("unknown driver must fall back to postgres, got %q", got)
	}
}
