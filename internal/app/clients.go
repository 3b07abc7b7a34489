package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dialogforge-backend/internal/platform/anthropic"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
	"github.com/yungbote/dialogforge-backend/internal/realtime/bus"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis goredis.UniversalClient
	Bus   bus.Bus
	LLM   anthropic.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var rdb goredis.UniversalClient
	if cfg.RedisAddr != "" {
		c := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return Clients{}, fmt.Errorf("redis ping: %w", err)
		}
		rdb = c
	}

	// Realtime
	var b bus.Bus
	if rdb != nil {
		rb, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		b = rb
	} else {
		b = bus.NewLogBus(log)
	}

	// Anthropic
	llm, err := anthropic.NewClient(log, cfg.Anthropic)
	if err != nil {
		_ = b.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init anthropic client: %w", err)
	}

	return Clients{Redis: rdb, Bus: b, LLM: llm}, nil
}

func (c Clients) Close() {
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
