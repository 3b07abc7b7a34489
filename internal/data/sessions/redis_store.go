package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type redisStore struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(log *logger.Logger, rdb goredis.UniversalClient, prefix string, ttl time.Duration) Store {
	if prefix == "" {
		prefix = "chat_session:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisStore{log: log.With("component", "RedisSessionStore"), rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *redisStore) Get(ctx context.Context, id string) (*ChatSession, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var out ChatSession
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Warn("Dropping unreadable chat session", "session_id", id, "error", err)
		_ = s.rdb.Del(ctx, s.prefix+id).Err()
		return nil, ErrNotFound
	}
	return &out, nil
}

func (s *redisStore) Put(ctx context.Context, sess *ChatSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.prefix+sess.ID, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, s.prefix+id).Result()
	if err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
