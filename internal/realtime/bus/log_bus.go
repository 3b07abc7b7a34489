package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
	"github.com/yungbote/dialogforge-backend/internal/realtime"
)

// logBus is used when Redis is not configured. It logs every event and fans it out to
// in-process forwarders.
type logBus struct {
	log *logger.Logger

	mu        sync.RWMutex
	listeners []func(realtime.Event)
}

func NewLogBus(log *logger.Logger) Bus {
	return &logBus{log: log.With("service", "LogEventBus")}
}

func (b *logBus) Publish(ctx context.Context, msg realtime.Event) error {
	b.log.Debug("event", "channel", msg.Channel, "event", msg.Event)
	b.mu.RLock()
	listeners := append([]func(realtime.Event){}, b.listeners...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		fn(msg)
	}
	return nil
}

func (b *logBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Event)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *logBus) Close() error {
	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
	return nil
}
