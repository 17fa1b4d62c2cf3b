package bus

import (
	"context"
	"sync"

	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/realtime"
)

// NewLocalBus fans messages out in process and logs them. Used when Redis is not configured.
func NewLocalBus(log *logger.Logger) Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &localBus{log: log.With("service", "LocalJobBus")}
}

type localBus struct {
	log  *logger.Logger
	mu   sync.RWMutex
	subs []func(realtime.Message)
}

func (b *localBus) Publish(_ context.Context, msg realtime.Message) error {
	b.log.Debug("job event", "channel", msg.Channel, "event", msg.Event)
	b.mu.RLock()
	subs := append([]func(realtime.Message){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(msg)
	}
	return nil
}

func (b *localBus) StartForwarder(_ context.Context, onMsg func(m realtime.Message)) error {
	if onMsg == nil {
		return nil
	}
	b.mu.Lock()
	b.subs = append(b.subs, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error { return nil }
