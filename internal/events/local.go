package events

import (
	"context"
	"encoding/json"
	"sync"
)

// LocalBus is an in-process Publisher and Subscriber used when Redis is not
// configured. Events round-trip through JSON so handlers see the same shapes
// as with Redis.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]func(Event))}
}

func (b *LocalBus) Publish(_ context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	b.mu.RLock()
	hs := append(([]func(Event))(nil), b.handlers[channel]...)
	b.mu.RUnlock()

	for _, h := range hs {
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		h(e)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, channel string, handler func(Event)) error {
	b.mu.Lock()
	b.handlers[channel] = append(b.handlers[channel], handler)
	idx := len(b.handlers[channel]) - 1
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[channel]
		if idx < len(hs) {
			hs[idx] = func(Event) {}
		}
	}()
	return nil
}
