package identity

import (
	"context"
	"qittMarket/domain"
	"sync"
)

type broker struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]domain.AuthListener
}

func newBroker() *broker {
	return &broker{listeners: make(map[int]domain.AuthListener)}
}

func (b *broker) subscribe(fn domain.AuthListener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// emit calls listeners synchronously without holding the lock, so a
// listener may subscribe or unsubscribe.
func (b *broker) emit(ctx context.Context, event domain.AuthEvent, identity *domain.Identity) {
	b.mu.RLock()
	fns := make([]domain.AuthListener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, event, identity)
	}
}
