package backend

import (
	"context"
	"sync"

	"github.com/b0bbywan/go-odio-nowplaying/events"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const clientBuffer = 32

// Broadcaster fans out events from a single upstream channel to all subscribers.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan events.Event]func(events.Event) bool
	done    chan struct{}
}

// NewBroadcaster starts a broadcaster that reads from upstream and fans out to
// all subscribers. It stops when ctx is cancelled or upstream is closed; the
// subscriber channels are closed then.
func NewBroadcaster(ctx context.Context, upstream <-chan events.Event) *Broadcaster {
	b := &Broadcaster{
		clients: make(map[chan events.Event]func(events.Event) bool),
		done:    make(chan struct{}),
	}
	go b.run(ctx, upstream)
	return b
}

// Subscribe registers a new subscriber receiving every event.
func (b *Broadcaster) Subscribe() chan events.Event {
	return b.SubscribeFunc(nil)
}

// SubscribeFunc registers a subscriber receiving the events accepted by
// filter. A nil filter accepts everything.
func (b *Broadcaster) SubscribeFunc(filter func(events.Event) bool) chan events.Event {
	ch := make(chan events.Event, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done:
		close(ch)
	default:
		b.clients[ch] = filter
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. It is a no-op
// once the broadcaster has stopped.
func (b *Broadcaster) Unsubscribe(ch chan events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// Count returns the number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) broadcast(e events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, filter := range b.clients {
		if filter != nil && !filter(e) {
			continue
		}
		select {
		case ch <- e:
		default:
			logger.Warn("[sse] client channel full, dropping %s event", e.Type)
		}
	}
}

func (b *Broadcaster) run(ctx context.Context, upstream <-chan events.Event) {
	defer b.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-upstream:
			if !ok {
				return
			}
			b.broadcast(e)
		}
	}
}

func (b *Broadcaster) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	close(b.done)
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}
