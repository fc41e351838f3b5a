// Package events fans session events out to independent subscribers.
// Publish never blocks: every subscriber drains its own queue on its own
// goroutine, so a slow consumer cannot stall a session.
package events

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

type Handler interface {
	HandleEvent(ctx context.Context, ev domain.Event)
}

type HandlerFunc func(ctx context.Context, ev domain.Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, ev domain.Event) { f(ctx, ev) }

type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool

	wg sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

type subscription struct {
	name string
	h    Handler

	mu      sync.Mutex
	queue   []domain.Event
	stopped bool
	wake    chan struct{}
}

// Subscribe registers h under name (used in logs) and returns a cancel func.
// Events already queued for h are still delivered after cancel.
func (b *Bus) Subscribe(name string, h Handler) func() {
	s := &subscription{name: name, h: h, wake: make(chan struct{}, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.subs[s] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		s.run()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			s.stop()
		})
	}
}

// Publish queues ev for every current subscriber.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.push(ev)
	}
}

// Close stops accepting events and waits until subscribers drained their queues.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = map[*subscription]struct{}{}
	b.mu.Unlock()

	for s := range subs {
		s.stop()
	}
	b.wg.Wait()
}

func (s *subscription) push(ev domain.Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		stopped := s.stopped
		s.mu.Unlock()

		for _, ev := range batch {
			s.deliver(ev)
		}
		if stopped && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-s.wake
		}
	}
}

func (s *subscription) deliver(ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panic",
				"subscriber", s.name,
				"type", ev.Type,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	s.h.HandleEvent(context.Background(), ev)
}
