package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler processes one event. Handlers may block (perform I/O); the bus runs
// all matching handlers concurrently and waits for them to finish. A returned
// error is logged and otherwise ignored; it never affects other handlers or
// the publisher.
type Handler func(ctx context.Context, ev Event) error

// subKey indexes subscriptions by event type and dispatch key.
type subKey struct {
	eventType Type
	eventKey  string
}

// subscription is one registered handler.
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a process-wide typed publish/subscribe router. It outlives any
// single publisher or subscriber and is safe for concurrent use: subscribing
// or unsubscribing while a publish is in flight never corrupts dispatch.
type Bus struct {
	mu     sync.RWMutex
	subs   map[subKey][]subscription
	nextID uint64

	// Per-type publish counters, guarded by statsMu.
	statsMu sync.Mutex
	stats   map[Type]uint64

	published atomic.Uint64
	delivered atomic.Uint64
	errors    atomic.Uint64
	panics    atomic.Uint64

	logger *slog.Logger
}

// NewBus creates an empty event bus. Handler failures are logged to
// slog.Default; use NewBusWithLogger to direct them elsewhere.
func NewBus() *Bus {
	return NewBusWithLogger(slog.Default())
}

// NewBusWithLogger creates an empty event bus that logs handler failures to
// the given logger. A nil logger falls back to slog.Default.
func NewBusWithLogger(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[subKey][]subscription),
		stats:  make(map[Type]uint64),
		logger: logger,
	}
}

// Subscribe registers handler for events of type t whose dispatch key equals
// key. Pass KeyAll to match every key of that type. It returns an unsubscribe
// function that removes exactly this registration; calling it more than once
// is a no-op.
func (b *Bus) Subscribe(t Type, key string, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	k := subKey{eventType: t, eventKey: key}
	b.subs[k] = append(b.subs[k], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(k, id)
		})
	}
}

// remove deletes the subscription with the given id from the registry.
// Safe to call for ids that are already gone.
func (b *Bus) remove(k subKey, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[k]
	for i, s := range subs {
		if s.id == id {
			b.subs[k] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[k]) == 0 {
		delete(b.subs, k)
	}
}

// Publish delivers ev to every handler registered for its type, matching
// either the event's own key or the KeyAll registration. All matching
// handlers run concurrently; Publish returns once the last one finishes.
// A handler panic or error is logged and isolated, so one failing handler
// never prevents the others from running and never reaches the publisher.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	// Snapshot matching handlers so concurrent subscribe/unsubscribe cannot
	// interfere with this dispatch.
	b.mu.RLock()
	matched := make([]subscription, 0, 4)
	matched = append(matched, b.subs[subKey{eventType: ev.Type(), eventKey: KeyAll}]...)
	if key := ev.Key(); key != KeyAll {
		matched = append(matched, b.subs[subKey{eventType: ev.Type(), eventKey: key}]...)
	}
	b.mu.RUnlock()

	b.published.Add(1)
	b.statsMu.Lock()
	b.stats[ev.Type()]++
	b.statsMu.Unlock()

	if len(matched) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range matched {
		wg.Add(1)
		go func(s subscription) {
			defer wg.Done()
			b.invoke(ctx, s, ev)
		}(s)
	}
	wg.Wait()
}

// invoke runs one handler with panic recovery.
func (b *Bus) invoke(ctx context.Context, s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("event handler panicked",
				"event_type", ev.Type().String(),
				"event_key", ev.Key(),
				"panic", r)
		}
	}()

	if err := s.handler(ctx, ev); err != nil {
		b.errors.Add(1)
		b.logger.Warn("event handler failed",
			"event_type", ev.Type().String(),
			"event_key", ev.Key(),
			"error", err)
		return
	}
	b.delivered.Add(1)
}

// SubscriptionCount returns the number of live registrations for the given
// event type across all dispatch keys.
func (b *Bus) SubscriptionCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for k, subs := range b.subs {
		if k.eventType == t {
			count += len(subs)
		}
	}
	return count
}

// Stats holds bus delivery counters.
type Stats struct {
	// Published counts Publish calls by event type.
	Published map[Type]uint64

	// TotalPublished is the total number of Publish calls.
	TotalPublished uint64

	// Delivered is the number of successful handler invocations.
	Delivered uint64

	// HandlerErrors is the number of handlers that returned an error.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64
}

// Stats returns a snapshot of the bus delivery counters.
func (b *Bus) Stats() Stats {
	b.statsMu.Lock()
	published := make(map[Type]uint64, len(b.stats))
	for t, n := range b.stats {
		published[t] = n
	}
	b.statsMu.Unlock()

	return Stats{
		Published:      published,
		TotalPublished: b.published.Load(),
		Delivered:      b.delivered.Load(),
		HandlerErrors:  b.errors.Load(),
		HandlerPanics:  b.panics.Load(),
	}
}

// Clear removes all subscriptions for the given event types, or every
// subscription when called without arguments.
func (b *Bus) Clear(types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(types) == 0 {
		b.subs = make(map[subKey][]subscription)
		return
	}
	for _, t := range types {
		for k := range b.subs {
			if k.eventType == t {
				delete(b.subs, k)
			}
		}
	}
}
