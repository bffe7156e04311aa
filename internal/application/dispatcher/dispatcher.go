// Package dispatcher is the in-process pub/sub fabric between the request
// lifecycle and its side effects (notifications, order documents). Handlers
// are registered at container startup and invoked after state changes
// commit.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/procurahq/procura/internal/domain/event"
)

// ErrClosed is returned by Dispatch once Close has been called.
var ErrClosed = errors.New("dispatcher closed")

// Handler consumes one event. Returning an error aborts a synchronous
// dispatch chain; asynchronous failures are only logged.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler. ListHandlers returns these
// without the function itself.
type HandlerInfo struct {
	Name      string
	EventType event.Type
}

// Dispatcher fans events out to subscribed handlers.
type Dispatcher interface {
	// Subscribe registers a handler under a generated name.
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler under an explicit name. Names
	// scope unsubscription and show up in logs.
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Unsubscribe drops the handler registered under name, if any.
	Unsubscribe(eventType event.Type, name string)

	// Dispatch invokes handlers in registration order and stops at the
	// first failure.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync invokes each handler on its own goroutine and returns
	// immediately. Close waits for all of them.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers reports what is subscribed to an event type.
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close stops accepting events and drains in-flight async handlers.
	Close() error
}

// Logger is the narrow logging surface the dispatcher needs. The container
// adapts zap to it.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// subscription pairs a handler with the name it was registered under.
type subscription struct {
	name string
	fn   Handler
}

type bus struct {
	mu   sync.RWMutex
	subs map[event.Type][]subscription
	seq  atomic.Uint64

	log    Logger
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher.
type Option func(*bus)

// WithLogger routes dispatcher diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(b *bus) {
		b.log = logger
	}
}

// NewDispatcher builds a dispatcher with no subscriptions. Without
// WithLogger it stays silent.
func NewDispatcher(opts ...Option) Dispatcher {
	b := &bus{
		subs: make(map[event.Type][]subscription),
		log:  nopLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *bus) Subscribe(eventType event.Type, handler Handler) {
	name := fmt.Sprintf("%s/%d", eventType, b.seq.Add(1))
	b.SubscribeNamed(eventType, name, handler)
}

func (b *bus) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], subscription{name: name, fn: handler})
	b.mu.Unlock()

	b.log.Info("Event handler registered", "event_type", eventType, "handler", name)
}

func (b *bus) Unsubscribe(eventType event.Type, name string) {
	b.mu.Lock()
	subs := b.subs[eventType]
	kept := subs[:0]
	removed := false
	for _, s := range subs {
		if s.name == name {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	b.subs[eventType] = kept
	b.mu.Unlock()

	if removed {
		b.log.Info("Event handler removed", "event_type", eventType, "handler", name)
	}
}

func (b *bus) Dispatch(ctx context.Context, evt *event.Event) error {
	if b.closed.Load() {
		return ErrClosed
	}

	for _, s := range b.snapshot(evt.Type) {
		if err := b.invoke(ctx, evt, s); err != nil {
			b.log.Error("Event handler failed",
				"event_type", evt.Type, "event_id", evt.ID, "handler", s.name, "error", err)
			return fmt.Errorf("handler %s: %w", s.name, err)
		}
	}
	return nil
}

func (b *bus) DispatchAsync(ctx context.Context, evt *event.Event) {
	if b.closed.Load() {
		b.log.Error("Event dropped, dispatcher closed",
			"event_type", evt.Type, "event_id", evt.ID)
		return
	}

	for _, s := range b.snapshot(evt.Type) {
		b.wg.Add(1)
		go b.deliver(ctx, evt, s)
	}
}

func (b *bus) deliver(ctx context.Context, evt *event.Event, s subscription) {
	defer b.wg.Done()

	if err := b.invoke(ctx, evt, s); err != nil {
		b.log.Error("Event handler failed",
			"event_type", evt.Type, "event_id", evt.ID, "handler", s.name, "error", err)
	}
}

func (b *bus) ListHandlers(eventType event.Type) []HandlerInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]HandlerInfo, 0, len(b.subs[eventType]))
	for _, s := range b.subs[eventType] {
		infos = append(infos, HandlerInfo{Name: s.name, EventType: eventType})
	}
	return infos
}

// Close is idempotent. The first call waits for async handlers already in
// flight; later calls return immediately.
func (b *bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.wg.Wait()
	b.log.Info("Event dispatcher closed")
	return nil
}

// snapshot copies the subscription list so handlers run against a stable
// view even if Subscribe or Unsubscribe runs concurrently.
func (b *bus) snapshot(eventType event.Type) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]subscription(nil), b.subs[eventType]...)
}

// invoke shields the dispatcher from handler panics.
func (b *bus) invoke(ctx context.Context, evt *event.Event, s subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx, evt)
}
