package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/procurahq/procura/internal/domain/event"
)

type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func testEvent(t event.Type) *event.Event {
	return event.New(t, "req-1", "alice", nil)
}

func TestDispatchRunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()

	var calls []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		d.SubscribeNamed(event.TypeRequestCreated, name, func(ctx context.Context, evt *event.Event) error {
			calls = append(calls, name)
			return nil
		})
	}

	if err := d.Dispatch(context.Background(), testEvent(event.TypeRequestCreated)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := strings.Join(calls, ","); got != "first,second,third" {
		t.Errorf("handler order = %s, want first,second,third", got)
	}
}

func TestDispatchIgnoresOtherEventTypes(t *testing.T) {
	d := NewDispatcher()

	called := false
	d.SubscribeNamed(event.TypeOrderPlaced, "orders-only", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	if err := d.Dispatch(context.Background(), testEvent(event.TypeRequestCreated)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if called {
		t.Error("handler for order.placed ran on request.created")
	}
}

func TestDispatchStopsAtFirstError(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")

	d.SubscribeNamed(event.TypeStatusChanged, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	reached := false
	d.SubscribeNamed(event.TypeStatusChanged, "after", func(ctx context.Context, evt *event.Event) error {
		reached = true
		return nil
	})

	err := d.Dispatch(context.Background(), testEvent(event.TypeStatusChanged))
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "failing") {
		t.Errorf("error %q does not name the failing handler", err)
	}
	if reached {
		t.Error("handler after the failure still ran")
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeRequestExpired, "panicky", func(ctx context.Context, evt *event.Event) error {
		panic("kaboom")
	})

	err := d.Dispatch(context.Background(), testEvent(event.TypeRequestExpired))
	if err == nil {
		t.Fatal("Dispatch() returned nil after handler panic")
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Errorf("error %q does not mention the panic", err)
	}
}

func TestSubscribeGeneratesDistinctNames(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe(event.TypeOfferSubmitted, noop)
	d.Subscribe(event.TypeOfferSubmitted, noop)

	infos := d.ListHandlers(event.TypeOfferSubmitted)
	if len(infos) != 2 {
		t.Fatalf("ListHandlers() returned %d entries, want 2", len(infos))
	}
	if infos[0].Name == infos[1].Name {
		t.Errorf("generated names collide: %q", infos[0].Name)
	}
	for _, info := range infos {
		if info.EventType != event.TypeOfferSubmitted {
			t.Errorf("EventType = %s, want %s", info.EventType, event.TypeOfferSubmitted)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	d.SubscribeNamed(event.TypeOrderPlaced, "counting", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	if err := d.Dispatch(context.Background(), testEvent(event.TypeOrderPlaced)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Unsubscribe(event.TypeOrderPlaced, "counting")
	if err := d.Dispatch(context.Background(), testEvent(event.TypeOrderPlaced)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if got := count.Load(); got != 1 {
		t.Errorf("handler ran %d times, want 1", got)
	}
	if infos := d.ListHandlers(event.TypeOrderPlaced); len(infos) != 0 {
		t.Errorf("ListHandlers() after unsubscribe = %d entries, want 0", len(infos))
	}
}

func TestUnsubscribeUnknownNameIsNoop(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeOrderPlaced, "keep-me", func(ctx context.Context, evt *event.Event) error { return nil })

	d.Unsubscribe(event.TypeOrderPlaced, "never-registered")
	d.Unsubscribe(event.TypeRequestCreated, "keep-me")

	if infos := d.ListHandlers(event.TypeOrderPlaced); len(infos) != 1 {
		t.Errorf("ListHandlers() = %d entries, want 1", len(infos))
	}
}

func TestDispatchAsyncCompletesBeforeClose(t *testing.T) {
	d := NewDispatcher()

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		d.Subscribe(event.TypeEvaluationReady, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
			return nil
		})
	}

	d.DispatchAsync(context.Background(), testEvent(event.TypeEvaluationReady))
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := ran.Load(); got != 3 {
		t.Errorf("%d async handlers completed before Close returned, want 3", got)
	}
}

func TestDispatchAsyncLogsFailures(t *testing.T) {
	log := &recordingLogger{}
	d := NewDispatcher(WithLogger(log))

	d.SubscribeNamed(event.TypeRequestExpired, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("delivery failed")
	})

	d.DispatchAsync(context.Background(), testEvent(event.TypeRequestExpired))
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if log.errorCount() == 0 {
		t.Error("async handler failure was not logged")
	}
}

func TestDispatchAfterClose(t *testing.T) {
	d := NewDispatcher()
	var ran atomic.Int32
	d.SubscribeNamed(event.TypeRequestCreated, "late", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		return nil
	})

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := d.Dispatch(context.Background(), testEvent(event.TypeRequestCreated)); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch() after close error = %v, want ErrClosed", err)
	}

	d.DispatchAsync(context.Background(), testEvent(event.TypeRequestCreated))
	if got := ran.Load(); got != 0 {
		t.Errorf("handler ran %d times after close, want 0", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher()
	if err := d.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.SubscribeNamed(event.TypeOfferSubmitted, fmt.Sprintf("sub-%d", i),
				func(ctx context.Context, evt *event.Event) error { return nil })
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Dispatch(context.Background(), testEvent(event.TypeOfferSubmitted)); err != nil {
				t.Errorf("Dispatch() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if infos := d.ListHandlers(event.TypeOfferSubmitted); len(infos) != 8 {
		t.Errorf("ListHandlers() = %d entries, want 8", len(infos))
	}
}

func TestWithLoggerReceivesRegistrations(t *testing.T) {
	log := &recordingLogger{}
	d := NewDispatcher(WithLogger(log))

	d.SubscribeNamed(event.TypeOrderPlaced, "orderdoc", func(ctx context.Context, evt *event.Event) error { return nil })

	log.mu.Lock()
	defer log.mu.Unlock()
	found := false
	for _, msg := range log.infos {
		if strings.Contains(msg, "registered") {
			found = true
		}
	}
	if !found {
		t.Error("registration was not logged")
	}
}
