package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newTestDispatcher(t *testing.T, queueSize int) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger, queueSize)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func runLoop(t *testing.T, d *Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t, 0)

	called := false
	d.Register("test", func(e Event) (any, error) {
		called = true
		return e.Payload, nil
	})

	result, err := d.Dispatch(Event{Command: "test", Payload: "arg1"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "arg1" {
		t.Errorf("expected 'arg1', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t, 0)

	_, err := d.Dispatch(Event{Command: "unknown"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_RunPreservesOrder(t *testing.T) {
	d, _ := newTestDispatcher(t, 100)

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(50)

	d.Register("seq", func(e Event) (any, error) {
		mu.Lock()
		got = append(got, e.Payload.(int))
		mu.Unlock()
		wg.Done()
		return nil, nil
	})
	runLoop(t, d)

	for i := 0; i < 50; i++ {
		if err := d.Post(Event{Command: "seq", Payload: i}); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("event %d handled out of order: got payload %d", i, v)
		}
	}
}

func TestDispatcher_RunIsSingleThreaded(t *testing.T) {
	d, _ := newTestDispatcher(t, 100)

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(20)

	d.Register("work", func(e Event) (any, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		wg.Done()
		return nil, nil
	})
	runLoop(t, d)

	for i := 0; i < 20; i++ {
		go func() { _ = d.Send(context.Background(), Event{Command: "work"}) }()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most one handler at a time, saw %d", maxActive)
	}
}

func TestDispatcher_PostDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t, 2)

	// No loop running, so the queue never drains.
	_ = d.Post(Event{Command: "x"})
	_ = d.Post(Event{Command: "x"})

	err := d.Post(Event{Command: "x"})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcher_SendBlocksUntilContextDone(t *testing.T) {
	d, _ := newTestDispatcher(t, 1)
	_ = d.Post(Event{Command: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Send(ctx, Event{Command: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatcher_Call(t *testing.T) {
	d, _ := newTestDispatcher(t, 10)

	d.Register("double", func(e Event) (any, error) {
		return e.Payload.(int) * 2, nil
	})
	d.Register("fail", func(e Event) (any, error) {
		return nil, errors.New("boom")
	})
	runLoop(t, d)

	result, err := d.Call(context.Background(), "double", 21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %v", result)
	}

	_, err = d.Call(context.Background(), "fail", nil)
	if err == nil || err.Error() != "boom" {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestDispatcher_RunLogsFailures(t *testing.T) {
	d, logger := newTestDispatcher(t, 10)

	done := make(chan struct{})
	d.Register("fail", func(e Event) (any, error) {
		defer close(done)
		return nil, errors.New("boom")
	})
	runLoop(t, d)

	_ = d.Post(Event{Command: "fail"})
	<-done

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, msg := range logger.snapshot() {
			if strings.HasPrefix(msg, "ERROR") {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expected error log message")
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	d, _ := newTestDispatcher(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t, 0)

	d.Register("logged", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: "logged", Timestamp: time.Now()})

	if len(logger.snapshot()) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.snapshot()))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t, 0)

	d.Register("error", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: "error"})

	hasError := false
	for _, msg := range logger.snapshot() {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}
