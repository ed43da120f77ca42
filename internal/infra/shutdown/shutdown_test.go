package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

func recorder() (func(int) Hook, func() []int) {
	var (
		mu    sync.Mutex
		order []int
	)
	hook := func(id int) Hook {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}
	return hook, func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), order...)
	}
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(5 * time.Second)
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if len(h.signals) != 2 {
		t.Errorf("signals = %v, want SIGINT and SIGTERM", h.signals)
	}
	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_ShutdownReverseOrderOnce(t *testing.T) {
	h := NewHandler(time.Second)
	hook, calls := recorder()
	h.OnShutdown("one", hook(1))
	h.OnShutdown("two", hook(2))
	h.OnShutdown("three", hook(3))

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if err := h.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() = %v", err)
	}

	got := calls()
	if len(got) != 3 || got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Errorf("calls = %v, want [3 2 1]", got)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Shutdown")
	}
}

func TestHandler_HookErrorsAreJoined(t *testing.T) {
	h := NewHandler(time.Second)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	err := h.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Shutdown() = %v, want both errors", err)
	}
}

func TestHandler_HooksShareDeadline(t *testing.T) {
	h := NewHandler(50 * time.Millisecond)
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("hook deadline not applied")
	}
}

func TestHandler_WaitContext(t *testing.T) {
	h := NewHandler(time.Second)
	hook, calls := recorder()
	h.OnShutdown("only", hook(1))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.WaitContext(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("WaitContext() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitContext() did not return")
	}
	if got := calls(); len(got) != 1 {
		t.Errorf("calls = %v", got)
	}
}

func TestHandler_Wait_WithSignal(t *testing.T) {
	h := NewHandler(time.Second, syscall.SIGUSR1)
	hook, calls := recorder()
	h.OnShutdown("first", hook(1))
	h.OnShutdown("second", hook(2))

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()

	// Give Wait time to set up the signal handler.
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}
	if got := calls(); len(got) != 2 || got[0] != 2 {
		t.Errorf("calls = %v, want [2 1]", got)
	}
}

func TestHandler_WaitAfterShutdown(t *testing.T) {
	h := NewHandler(time.Second)
	h.OnShutdown("fail", func(context.Context) error { return errors.New("x") })
	first := h.Shutdown()

	if err := h.WaitContext(context.Background()); err == nil || err.Error() != first.Error() {
		t.Errorf("WaitContext() = %v, want %v", err, first)
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hooks) != 10 {
		t.Errorf("expected 10 hooks, got %d", len(h.hooks))
	}
}
