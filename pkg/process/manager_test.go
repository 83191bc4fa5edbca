package process_test

import (
	"context"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/process"
)

func TestManager_ParentCancelRunsHandlersInReverseOrder(t *testing.T) {
	m := process.NewManager(logger.CreateLogger("error"))

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	m.RegisterShutdownHandler(record("first"))
	m.RegisterShutdownHandler(record("second"))
	m.RegisterShutdownHandler(record("third"))

	parent, cancel := context.WithCancel(context.Background())
	ctx := m.Start(parent)
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("derived context was not cancelled")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 handlers to run, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"third", "second", "first"}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("handler %d: expected %q, got %q (order %v)", i, name, order[i], order)
		}
	}

	m.Stop()
}

func TestManager_SignalCancelsContext(t *testing.T) {
	m := process.NewManager(logger.CreateLogger("error"))

	ran := make(chan struct{})
	m.RegisterShutdownHandler(func() { close(ran) })

	ctx := m.Start(context.Background())
	defer m.Stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("failed to signal self: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after SIGHUP")
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown handler did not run after SIGHUP")
	}
}

func TestManager_StartTwiceReturnsSameContext(t *testing.T) {
	m := process.NewManager(nil)
	defer m.Stop()

	first := m.Start(context.Background())
	second := m.Start(context.Background())

	if first != second {
		t.Error("expected repeated Start to return the existing context")
	}
	if !m.IsRunning() {
		t.Error("expected manager to report running")
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := process.NewManager(logger.CreateLogger("error"))

	m.Start(context.Background())
	m.Stop()
	m.Stop()

	if m.IsRunning() {
		t.Error("expected manager to report stopped")
	}
}

func TestManager_HandlersRunAtMostOnce(t *testing.T) {
	m := process.NewManager(logger.CreateLogger("error"))

	var mu sync.Mutex
	count := 0
	m.RegisterShutdownHandler(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	parent, cancel := context.WithCancel(context.Background())
	ctx := m.Start(parent)
	cancel()
	<-ctx.Done()

	time.Sleep(50 * time.Millisecond)
	m.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected handler to run exactly once, ran %d times", count)
	}
}
