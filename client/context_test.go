package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestConcurrentSessionCheckouts runs checkouts with mixed deadlines
// against a small pool. Every goroutine must either get a session or a
// context error; nothing may hang.
func TestConcurrentSessionCheckouts(t *testing.T) {
	f := &sessionFactory{}
	pool := newTestPool(1, 2, f)
	if err := pool.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	const goroutines = 10
	var wg sync.WaitGroup
	var succeeded, cancelled atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			timeout := 100 * time.Millisecond
			if n%2 == 0 {
				timeout = 300 * time.Millisecond
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			db, err := pool.Get(ctx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					cancelled.Add(1)
				} else {
					t.Errorf("unexpected Get error: %v", err)
				}
				return
			}
			time.Sleep(5 * time.Millisecond)
			pool.Put(db)
			succeeded.Add(1)
		}(i)
	}
	wg.Wait()

	if got := succeeded.Load() + cancelled.Load(); got != goroutines {
		t.Errorf("expected %d checkouts accounted for, got %d succeeded + %d cancelled",
			goroutines, succeeded.Load(), cancelled.Load())
	}
	if got := pool.Stats().ActiveSessions; got != 0 {
		t.Errorf("expected 0 active sessions after all goroutines finished, got %d", got)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestCancelledCheckoutsReturnPromptly fires checkouts whose contexts
// are already cancelled. Each must return immediately, and sessions
// grabbed despite the cancellation must flow back cleanly.
func TestCancelledCheckoutsReturnPromptly(t *testing.T) {
	f := &sessionFactory{}
	pool := newTestPool(1, 2, f)
	if err := pool.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			// With the context already done, Get may still win the
			// race for an idle session. Both outcomes are fine as
			// long as nothing is leaked.
			db, err := pool.Get(ctx)
			if err == nil {
				pool.Put(db)
			} else if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled checkouts did not return promptly")
	}

	if got := pool.Stats().ActiveSessions; got != 0 {
		t.Errorf("expected 0 active sessions, got %d", got)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestParentCancellationUnblocksWaiter cancels a parent context while a
// child checkout is waiting on a full pool.
func TestParentCancellationUnblocksWaiter(t *testing.T) {
	f := &sessionFactory{}
	pool := newTestPool(1, 1, f)
	if err := pool.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer pool.Close()

	held, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer pool.Put(held)

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(parent)
	defer cancelChild()

	result := make(chan error, 1)
	go func() {
		_, err := pool.Get(child)
		result <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancelParent()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter did not unblock after parent cancellation")
	}
}
