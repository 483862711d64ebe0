package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/notifyhub/dispatcher/internal/workerpool"
)

func TestPool_RunsSubmittedTask(t *testing.T) {
	p := workerpool.New(2, 4, nil)
	defer p.Shutdown(context.Background())

	done := make(chan struct{})
	if err := p.Submit(func() { close(done) }); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

// TestPool_ErrSaturatedWhenFull verifies Submit returns ErrSaturated once
// every worker is busy and the channel backlog is also full.
func TestPool_ErrSaturatedWhenFull(t *testing.T) {
	p := workerpool.New(1, 0, nil)
	defer p.Shutdown(context.Background())

	block := make(chan struct{})
	if err := p.Submit(func() { <-block }); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// The single worker is now blocked inside the first task, and the
	// channel has zero buffer, so a second submit must be rejected.
	var err error
	for i := 0; i < 50 && err == nil; i++ {
		err = p.Submit(func() {})
		if err == nil {
			time.Sleep(time.Millisecond)
		}
	}
	if !errors.Is(err, workerpool.ErrSaturated) {
		t.Fatalf("expected ErrSaturated, got %v", err)
	}

	close(block)
}

func TestPool_ConcurrentSubmitAllTasksRun(t *testing.T) {
	p := workerpool.New(4, 16, nil)
	defer p.Shutdown(context.Background())

	const total = 200
	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := p.Submit(func() {
					atomic.AddInt64(&ran, 1)
				})
				if err == nil {
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&ran) != total && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt64(&ran); got != total {
		t.Fatalf("expected %d tasks to run, got %d", total, got)
	}
}

// TestPool_ShutdownWaitsForInFlight verifies Shutdown blocks until a
// slow, already-running task finishes, given enough time in ctx.
func TestPool_ShutdownWaitsForInFlight(t *testing.T) {
	p := workerpool.New(1, 1, nil)

	var finished int32
	_ = p.Submit(func() {
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Fatal("expected in-flight task to finish before Shutdown returned")
	}
}

// TestPool_ShutdownDeadlineExceeded verifies a too-short ctx surfaces the
// deadline error rather than blocking forever.
func TestPool_ShutdownDeadlineExceeded(t *testing.T) {
	p := workerpool.New(1, 1, nil)

	release := make(chan struct{})
	_ = p.Submit(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped context.DeadlineExceeded, got %v", err)
	}
}

// TestPool_SubmitAfterShutdownIsRejected verifies the pool never silently
// drops work submitted post-shutdown — it errors instead.
func TestPool_SubmitAfterShutdownIsRejected(t *testing.T) {
	p := workerpool.New(1, 1, nil)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := p.Submit(func() {}); !errors.Is(err, workerpool.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

// TestPool_RecoversPanicAndAggregatesError verifies a panicking task does
// not crash the pool, and its recovered error surfaces from Shutdown.
func TestPool_RecoversPanicAndAggregatesError(t *testing.T) {
	p := workerpool.New(1, 1, nil)

	done := make(chan struct{})
	_ = p.Submit(func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking task never ran")
	}

	if err := p.Shutdown(context.Background()); err == nil {
		t.Fatal("expected Shutdown to surface the recovered panic")
	}
}
