// Package workerpool provides a bounded goroutine pool implementing
// dispatch.Executor: a fixed number of long-lived workers pull queued
// tasks from an internal channel, so a listener's drain loop runs on a
// goroutine borrowed from a shared, capacity-limited set rather than one
// spawned per listener.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrSaturated is returned by Submit when the internal task channel is
// full — every worker is busy and the backlog is already at its bound.
var ErrSaturated = errors.New("workerpool: saturated")

// ErrStopped is returned by Submit after Shutdown has been called.
var ErrStopped = errors.New("workerpool: stopped")

// Pool is a fixed-size collection of worker goroutines draining a shared,
// bounded task channel. It satisfies github.com/notifyhub/dispatcher/internal/dispatch.Executor.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *zap.Logger

	mu      sync.RWMutex
	stopped bool
	errs    error
}

// New starts a pool of size worker goroutines backed by a task channel of
// depth queueDepth. logger may be nil, in which case logging is silent.
func New(size, queueDepth int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		tasks:  make(chan func(), queueDepth),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker_id", id))
	log.Debug("worker started")
	for task := range p.tasks {
		p.runTask(log, task)
	}
	log.Debug("worker stopped")
}

func (p *Pool) runTask(log *zap.Logger, task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered task panic", zap.Any("panic", r))
			p.mu.Lock()
			p.errs = multierr.Append(p.errs, fmt.Errorf("workerpool: task panicked: %v", r))
			p.mu.Unlock()
		}
	}()
	task()
}

// Submit hands task to the pool without blocking. It returns ErrSaturated
// if the task channel is full and ErrStopped once Shutdown has started.
// A dispatch.Dispatcher treats either as ErrRejected.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrSaturated
	}
}

// Shutdown stops accepting new tasks and waits for in-flight and queued
// tasks to finish, or for ctx to expire, whichever comes first. Panics
// recovered from individual tasks, and a context deadline that cut the
// wait short, are aggregated with go.uber.org/multierr. Calling Shutdown
// more than once is a no-op after the first call.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.mu.Lock()
		p.errs = multierr.Append(p.errs, fmt.Errorf("workerpool: shutdown deadline exceeded: %w", ctx.Err()))
		p.mu.Unlock()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}

// Outstanding reports the number of tasks currently queued, not counting
// any in-flight inside a worker. Useful for metrics, not for control flow.
func (p *Pool) Outstanding() int {
	return len(p.tasks)
}
