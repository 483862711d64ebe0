package dispatch

import (
	"context"
	"time"
)

// boundedQueue is a FIFO of at most `capacity` notifications with a timed
// offer and a timed poll. It is safe for many concurrent
// offerers and exactly one poller, the shape every notificationTask relies
// on: many producers append, the task itself is the sole consumer.
//
// Implemented on a buffered channel — Go's channel send/receive already
// gives FIFO ordering and blocking semantics for free; offer/poll only add
// the timeout and the external-cancellation (ctx) escape hatches a
// producer/consumer pair like this one needs.
type boundedQueue struct {
	ch chan Notification
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{ch: make(chan Notification, capacity)}
}

// offer attempts to enqueue n, waiting up to timeout for space. It returns
// (true, nil) on success, (false, nil) on timeout, or (false, err) if ctx
// is cancelled first — the "interrupted" condition, which the caller
// treats as shutdown.
func (q *boundedQueue) offer(ctx context.Context, n Notification, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- n:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return false, nil
	}
}

// poll waits up to timeout for an element. It returns (n, true, nil) on
// success, (nil, false, nil) on timeout, or (nil, false, err) if ctx is
// cancelled first.
func (q *boundedQueue) poll(ctx context.Context, timeout time.Duration) (Notification, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case n := <-q.ch:
		return n, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-timer.C:
		return nil, false, nil
	}
}

// size returns the current depth. Advisory only — concurrent offers/polls
// may change it before the caller observes the result, which is fine for
// QueueStats, the only caller.
func (q *boundedQueue) size() int {
	return len(q.ch)
}
