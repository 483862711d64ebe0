package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// notificationTask owns one listener's queue and drains it serially.
// Everything else (Registry, Dispatcher) exists to create, find, and
// retire these.
//
// State machine: RUNNING -> RETIRING -> REMOVED. The
// transition out of RUNNING happens only in run(), holding queuingLock,
// once queuedNotifications is observed false — or immediately, from
// notifyListener, on a fatal Invoker error.
type notificationTask struct {
	key      ListenerKey
	listener Listener
	queue    *boundedQueue
	cfg      *Config
	reg      *registry

	// queuingLock guards done and queuedNotifications, and serializes a
	// producer's decision to append against the consumer's decision to
	// retire — the two-flag handshake this task's submit/run pair relies on.
	queuingLock sync.Mutex
	// done is set once the task has committed to retiring. Producers
	// check it under queuingLock and, if set, must create a replacement
	// task instead of appending here.
	done bool
	// queuedNotifications is set by any producer immediately after a
	// successful append, and cleared by the consumer each time it
	// considers retiring but finds this flag set. It is what lets run()
	// distinguish "queue empty forever" from "queue momentarily empty,
	// but a producer is mid-append".
	queuedNotifications bool
}

func newNotificationTask(key ListenerKey, listener Listener, cfg *Config, reg *registry) *notificationTask {
	return &notificationTask{
		key:      key,
		listener: listener,
		queue:    newBoundedQueue(cfg.MaxQueueCapacity),
		cfg:      cfg,
		reg:      reg,
	}
}

// submit is called by a producer holding no other task locks. It returns
// false if the task has already decided to retire — the caller (Dispatcher)
// must then create a replacement task — and true otherwise, whether or not
// every notification was actually enqueued (offer timeouts silently drop
// individual notifications; a timed-out offer is dropped and logged, not
// treated as an error).
//
// If ctx is cancelled mid-offer, submit returns true with the remaining
// notifications unenqueued: the caller treats external cancellation as
// shutdown, not as a reason to create a replacement task.
func (t *notificationTask) submit(ctx context.Context, notifications []Notification) bool {
	t.queuingLock.Lock()
	defer t.queuingLock.Unlock()

	if t.done {
		return false
	}

	for _, n := range notifications {
		if !t.offerWithRetry(ctx, n) {
			// Interrupted; producer stops, task stays valid. Anything appended
			// before the interrupt must still be seen by run().
			t.queuedNotifications = true
			return true
		}
	}

	t.queuedNotifications = true
	return true
}

// offerWithRetry drives the bounded offer-retry loop for a single
// notification. It returns false only when ctx was
// cancelled mid-offer; a plain timeout-after-all-attempts is not an error
// here, it is a drop, logged and otherwise silently absorbed.
func (t *notificationTask) offerWithRetry(ctx context.Context, n Notification) bool {
	for attempt := 1; attempt <= t.cfg.MaxOfferAttempts; attempt++ {
		ok, err := t.queue.offer(ctx, n, t.cfg.OfferTimeout)
		if err != nil {
			t.cfg.Logger.Debug("offer interrupted",
				zap.Stringer("listener", t.key), zap.String("dispatcher", t.cfg.Name))
			return false
		}
		if ok {
			return true
		}
		t.cfg.Logger.Warn("offer timed out, retrying",
			zap.Stringer("listener", t.key),
			zap.String("dispatcher", t.cfg.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", t.cfg.MaxOfferAttempts))
	}

	t.cfg.Logger.Error("dropping notification: listener appears deadlocked",
		zap.Stringer("listener", t.key),
		zap.String("dispatcher", t.cfg.Name),
		zap.Int("max_attempts", t.cfg.MaxOfferAttempts))
	return true
}

// run is the drain loop, called exactly once, by the Executor. It returns
// once the task has retired — normally, on external cancellation, or after
// a fatal Invoker error — and unconditionally unlinks itself from the
// Registry before returning.
func (t *notificationTask) run(ctx context.Context) {
	defer t.reg.remove(t.key)

	for {
		n, ok, err := t.queue.poll(ctx, t.cfg.PollInterval)
		if err != nil {
			t.cfg.Logger.Debug("poll interrupted, shutting down task",
				zap.Stringer("listener", t.key), zap.String("dispatcher", t.cfg.Name))
			return
		}
		if ok {
			if !t.notifyListener(ctx, n) {
				return // fatal failure: notifyListener already set done
			}
			continue
		}

		if t.tryRetire() {
			return
		}
		// Either a producer is mid-append (lock busy) or there was work
		// to keep draining (queuedNotifications was set); re-poll.
	}
}

// tryRetire makes a non-blocking attempt to acquire queuingLock and decide
// whether the queue is truly quiescent.
// Returns true iff the task just transitioned to done and should exit.
func (t *notificationTask) tryRetire() bool {
	if !t.queuingLock.TryLock() {
		return false // a producer holds the lock; don't block waiting for it
	}
	defer t.queuingLock.Unlock()

	if !t.queuedNotifications {
		t.done = true
		return true
	}
	// A producer appended between our poll and this lock acquisition.
	// Clear the flag and keep draining instead of stranding its work.
	t.queuedNotifications = false
	return false
}

// notifyListener invokes the caller-supplied Invoker. A recoverable error
// is logged and draining continues (true). A fatal error retires the task
// before returning false, so the caller stops immediately instead of
// delivering further notifications for a listener in an unknown state.
func (t *notificationTask) notifyListener(ctx context.Context, n Notification) bool {
	t.cfg.Logger.Debug("invoking listener",
		zap.Stringer("listener", t.key), zap.String("dispatcher", t.cfg.Name))

	err := t.cfg.Invoker.Invoke(ctx, t.listener, n)
	if err == nil {
		return true
	}

	if isFatal(err) {
		t.queuingLock.Lock()
		t.done = true
		t.queuingLock.Unlock()
		t.cfg.Logger.Error("fatal invoker failure, retiring task",
			zap.Stringer("listener", t.key), zap.String("dispatcher", t.cfg.Name), zap.Error(err))
		return false
	}

	t.cfg.Logger.Error("invoker failure, continuing",
		zap.Stringer("listener", t.key), zap.String("dispatcher", t.cfg.Name), zap.Error(err))
	return true
}

func (t *notificationTask) depth() int {
	return t.queue.size()
}
