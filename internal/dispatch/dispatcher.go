package dispatch

import (
	"context"

	"go.uber.org/zap"
)

// Dispatcher is the public entry point: it routes incoming
// notifications to an existing listener task or creates one and hands it
// to the worker pool.
type Dispatcher struct {
	cfg Config
	reg *registry
}

// New validates cfg and returns a ready-to-use Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.MaxQueueCapacity <= 0 {
		return nil, ErrBadCapacity
	}
	if cfg.Executor == nil {
		return nil, ErrMissingExecutor
	}
	if cfg.Invoker == nil {
		return nil, ErrMissingInvoker
	}

	resolved := cfg.withDefaults()
	return &Dispatcher{cfg: resolved, reg: &registry{}}, nil
}

// Submit enqueues a single notification for listener. A nil listener or a
// nil notification is silently ignored. ctx bounds only this call's own
// offer retries; it has no bearing on how long the listener's drain loop
// subsequently runs — that is governed by Config.Context, fixed for the
// Dispatcher's whole lifetime.
func (d *Dispatcher) Submit(ctx context.Context, listener Listener, notification Notification) error {
	if notification == nil {
		return nil
	}
	return d.submit(ctx, listener, []Notification{notification})
}

// SubmitAll enqueues a batch of notifications for listener, preserving
// submission order for each individual producer. See Submit for what ctx
// does and does not control.
func (d *Dispatcher) SubmitAll(ctx context.Context, listener Listener, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return d.submit(ctx, listener, notifications)
}

func (d *Dispatcher) submit(ctx context.Context, listener Listener, notifications []Notification) error {
	if listener == nil {
		return nil
	}

	filtered := notifications[:0:0]
	for _, n := range notifications {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	d.cfg.Logger.Debug("submit", zap.String("dispatcher", d.cfg.Name), zap.Int("count", len(filtered)))

	key := newListenerKey(listener)
	for {
		if existing, ok := d.reg.get(key); ok {
			if existing.submit(ctx, filtered) {
				return nil
			}
			// existing.submit returned false: that task is retiring and
			// refused the work. Fall through to create a replacement.
		}

		candidate := newNotificationTask(key, listener, &d.cfg, d.reg)
		// Seed the candidate before publishing it, so the notifications
		// are already queued the instant another producer can observe it.
		candidate.submit(ctx, filtered)

		actual, loaded := d.reg.insertIfAbsent(key, candidate)
		if loaded {
			// Another task won the race; retry against it.
			_ = actual
			continue
		}

		if err := d.cfg.Executor.Submit(func() { candidate.run(d.cfg.Context) }); err != nil {
			// The pool refused a fresh task: undo the publication so the
			// dead entry doesn't permanently occupy this listener's slot,
			// and surface the refusal to the caller.
			d.reg.remove(key)
			d.cfg.Logger.Error("worker pool rejected new listener task",
				zap.String("dispatcher", d.cfg.Name), zap.Stringer("listener", key), zap.Error(err))
			return ErrRejected
		}
		return nil
	}
}

// MaxQueueCapacity returns the configured per-listener queue bound.
func (d *Dispatcher) MaxQueueCapacity() int { return d.cfg.MaxQueueCapacity }

// Executor returns the worker pool this dispatcher hands tasks to.
func (d *Dispatcher) Executor() Executor { return d.cfg.Executor }

// Name returns the dispatcher's log label.
func (d *Dispatcher) Name() string { return d.cfg.Name }
