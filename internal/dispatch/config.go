package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Executor is the worker pool substrate: the dispatcher
// never spawns goroutines itself, it hands a fully-formed drain loop to
// whatever pool the caller supplies. Submit must be non-blocking: if the
// pool has no room for another concurrently-draining listener, it returns
// a non-nil error, which Submit/SubmitAll surface to the caller as
// ErrRejected. internal/workerpool provides a concrete implementation.
type Executor interface {
	Submit(task func()) error
}

// Invoker performs the actual delivery of a notification to a listener.
// Recoverable errors are logged and draining continues; an error that is
// fatal per isFatal retires the owning task.
type Invoker interface {
	Invoke(ctx context.Context, listener Listener, n Notification) error
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, listener Listener, n Notification) error

func (f InvokerFunc) Invoke(ctx context.Context, listener Listener, n Notification) error {
	return f(ctx, listener, n)
}

// Config holds the constructor options recognized by New.
type Config struct {
	// Executor is the worker pool a fresh listener task is handed to.
	// Required.
	Executor Executor

	// Invoker delivers each notification to its listener. Required.
	Invoker Invoker

	// MaxQueueCapacity bounds each per-listener queue. Must be positive.
	MaxQueueCapacity int

	// Name labels this dispatcher's log lines. Defaults to DefaultName.
	Name string

	// OfferTimeout is how long a producer waits per offer attempt.
	// Defaults to DefaultOfferTimeout.
	OfferTimeout time.Duration

	// MaxOfferAttempts bounds offer retries before a notification is
	// dropped. Defaults to DefaultMaxOfferAttempts.
	MaxOfferAttempts int

	// PollInterval is how long a draining task waits for a new element
	// before checking whether it should retire. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// Context governs every listener task's drain loop for this
	// dispatcher's entire lifetime. It is deliberately independent of
	// whatever context an individual Submit/SubmitAll call is given: a
	// request-scoped context passed to Submit controls only how long that
	// call will retry offering into the queue, never how long the
	// resulting drain loop keeps running. Cancel Context to shut every
	// task down. Defaults to context.Background().
	Context context.Context

	// Logger receives every log line this package emits. Defaults to
	// zap.NewNop() (silent).
	Logger *zap.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Name == "" {
		out.Name = DefaultName
	}
	if out.OfferTimeout <= 0 {
		out.OfferTimeout = DefaultOfferTimeout
	}
	if out.MaxOfferAttempts <= 0 {
		out.MaxOfferAttempts = DefaultMaxOfferAttempts
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.Context == nil {
		out.Context = context.Background()
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}
