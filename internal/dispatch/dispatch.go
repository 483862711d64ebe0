// Package dispatch implements a per-listener serial notification dispatcher:
// notifications addressed to the same listener are delivered one at a time
// and in submission order, while independent listeners are drained
// concurrently by a shared worker pool.
//
// Listener and Notification are opaque to the package — callers may pass
// any value. The dispatcher treats a listener by reference identity only
// (see ListenerKey); it never calls back into a listener's own equality.
package dispatch

import "time"

// Listener is an opaque value identifying the recipient of notifications.
// Equality is handled by ListenerKey, never by any method the listener
// itself might define.
type Listener = any

// Notification is an opaque value delivered to a listener. A nil
// Notification is silently dropped by Submit/SubmitAll.
type Notification = any

const (
	// DefaultOfferTimeout is how long a producer waits, per attempt, for
	// space in a listener's queue before retrying.
	DefaultOfferTimeout = time.Minute

	// DefaultMaxOfferAttempts bounds the number of offer retries before a
	// notification is dropped and logged as an EnqueueTimeout.
	DefaultMaxOfferAttempts = 10

	// DefaultPollInterval is how long the draining worker waits for a new
	// element before checking whether it should retire.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultName labels log lines when the caller doesn't supply one.
	DefaultName = "dispatcher"
)
