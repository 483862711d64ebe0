// Package ratelimiter provides ingress admission control for the HTTP
// surface: a single process-wide token bucket that gates how fast
// submissions are accepted, independent of how many distinct listeners
// those submissions target. This is deliberately NOT per-listener — the
// core dispatcher makes no fairness guarantees across listeners, and a
// per-listener limiter here would silently manufacture one.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// IngressLimiter wraps a single rate.Limiter protecting the process as a
// whole from an overwhelming submission rate, upstream of any per-listener
// queue.
type IngressLimiter struct {
	limiter *rate.Limiter
}

// New creates an IngressLimiter allowing ratePerSec submissions per
// second, with at most burst submissions permitted instantaneously.
func New(ratePerSec, burst int) *IngressLimiter {
	return &IngressLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow reports whether a submission may proceed right now, without
// blocking — used at the HTTP boundary, where blocking would just hold a
// request goroutine open instead of shedding load.
func (l *IngressLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled. Provided for
// callers (e.g. a batch-ingestion job) that would rather slow down than
// reject.
func (l *IngressLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
