// Package requestcontext provides context accessors for run-scoped values.
//
// A reconciliation run stamps its context with a run id and a clock so that
// every audit entry and log line of the run can be correlated, and tests can
// pin "now" without a global clock.
//
//	ctx = requestcontext.WithRunID(ctx, runID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	runIDKey       struct{}
	requestTimeKey struct{}
)

// WithRunID tags ctx with the id of the reconciliation run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}

// WithTime pins the clock returned by Now.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned time from ctx, falling back to time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok && !t.IsZero() {
		return t
	}
	return time.Now()
}
