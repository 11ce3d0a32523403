package testutil

import (
	"context"
	"time"

	"refsync/pkg/requestcontext"
)

// RunContext returns a context carrying a run id and a fixed clock, the way
// the orchestrator prepares one for every stage.
func RunContext(runID string, now time.Time) context.Context {
	ctx := requestcontext.WithRunID(context.Background(), runID)
	return requestcontext.WithTime(ctx, now)
}
