// Package recorder writes the audit trail and statistics of reconciliation
// changes. Each reconciler owns one.
package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"refsync/internal/reconcile/ports"
	"refsync/internal/reconcile/stats"
	"refsync/pkg/attrs"
	"refsync/pkg/platform/audit"
	"refsync/pkg/requestcontext"
)

type Recorder struct {
	logger    *slog.Logger
	publisher ports.AuditPublisher
	stats     *stats.Stats
}

// New builds a recorder. Any argument may be nil.
func New(logger *slog.Logger, publisher ports.AuditPublisher, st *stats.Stats) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, publisher: publisher, stats: st}
}

// Audit logs event and emits it to the publisher. The "reason" attribute,
// when present, is copied to the audit entry.
func (r *Recorder) Audit(ctx context.Context, event audit.AuditEvent, entityType, subject string, attributes ...any) {
	runID := requestcontext.RunID(ctx)
	args := append(attributes,
		"event", string(event),
		"entity", entityType,
		"subject", subject,
		"log_type", "audit",
	)
	if runID != "" {
		args = append(args, "run_id", runID)
	}
	r.logger.InfoContext(ctx, string(event), args...)
	if r.publisher == nil {
		return
	}
	err := r.publisher.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		RunID:      runID,
		EntityType: entityType,
		Subject:    subject,
		Action:     string(event),
		Reason:     attrs.ExtractString(attributes, "reason"),
		ActorID:    "refsync",
	})
	if err != nil {
		r.logger.WarnContext(ctx, "audit emit failed", "event", string(event), "subject", subject, "error", err)
	}
}

// Count bumps the statistics counter for layer and change.
func (r *Recorder) Count(layer stats.Layer, change stats.Change) {
	if r.stats != nil {
		r.stats.Inc(layer, change)
	}
}

// CountN adds n to the counter for layer and change.
func (r *Recorder) CountN(layer stats.Layer, change stats.Change, n int) {
	if r.stats != nil {
		r.stats.Add(layer, change, n)
	}
}

func (r *Recorder) Skip(ctx context.Context, reason string, attributes ...any) {
	if r.stats != nil {
		r.stats.Skip(reason)
	}
	r.logger.InfoContext(ctx, "skipped", append(attributes, "reason", reason)...)
}

func (r *Recorder) FinalizeFailed() {
	if r.stats != nil {
		r.stats.FinalizeFailed()
	}
}

// FieldChange is one attribute that differs between local and remote state.
type FieldChange struct {
	Field  string
	Before any
	After  any
}

func (c FieldChange) String() string {
	return fmt.Sprintf("%s: %v -> %v", c.Field, c.Before, c.After)
}

// Drift logs every change with explicit before and after values.
func (r *Recorder) Drift(ctx context.Context, entityType, subject string, changes []FieldChange) {
	for _, c := range changes {
		r.logger.InfoContext(ctx, "attribute drift",
			"entity", entityType,
			"subject", subject,
			"field", c.Field,
			"before", c.Before,
			"after", c.After,
		)
	}
}

// Reason joins changes into a single audit reason string.
func Reason(changes []FieldChange) string {
	out := ""
	for i, c := range changes {
		if i > 0 {
			out += "; "
		}
		out += c.String()
	}
	return out
}
