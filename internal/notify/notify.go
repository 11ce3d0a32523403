// Package notify delivers the end-of-run summary.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"refsync/internal/reconcile/ports"
)

// Log writes the summary to the logger only.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, subject, body string) error {
	l.logger.InfoContext(ctx, subject, "summary", body)
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []ports.Notifier

func (f Fanout) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
