package recorder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"refsync/internal/reconcile/ports/mocks"
	"refsync/internal/reconcile/stats"
	"refsync/pkg/platform/audit"
	"refsync/pkg/requestcontext"
)

func TestAudit_EmitsWithRunAndReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockAuditPublisher(ctrl)
	rec := New(slog.New(slog.NewTextHandler(io.Discard, nil)), pub, nil)
	ctx := requestcontext.WithRunID(context.Background(), "run-7")

	var got audit.Event
	pub.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		got = e
		return nil
	})

	rec.Audit(ctx, audit.EventEditionUpdated, "edition", "SNOMEDCT-NZ", "reason", "name: a -> b")

	assert.Equal(t, "run-7", got.RunID)
	assert.Equal(t, "edition_updated", got.Action)
	assert.Equal(t, "SNOMEDCT-NZ", got.Subject)
	assert.Equal(t, "name: a -> b", got.Reason)
}

func TestCountAndSkip(t *testing.T) {
	st := stats.New()
	rec := New(nil, nil, st)

	rec.Count(stats.LayerEdition, stats.Added)
	rec.Count(stats.LayerEdition, stats.Added)
	rec.Skip(context.Background(), "size cap")
	rec.FinalizeFailed()

	report := st.Snapshot()
	require.Equal(t, 2, report.Count(stats.LayerEdition, stats.Added))
	assert.Equal(t, 1, report.Skipped["size cap"])
	assert.Equal(t, 1, report.FinalizeFailures)
}

func TestReason(t *testing.T) {
	changes := []FieldChange{
		{Field: "name", Before: "Old", After: "New"},
		{Field: "branch_path", Before: "MAIN/A", After: "MAIN/B"},
	}
	assert.Equal(t, "name: Old -> New; branch_path: MAIN/A -> MAIN/B", Reason(changes))
}
