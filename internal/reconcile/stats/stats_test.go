package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_CountsAndReset(t *testing.T) {
	start := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	s := New()
	s.Reset("run-1", start)

	s.Inc(LayerEdition, Added)
	s.Inc(LayerEdition, Reactivated)
	s.Inc(LayerEdition, ActivatedModified)
	s.Add(LayerVersion, Added, 3)
	s.Add(LayerVersion, Modified, 0)
	s.Skip("size_cap")
	s.FinalizeFailed()

	r := s.Snapshot()
	assert.Equal(t, 1, r.Count(LayerEdition, Added))
	assert.Equal(t, 3, r.Count(LayerVersion, Added))
	assert.Equal(t, 0, r.Count(LayerVersion, Modified))
	assert.Equal(t, 5, r.Total())
	assert.Equal(t, 1, r.Skipped["size_cap"])
	assert.Equal(t, 1, r.FinalizeFailures)

	s.Reset("run-2", start.Add(time.Hour))
	r = s.Snapshot()
	assert.Equal(t, "run-2", r.RunID)
	assert.Zero(t, r.Total())
	assert.Empty(t, r.Skipped)
}

func TestStats_SnapshotIsIsolated(t *testing.T) {
	s := New()
	s.Inc(LayerOrganization, Added)
	snap := s.Snapshot()

	s.Inc(LayerOrganization, Added)
	assert.Equal(t, 1, snap.Count(LayerOrganization, Added))
	assert.Equal(t, 2, s.Snapshot().Count(LayerOrganization, Added))
}

func TestReport_Summary(t *testing.T) {
	start := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	s := New()
	s.Reset("run-1", start)
	s.Inc(LayerRefset, Added)
	s.Add(LayerVersion, Inactivated, 2)
	s.Skip("module_mismatch")
	s.Finish(start.Add(90*time.Second), errors.New("terminology unavailable"))

	summary := s.Snapshot().Summary()
	assert.Contains(t, summary, "run-1")
	assert.Contains(t, summary, "1.5 minutes")
	assert.Contains(t, summary, "refset        added=1")
	assert.Contains(t, summary, "version       inactivated=2")
	assert.Contains(t, summary, "module_mismatch: 1")
	assert.Contains(t, summary, "terminology unavailable")
	assert.NotContains(t, summary, "No changes.")
}

func TestReport_SummaryNoChanges(t *testing.T) {
	s := New()
	s.Reset("idle", time.Now())
	s.Finish(time.Now(), nil)
	r := s.Snapshot()
	require.Zero(t, r.Total())
	assert.Contains(t, r.Summary(), "No changes.")
	assert.Empty(t, r.Error)
}
