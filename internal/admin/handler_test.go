package admin

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refsync/internal/platform/metrics"
	"refsync/internal/reconcile/stats"
	"refsync/pkg/testutil"
)

type fakeRunner struct {
	running atomic.Bool
	runs    atomic.Int32
	ran     chan struct{}
	last    *stats.Report
}

func (f *fakeRunner) Run(context.Context) (stats.Report, error) {
	f.runs.Add(1)
	if f.ran != nil {
		close(f.ran)
	}
	return stats.Report{RunID: "run-1"}, nil
}

func (f *fakeRunner) Running() bool { return f.running.Load() }

func (f *fakeRunner) LastReport() (stats.Report, bool) {
	if f.last == nil {
		return stats.Report{}, false
	}
	return *f.last, true
}

func TestHealth(t *testing.T) {
	runner := &fakeRunner{}
	runner.running.Store(true)
	router := New(context.Background(), runner).Router()

	rr := testutil.DoRequest(router, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[healthResponse](t, rr)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Running)
}

func TestTriggerSync(t *testing.T) {
	testutil.Given(t, "no run in progress", func(t *testing.T) {
		runner := &fakeRunner{ran: make(chan struct{})}
		router := New(context.Background(), runner).Router()

		testutil.When(t, "a sync is requested", func(t *testing.T) {
			rr := testutil.DoRequest(router, http.MethodPost, "/sync")

			testutil.Then(t, "the run starts in the background", func(t *testing.T) {
				require.Equal(t, http.StatusAccepted, rr.Code)
				select {
				case <-runner.ran:
				case <-time.After(5 * time.Second):
					t.Fatal("run was not started")
				}
				assert.Equal(t, int32(1), runner.runs.Load())
			})
		})
	})

	testutil.Given(t, "a run in progress", func(t *testing.T) {
		runner := &fakeRunner{}
		runner.running.Store(true)
		router := New(context.Background(), runner).Router()

		testutil.When(t, "a sync is requested", func(t *testing.T) {
			rr := testutil.DoRequest(router, http.MethodPost, "/sync")

			testutil.Then(t, "the request conflicts", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
				assert.Zero(t, runner.runs.Load())
			})
		})
	})
}

func TestLastReport(t *testing.T) {
	runner := &fakeRunner{}
	router := New(context.Background(), runner).Router()

	rr := testutil.DoRequest(router, http.MethodGet, "/sync/last")
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	runner.last = &stats.Report{
		RunID:  "run-9",
		Counts: map[stats.Layer]map[stats.Change]int{stats.LayerEdition: {stats.Added: 2}},
	}
	rr = testutil.DoRequest(router, http.MethodGet, "/sync/last")
	require.Equal(t, http.StatusOK, rr.Code)

	got := testutil.UnmarshalResponse[stats.Report](t, rr)
	assert.Equal(t, "run-9", got.RunID)
	assert.Equal(t, 2, got.Count(stats.LayerEdition, stats.Added))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	m.ObserveRemoteRequest("terminology", "ok")
	router := New(context.Background(), &fakeRunner{}, WithGatherer(reg)).Router()

	rr := testutil.DoRequest(router, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `refsync_remote_requests_total{outcome="ok",service="terminology"} 1`)
}
