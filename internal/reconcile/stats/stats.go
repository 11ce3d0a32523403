// Package stats accumulates per-layer reconciliation counters for one run.
package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type Layer string

const (
	LayerOrganization Layer = "organization"
	LayerEdition      Layer = "edition"
	LayerRefset       Layer = "refset"
	LayerVersion      Layer = "version"
	LayerUser         Layer = "user"
	LayerProject      Layer = "project"
	LayerTeam         Layer = "team"
)

// Layers lists every layer in report order.
var Layers = []Layer{LayerOrganization, LayerEdition, LayerRefset, LayerVersion, LayerUser, LayerProject, LayerTeam}

type Change string

const (
	Added       Change = "added"
	Reactivated Change = "reactivated"
	Inactivated Change = "inactivated"
	Modified    Change = "modified"
	// ActivatedModified counts rows that were reactivated and had attribute
	// drift in the same run. They are also counted under Reactivated.
	ActivatedModified Change = "activated_modified"
	Migrated          Change = "migrated"
)

// Changes lists every change kind in report order.
var Changes = []Change{Added, Reactivated, Inactivated, Modified, ActivatedModified, Migrated}

// Report is a point-in-time copy of the counters, safe to marshal.
type Report struct {
	RunID            string                   `json:"run_id"`
	StartedAt        time.Time                `json:"started_at"`
	FinishedAt       time.Time                `json:"finished_at,omitzero"`
	Counts           map[Layer]map[Change]int `json:"counts"`
	Skipped          map[string]int           `json:"skipped,omitempty"`
	FinalizeFailures int                      `json:"finalize_failures"`
	Error            string                   `json:"error,omitempty"`
}

// Total sums every counter except ActivatedModified, which overlaps Reactivated.
func (r Report) Total() int {
	total := 0
	for _, changes := range r.Counts {
		for c, n := range changes {
			if c != ActivatedModified {
				total += n
			}
		}
	}
	return total
}

func (r Report) Count(layer Layer, change Change) int {
	return r.Counts[layer][change]
}

// Duration is zero while the run is in progress.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders the report as plain text for notifications and logs.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run %s\n", r.RunID)
	fmt.Fprintf(&b, "Started:  %s\n", r.StartedAt.Format(time.RFC3339))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Finished: %s (%.1f minutes)\n", r.FinishedAt.Format(time.RFC3339), r.Duration().Minutes())
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Failed:   %s\n", r.Error)
	}
	b.WriteString("\n")
	for _, layer := range Layers {
		counts := r.Counts[layer]
		if len(counts) == 0 {
			continue
		}
		parts := make([]string, 0, len(Changes))
		for _, c := range Changes {
			if n := counts[c]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", c, n))
			}
		}
		fmt.Fprintf(&b, "%-13s %s\n", layer, strings.Join(parts, " "))
	}
	if r.Total() == 0 {
		b.WriteString("No changes.\n")
	}
	if len(r.Skipped) > 0 {
		b.WriteString("\nSkipped refsets:\n")
		for _, reason := range sortedKeys(r.Skipped) {
			fmt.Fprintf(&b, "  %s: %d\n", reason, r.Skipped[reason])
		}
	}
	if r.FinalizeFailures > 0 {
		fmt.Fprintf(&b, "\nFinalization failures: %d\n", r.FinalizeFailures)
	}
	return b.String()
}

// Stats is the live, process-scoped counter set. It is reset at the start of
// every run and read concurrently by the admin surface.
type Stats struct {
	mu     sync.RWMutex
	report Report
}

func New() *Stats {
	s := &Stats{}
	s.Reset("", time.Time{})
	return s
}

// Reset clears all counters and stamps a new run.
func (s *Stats) Reset(runID string, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = Report{
		RunID:     runID,
		StartedAt: startedAt,
		Counts:    make(map[Layer]map[Change]int),
		Skipped:   make(map[string]int),
	}
}

func (s *Stats) Inc(layer Layer, change Change) {
	s.Add(layer, change, 1)
}

func (s *Stats) Add(layer Layer, change Change, n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts, ok := s.report.Counts[layer]
	if !ok {
		counts = make(map[Change]int)
		s.report.Counts[layer] = counts
	}
	counts[change] += n
}

// Skip records a policy-driven exclusion.
func (s *Stats) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Skipped[reason]++
}

func (s *Stats) FinalizeFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.FinalizeFailures++
}

// Finish stamps the end of the run and the error that stopped it, if any.
func (s *Stats) Finish(finishedAt time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.FinishedAt = finishedAt
	if err != nil {
		s.report.Error = err.Error()
	}
}

// Snapshot returns a deep copy of the current counters.
func (s *Stats) Snapshot() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.report
	out.Counts = make(map[Layer]map[Change]int, len(s.report.Counts))
	for layer, changes := range s.report.Counts {
		cp := make(map[Change]int, len(changes))
		for c, n := range changes {
			cp[c] = n
		}
		out.Counts[layer] = cp
	}
	out.Skipped = make(map[string]int, len(s.report.Skipped))
	for k, v := range s.report.Skipped {
		out.Skipped[k] = v
	}
	return out
}
