// Package orchestrator sequences the reconciliation stages for one run and
// reports the outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"refsync/internal/reconcile/fetcher"
	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/orgedition"
	"refsync/internal/reconcile/ports"
	"refsync/internal/reconcile/recorder"
	"refsync/internal/reconcile/stats"
	dErrors "refsync/pkg/domain-errors"
	"refsync/pkg/platform/audit"
	"refsync/pkg/requestcontext"
)

// ErrRunInProgress is returned when a run is requested while another is
// still executing.
var ErrRunInProgress = dErrors.New(dErrors.CodeConflict, "reconciliation already running")

const entitySync = "sync"

// RemoteSource loads the filtered remote code-system set.
type RemoteSource interface {
	CodeSystems(ctx context.Context, cfg models.Config) (fetcher.RemoteState, error)
}

type OrgEditionStage interface {
	Reconcile(ctx context.Context, cfg models.Config, state fetcher.RemoteState) (*orgedition.Result, error)
}

// EditionStage is a stage that works over the editions produced by the
// organization/edition stage.
type EditionStage interface {
	Reconcile(ctx context.Context, cfg models.Config, editions []*models.Edition) error
}

// RunObserver receives every finished run.
type RunObserver interface {
	ObserveRun(report stats.Report, d time.Duration)
}

type Orchestrator struct {
	remote   RemoteSource
	orgs     OrgEditionStage
	identity EditionStage
	refsets  EditionStage
	stats    *stats.Stats

	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	notifier       ports.Notifier
	observer       RunObserver
	tracer         trace.Tracer
	clock          func() time.Time

	mu         sync.Mutex
	cfg        models.Config
	production bool
	last       *stats.Report

	running atomic.Bool
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(o *Orchestrator) {
		o.auditPublisher = publisher
	}
}

// WithNotifier sets where the end-of-run summary goes. Without one the
// summary is only logged.
func WithNotifier(n ports.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

func WithRunObserver(obs RunObserver) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// New builds an orchestrator for cfg. A production cfg latches production
// mode for the lifetime of the orchestrator.
func New(remote RemoteSource, orgs OrgEditionStage, identity, refsets EditionStage, st *stats.Stats, cfg models.Config, opts ...Option) (*Orchestrator, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote source is required")
	}
	if orgs == nil || identity == nil || refsets == nil {
		return nil, fmt.Errorf("all reconciliation stages are required")
	}
	if st == nil {
		return nil, fmt.Errorf("stats is required")
	}
	o := &Orchestrator{
		remote:     remote,
		orgs:       orgs,
		identity:   identity,
		refsets:    refsets,
		stats:      st,
		cfg:        cfg,
		production: cfg.Production,
		logger:     slog.Default(),
		tracer:     otel.Tracer("refsync/orchestrator"),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the configuration runs use by default.
func (o *Orchestrator) Config() models.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Running reports whether a run is executing.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastReport returns the report of the last finished run.
func (o *Orchestrator) LastReport() (stats.Report, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return stats.Report{}, false
	}
	return *o.last, true
}

// Run executes one reconciliation with the default configuration.
func (o *Orchestrator) Run(ctx context.Context) (stats.Report, error) {
	return o.RunWith(ctx, o.Config())
}

// RunWith executes one reconciliation with cfg. Once production mode has been
// established a non-production cfg is promoted back to production.
func (o *Orchestrator) RunWith(ctx context.Context, cfg models.Config) (stats.Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return stats.Report{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	cfg = o.latch(ctx, cfg)

	runID := uuid.NewString()
	started := o.clock()
	ctx = requestcontext.WithRunID(ctx, runID)
	ctx = requestcontext.WithTime(ctx, started)
	o.stats.Reset(runID, started)
	rec := recorder.New(o.logger, o.auditPublisher, nil)

	ctx, span := o.tracer.Start(ctx, "refsync.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Bool("production", cfg.Production),
		attribute.String("testing_edition", cfg.TestingEdition),
	))
	defer span.End()

	rec.Audit(ctx, audit.EventSyncStarted, entitySync, runID,
		"production", cfg.Production,
		"per_version_sync", cfg.PerVersionSync,
		"ignore_core_refsets", cfg.IgnoreCoreRefsets,
		"testing_edition", cfg.TestingEdition,
	)

	err := o.runStages(ctx, cfg)

	finished := o.clock()
	o.stats.Finish(finished, err)
	report := o.stats.Snapshot()
	elapsed := finished.Sub(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rec.Audit(ctx, audit.EventSyncFailed, entitySync, runID,
			"reason", err.Error(),
			"elapsed_minutes", int(elapsed.Minutes()),
		)
	} else {
		rec.Audit(ctx, audit.EventSyncFinished, entitySync, runID,
			"reason", fmt.Sprintf("completed in %d minutes", int(elapsed.Minutes())),
			"elapsed_minutes", int(elapsed.Minutes()),
			"changes", report.Total(),
		)
	}

	o.mu.Lock()
	o.last = &report
	o.mu.Unlock()

	if o.observer != nil {
		o.observer.ObserveRun(report, elapsed)
	}
	o.notify(ctx, cfg, report)
	return report, err
}

func (o *Orchestrator) latch(ctx context.Context, cfg models.Config) models.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cfg.Production {
		o.production = true
		return cfg
	}
	if o.production {
		o.logger.WarnContext(ctx, "ignoring non-production run request after production mode was established")
		cfg.Production = true
	}
	return cfg
}

// =============================================================================
// Stages
// =============================================================================

func (o *Orchestrator) runStages(ctx context.Context, cfg models.Config) error {
	var state fetcher.RemoteState
	err := o.stage(ctx, "fetch", func(ctx context.Context) error {
		var err error
		state, err = o.remote.CodeSystems(ctx, cfg)
		return err
	})
	if err != nil {
		return err
	}
	o.logger.InfoContext(ctx, "remote code systems loaded",
		"code_systems", len(state.CodeSystems),
		"organizations", len(state.EditionsByOrganization),
	)

	var result *orgedition.Result
	err = o.stage(ctx, "orgedition", func(ctx context.Context) error {
		var err error
		result, err = o.orgs.Reconcile(ctx, cfg, state)
		return err
	})
	if err != nil {
		return err
	}
	editions := result.Editions()

	if err := o.stage(ctx, "identity", func(ctx context.Context) error {
		return o.identity.Reconcile(ctx, cfg, editions)
	}); err != nil {
		return err
	}
	return o.stage(ctx, "refset", func(ctx context.Context) error {
		return o.refsets.Reconcile(ctx, cfg, editions)
	})
}

func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "refsync."+name)
	defer span.End()

	start := o.clock()
	o.logger.InfoContext(ctx, "stage started", "stage", name)
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.ErrorContext(ctx, "stage failed", "stage", name, "error", err)
		return fmt.Errorf("%s stage: %w", name, err)
	}
	o.logger.InfoContext(ctx, "stage finished", "stage", name, "duration", o.clock().Sub(start))
	return nil
}

// =============================================================================
// Notification
// =============================================================================

func (o *Orchestrator) notify(ctx context.Context, cfg models.Config, report stats.Report) {
	subject := "Refset sync finished"
	if report.Error != "" {
		subject = "Refset sync failed"
	}
	body := report.Summary()
	if !cfg.Production || o.notifier == nil {
		o.logger.InfoContext(ctx, subject, "summary", body)
		return
	}
	if err := o.notifier.Notify(ctx, subject, body); err != nil {
		o.logger.WarnContext(ctx, "summary notification failed", "error", err)
	}
}
