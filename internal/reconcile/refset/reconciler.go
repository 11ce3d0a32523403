// Package refset reconciles refsets and their published versions for every
// edition: branch discovery, inclusion policy, change detection, version diff
// and finalization of project, narrative and latest-version metadata.
package refset

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"refsync/internal/reconcile/catalog"
	"refsync/internal/reconcile/fetcher"
	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/partition"
	"refsync/internal/reconcile/ports"
	"refsync/internal/reconcile/recorder"
	"refsync/internal/reconcile/stats"
	"refsync/internal/remote/terminology"
	id "refsync/pkg/domain"
	dErrors "refsync/pkg/domain-errors"
	"refsync/pkg/platform/audit"
	"refsync/pkg/requestcontext"
)

const entityRefset = "refset"

// Source is the remote view the reconciler reads. *fetcher.Fetcher
// implements it.
type Source interface {
	DatedBranches(ctx context.Context, edition *models.Edition) ([]fetcher.DatedBranch, error)
	RefsetMembership(ctx context.Context, edition *models.Edition, branch, ecl string) (*terminology.RefsetMembership, error)
	ModuleID(ctx context.Context, edition *models.Edition, branch, conceptID string) (string, error)
	LatestMemberChange(ctx context.Context, edition *models.Edition, branch, refsetID string) (*time.Time, error)
	RefsetName(ctx context.Context, edition *models.Edition, branch string, summary terminology.ConceptSummary) (string, error)
}

type Reconciler struct {
	store          ports.Store
	source         Source
	stats          *stats.Stats
	catalog        *catalog.Catalog
	ecl            string
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	rec            *recorder.Recorder

	// defaultProjects caches the catch-all project per organization for one run.
	defaultProjects map[id.OrganizationID]*models.Project
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(r *Reconciler) {
		r.auditPublisher = publisher
	}
}

func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Reconciler) {
		r.catalog = c
	}
}

// WithECL overrides the expression selecting reference sets.
func WithECL(ecl string) Option {
	return func(r *Reconciler) {
		if ecl != "" {
			r.ecl = ecl
		}
	}
}

func New(store ports.Store, source Source, st *stats.Stats, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	r := &Reconciler{
		store:   store,
		source:  source,
		stats:   st,
		catalog: catalog.Empty(),
		ecl:     DefaultECL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = catalog.Empty()
	}
	r.rec = recorder.New(r.logger, r.auditPublisher, r.stats)
	return r, nil
}

// Reconcile processes every edition in turn. A failure aborts the stage.
// Not safe for concurrent use.
func (r *Reconciler) Reconcile(ctx context.Context, cfg models.Config, editions []*models.Edition) error {
	r.defaultProjects = make(map[id.OrganizationID]*models.Project)
	for _, e := range editions {
		if err := r.reconcileEdition(ctx, cfg, e); err != nil {
			return fmt.Errorf("edition %s: %w", e.ShortName, err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileEdition(ctx context.Context, cfg models.Config, e *models.Edition) error {
	branches, err := r.source.DatedBranches(ctx, e)
	if err != nil {
		return err
	}
	if len(branches) == 0 {
		r.logger.InfoContext(ctx, "edition has no dated branches", "edition", e.ShortName, "branch", e.BranchPath)
		return nil
	}

	remote, order, err := r.discover(ctx, cfg, e, branches)
	if err != nil {
		return err
	}

	local, err := r.store.ListRefsetsByEdition(ctx, e.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list refsets")
	}
	active, inactive := groupVersions(local)

	split := partition.Keys(order, keys(active), keys(inactive))
	if err := r.addRefsets(ctx, e, split.Added, remote); err != nil {
		return err
	}
	for _, refsetID := range split.Reactivated {
		r.rec.Count(stats.LayerRefset, stats.Reactivated)
		if err := r.diffVersions(ctx, e, refsetID, remote[refsetID], nil, inactive[refsetID]); err != nil {
			return err
		}
	}
	for _, refsetID := range split.Existing {
		if err := r.diffVersions(ctx, e, refsetID, remote[refsetID], active[refsetID], inactive[refsetID]); err != nil {
			return err
		}
	}
	if !cfg.Testing() {
		for _, refsetID := range split.Inactivated {
			r.rec.Count(stats.LayerRefset, stats.Inactivated)
			for _, v := range active[refsetID] {
				if err := r.inactivate(ctx, v); err != nil {
					return err
				}
			}
		}
	}

	r.finalize(ctx, e)
	return nil
}

// addRefsets bulk-inserts every version of refsets never seen locally.
func (r *Reconciler) addRefsets(ctx context.Context, e *models.Edition, refsetIDs []string, remote map[string][]Version) error {
	if len(refsetIDs) == 0 {
		return nil
	}
	now := requestcontext.Now(ctx)
	var rows []*models.Refset
	for _, refsetID := range refsetIDs {
		for _, v := range remote[refsetID] {
			rows = append(rows, newRefsetRow(e, v, now))
		}
	}
	err := r.store.RunInTx(ctx, func(ctx context.Context) error {
		for _, row := range rows {
			if err := r.store.CreateRefset(ctx, row); err != nil {
				return fmt.Errorf("insert %s: %w", row.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert new refsets")
	}
	r.rec.CountN(stats.LayerRefset, stats.Added, len(refsetIDs))
	r.rec.CountN(stats.LayerVersion, stats.Added, len(rows))
	for _, row := range rows {
		r.rec.Audit(ctx, audit.EventRefsetCreated, entityRefset, row.Key(), "edition", e.ShortName, "name", row.Name)
	}
	return nil
}

// diffVersions matches discovered versions of one refset against its local
// rows using tolerant date equality.
func (r *Reconciler) diffVersions(ctx context.Context, e *models.Edition, refsetID string, remote []Version, active, inactive []*models.Refset) error {
	m, err := partition.Match(remote, active, inactive, func(l *models.Refset, v Version) int {
		return partition.VersionDateRank(l.VersionDate, v.Date)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, fmt.Sprintf("refset %s", refsetID))
	}
	now := requestcontext.Now(ctx)

	for _, v := range m.Added {
		row := newRefsetRow(e, v, now)
		if err := r.store.CreateRefset(ctx, row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to insert %s", row.Key()))
		}
		r.rec.Count(stats.LayerVersion, stats.Added)
		r.rec.Audit(ctx, audit.EventRefsetCreated, entityRefset, row.Key(), "edition", e.ShortName)
	}
	for _, p := range m.Reactivated {
		row := p.Local
		row.Active = true
		row.UpdatedAt = now
		changes := r.compare(ctx, row, p.Remote)
		r.rec.Count(stats.LayerVersion, stats.Reactivated)
		if len(changes) > 0 {
			r.rec.Count(stats.LayerVersion, stats.ActivatedModified)
		}
		if err := r.store.UpdateRefset(ctx, row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to reactivate %s", row.Key()))
		}
		r.rec.Audit(ctx, audit.EventRefsetReactivated, entityRefset, row.Key(), "reason", recorder.Reason(changes))
	}
	for _, p := range m.Existing {
		row := p.Local
		changes := r.compare(ctx, row, p.Remote)
		if len(changes) == 0 {
			continue
		}
		row.UpdatedAt = now
		if err := r.store.UpdateRefset(ctx, row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to update %s", row.Key()))
		}
		r.rec.Count(stats.LayerVersion, stats.Modified)
		r.rec.Audit(ctx, audit.EventRefsetUpdated, entityRefset, row.Key(), "reason", recorder.Reason(changes))
	}
	for _, row := range m.Inactivated {
		if err := r.inactivate(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// compare applies remote attributes to row and returns what changed.
func (r *Reconciler) compare(ctx context.Context, row *models.Refset, v Version) []recorder.FieldChange {
	var changes []recorder.FieldChange
	if v.Name != "" && row.Name != v.Name {
		changes = append(changes, recorder.FieldChange{Field: "name", Before: row.Name, After: v.Name})
		row.Name = v.Name
	}
	if row.BranchPath != v.Branch {
		if row.BranchPath != "" {
			r.logger.WarnContext(ctx, "version branch path changed",
				"refset", row.Key(), "before", row.BranchPath, "after", v.Branch)
		}
		changes = append(changes, recorder.FieldChange{Field: "branch_path", Before: row.BranchPath, After: v.Branch})
		row.BranchPath = v.Branch
	}
	if row.ModuleID != v.ModuleID {
		changes = append(changes, recorder.FieldChange{Field: "module_id", Before: row.ModuleID, After: v.ModuleID})
		row.ModuleID = v.ModuleID
	}
	r.rec.Drift(ctx, entityRefset, row.Key(), changes)
	return changes
}

func (r *Reconciler) inactivate(ctx context.Context, row *models.Refset) error {
	row.Active = false
	row.LatestPublishedVersion = false
	row.UpdatedAt = requestcontext.Now(ctx)
	if err := r.store.UpdateRefset(ctx, row); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to inactivate %s", row.Key()))
	}
	r.rec.Count(stats.LayerVersion, stats.Inactivated)
	r.rec.Audit(ctx, audit.EventRefsetInactivated, entityRefset, row.Key())
	return nil
}

func newRefsetRow(e *models.Edition, v Version, now time.Time) *models.Refset {
	return &models.Refset{
		ID:             id.NewRefsetRowID(),
		RefsetID:       v.RefsetID,
		VersionDate:    v.Date,
		Name:           v.Name,
		BranchPath:     v.Branch,
		ModuleID:       v.ModuleID,
		Type:           models.RefsetTypeExtensional,
		EditionID:      e.ID,
		VersionStatus:  models.VersionStatusPublished,
		WorkflowStatus: "published",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// groupVersions splits local rows by refset id into active and inactive.
func groupVersions(rows []*models.Refset) (active, inactive map[string][]*models.Refset) {
	active = make(map[string][]*models.Refset)
	inactive = make(map[string][]*models.Refset)
	for _, row := range rows {
		if row.Active {
			active[row.RefsetID] = append(active[row.RefsetID], row)
		} else {
			inactive[row.RefsetID] = append(inactive[row.RefsetID], row)
		}
	}
	return active, inactive
}

func keys(m map[string][]*models.Refset) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
