// Package orgedition reconciles local organizations and editions against the
// remote code-system list.
package orgedition

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

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
	pstrings "refsync/pkg/platform/strings"
	"refsync/pkg/requestcontext"
)

const (
	entityOrganization = "organization"
	entityEdition      = "edition"
	entityTeam         = "team"
)

type Reconciler struct {
	store          ports.Store
	stats          *stats.Stats
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	rec            *recorder.Recorder
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

func New(store ports.Store, st *stats.Stats, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	r := &Reconciler{store: store, stats: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.rec = recorder.New(r.logger, r.auditPublisher, r.stats)
	return r, nil
}

// Result is what later stages need from this one.
type Result struct {
	// OrganizationToggles holds organization names to reactivate (true) and
	// inactivate (false). Toggles are applied at the end of Reconcile.
	OrganizationToggles map[bool][]string
	// Existing lists editions present both locally and remotely, including
	// reactivated ones.
	Existing []*models.Edition
	// Created lists editions seen for the first time in this run.
	Created []*models.Edition
}

// Editions returns every active remote-backed edition after reconciliation.
func (r *Result) Editions() []*models.Edition {
	out := make([]*models.Edition, 0, len(r.Existing)+len(r.Created))
	out = append(out, r.Existing...)
	return append(out, r.Created...)
}

// Reconcile runs the organization and edition layers.
func (r *Reconciler) Reconcile(ctx context.Context, cfg models.Config, state fetcher.RemoteState) (*Result, error) {
	orgs, err := r.loadOrganizations(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{OrganizationToggles: map[bool][]string{}}

	orgSplit := partition.Keys(state.OrganizationNames(), orgs.activeNames(), orgs.inactiveNames())
	res.OrganizationToggles[true] = orgSplit.Reactivated
	if !cfg.Testing() {
		res.OrganizationToggles[false] = orgSplit.Inactivated
	}

	created := make([]*models.Organization, 0, len(orgSplit.Added))
	for _, name := range orgSplit.Added {
		org, err := r.createOrganization(ctx, cfg, name)
		if err != nil {
			return nil, err
		}
		orgs.byName[name] = org
		created = append(created, org)
	}
	if err := r.propagateAffiliates(ctx, orgs, created); err != nil {
		return nil, err
	}

	if err := r.reconcileEditions(ctx, cfg, state, orgs, res); err != nil {
		return nil, err
	}

	if err := r.applyOrganizationToggles(ctx, res.OrganizationToggles); err != nil {
		return nil, err
	}
	return res, nil
}

// =============================================================================
// Organizations
// =============================================================================

type orgIndex struct {
	byName map[string]*models.Organization
	byID   map[id.OrganizationID]*models.Organization
}

func (o orgIndex) activeNames() []string {
	return o.names(true)
}

func (o orgIndex) inactiveNames() []string {
	return o.names(false)
}

func (o orgIndex) names(active bool) []string {
	var out []string
	for name, org := range o.byName {
		if org.Active == active {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// loadOrganizations indexes local organizations. A name held by more than
// one row is an invariant violation.
func (r *Reconciler) loadOrganizations(ctx context.Context) (orgIndex, error) {
	all, err := r.store.ListOrganizations(ctx)
	if err != nil {
		return orgIndex{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	idx := orgIndex{
		byName: make(map[string]*models.Organization, len(all)),
		byID:   make(map[id.OrganizationID]*models.Organization, len(all)),
	}
	for _, org := range all {
		if _, dup := idx.byName[org.Name]; dup {
			return orgIndex{}, dErrors.Newf(dErrors.CodeInvariantViolation, "more than one organization named %q", org.Name)
		}
		idx.byName[org.Name] = org
		idx.byID[org.ID] = org
	}
	return idx, nil
}

func (r *Reconciler) createOrganization(ctx context.Context, cfg models.Config, name string) (*models.Organization, error) {
	now := requestcontext.Now(ctx)
	org, err := models.NewOrganization(name, now)
	if err != nil {
		return nil, err
	}
	for _, admin := range cfg.AdminUsernames {
		org.AddMember(admin)
	}
	team := models.NewTeam(models.AdminTeamName(name), models.TeamTypeAdmin, org.ID, nil, now)
	team.Members = slices.Clone(cfg.AdminUsernames)

	err = r.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.store.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return r.store.CreateTeam(ctx, team)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to create organization %q", name))
	}
	r.rec.Count(stats.LayerOrganization, stats.Added)
	r.rec.Audit(ctx, audit.EventOrganizationCreated, entityOrganization, name, "organization_id", org.ID.String())
	r.rec.Audit(ctx, audit.EventTeamCreated, entityTeam, team.Name, "organization", name)
	return org, nil
}

// propagateAffiliates copies each affiliate template edition into every newly
// created organization that does not already hold an edition on that branch.
func (r *Reconciler) propagateAffiliates(ctx context.Context, orgs orgIndex, created []*models.Organization) error {
	if len(created) == 0 {
		return nil
	}
	editions, err := r.store.ListEditions(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list editions")
	}
	var templates []*models.Edition
	for _, e := range editions {
		owner, ok := orgs.byID[e.OrganizationID]
		if ok && owner.Affiliate && owner.Active && e.Active {
			templates = append(templates, e)
		}
	}
	if len(templates) == 0 {
		return nil
	}

	now := requestcontext.Now(ctx)
	for _, org := range created {
		branches := make(map[string]struct{})
		for _, e := range editions {
			if e.OrganizationID == org.ID {
				branches[e.BranchPath] = struct{}{}
			}
		}
		for _, tmpl := range templates {
			if _, held := branches[tmpl.BranchPath]; held {
				continue
			}
			copied, err := models.NewEdition(tmpl.ShortName+"-"+org.Name, org.ID, now)
			if err != nil {
				return err
			}
			copied.Name = tmpl.Name
			copied.BranchPath = tmpl.BranchPath
			copied.Modules = slices.Clone(tmpl.Modules)
			copied.MaintainerType = tmpl.MaintainerType
			copied.DefaultLanguageCode = tmpl.DefaultLanguageCode
			copied.DefaultLanguageRefsets = slices.Clone(tmpl.DefaultLanguageRefsets)
			copied.Affiliate = true
			if err := r.store.CreateEdition(ctx, copied); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to copy affiliate edition %q", tmpl.ShortName))
			}
			branches[tmpl.BranchPath] = struct{}{}
			r.rec.Count(stats.LayerEdition, stats.Added)
			r.rec.Audit(ctx, audit.EventEditionCreated, entityEdition, copied.ShortName,
				"organization", org.Name, "reason", "affiliate template "+tmpl.ShortName)
		}
	}
	return nil
}

// applyOrganizationToggles runs the deferred status changes. Organizations
// still referenced by an active edition stay active; organizations already
// reactivated earlier in the run are left alone.
func (r *Reconciler) applyOrganizationToggles(ctx context.Context, toggles map[bool][]string) error {
	now := requestcontext.Now(ctx)
	for _, name := range toggles[true] {
		org, err := r.findOrganization(ctx, name)
		if err != nil {
			return err
		}
		if org.CanReactivate() != nil {
			continue
		}
		org.ApplyReactivation(now)
		if err := r.store.UpdateOrganization(ctx, org); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to reactivate organization %q", name))
		}
		r.rec.Count(stats.LayerOrganization, stats.Reactivated)
		r.rec.Audit(ctx, audit.EventOrganizationReactivated, entityOrganization, name)
	}
	for _, name := range toggles[false] {
		org, err := r.findOrganization(ctx, name)
		if err != nil {
			return err
		}
		count, err := r.store.CountActiveEditions(ctx, org.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count editions")
		}
		if err := org.CanDeactivate(count); err != nil {
			r.logger.InfoContext(ctx, "organization kept active", "organization", name, "reason", err.Error())
			continue
		}
		org.ApplyDeactivation(now)
		if err := r.store.UpdateOrganization(ctx, org); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to inactivate organization %q", name))
		}
		r.rec.Count(stats.LayerOrganization, stats.Inactivated)
		r.rec.Audit(ctx, audit.EventOrganizationInactivated, entityOrganization, name)
	}
	return nil
}

// findOrganization returns the single organization named name.
func (r *Reconciler) findOrganization(ctx context.Context, name string) (*models.Organization, error) {
	found, err := r.store.FindOrganizationsByName(ctx, name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up organization")
	}
	switch len(found) {
	case 0:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "no organization named %q", name)
	case 1:
		return found[0], nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "%d organizations named %q", len(found), name)
	}
}

// =============================================================================
// Editions
// =============================================================================

func (r *Reconciler) reconcileEditions(ctx context.Context, cfg models.Config, state fetcher.RemoteState, orgs orgIndex, res *Result) error {
	all, err := r.store.ListEditions(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list editions")
	}
	active := make(map[string]*models.Edition)
	inactive := make(map[string]*models.Edition)
	for _, e := range all {
		if e.Affiliate {
			continue
		}
		if e.Active {
			if _, dup := active[e.ShortName]; dup {
				return dErrors.Newf(dErrors.CodeInvariantViolation, "more than one active edition %q", e.ShortName)
			}
			active[e.ShortName] = e
			continue
		}
		if prev, ok := inactive[e.ShortName]; !ok || e.UpdatedAt.After(prev.UpdatedAt) {
			inactive[e.ShortName] = e
		}
	}

	split := partition.Keys(state.ShortNames(), sortedKeys(active), sortedKeys(inactive))
	now := requestcontext.Now(ctx)

	for _, sn := range split.Added {
		cs, _ := state.CodeSystem(sn)
		org, ok := orgs.byName[cs.OrganizationName()]
		if !ok {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "organization %q of edition %q not found", cs.OrganizationName(), sn)
		}
		e, err := models.NewEdition(sn, org.ID, now)
		if err != nil {
			return err
		}
		applyCodeSystem(e, cs)
		if err := r.store.CreateEdition(ctx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to create edition %q", sn))
		}
		r.rec.Count(stats.LayerEdition, stats.Added)
		r.rec.Audit(ctx, audit.EventEditionCreated, entityEdition, sn, "organization", org.Name)
		res.Created = append(res.Created, e)
	}

	for _, sn := range split.Reactivated {
		e := inactive[sn]
		e.Active = true
		e.UpdatedAt = now
		r.rec.Count(stats.LayerEdition, stats.Reactivated)
		r.rec.Audit(ctx, audit.EventEditionReactivated, entityEdition, sn)
		if err := r.refreshEdition(ctx, cfg, state, orgs, e, true); err != nil {
			return err
		}
		res.Existing = append(res.Existing, e)
	}

	for _, sn := range split.Existing {
		e := active[sn]
		if err := r.refreshEdition(ctx, cfg, state, orgs, e, false); err != nil {
			return err
		}
		res.Existing = append(res.Existing, e)
	}

	if cfg.Testing() {
		return nil
	}
	for _, sn := range split.Inactivated {
		e := active[sn]
		e.Active = false
		e.UpdatedAt = now
		if err := r.store.UpdateEdition(ctx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to inactivate edition %q", sn))
		}
		r.rec.Count(stats.LayerEdition, stats.Inactivated)
		r.rec.Audit(ctx, audit.EventEditionInactivated, entityEdition, sn)
	}
	return nil
}

// refreshEdition applies attribute drift and organization migration to an
// edition known on both sides, then persists it.
func (r *Reconciler) refreshEdition(ctx context.Context, cfg models.Config, state fetcher.RemoteState, orgs orgIndex, e *models.Edition, reactivated bool) error {
	cs, _ := state.CodeSystem(e.ShortName)
	changes := DiffEdition(e, cs)
	if len(changes) > 0 {
		r.rec.Drift(ctx, entityEdition, e.ShortName, changes)
		e.UpdatedAt = requestcontext.Now(ctx)
		if reactivated {
			r.rec.Count(stats.LayerEdition, stats.ActivatedModified)
		} else {
			r.rec.Count(stats.LayerEdition, stats.Modified)
		}
		r.rec.Audit(ctx, audit.EventEditionUpdated, entityEdition, e.ShortName, "reason", recorder.Reason(changes))
	}

	target, ok := orgs.byName[cs.OrganizationName()]
	if ok && target.ID != e.OrganizationID {
		return r.migrate(ctx, cfg, e, cs.OrganizationName())
	}
	if len(changes) == 0 && !reactivated {
		return nil
	}
	if err := r.store.UpdateEdition(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to update edition %q", e.ShortName))
	}
	return nil
}

// DiffEdition applies remote attribute values to e and returns every field
// that changed. Module and language refset lists compare as sets.
func DiffEdition(e *models.Edition, cs terminology.CodeSystem) []recorder.FieldChange {
	var changes []recorder.FieldChange
	diff := func(field string, before, after string, apply func()) {
		if before != after {
			changes = append(changes, recorder.FieldChange{Field: field, Before: before, After: after})
			apply()
		}
	}
	diff("name", e.Name, cs.Name, func() { e.Name = cs.Name })
	diff("branch_path", e.BranchPath, cs.BranchPath, func() { e.BranchPath = cs.BranchPath })
	diff("maintainer_type", e.MaintainerType, cs.MaintainerType, func() { e.MaintainerType = cs.MaintainerType })
	diff("default_language_code", e.DefaultLanguageCode, cs.DefaultLanguageCode, func() { e.DefaultLanguageCode = cs.DefaultLanguageCode })

	if !pstrings.SameSet(e.DefaultLanguageRefsets, cs.DefaultLanguageReferenceSets) {
		changes = append(changes, recorder.FieldChange{
			Field: "default_language_refsets", Before: e.DefaultLanguageRefsets, After: cs.DefaultLanguageReferenceSets,
		})
		e.DefaultLanguageRefsets = slices.Clone(cs.DefaultLanguageReferenceSets)
	}
	if modules := cs.ModuleIDs(); !pstrings.SameSet(e.Modules, modules) {
		changes = append(changes, recorder.FieldChange{Field: "modules", Before: e.Modules, After: modules})
		e.Modules = modules
	}
	return changes
}

func applyCodeSystem(e *models.Edition, cs terminology.CodeSystem) {
	e.Name = cs.Name
	e.BranchPath = cs.BranchPath
	e.MaintainerType = cs.MaintainerType
	e.DefaultLanguageCode = cs.DefaultLanguageCode
	e.DefaultLanguageRefsets = slices.Clone(cs.DefaultLanguageReferenceSets)
	e.Modules = cs.ModuleIDs()
}

func sortedKeys(m map[string]*models.Edition) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
