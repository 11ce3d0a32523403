package refset

import (
	"context"
	"fmt"
	"time"

	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/stats"
	id "refsync/pkg/domain"
	"refsync/pkg/platform/audit"
	"refsync/pkg/requestcontext"
)

// finalize attaches project, narrative and the latest-version flag to the
// edition's active published versions. A failure on one version is logged
// and counted; the rest of the batch still runs.
func (r *Reconciler) finalize(ctx context.Context, e *models.Edition) {
	rows, err := r.store.ListRefsetsByEdition(ctx, e.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "finalize: list refsets failed", "edition", e.ShortName, "error", err)
		r.rec.FinalizeFailed()
		return
	}
	var order []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		if !row.Active || !row.IsPublished() {
			continue
		}
		if _, ok := seen[row.RefsetID]; !ok {
			seen[row.RefsetID] = struct{}{}
			order = append(order, row.RefsetID)
		}
	}

	for _, refsetID := range order {
		versions, err := r.store.ListRefsetVersions(ctx, refsetID)
		if err != nil {
			r.finalizeFailed(ctx, e, refsetID, "", err)
			continue
		}
		latest := LatestVersion(versions)
		narrative := r.catalog.Narrative(refsetID)
		for _, row := range versions {
			if err := r.finalizeVersion(ctx, e, row, narrative, latest); err != nil {
				r.finalizeFailed(ctx, e, refsetID, row.VersionDate.Format(time.DateOnly), err)
			}
		}
	}
}

func (r *Reconciler) finalizeVersion(ctx context.Context, e *models.Edition, row *models.Refset, narrative string, latest id.RefsetRowID) error {
	changed := false
	if row.Active && row.IsPublished() && row.EditionID == e.ID {
		project, err := r.projectFor(ctx, e, row)
		if err != nil {
			return err
		}
		if project != nil && (row.ProjectID == nil || *row.ProjectID != project.ID) {
			pid := project.ID
			row.ProjectID = &pid
			changed = true
		}
		if narrative != "" && row.Narrative != narrative {
			row.Narrative = narrative
			changed = true
		}
	}
	if want := row.ID == latest; row.LatestPublishedVersion != want {
		row.LatestPublishedVersion = want
		changed = true
	}
	if !changed {
		return nil
	}
	row.UpdatedAt = requestcontext.Now(ctx)
	return r.store.UpdateRefset(ctx, row)
}

func (r *Reconciler) finalizeFailed(ctx context.Context, e *models.Edition, refsetID, versionDate string, err error) {
	r.rec.FinalizeFailed()
	r.logger.ErrorContext(ctx, "refset finalization failed",
		"edition", e.ShortName,
		"refset_id", refsetID,
		"version_date", versionDate,
		"error", err,
	)
}

// LatestVersion returns the row id of the most recent active published
// version, or the zero id when there is none.
func LatestVersion(versions []*models.Refset) id.RefsetRowID {
	var best *models.Refset
	for _, v := range versions {
		if !v.Active || !v.IsPublished() {
			continue
		}
		if best == nil || v.VersionDate.After(best.VersionDate) {
			best = v
		}
	}
	if best == nil {
		return id.RefsetRowID{}
	}
	return best.ID
}

// projectFor resolves the project of a refset: the catalog project when one
// claims the refset, otherwise the organization's default project. A refset
// that already has a project keeps it unless the catalog says otherwise.
func (r *Reconciler) projectFor(ctx context.Context, e *models.Edition, row *models.Refset) (*models.Project, error) {
	if cp, ok := r.catalog.ProjectForRefset(e.ShortName, row.RefsetID); ok {
		return r.findOrCreateProject(ctx, e, cp.Name, cp.Code, &e.ID)
	}
	if row.ProjectID != nil {
		return nil, nil
	}
	if p, ok := r.defaultProjects[e.OrganizationID]; ok {
		return p, nil
	}
	org, err := r.store.GetOrganization(ctx, e.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	p, err := r.findOrCreateProject(ctx, e, models.DefaultProjectName(org.Name), "", nil)
	if err != nil {
		return nil, err
	}
	r.defaultProjects[e.OrganizationID] = p
	return p, nil
}

func (r *Reconciler) findOrCreateProject(ctx context.Context, e *models.Edition, name, code string, editionID *id.EditionID) (*models.Project, error) {
	projects, err := r.store.ListProjects(ctx, e.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	p, err := models.NewProject(name, code, e.OrganizationID, editionID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := r.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}
	r.rec.Count(stats.LayerProject, stats.Added)
	r.rec.Audit(ctx, audit.EventProjectCreated, "project", name, "edition", e.ShortName)
	return p, nil
}
