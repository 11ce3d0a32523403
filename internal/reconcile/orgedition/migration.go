package orgedition

import (
	"context"
	"fmt"

	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/stats"
	id "refsync/pkg/domain"
	dErrors "refsync/pkg/domain-errors"
	"refsync/pkg/platform/audit"
	"refsync/pkg/requestcontext"
)

// migration carries the state shared by the steps that move an edition from
// one organization to another.
type migration struct {
	cfg        models.Config
	edition    *models.Edition
	targetName string

	source *models.Organization
	target *models.Organization
	moved  []id.ProjectID
}

type migrationStep struct {
	name string
	run  func(ctx context.Context, m *migration) error
}

// migrationSteps run in order. Each step is a no-op when its effect is
// already in place, so a failed migration can be rerun from the start.
func (r *Reconciler) migrationSteps() []migrationStep {
	return []migrationStep{
		{"resolve_organizations", r.resolveOrganizations},
		{"activate_target", r.activateTarget},
		{"copy_members", r.copyMembers},
		{"move_teams", r.moveTeams},
		{"deactivate_source_admin_team", r.deactivateSourceAdminTeam},
		{"repoint_edition", r.repointEdition},
	}
}

// migrate moves edition e to the organization named targetName.
//
// Identity-provider group memberships of users in moved projects are left in
// place; removing them could revoke access the users still need elsewhere.
func (r *Reconciler) migrate(ctx context.Context, cfg models.Config, e *models.Edition, targetName string) error {
	m := &migration{cfg: cfg, edition: e, targetName: targetName}
	err := r.store.RunInTx(ctx, func(ctx context.Context) error {
		for _, step := range r.migrationSteps() {
			if err := step.run(ctx, m); err != nil {
				return fmt.Errorf("migration step %s: %w", step.name, err)
			}
			r.logger.DebugContext(ctx, "migration step done", "edition", e.ShortName, "step", step.name)
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to migrate edition %q", e.ShortName))
	}
	r.logger.WarnContext(ctx, "identity provider group memberships of migrated projects were not removed",
		"edition", e.ShortName, "source", m.source.Name, "target", m.target.Name)
	return nil
}

func (r *Reconciler) resolveOrganizations(ctx context.Context, m *migration) error {
	source, err := r.store.GetOrganization(ctx, m.edition.OrganizationID)
	if err != nil {
		return err
	}
	target, err := r.findOrganization(ctx, m.targetName)
	if err != nil {
		return err
	}
	m.source, m.target = source, target
	return nil
}

// activateTarget reactivates the target organization and its admin team.
func (r *Reconciler) activateTarget(ctx context.Context, m *migration) error {
	now := requestcontext.Now(ctx)
	if !m.target.Active {
		m.target.ApplyReactivation(now)
		if err := r.store.UpdateOrganization(ctx, m.target); err != nil {
			return err
		}
		r.rec.Count(stats.LayerOrganization, stats.Reactivated)
		r.rec.Audit(ctx, audit.EventOrganizationReactivated, entityOrganization, m.target.Name,
			"reason", "target of edition "+m.edition.ShortName)
	}

	team, err := r.adminTeam(ctx, m.target.ID)
	if err != nil {
		return err
	}
	if team == nil {
		team = models.NewTeam(models.AdminTeamName(m.target.Name), models.TeamTypeAdmin, m.target.ID, nil, now)
		for _, admin := range m.cfg.AdminUsernames {
			team.AddMember(admin)
		}
		if err := r.store.CreateTeam(ctx, team); err != nil {
			return err
		}
		r.rec.Count(stats.LayerTeam, stats.Added)
		r.rec.Audit(ctx, audit.EventTeamCreated, entityTeam, team.Name, "organization", m.target.Name)
		return nil
	}
	if team.Active {
		return nil
	}
	team.Active = true
	team.UpdatedAt = now
	if err := r.store.UpdateTeam(ctx, team); err != nil {
		return err
	}
	r.rec.Count(stats.LayerTeam, stats.Reactivated)
	r.rec.Audit(ctx, audit.EventTeamReactivated, entityTeam, team.Name, "organization", m.target.Name)
	return nil
}

func (r *Reconciler) copyMembers(ctx context.Context, m *migration) error {
	var added []string
	candidates := append(append([]string{}, m.source.Members...), m.cfg.AdminUsernames...)
	for _, username := range candidates {
		if m.target.AddMember(username) {
			added = append(added, username)
		}
	}
	if len(added) == 0 {
		return nil
	}
	m.target.UpdatedAt = requestcontext.Now(ctx)
	if err := r.store.UpdateOrganization(ctx, m.target); err != nil {
		return err
	}
	for _, username := range added {
		r.rec.Audit(ctx, audit.EventOrganizationMemberAdded, entityOrganization, m.target.Name, "username", username)
	}
	return nil
}

// moveTeams points every non-admin team of the source organization, and the
// project it works on, at the target organization.
func (r *Reconciler) moveTeams(ctx context.Context, m *migration) error {
	teams, err := r.store.ListTeams(ctx, m.source.ID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	for _, team := range teams {
		if team.IsAdmin() {
			continue
		}
		team.OrganizationID = m.target.ID
		team.UpdatedAt = now
		if err := r.store.UpdateTeam(ctx, team); err != nil {
			return err
		}
		r.rec.Count(stats.LayerTeam, stats.Migrated)
		r.rec.Audit(ctx, audit.EventTeamMoved, entityTeam, team.Name,
			"reason", fmt.Sprintf("%s -> %s", m.source.Name, m.target.Name))
		if team.ProjectID != nil {
			m.moved = append(m.moved, *team.ProjectID)
		}
	}
	if len(m.moved) == 0 {
		return nil
	}

	projects, err := r.store.ListProjects(ctx, m.source.ID)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if !containsProject(m.moved, p.ID) {
			continue
		}
		p.OrganizationID = m.target.ID
		p.UpdatedAt = now
		if err := r.store.UpdateProject(ctx, p); err != nil {
			return err
		}
		r.rec.Count(stats.LayerProject, stats.Migrated)
	}
	return nil
}

func (r *Reconciler) deactivateSourceAdminTeam(ctx context.Context, m *migration) error {
	team, err := r.adminTeam(ctx, m.source.ID)
	if err != nil || team == nil || !team.Active {
		return err
	}
	team.Active = false
	team.UpdatedAt = requestcontext.Now(ctx)
	if err := r.store.UpdateTeam(ctx, team); err != nil {
		return err
	}
	r.rec.Count(stats.LayerTeam, stats.Inactivated)
	r.rec.Audit(ctx, audit.EventTeamDeactivated, entityTeam, team.Name, "organization", m.source.Name)
	return nil
}

func (r *Reconciler) repointEdition(ctx context.Context, m *migration) error {
	m.edition.OrganizationID = m.target.ID
	m.edition.UpdatedAt = requestcontext.Now(ctx)
	if err := r.store.UpdateEdition(ctx, m.edition); err != nil {
		return err
	}
	r.rec.Count(stats.LayerEdition, stats.Migrated)
	r.rec.Audit(ctx, audit.EventOrganizationMigrated, entityEdition, m.edition.ShortName,
		"reason", fmt.Sprintf("%s -> %s", m.source.Name, m.target.Name))
	return nil
}

// adminTeam returns the organization's admin team, or nil when it has none.
func (r *Reconciler) adminTeam(ctx context.Context, orgID id.OrganizationID) (*models.Team, error) {
	teams, err := r.store.ListTeams(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		if t.IsAdmin() {
			return t, nil
		}
	}
	return nil, nil
}

func containsProject(ids []id.ProjectID, pid id.ProjectID) bool {
	for _, x := range ids {
		if x == pid {
			return true
		}
	}
	return false
}
