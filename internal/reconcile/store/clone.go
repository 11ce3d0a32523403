package store

import (
	"slices"

	"refsync/internal/reconcile/models"
)

func cloneOrganization(o *models.Organization) *models.Organization {
	cp := *o
	cp.Members = slices.Clone(o.Members)
	return &cp
}

func cloneEdition(e *models.Edition) *models.Edition {
	cp := *e
	cp.Modules = slices.Clone(e.Modules)
	cp.DefaultLanguageRefsets = slices.Clone(e.DefaultLanguageRefsets)
	return &cp
}

func cloneRefset(r *models.Refset) *models.Refset {
	cp := *r
	cp.Tags = slices.Clone(r.Tags)
	if r.ProjectID != nil {
		pid := *r.ProjectID
		cp.ProjectID = &pid
	}
	return &cp
}

func cloneProject(p *models.Project) *models.Project {
	cp := *p
	if p.EditionID != nil {
		eid := *p.EditionID
		cp.EditionID = &eid
	}
	return &cp
}

func cloneTeam(t *models.Team) *models.Team {
	cp := *t
	cp.Members = slices.Clone(t.Members)
	if t.ProjectID != nil {
		pid := *t.ProjectID
		cp.ProjectID = &pid
	}
	return &cp
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Roles = slices.Clone(u.Roles)
	return &cp
}
