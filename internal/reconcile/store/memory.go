package store

import (
	"context"
	"fmt"
	"sync"

	"refsync/internal/reconcile/models"
	id "refsync/pkg/domain"
	"refsync/pkg/platform/sentinel"
)

// InMemory is the data-access service backed by process memory. Transactions
// snapshot every table and restore it when the callback fails. Writers are
// expected to be the single reconciliation run; concurrent readers are safe.
type InMemory struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	orgs     *table[id.OrganizationID, *models.Organization]
	editions *table[id.EditionID, *models.Edition]
	refsets  *table[id.RefsetRowID, *models.Refset]
	projects *table[id.ProjectID, *models.Project]
	teams    *table[id.TeamID, *models.Team]
	users    *table[id.UserID, *models.User]
}

func NewInMemory() *InMemory {
	return &InMemory{
		orgs:     newTable[id.OrganizationID](cloneOrganization),
		editions: newTable[id.EditionID](cloneEdition),
		refsets:  newTable[id.RefsetRowID](cloneRefset),
		projects: newTable[id.ProjectID](cloneProject),
		teams:    newTable[id.TeamID](cloneTeam),
		users:    newTable[id.UserID](cloneUser),
	}
}

type memTxKey struct{}

// RunInTx runs fn atomically with respect to failure: if fn returns an error
// every write made through the store inside fn is undone.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(memTxKey{}).(*InMemory); ok && owner == s {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		s.mu.Lock()
		s.restoreLocked(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	orgs     *table[id.OrganizationID, *models.Organization]
	editions *table[id.EditionID, *models.Edition]
	refsets  *table[id.RefsetRowID, *models.Refset]
	projects *table[id.ProjectID, *models.Project]
	teams    *table[id.TeamID, *models.Team]
	users    *table[id.UserID, *models.User]
}

func (s *InMemory) snapshotLocked() memSnapshot {
	return memSnapshot{
		orgs:     s.orgs.snapshot(),
		editions: s.editions.snapshot(),
		refsets:  s.refsets.snapshot(),
		projects: s.projects.snapshot(),
		teams:    s.teams.snapshot(),
		users:    s.users.snapshot(),
	}
}

func (s *InMemory) restoreLocked(snap memSnapshot) {
	s.orgs = snap.orgs
	s.editions = snap.editions
	s.refsets = snap.refsets
	s.projects = snap.projects
	s.teams = snap.teams
	s.users = snap.users
}

// =============================================================================
// Organizations
// =============================================================================

func (s *InMemory) ListOrganizations(_ context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orgs.list(nil), nil
}

func (s *InMemory) GetOrganization(_ context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs.get(orgID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return org, nil
}

func (s *InMemory) FindOrganizationsByName(_ context.Context, name string) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orgs.list(func(o *models.Organization) bool { return o.Name == name }), nil
}

func (s *InMemory) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orgs.has(org.ID) {
		return fmt.Errorf("organization %s: %w", org.ID, sentinel.ErrConflict)
	}
	if s.orgs.count(func(o *models.Organization) bool { return o.Name == org.Name }) > 0 {
		return fmt.Errorf("organization name %q: %w", org.Name, sentinel.ErrConflict)
	}
	s.orgs.insert(org.ID, org)
	return nil
}

func (s *InMemory) UpdateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.orgs.has(org.ID) {
		return sentinel.ErrNotFound
	}
	s.orgs.replace(org.ID, org)
	return nil
}

// =============================================================================
// Editions
// =============================================================================

func (s *InMemory) ListEditions(_ context.Context) ([]*models.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editions.list(nil), nil
}

func (s *InMemory) FindEditionsByShortName(_ context.Context, shortName string) ([]*models.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editions.list(func(e *models.Edition) bool { return e.ShortName == shortName }), nil
}

func (s *InMemory) CountActiveEditions(_ context.Context, orgID id.OrganizationID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editions.count(func(e *models.Edition) bool {
		return e.Active && e.OrganizationID == orgID
	}), nil
}

func (s *InMemory) CreateEdition(_ context.Context, edition *models.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editions.has(edition.ID) {
		return fmt.Errorf("edition %s: %w", edition.ID, sentinel.ErrConflict)
	}
	if edition.Active && s.activeShortNameTakenLocked(edition) {
		return fmt.Errorf("edition short name %q: %w", edition.ShortName, sentinel.ErrConflict)
	}
	s.editions.insert(edition.ID, edition)
	return nil
}

func (s *InMemory) UpdateEdition(_ context.Context, edition *models.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editions.has(edition.ID) {
		return sentinel.ErrNotFound
	}
	if edition.Active && s.activeShortNameTakenLocked(edition) {
		return fmt.Errorf("edition short name %q: %w", edition.ShortName, sentinel.ErrConflict)
	}
	s.editions.replace(edition.ID, edition)
	return nil
}

func (s *InMemory) activeShortNameTakenLocked(edition *models.Edition) bool {
	return s.editions.count(func(e *models.Edition) bool {
		return e.Active && e.ShortName == edition.ShortName && e.ID != edition.ID
	}) > 0
}

// =============================================================================
// Refsets
// =============================================================================

func (s *InMemory) ListRefsetsByEdition(_ context.Context, editionID id.EditionID) ([]*models.Refset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refsets.list(func(r *models.Refset) bool { return r.EditionID == editionID }), nil
}

func (s *InMemory) ListRefsetVersions(_ context.Context, refsetID string) ([]*models.Refset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refsets.list(func(r *models.Refset) bool { return r.RefsetID == refsetID }), nil
}

func (s *InMemory) CreateRefset(_ context.Context, refset *models.Refset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refsets.has(refset.ID) {
		return fmt.Errorf("refset row %s: %w", refset.ID, sentinel.ErrConflict)
	}
	if refset.Active && s.activeVersionTakenLocked(refset) {
		return fmt.Errorf("refset version %s: %w", refset.Key(), sentinel.ErrConflict)
	}
	s.refsets.insert(refset.ID, refset)
	return nil
}

func (s *InMemory) UpdateRefset(_ context.Context, refset *models.Refset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.refsets.has(refset.ID) {
		return sentinel.ErrNotFound
	}
	if refset.Active && s.activeVersionTakenLocked(refset) {
		return fmt.Errorf("refset version %s: %w", refset.Key(), sentinel.ErrConflict)
	}
	s.refsets.replace(refset.ID, refset)
	return nil
}

func (s *InMemory) activeVersionTakenLocked(refset *models.Refset) bool {
	return s.refsets.count(func(r *models.Refset) bool {
		return r.Active && r.ID != refset.ID &&
			r.RefsetID == refset.RefsetID && r.VersionDate.Equal(refset.VersionDate)
	}) > 0
}

// =============================================================================
// Projects and teams
// =============================================================================

func (s *InMemory) ListProjects(_ context.Context, orgID id.OrganizationID) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.list(func(p *models.Project) bool { return p.OrganizationID == orgID }), nil
}

func (s *InMemory) CountProjectsByEdition(_ context.Context, editionID id.EditionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.count(func(p *models.Project) bool {
		return p.EditionID != nil && *p.EditionID == editionID
	}), nil
}

func (s *InMemory) CreateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projects.has(project.ID) {
		return fmt.Errorf("project %s: %w", project.ID, sentinel.ErrConflict)
	}
	taken := s.projects.count(func(p *models.Project) bool {
		return p.OrganizationID == project.OrganizationID && p.Name == project.Name
	})
	if taken > 0 {
		return fmt.Errorf("project name %q: %w", project.Name, sentinel.ErrConflict)
	}
	s.projects.insert(project.ID, project)
	return nil
}

func (s *InMemory) UpdateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.projects.has(project.ID) {
		return sentinel.ErrNotFound
	}
	taken := s.projects.count(func(p *models.Project) bool {
		return p.ID != project.ID && p.OrganizationID == project.OrganizationID && p.Name == project.Name
	})
	if taken > 0 {
		return fmt.Errorf("project name %q: %w", project.Name, sentinel.ErrConflict)
	}
	s.projects.replace(project.ID, project)
	return nil
}

func (s *InMemory) ListTeams(_ context.Context, orgID id.OrganizationID) ([]*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teams.list(func(t *models.Team) bool { return t.OrganizationID == orgID }), nil
}

func (s *InMemory) CreateTeam(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.teams.has(team.ID) {
		return fmt.Errorf("team %s: %w", team.ID, sentinel.ErrConflict)
	}
	s.teams.insert(team.ID, team)
	return nil
}

func (s *InMemory) UpdateTeam(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.teams.has(team.ID) {
		return sentinel.ErrNotFound
	}
	s.teams.replace(team.ID, team)
	return nil
}

// =============================================================================
// Users
// =============================================================================

func (s *InMemory) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := s.users.list(func(u *models.User) bool { return u.Username == username })
	if len(found) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return found[0], nil
}

func (s *InMemory) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users.has(user.ID) || s.users.count(func(u *models.User) bool { return u.Username == user.Username }) > 0 {
		return fmt.Errorf("user %q: %w", user.Username, sentinel.ErrConflict)
	}
	s.users.insert(user.ID, user)
	return nil
}

func (s *InMemory) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users.has(user.ID) {
		return sentinel.ErrNotFound
	}
	s.users.replace(user.ID, user)
	return nil
}
