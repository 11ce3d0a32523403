// Package ports declares the collaborators the reconcilers depend on.
package ports

//go:generate mockgen -destination=mocks/mocks.go -package=mocks refsync/internal/reconcile/ports AuditPublisher,ConceptCache,IdentityProvider,Notifier,Terminology

import (
	"context"
	"time"

	"refsync/internal/reconcile/models"
	"refsync/internal/remote/identity"
	"refsync/internal/remote/terminology"
	id "refsync/pkg/domain"
	"refsync/pkg/platform/audit"
)

// Terminology is the remote terminology server.
type Terminology interface {
	CodeSystems(ctx context.Context) ([]terminology.CodeSystem, error)
	BranchChildren(ctx context.Context, branch string) ([]terminology.BranchChild, error)
	RefsetMembership(ctx context.Context, branch, ecl string) (*terminology.RefsetMembership, error)
	Concept(ctx context.Context, branch, conceptID string) (*terminology.ConceptSummary, error)
	BrowserConcept(ctx context.Context, branch, conceptID string) (*terminology.ConceptDetail, error)
	LatestMemberChange(ctx context.Context, branch, refsetID string) (*time.Time, error)
}

// IdentityProvider publishes group-membership rules and user profiles.
type IdentityProvider interface {
	GroupMembers(ctx context.Context, prefix string) (map[string][]string, error)
	User(ctx context.Context, username string) (*identity.Profile, error)
}

// ConceptCache memoizes concept summaries per branch.
type ConceptCache interface {
	Get(ctx context.Context, branch, conceptID string) (*terminology.ConceptSummary, bool)
	Set(ctx context.Context, branch, conceptID string, c *terminology.ConceptSummary)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Notifier delivers the end-of-run summary.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// OrganizationStore persists organizations. Find methods return every row
// matching the name so callers can detect duplicated state.
type OrganizationStore interface {
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	GetOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error)
	FindOrganizationsByName(ctx context.Context, name string) ([]*models.Organization, error)
	CreateOrganization(ctx context.Context, org *models.Organization) error
	UpdateOrganization(ctx context.Context, org *models.Organization) error
}

type EditionStore interface {
	ListEditions(ctx context.Context) ([]*models.Edition, error)
	FindEditionsByShortName(ctx context.Context, shortName string) ([]*models.Edition, error)
	CountActiveEditions(ctx context.Context, orgID id.OrganizationID) (int, error)
	CreateEdition(ctx context.Context, edition *models.Edition) error
	UpdateEdition(ctx context.Context, edition *models.Edition) error
}

type RefsetStore interface {
	ListRefsetsByEdition(ctx context.Context, editionID id.EditionID) ([]*models.Refset, error)
	ListRefsetVersions(ctx context.Context, refsetID string) ([]*models.Refset, error)
	CreateRefset(ctx context.Context, refset *models.Refset) error
	UpdateRefset(ctx context.Context, refset *models.Refset) error
}

type ProjectStore interface {
	ListProjects(ctx context.Context, orgID id.OrganizationID) ([]*models.Project, error)
	CountProjectsByEdition(ctx context.Context, editionID id.EditionID) (int, error)
	CreateProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, project *models.Project) error
}

type TeamStore interface {
	ListTeams(ctx context.Context, orgID id.OrganizationID) ([]*models.Team, error)
	CreateTeam(ctx context.Context, team *models.Team) error
	UpdateTeam(ctx context.Context, team *models.Team) error
}

type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
}

// Store is the data-access service. RunInTx joins an existing transaction
// carried by ctx or starts a new one.
type Store interface {
	OrganizationStore
	EditionStore
	RefsetStore
	ProjectStore
	TeamStore
	UserStore
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
