package models

import (
	"slices"
	"time"

	id "refsync/pkg/domain"
	dErrors "refsync/pkg/domain-errors"
)

// Project groups refset work inside an organization. Name plus organization
// is the effective key; Code is the identity-provider project token.
type Project struct {
	ID             id.ProjectID
	Name           string
	Code           string
	OrganizationID id.OrganizationID
	EditionID      *id.EditionID
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TeamType string

const (
	TeamTypeAdmin   TeamType = "admin"
	TeamTypeProject TeamType = "project"
)

// Team is a set of users. Every organization has one admin team; project
// teams point at the project they work on.
type Team struct {
	ID             id.TeamID
	Name           string
	Type           TeamType
	OrganizationID id.OrganizationID
	ProjectID      *id.ProjectID
	Members        []string // usernames
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t *Team) IsAdmin() bool {
	return t.Type == TeamTypeAdmin
}

// AddMember adds username and reports whether membership changed.
func (t *Team) AddMember(username string) bool {
	if username == "" || slices.Contains(t.Members, username) {
		return false
	}
	t.Members = append(t.Members, username)
	return true
}

// User is a local account mirrored from the identity provider.
type User struct {
	ID        id.UserID
	Username  string
	Name      string
	Email     string
	Roles     []string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultProjectName names the catch-all project of an organization.
func DefaultProjectName(orgName string) string {
	return orgName + " Default Project"
}

// AdminTeamName names the administrative team of an organization.
func AdminTeamName(orgName string) string {
	return orgName + " Admins"
}

func NewProject(name, code string, orgID id.OrganizationID, editionID *id.EditionID, now time.Time) (*Project, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "project name cannot be empty")
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "project requires an organization")
	}
	return &Project{
		ID:             id.NewProjectID(),
		Name:           name,
		Code:           code,
		OrganizationID: orgID,
		EditionID:      editionID,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func NewTeam(name string, typ TeamType, orgID id.OrganizationID, projectID *id.ProjectID, now time.Time) *Team {
	return &Team{
		ID:             id.NewTeamID(),
		Name:           name,
		Type:           typ,
		OrganizationID: orgID,
		ProjectID:      projectID,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func NewUser(username string, now time.Time) (*User, error) {
	if username == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "username cannot be empty")
	}
	return &User{
		ID:        id.NewUserID(),
		Username:  username,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
