package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refsync/internal/reconcile/models"
	id "refsync/pkg/domain"
	"refsync/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newOrg(name string) *models.Organization {
	org, err := models.NewOrganization(name, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateOrganization(s.ctx, org))
	return org
}

func (s *InMemoryStoreSuite) newEdition(shortName string, orgID id.OrganizationID) *models.Edition {
	ed, err := models.NewEdition(shortName, orgID, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateEdition(s.ctx, ed))
	return ed
}

func (s *InMemoryStoreSuite) TestOrganizations() {
	s.Run("name is unique", func() {
		s.newOrg("Acme")
		dup, _ := models.NewOrganization("Acme", s.now)
		s.ErrorIs(s.store.CreateOrganization(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("returned rows do not alias stored state", func() {
		org := s.newOrg("Alias")
		org.Members = append(org.Members, "u1")

		stored, err := s.store.GetOrganization(s.ctx, org.ID)
		s.Require().NoError(err)
		s.Empty(stored.Members)

		stored.Members = append(stored.Members, "u2")
		again, _ := s.store.GetOrganization(s.ctx, org.ID)
		s.Empty(again.Members)
	})

	s.Run("update of unknown row is not found", func() {
		org, _ := models.NewOrganization("Ghost", s.now)
		s.ErrorIs(s.store.UpdateOrganization(s.ctx, org), sentinel.ErrNotFound)
		_, err := s.store.GetOrganization(s.ctx, org.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("list keeps insertion order", func() {
		all, err := s.store.ListOrganizations(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(all, 2)
		s.Equal("Acme", all[0].Name)
		s.Equal("Alias", all[1].Name)
	})
}

func (s *InMemoryStoreSuite) TestEditions() {
	org := s.newOrg("Acme")
	ed := s.newEdition("SNOMEDCT-XX", org.ID)

	s.Run("one active row per short name", func() {
		dup, _ := models.NewEdition("SNOMEDCT-XX", org.ID, s.now)
		s.ErrorIs(s.store.CreateEdition(s.ctx, dup), sentinel.ErrConflict)

		dup.Active = false
		s.Require().NoError(s.store.CreateEdition(s.ctx, dup))

		found, err := s.store.FindEditionsByShortName(s.ctx, "SNOMEDCT-XX")
		s.Require().NoError(err)
		s.Len(found, 2)
	})

	s.Run("counts only active editions of the organization", func() {
		n, err := s.store.CountActiveEditions(s.ctx, org.ID)
		s.Require().NoError(err)
		s.Equal(1, n)

		ed.Active = false
		s.Require().NoError(s.store.UpdateEdition(s.ctx, ed))
		n, _ = s.store.CountActiveEditions(s.ctx, org.ID)
		s.Zero(n)
	})
}

func (s *InMemoryStoreSuite) TestRefsets() {
	org := s.newOrg("Acme")
	ed := s.newEdition("SNOMEDCT-XX", org.ID)
	date := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)

	r := &models.Refset{ID: id.NewRefsetRowID(), RefsetID: "32570071000036102", VersionDate: date, EditionID: ed.ID, Active: true}
	s.Require().NoError(s.store.CreateRefset(s.ctx, r))

	dup := &models.Refset{ID: id.NewRefsetRowID(), RefsetID: r.RefsetID, VersionDate: date, EditionID: ed.ID, Active: true}
	s.ErrorIs(s.store.CreateRefset(s.ctx, dup), sentinel.ErrConflict)

	versions, err := s.store.ListRefsetVersions(s.ctx, r.RefsetID)
	s.Require().NoError(err)
	s.Len(versions, 1)

	byEdition, err := s.store.ListRefsetsByEdition(s.ctx, ed.ID)
	s.Require().NoError(err)
	s.Len(byEdition, 1)
}

func (s *InMemoryStoreSuite) TestProjectsTeamsUsers() {
	org := s.newOrg("Acme")
	ed := s.newEdition("SNOMEDCT-XX", org.ID)

	p := &models.Project{ID: id.NewProjectID(), Name: "Example", OrganizationID: org.ID, EditionID: &ed.ID, Active: true}
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	dup := &models.Project{ID: id.NewProjectID(), Name: "Example", OrganizationID: org.ID, Active: true}
	s.ErrorIs(s.store.CreateProject(s.ctx, dup), sentinel.ErrConflict)

	n, err := s.store.CountProjectsByEdition(s.ctx, ed.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	team := &models.Team{ID: id.NewTeamID(), Name: "Acme Admins", Type: models.TeamTypeAdmin, OrganizationID: org.ID, Active: true}
	s.Require().NoError(s.store.CreateTeam(s.ctx, team))
	team.AddMember("u1")
	s.Require().NoError(s.store.UpdateTeam(s.ctx, team))
	teams, err := s.store.ListTeams(s.ctx, org.ID)
	s.Require().NoError(err)
	s.Equal([]string{"u1"}, teams[0].Members)

	u := &models.User{ID: id.NewUserID(), Username: "u1", Active: true}
	s.Require().NoError(s.store.CreateUser(s.ctx, u))
	s.ErrorIs(s.store.CreateUser(s.ctx, &models.User{ID: id.NewUserID(), Username: "u1"}), sentinel.ErrConflict)
	found, err := s.store.FindUserByUsername(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(u.ID, found.ID)
	_, err = s.store.FindUserByUsername(s.ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestRunInTx() {
	s.Run("commits on success", func() {
		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			org, _ := models.NewOrganization("Committed", s.now)
			return s.store.CreateOrganization(ctx, org)
		})
		s.Require().NoError(err)
		found, _ := s.store.FindOrganizationsByName(s.ctx, "Committed")
		s.Len(found, 1)
	})

	s.Run("rolls back every write on failure", func() {
		boom := errors.New("boom")
		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			org, _ := models.NewOrganization("RolledBack", s.now)
			if err := s.store.CreateOrganization(ctx, org); err != nil {
				return err
			}
			// nested calls join the outer transaction
			if err := s.store.RunInTx(ctx, func(ctx context.Context) error {
				ed, _ := models.NewEdition("SNOMEDCT-RB", org.ID, s.now)
				return s.store.CreateEdition(ctx, ed)
			}); err != nil {
				return err
			}
			return boom
		})
		s.ErrorIs(err, boom)

		orgs, _ := s.store.FindOrganizationsByName(s.ctx, "RolledBack")
		s.Empty(orgs)
		eds, _ := s.store.FindEditionsByShortName(s.ctx, "SNOMEDCT-RB")
		s.Empty(eds)
		committed, _ := s.store.FindOrganizationsByName(s.ctx, "Committed")
		s.Len(committed, 1)
	})
}
