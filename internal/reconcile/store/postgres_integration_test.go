//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/store"
	id "refsync/pkg/domain"
	"refsync/pkg/platform/audit"
	auditpostgres "refsync/pkg/platform/audit/store/postgres"
	"refsync/pkg/platform/sentinel"
	"refsync/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T(), store.Schema)
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(s.ctx, "audit_events", "users", "teams", "refsets", "projects", "editions", "organizations")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedOrgAndEdition() (*models.Organization, *models.Edition) {
	org, err := models.NewOrganization("Acme", s.now)
	s.Require().NoError(err)
	org.Members = []string{"u1"}
	s.Require().NoError(s.store.CreateOrganization(s.ctx, org))

	ed, err := models.NewEdition("SNOMEDCT-XX", org.ID, s.now)
	s.Require().NoError(err)
	ed.Modules = []string{"11000000102"}
	s.Require().NoError(s.store.CreateEdition(s.ctx, ed))
	return org, ed
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.Require().NoError(s.store.Migrate(s.ctx))
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) TestRoundTripAndUniqueness() {
	org, ed := s.seedOrgAndEdition()

	got, err := s.store.GetOrganization(s.ctx, org.ID)
	s.Require().NoError(err)
	s.Equal([]string{"u1"}, got.Members)

	dupOrg, _ := models.NewOrganization("Acme", s.now)
	s.ErrorIs(s.store.CreateOrganization(s.ctx, dupOrg), sentinel.ErrConflict)

	dupEd, _ := models.NewEdition("SNOMEDCT-XX", org.ID, s.now)
	s.ErrorIs(s.store.CreateEdition(s.ctx, dupEd), sentinel.ErrConflict)

	eds, err := s.store.FindEditionsByShortName(s.ctx, "SNOMEDCT-XX")
	s.Require().NoError(err)
	s.Require().Len(eds, 1)
	s.Equal(ed.Modules, eds[0].Modules)
	s.Empty(eds[0].DefaultLanguageRefsets)

	date := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)
	r := &models.Refset{
		ID: id.NewRefsetRowID(), RefsetID: "32570071000036102", VersionDate: date, EditionID: ed.ID,
		Type: models.RefsetTypeExtensional, VersionStatus: models.VersionStatusPublished, Active: true,
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.CreateRefset(s.ctx, r))
	dup := *r
	dup.ID = id.NewRefsetRowID()
	s.ErrorIs(s.store.CreateRefset(s.ctx, &dup), sentinel.ErrConflict)

	r.LatestPublishedVersion = true
	s.Require().NoError(s.store.UpdateRefset(s.ctx, r))
	versions, err := s.store.ListRefsetVersions(s.ctx, r.RefsetID)
	s.Require().NoError(err)
	s.Require().Len(versions, 1)
	s.True(versions[0].LatestPublishedVersion)
	s.True(versions[0].VersionDate.Equal(date))
	s.Nil(versions[0].ProjectID)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackWithAudit() {
	audits := auditpostgres.New(s.postgres.DB)
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		org, _ := models.NewOrganization("Doomed", s.now)
		if err := s.store.CreateOrganization(ctx, org); err != nil {
			return err
		}
		if err := audits.Append(ctx, audit.Event{RunID: "run-1", Action: string(audit.EventOrganizationCreated), Timestamp: s.now}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	orgs, err := s.store.FindOrganizationsByName(s.ctx, "Doomed")
	s.Require().NoError(err)
	s.Empty(orgs)
	events, err := audits.ListByRun(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *PostgresStoreSuite) TestProjectsTeamsUsers() {
	org, ed := s.seedOrgAndEdition()

	p := &models.Project{ID: id.NewProjectID(), Name: "Example", Code: "exm", OrganizationID: org.ID, EditionID: &ed.ID, Active: true, CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	n, err := s.store.CountProjectsByEdition(s.ctx, ed.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	team := &models.Team{ID: id.NewTeamID(), Name: "Example", Type: models.TeamTypeProject, OrganizationID: org.ID, ProjectID: &p.ID, Active: true, CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.store.CreateTeam(s.ctx, team))
	team.Members = []string{"u1", "u2"}
	s.Require().NoError(s.store.UpdateTeam(s.ctx, team))
	teams, err := s.store.ListTeams(s.ctx, org.ID)
	s.Require().NoError(err)
	s.Require().Len(teams, 1)
	s.Equal([]string{"u1", "u2"}, teams[0].Members)
	s.Equal(p.ID, *teams[0].ProjectID)

	u := &models.User{ID: id.NewUserID(), Username: "u1", Name: "User One", Active: true, CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.store.CreateUser(s.ctx, u))
	u.Email = "u1@example.org"
	s.Require().NoError(s.store.UpdateUser(s.ctx, u))
	found, err := s.store.FindUserByUsername(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("u1@example.org", found.Email)

	_, err = s.store.FindUserByUsername(s.ctx, "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
