package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"refsync/internal/reconcile/catalog"
	"refsync/internal/reconcile/fetcher"
	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/ports/mocks"
	"refsync/internal/reconcile/stats"
	"refsync/internal/reconcile/store"
	idp "refsync/internal/remote/identity"
	"refsync/pkg/requestcontext"
)

// =============================================================================
// Identity Reconciler Test Suite
// =============================================================================
// The identity provider is mocked; the fetcher and the in-memory store are
// real so rules travel the same path as in production.

type IdentitySuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	idp     *mocks.MockIdentityProvider
	store   *store.InMemory
	stats   *stats.Stats
	r       *Reconciler
	ctx     context.Context
	cfg     models.Config
	csiro   *models.Organization
	nzOrg   *models.Organization
	au      *models.Edition
	nz      *models.Edition
	catalog *catalog.Catalog
}

func TestIdentitySuite(t *testing.T) {
	suite.Run(t, new(IdentitySuite))
}

func (s *IdentitySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.idp = mocks.NewMockIdentityProvider(s.ctrl)
	s.store = store.NewInMemory()
	s.stats = stats.New()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	s.cfg = models.Config{Production: true, AdminUsernames: []string{"admin"}}

	var err error
	s.catalog, err = catalog.Parse([]byte(`
version: 1
projects:
  - edition: SNOMEDCT-AU
    code: AMT
    name: AMT Platform
`))
	s.Require().NoError(err)

	f, err := fetcher.New(mocks.NewMockTerminology(s.ctrl), s.idp)
	s.Require().NoError(err)
	s.r, err = New(s.store, f, s.stats,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCatalog(s.catalog),
	)
	s.Require().NoError(err)

	now := requestcontext.Now(s.ctx)
	s.csiro, _ = models.NewOrganization("CSIRO", now)
	s.nzOrg, _ = models.NewOrganization("Te Whatu Ora", now)
	s.Require().NoError(s.store.CreateOrganization(s.ctx, s.csiro))
	s.Require().NoError(s.store.CreateOrganization(s.ctx, s.nzOrg))
	s.au, _ = models.NewEdition("SNOMEDCT-AU", s.csiro.ID, now)
	s.nz, _ = models.NewEdition("SNOMEDCT-NZ", s.nzOrg.ID, now)
	s.Require().NoError(s.store.CreateEdition(s.ctx, s.au))
	s.Require().NoError(s.store.CreateEdition(s.ctx, s.nz))

	// The NZ edition is curated already and must not be touched.
	curated, _ := models.NewProject("Existing", "", s.nzOrg.ID, &s.nz.ID, now)
	s.Require().NoError(s.store.CreateProject(s.ctx, curated))
}

func (s *IdentitySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *IdentitySuite) expectRules() {
	s.idp.EXPECT().GroupMembers(gomock.Any(), fetcher.RulePrefix).Return(map[string][]string{
		"rt2-csiro-au-amt-author":        {"alice", "Bob"},
		"rt2-csiro-au-amt-reviewer":      {"bob"},
		"rt2-all-all-all-viewer":         {"carol"},
		"rt2-tewhatuora-nz-nzproj-owner": {"dave"},
		"rt2-csiro-au-all-viewer":        {"erin"},
		"not-a-rule":                     {"mallory"},
	}, nil)
}

func profile(username string) *idp.Profile {
	return &idp.Profile{Username: username, DisplayName: "User " + username, Email: username + "@example.org", Active: true}
}

func (s *IdentitySuite) expectProfiles(usernames ...string) {
	for _, u := range usernames {
		s.idp.EXPECT().User(gomock.Any(), u).Return(profile(u), nil)
	}
}

func (s *IdentitySuite) reload(org *models.Organization) *models.Organization {
	got, err := s.store.GetOrganization(s.ctx, org.ID)
	s.Require().NoError(err)
	return got
}

func (s *IdentitySuite) TestNew() {
	_, err := New(nil, nil, s.stats)
	s.ErrorContains(err, "store is required")
	_, err = New(s.store, nil, s.stats)
	s.ErrorContains(err, "directory is required")
}

func (s *IdentitySuite) TestDerivesUsersMembershipAndProjects() {
	s.expectRules()
	s.expectProfiles("alice", "bob", "carol", "erin")

	s.Require().NoError(s.r.Reconcile(s.ctx, s.cfg, []*models.Edition{s.au, s.nz}))

	user, err := s.store.FindUserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("User alice", user.Name)
	_, err = s.store.FindUserByUsername(s.ctx, "dave")
	s.Error(err, "rules of curated editions are ignored")

	csiro := s.reload(s.csiro)
	s.ElementsMatch([]string{"admin", "carol", "alice", "bob", "erin"}, csiro.Members)
	nzOrg := s.reload(s.nzOrg)
	s.ElementsMatch([]string{"admin", "carol"}, nzOrg.Members)

	projects, err := s.store.ListProjects(s.ctx, s.csiro.ID)
	s.Require().NoError(err)
	s.Require().Len(projects, 1)
	s.Equal("AMT Platform", projects[0].Name)
	s.Equal("amt", projects[0].Code)

	teams, err := s.store.ListTeams(s.ctx, s.csiro.ID)
	s.Require().NoError(err)
	var projectTeam, adminTeam *models.Team
	for _, t := range teams {
		if t.IsAdmin() {
			adminTeam = t
		} else {
			projectTeam = t
		}
	}
	s.Require().NotNil(projectTeam)
	s.Require().NotNil(adminTeam)
	s.ElementsMatch([]string{"alice", "bob"}, projectTeam.Members)
	s.Equal([]string{"admin"}, adminTeam.Members)

	report := s.stats.Snapshot()
	s.Equal(4, report.Count(stats.LayerUser, stats.Added))
	s.Equal(1, report.Count(stats.LayerProject, stats.Added))
}

func (s *IdentitySuite) TestCuratedEditionsAreSkipped() {
	s.expectRules()
	s.expectProfiles("alice", "bob", "carol", "erin")
	s.Require().NoError(s.r.Reconcile(s.ctx, s.cfg, []*models.Edition{s.au}))

	s.stats.Reset("second", time.Time{})
	s.Require().NoError(s.r.Reconcile(s.ctx, s.cfg, []*models.Edition{s.au, s.nz}))
	s.Zero(s.stats.Snapshot().Total())
}

func (s *IdentitySuite) TestExistingUserDrift() {
	old, err := models.NewUser("alice", time.Now())
	s.Require().NoError(err)
	old.Name = "Alice Old"
	old.Email = "alice@example.org"
	s.Require().NoError(s.store.CreateUser(s.ctx, old))

	s.expectRules()
	s.expectProfiles("alice", "bob", "carol", "erin")
	s.Require().NoError(s.r.Reconcile(s.ctx, s.cfg, []*models.Edition{s.au}))

	user, err := s.store.FindUserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("User alice", user.Name)
	s.Equal(1, s.stats.Snapshot().Count(stats.LayerUser, stats.Modified))
}

func (s *IdentitySuite) TestSynthesizedProjectName() {
	s.idp.EXPECT().GroupMembers(gomock.Any(), gomock.Any()).Return(map[string][]string{
		"rt2-csiro-au-medicines-author": {"alice"},
	}, nil)
	s.expectProfiles("alice")
	s.Require().NoError(s.r.Reconcile(s.ctx, s.cfg, []*models.Edition{s.au}))

	projects, err := s.store.ListProjects(s.ctx, s.csiro.ID)
	s.Require().NoError(err)
	s.Require().Len(projects, 1)
	s.Equal("MEDICINES", projects[0].Name)
}

func (s *IdentitySuite) TestProfileFailureAborts() {
	s.expectRules()
	s.idp.EXPECT().User(gomock.Any(), "alice").Return(nil, errors.New("identity provider down"))

	err := s.r.Reconcile(s.ctx, s.cfg, []*models.Edition{s.au})
	s.ErrorContains(err, "identity provider down")
}
