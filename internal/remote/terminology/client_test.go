package terminology

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/suite"

	"refsync/internal/remote"
)

const testBaseURL = "http://terminology.test/snowstorm/snomed-ct"

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveRemoteRequest(service, outcome string) {
	r.outcomes = append(r.outcomes, service+":"+outcome)
}

type ClientSuite struct {
	suite.Suite
	client   *Client
	observer *recordingObserver
	ctx      context.Context
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	hc := &http.Client{}
	gock.InterceptClient(hc)
	s.observer = &recordingObserver{}
	c, err := New(testBaseURL,
		WithHTTPClient(hc),
		WithMaxRetries(2),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithObserver(s.observer),
	)
	s.Require().NoError(err)
	s.client = c
	s.ctx = context.Background()
}

func (s *ClientSuite) TearDownTest() {
	s.True(gock.IsDone(), "pending mocks")
	gock.OffAll()
}

func (s *ClientSuite) TestNew() {
	_, err := New("")
	s.Error(err)
}

func (s *ClientSuite) TestCodeSystems() {
	gock.New(testBaseURL).
		Get("/codesystems").
		Reply(200).
		JSON(map[string]any{
			"items": []map[string]any{
				{
					"name":                         "SNOMED CT Example Edition",
					"shortName":                    "SNOMEDCT-XX",
					"branchPath":                   "MAIN/SNOMEDCT-XX",
					"owner":                        "Example Health",
					"defaultLanguageCode":          "en",
					"defaultLanguageReferenceSets": []string{"900000000000509007"},
					"modules":                      []map[string]any{{"conceptId": "11000000102"}},
				},
			},
		})

	systems, err := s.client.CodeSystems(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(systems, 1)
	s.Equal("SNOMEDCT-XX", systems[0].ShortName)
	s.Equal("Example Health", systems[0].OrganizationName())
	s.Equal([]string{"11000000102"}, systems[0].ModuleIDs())
	s.Equal([]string{"terminology:ok"}, s.observer.outcomes)
}

func (s *ClientSuite) TestBranchChildren() {
	gock.New(testBaseURL).
		Get("/branches/MAIN/SNOMEDCT-XX/children").
		Reply(200).
		JSON([]map[string]string{
			{"path": "MAIN/SNOMEDCT-XX/2023-03-31"},
			{"path": "MAIN/SNOMEDCT-XX/PROJECT"},
		})

	children, err := s.client.BranchChildren(s.ctx, "MAIN/SNOMEDCT-XX")
	s.Require().NoError(err)
	s.Equal([]BranchChild{{Path: "MAIN/SNOMEDCT-XX/2023-03-31"}, {Path: "MAIN/SNOMEDCT-XX/PROJECT"}}, children)
}

func (s *ClientSuite) TestRefsetMembership() {
	gock.New(testBaseURL).
		Get("/browser/MAIN/SNOMEDCT-XX/2023-03-31/members").
		MatchParam("active", "true").
		Reply(200).
		JSON(map[string]any{
			"memberCountsByReferenceSet": map[string]int{"32570071000036102": 42},
			"referenceSets": map[string]any{
				"32570071000036102": map[string]any{
					"conceptId": "32570071000036102",
					"moduleId":  "11000000102",
					"active":    true,
					"pt":        map[string]string{"term": "Example refset", "lang": "en"},
				},
			},
		})

	m, err := s.client.RefsetMembership(s.ctx, "MAIN/SNOMEDCT-XX/2023-03-31", "< 446609009")
	s.Require().NoError(err)
	s.Equal(42, m.MemberCountsByReferenceSet["32570071000036102"])
	s.Equal("Example refset", m.ReferenceSets["32570071000036102"].PreferredTerm())
}

func (s *ClientSuite) TestConceptLookups() {
	gock.New(testBaseURL).
		Get("/MAIN/SNOMEDCT-XX/concepts/32570071000036102").
		Reply(200).
		JSON(map[string]any{"conceptId": "32570071000036102", "moduleId": "11000000102", "active": true})
	gock.New(testBaseURL).
		Get("/browser/MAIN/SNOMEDCT-XX/concepts/32570071000036102").
		Reply(200).
		JSON(map[string]any{
			"conceptId": "32570071000036102",
			"moduleId":  "11000000102",
			"descriptions": []map[string]any{{
				"term": "Example refset", "lang": "en", "type": "SYNONYM", "active": true,
				"acceptabilityMap": map[string]string{"900000000000509007": "PREFERRED"},
			}},
		})

	summary, err := s.client.Concept(s.ctx, "MAIN/SNOMEDCT-XX", "32570071000036102")
	s.Require().NoError(err)
	s.Equal("11000000102", summary.ModuleID)

	detail, err := s.client.BrowserConcept(s.ctx, "MAIN/SNOMEDCT-XX", "32570071000036102")
	s.Require().NoError(err)
	s.Require().Len(detail.Descriptions, 1)
	s.Equal(AcceptabilityPreferred, detail.Descriptions[0].AcceptabilityMap["900000000000509007"])
}

func (s *ClientSuite) TestLatestMemberChange() {
	s.Run("returns the latest effective time", func() {
		gock.New(testBaseURL).
			Get("/MAIN/SNOMEDCT-XX/2023-03-31/members").
			MatchParam("referenceSet", "32570071000036102").
			Reply(200).
			JSON(map[string]any{
				"total": 3,
				"items": []map[string]any{
					{"memberId": "a", "effectiveTime": "20220930"},
					{"memberId": "b", "effectiveTime": "20230331"},
					{"memberId": "c"},
				},
			})

		latest, err := s.client.LatestMemberChange(s.ctx, "MAIN/SNOMEDCT-XX/2023-03-31", "32570071000036102")
		s.Require().NoError(err)
		s.Require().NotNil(latest)
		s.Equal(time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), *latest)
	})

	s.Run("returns nil when nothing is published", func() {
		gock.New(testBaseURL).
			Get("/MAIN/SNOMEDCT-XX/members").
			Reply(200).
			JSON(map[string]any{"total": 1, "items": []map[string]any{{"memberId": "a"}}})

		latest, err := s.client.LatestMemberChange(s.ctx, "MAIN/SNOMEDCT-XX", "32570071000036102")
		s.Require().NoError(err)
		s.Nil(latest)
	})
}

func (s *ClientSuite) TestErrors() {
	s.Run("not found is not retried", func() {
		gock.New(testBaseURL).
			Get("/branches/MAIN/GONE/children").
			Times(1).
			Reply(404).
			BodyString(`{"message":"Branch not found"}`)

		_, err := s.client.BranchChildren(s.ctx, "MAIN/GONE")
		s.Require().Error(err)
		s.True(remote.IsNotFound(err))
	})

	s.Run("outage is retried until success", func() {
		gock.New(testBaseURL).Get("/codesystems").Reply(503)
		gock.New(testBaseURL).Get("/codesystems").Reply(200).JSON(map[string]any{"items": []any{}})

		systems, err := s.client.CodeSystems(s.ctx)
		s.Require().NoError(err)
		s.Empty(systems)
	})

	s.Run("outage gives up after max retries", func() {
		gock.New(testBaseURL).Get("/codesystems").Times(3).Reply(502)

		_, err := s.client.CodeSystems(s.ctx)
		s.Require().Error(err)
		s.Equal(remote.ErrorOutage, remote.GetCategory(err))
	})

	s.Run("malformed payload is bad data", func() {
		gock.New(testBaseURL).Get("/codesystems").Reply(200).BodyString("{not json")

		_, err := s.client.CodeSystems(s.ctx)
		s.Require().Error(err)
		s.Equal(remote.ErrorBadData, remote.GetCategory(err))
	})
}
