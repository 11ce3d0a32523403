//go:build integration

package conceptcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refsync/internal/conceptcache"
	"refsync/internal/remote/terminology"
	"refsync/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *conceptcache.Redis
	ctx   context.Context
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = conceptcache.NewRedis(s.redis.Client, conceptcache.WithTTL(time.Minute))
	s.ctx = context.Background()
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.Reset(s.ctx, "refsync:"))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	_, ok := s.cache.Get(s.ctx, "MAIN", "32570071000036102")
	s.False(ok)

	s.cache.Set(s.ctx, "MAIN", "32570071000036102", &terminology.ConceptSummary{
		ConceptID: "32570071000036102",
		ModuleID:  "11000000102",
		PT:        &terminology.Term{Term: "Example refset", Lang: "en"},
	})

	got, ok := s.cache.Get(s.ctx, "MAIN", "32570071000036102")
	s.Require().True(ok)
	s.Equal("11000000102", got.ModuleID)
	s.Equal("Example refset", got.PreferredTerm())

	ttl, err := s.redis.Client.TTL(s.ctx, "refsync:concept:MAIN|32570071000036102").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestCorruptEntryIsAMiss() {
	s.Require().NoError(s.redis.Client.Set(s.ctx, "refsync:concept:MAIN|1", "{oops", 0).Err())
	_, ok := s.cache.Get(s.ctx, "MAIN", "1")
	s.False(ok)
}
