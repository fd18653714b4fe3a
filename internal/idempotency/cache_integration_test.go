//go:build integration

package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"taxbridge/internal/idempotency"
	"taxbridge/internal/platform/redis"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *idempotency.Cache
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())

	client, err := redis.New(context.Background(), s.redis.URL)
	s.Require().NoError(err)
	s.cache = idempotency.New(client, time.Hour)
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CacheSuite) TestMissThenHit() {
	ctx := context.Background()
	ref := domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-0001"}

	got, err := s.cache.Get(ctx, ref, domain.ArtifactKindReceipt)
	s.Require().NoError(err)
	s.Nil(got)

	outcome := idempotency.CachedOutcome{
		Status:      "committed",
		Producer:    "pos-api",
		ExternalRef: "DDTD-001",
		DecidedAt:   time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(s.cache.Set(ctx, ref, domain.ArtifactKindReceipt, outcome))

	got, err = s.cache.Get(ctx, ref, domain.ArtifactKindReceipt)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(outcome, *got)
}

func (s *CacheSuite) TestKindsAreIndependent() {
	ctx := context.Background()
	ref := domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-0002"}

	s.Require().NoError(s.cache.Set(ctx, ref, domain.ArtifactKindReceipt, idempotency.CachedOutcome{Status: "committed"}))

	got, err := s.cache.Get(ctx, ref, domain.ArtifactKindPayment)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *CacheSuite) TestInvalidate() {
	ctx := context.Background()
	ref := domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-0003"}

	s.Require().NoError(s.cache.Set(ctx, ref, domain.ArtifactKindReceipt, idempotency.CachedOutcome{Status: "committed"}))
	s.Require().NoError(s.cache.Invalidate(ctx, ref, domain.ArtifactKindReceipt))

	got, err := s.cache.Get(ctx, ref, domain.ArtifactKindReceipt)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *CacheSuite) TestDisabledCacheIsNoop() {
	ctx := context.Background()
	ref := domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-0004"}
	disabled := idempotency.New(nil, time.Hour)

	s.Require().NoError(disabled.Set(ctx, ref, domain.ArtifactKindReceipt, idempotency.CachedOutcome{Status: "committed"}))
	got, err := disabled.Get(ctx, ref, domain.ArtifactKindReceipt)
	s.Require().NoError(err)
	s.Nil(got)
}
