//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"biovault/internal/biometric/models"
	"biovault/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	contractSuite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := new(RedisStoreSuite)
	s.newStore = func() templateStore { return NewRedis(s.redis.Client) }
	suite.Run(t, s)
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.contractSuite.SetupTest()
}

// TestStaleSlotIsReclaimed verifies an active slot whose document vanished
// does not block enrollment.
func (s *RedisStoreSuite) TestStaleSlotIsReclaimed() {
	t := s.newTemplate("stale", models.ModalityFace)
	s.Require().NoError(s.redis.Client.Set(s.ctx, activeSlotKey("stale", models.ModalityFace), t.ID.String(), 0).Err())

	s.NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("stale", models.ModalityFace)))
}
