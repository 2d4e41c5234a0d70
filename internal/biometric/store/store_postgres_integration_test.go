//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"biovault/internal/biometric/models"
	txcontext "biovault/pkg/platform/tx"
	"biovault/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	contractSuite
	postgres *containers.PostgresContainer
	pg       *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := new(PostgresStoreSuite)
	s.newStore = func() templateStore { return s.pg }
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.pg = NewPostgres(s.postgres.DB)
	s.Require().NoError(s.pg.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "biometric_templates"))
	s.contractSuite.SetupTest()
}

func (s *PostgresStoreSuite) TestInsertRollsBackWithTransaction() {
	runner := txcontext.NewSQLRunner(s.postgres.DB)
	t := s.newTemplate("tx", models.ModalityFace)

	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.pg.CreateIfNoActive(ctx, t); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	has, err := s.pg.HasAny(s.ctx, "tx")
	s.Require().NoError(err)
	s.False(has)
}
