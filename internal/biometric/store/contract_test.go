package store

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"biovault/internal/biometric/models"
	id "biovault/pkg/domain"
	"biovault/pkg/platform/sentinel"
)

type templateStore interface {
	CreateIfNoActive(ctx context.Context, t *models.BiometricTemplate) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*models.BiometricTemplate, error)
	ListByUser(ctx context.Context, userID id.UserID, modality *models.Modality) ([]*models.BiometricTemplate, error)
	ListActive(ctx context.Context, userID id.UserID, modality models.Modality) ([]*models.BiometricTemplate, error)
	UpdateLastUsed(ctx context.Context, templateID id.TemplateID, usedAt time.Time) error
	Deactivate(ctx context.Context, templateID id.TemplateID) error
	Delete(ctx context.Context, templateID id.TemplateID) error
	HasAny(ctx context.Context, userID id.UserID) (bool, error)
}

var (
	_ templateStore = (*InMemory)(nil)
	_ templateStore = (*PostgresStore)(nil)
	_ templateStore = (*RedisStore)(nil)
)

// contractSuite holds behavior every backend must share. Backend suites
// embed it and set newStore.
type contractSuite struct {
	suite.Suite
	ctx      context.Context
	store    templateStore
	newStore func() templateStore
}

func (s *contractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func (s *contractSuite) newTemplate(user id.UserID, modality models.Modality) *models.BiometricTemplate {
	t, err := models.NewBiometricTemplate(id.NewTemplateID(), user, modality, "00:11", 90,
		&models.DeviceInfo{Type: "mobile", OS: "iOS"}, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return t
}

func (s *contractSuite) TestCreateAndFind() {
	t := s.newTemplate("u1", models.ModalityFace)
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, t))

	found, err := s.store.FindByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(t.ID, found.ID)
	s.Equal(t.UserID, found.UserID)
	s.Equal(t.Type, found.Type)
	s.Equal(t.Template, found.Template)
	s.Equal(t.Quality, found.Quality)
	s.True(found.IsActive)
	s.Nil(found.LastUsed)
	s.True(t.EnrollmentDate.Equal(found.EnrollmentDate))
	s.Require().NotNil(found.DeviceInfo)
	s.Equal("iOS", found.DeviceInfo.OS)

	_, err = s.store.FindByID(s.ctx, id.NewTemplateID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestCreateIfNoActive() {
	s.Run("rejects second active template for user and modality", func() {
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("dup", models.ModalityIris)))
		err := s.store.CreateIfNoActive(s.ctx, s.newTemplate("dup", models.ModalityIris))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("other modality and other user are independent", func() {
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("indep", models.ModalityIris)))
		s.NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("indep", models.ModalityVoice)))
		s.NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("indep-2", models.ModalityIris)))
	})

	s.Run("slot frees after deactivation", func() {
		first := s.newTemplate("deact", models.ModalityFace)
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, first))
		s.Require().NoError(s.store.Deactivate(s.ctx, first.ID))
		s.NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("deact", models.ModalityFace)))
	})

	s.Run("slot frees after deletion", func() {
		first := s.newTemplate("del", models.ModalityFace)
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, first))
		s.Require().NoError(s.store.Delete(s.ctx, first.ID))
		s.NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("del", models.ModalityFace)))
	})
}

func (s *contractSuite) TestConcurrentEnrollmentAdmitsOne() {
	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateIfNoActive(s.ctx, s.newTemplate("race", models.ModalityFingerprint))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	active, err := s.store.ListActive(s.ctx, "race", models.ModalityFingerprint)
	s.Require().NoError(err)
	s.Len(active, 1)
}

func (s *contractSuite) TestListingOrderAndFilters() {
	first := s.newTemplate("lister", models.ModalityFace)
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, first))
	s.Require().NoError(s.store.Deactivate(s.ctx, first.ID))
	second := s.newTemplate("lister", models.ModalityFace)
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, second))
	voice := s.newTemplate("lister", models.ModalityVoice)
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, voice))
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, s.newTemplate("someone-else", models.ModalityFace)))

	all, err := s.store.ListByUser(s.ctx, "lister", nil)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]id.TemplateID{first.ID, second.ID, voice.ID}, []id.TemplateID{all[0].ID, all[1].ID, all[2].ID})

	face := models.ModalityFace
	faces, err := s.store.ListByUser(s.ctx, "lister", &face)
	s.Require().NoError(err)
	s.Require().Len(faces, 2)
	s.Equal(first.ID, faces[0].ID)
	s.False(faces[0].IsActive)

	active, err := s.store.ListActive(s.ctx, "lister", models.ModalityFace)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(second.ID, active[0].ID)

	none, err := s.store.ListActive(s.ctx, "nobody", models.ModalityFace)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *contractSuite) TestUpdateLastUsed() {
	t := s.newTemplate("touch", models.ModalityIris)
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, t))

	used := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.UpdateLastUsed(s.ctx, t.ID, used))

	found, err := s.store.FindByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.LastUsed)
	s.True(used.Equal(*found.LastUsed))
	s.True(found.IsActive)

	s.ErrorIs(s.store.UpdateLastUsed(s.ctx, id.NewTemplateID(), used), sentinel.ErrNotFound)
}

func (s *contractSuite) TestDeactivate() {
	t := s.newTemplate("off", models.ModalityVoice)
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, t))

	s.Require().NoError(s.store.Deactivate(s.ctx, t.ID))
	found, err := s.store.FindByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.False(found.IsActive)

	s.ErrorIs(s.store.Deactivate(s.ctx, t.ID), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.Deactivate(s.ctx, id.NewTemplateID()), sentinel.ErrNotFound)
}

func (s *contractSuite) TestDeleteAndHasAny() {
	has, err := s.store.HasAny(s.ctx, "gone")
	s.Require().NoError(err)
	s.False(has)

	t := s.newTemplate("gone", models.ModalityFace)
	s.Require().NoError(s.store.CreateIfNoActive(s.ctx, t))
	has, err = s.store.HasAny(s.ctx, "gone")
	s.Require().NoError(err)
	s.True(has)

	s.Require().NoError(s.store.Delete(s.ctx, t.ID))
	_, err = s.store.FindByID(s.ctx, t.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, t.ID), sentinel.ErrNotFound)

	has, err = s.store.HasAny(s.ctx, "gone")
	s.Require().NoError(err)
	s.False(has)
}
