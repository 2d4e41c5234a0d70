package store

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"biovault/internal/biometric/models"
	id "biovault/pkg/domain"
	"biovault/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded template store for tests and single-process
// deployments.
type InMemory struct {
	mu        sync.RWMutex
	templates map[id.TemplateID]*models.BiometricTemplate
	order     []id.TemplateID
}

// NewInMemory constructs an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		templates: make(map[id.TemplateID]*models.BiometricTemplate),
	}
}

// CreateIfNoActive inserts t unless the user already has an active template
// of the same modality.
func (s *InMemory) CreateIfNoActive(_ context.Context, t *models.BiometricTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[t.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if t.IsActive {
		for _, existing := range s.templates {
			if existing.IsActive && existing.UserID == t.UserID && existing.Type == t.Type {
				return sentinel.ErrAlreadyUsed
			}
		}
	}
	s.templates[t.ID] = clone(t)
	s.order = append(s.order, t.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, templateID id.TemplateID) (*models.BiometricTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(t), nil
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID, modality *models.Modality) ([]*models.BiometricTemplate, error) {
	return s.list(func(t *models.BiometricTemplate) bool {
		return t.UserID == userID && matchesModality(t, modality)
	}), nil
}

func (s *InMemory) ListActive(_ context.Context, userID id.UserID, modality models.Modality) ([]*models.BiometricTemplate, error) {
	return s.list(func(t *models.BiometricTemplate) bool {
		return t.IsActive && t.UserID == userID && t.Type == modality
	}), nil
}

func (s *InMemory) list(keep func(*models.BiometricTemplate) bool) []*models.BiometricTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.FilterMap(s.order, func(templateID id.TemplateID, _ int) (*models.BiometricTemplate, bool) {
		t := s.templates[templateID]
		if !keep(t) {
			return nil, false
		}
		return clone(t), true
	})
}

func (s *InMemory) UpdateLastUsed(_ context.Context, templateID id.TemplateID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.Touch(usedAt)
	return nil
}

func (s *InMemory) Deactivate(_ context.Context, templateID id.TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !t.IsActive {
		return sentinel.ErrInvalidState
	}
	t.IsActive = false
	return nil
}

func (s *InMemory) Delete(_ context.Context, templateID id.TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[templateID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.templates, templateID)
	s.order = lo.Without(s.order, templateID)
	return nil
}

func (s *InMemory) HasAny(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.SomeBy(lo.Values(s.templates), func(t *models.BiometricTemplate) bool {
		return t.UserID == userID
	}), nil
}
