package handler

import (
	"time"

	"github.com/samber/lo"

	"biovault/internal/biometric/models"
)

// TemplateResponse is the client view of a template. Ciphertext is never
// returned.
type TemplateResponse struct {
	ID             string             `json:"id"`
	Type           string             `json:"type"`
	Quality        int                `json:"quality"`
	EnrollmentDate time.Time          `json:"enrollment_date"`
	LastUsed       *time.Time         `json:"last_used,omitempty"`
	IsActive       bool               `json:"is_active"`
	DeviceInfo     *models.DeviceInfo `json:"device_info,omitempty"`
}

// ListTemplatesResponse wraps GET /biometrics/templates.
type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

// StatusResponse is the body of GET /biometrics/status.
type StatusResponse struct {
	HasTemplates bool `json:"has_templates"`
}

func toTemplateResponse(t *models.BiometricTemplate) TemplateResponse {
	return TemplateResponse{
		ID:             t.ID.String(),
		Type:           t.Type.String(),
		Quality:        t.Quality,
		EnrollmentDate: t.EnrollmentDate,
		LastUsed:       t.LastUsed,
		IsActive:       t.IsActive,
		DeviceInfo:     t.DeviceInfo,
	}
}

func toListResponse(templates []*models.BiometricTemplate) ListTemplatesResponse {
	return ListTemplatesResponse{
		Templates: lo.Map(templates, func(t *models.BiometricTemplate, _ int) TemplateResponse {
			return toTemplateResponse(t)
		}),
	}
}
