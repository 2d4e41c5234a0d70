package models

import (
	"time"

	id "biovault/pkg/domain"
	dErrors "biovault/pkg/domain-errors"
)

// BiometricTemplate is the persisted, encrypted representation of one
// enrolled biometric sample.
//
// Invariants:
//   - UserID is non-empty and the template is owned by exactly that user
//   - Type is a supported modality
//   - Template holds ciphertext only ("<hex-iv>:<hex-ciphertext>")
//   - Quality is within 0..100
//   - EnrollmentDate is immutable after construction
//
// Only LastUsed and IsActive change after creation.
type BiometricTemplate struct {
	ID             id.TemplateID `json:"id"`
	UserID         id.UserID     `json:"user_id"`
	Type           Modality      `json:"type"`
	Template       string        `json:"-"`
	Quality        int           `json:"quality"`
	EnrollmentDate time.Time     `json:"enrollment_date"`
	LastUsed       *time.Time    `json:"last_used,omitempty"`
	IsActive       bool          `json:"is_active"`
	DeviceInfo     *DeviceInfo   `json:"device_info,omitempty"`
}

// DeviceInfo is free-form capture context. Matching ignores it.
type DeviceInfo struct {
	Type  string `json:"type,omitempty" cbor:"type,omitempty"`
	Model string `json:"model,omitempty" cbor:"model,omitempty"`
	OS    string `json:"os,omitempty" cbor:"os,omitempty"`
}

// Location is optional context recorded with a validation attempt.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

// NewBiometricTemplate constructs an active template enrolled at now.
func NewBiometricTemplate(
	templateID id.TemplateID,
	userID id.UserID,
	modality Modality,
	ciphertext string,
	quality int,
	device *DeviceInfo,
	now time.Time,
) (*BiometricTemplate, error) {
	if templateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template id is required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template owner is required")
	}
	if !modality.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template modality is not supported")
	}
	if ciphertext == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template ciphertext is required")
	}
	if quality < 0 || quality > 100 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template quality must be between 0 and 100")
	}
	return &BiometricTemplate{
		ID:             templateID,
		UserID:         userID,
		Type:           modality,
		Template:       ciphertext,
		Quality:        quality,
		EnrollmentDate: now,
		IsActive:       true,
		DeviceInfo:     device,
	}, nil
}

// OwnedBy reports whether userID owns the template.
func (t *BiometricTemplate) OwnedBy(userID id.UserID) bool {
	return !userID.IsNil() && t.UserID == userID
}

// Deactivate excludes the template from matching. The record is retained.
func (t *BiometricTemplate) Deactivate() error {
	if !t.IsActive {
		return dErrors.New(dErrors.CodeInvalidState, "template is already inactive")
	}
	t.IsActive = false
	return nil
}

// Touch records a successful validation at now.
func (t *BiometricTemplate) Touch(now time.Time) {
	used := now
	t.LastUsed = &used
}
