package models

import (
	id "biovault/pkg/domain"
)

// EnrollRequest carries one raw sample to enroll.
type EnrollRequest struct {
	UserID        id.UserID
	Type          Modality
	BiometricData []byte
	DeviceInfo    *DeviceInfo
}

// ValidationRequest carries one raw sample to match against the user's
// active templates of the same modality.
type ValidationRequest struct {
	UserID        id.UserID
	Type          Modality
	BiometricData []byte
	DeviceInfo    *DeviceInfo
	Location      *Location
}

// ValidationResult is the outcome of a validation attempt. A negative outcome
// is a result, not an error.
type ValidationResult struct {
	IsValid           bool           `json:"is_valid"`
	Confidence        float64        `json:"confidence"`
	MatchedTemplateID *id.TemplateID `json:"matched_template_id,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	// ProcessingTime is elapsed wall time in milliseconds.
	ProcessingTime int64 `json:"processing_time"`
}

// Reasons reported on negative validation results.
const (
	ReasonNoTemplates      = "No biometric templates found for user"
	ReasonNoMatch          = "Biometric validation failed"
	ReasonInternal         = "Internal server error during validation"
	ReasonMissingUser      = "User id is required"
	ReasonUnsupportedType  = "Unsupported biometric type"
	ReasonMissingBiometric = "Biometric data is required"
	ReasonOversizedSample  = "Biometric data exceeds maximum size"
	ReasonUnreadableSample = "Biometric data could not be processed"
)
