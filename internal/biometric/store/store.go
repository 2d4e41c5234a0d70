// Package store persists biometric templates.
//
// Every backend offers a conditional insert (CreateIfNoActive) so that two
// concurrent enrollments for the same user and modality cannot both succeed.
// Listings are in enrollment order, oldest first; validation relies on that
// order to break confidence ties.
package store

import (
	"biovault/internal/biometric/models"
)

// clone returns a deep copy so callers cannot mutate stored state.
func clone(t *models.BiometricTemplate) *models.BiometricTemplate {
	if t == nil {
		return nil
	}
	out := *t
	if t.LastUsed != nil {
		used := *t.LastUsed
		out.LastUsed = &used
	}
	if t.DeviceInfo != nil {
		device := *t.DeviceInfo
		out.DeviceInfo = &device
	}
	return &out
}

func matchesModality(t *models.BiometricTemplate, modality *models.Modality) bool {
	return modality == nil || t.Type == *modality
}
