package models

import (
	"strings"

	dErrors "biovault/pkg/domain-errors"
)

// Modality is a biometric trait class. The set is closed.
type Modality string

const (
	ModalityFingerprint Modality = "fingerprint"
	ModalityFace        Modality = "face"
	ModalityVoice       Modality = "voice"
	ModalityIris        Modality = "iris"
)

// Modalities lists every supported modality in a stable order.
var Modalities = []Modality{ModalityFingerprint, ModalityFace, ModalityVoice, ModalityIris}

// IsValid reports whether m is one of the supported modalities.
func (m Modality) IsValid() bool {
	switch m {
	case ModalityFingerprint, ModalityFace, ModalityVoice, ModalityIris:
		return true
	}
	return false
}

func (m Modality) String() string { return string(m) }

// ParseModality accepts the lowercase wire name of a modality. Surrounding
// whitespace and case are ignored.
func ParseModality(s string) (Modality, error) {
	m := Modality(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeUnsupportedModality, "unsupported biometric type")
	}
	return m, nil
}
