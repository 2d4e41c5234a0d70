package handler

import (
	"encoding/base64"
	"strings"

	"biovault/internal/biometric/models"
	dErrors "biovault/pkg/domain-errors"
)

// DeviceInfoRequest is optional capture context supplied by the client.
type DeviceInfoRequest struct {
	Type  string `json:"type"`
	Model string `json:"model"`
	OS    string `json:"os"`
}

// LocationRequest is optional location context for a validation attempt.
type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
}

// EnrollRequest is the body of POST /biometrics/templates.
type EnrollRequest struct {
	Type          string             `json:"type"`
	BiometricData string             `json:"biometric_data"`
	DeviceInfo    *DeviceInfoRequest `json:"device_info,omitempty"`

	sample []byte
}

// Validate decodes the sample. The modality and emptiness checks belong to
// the service so rejected attempts are still audited.
func (r *EnrollRequest) Validate() error {
	sample, err := decodeSample(r.BiometricData)
	if err != nil {
		return err
	}
	r.sample = sample
	if err := validateDevice(r.DeviceInfo); err != nil {
		return err
	}
	return nil
}

// Modality returns the normalized, unvalidated type.
func (r *EnrollRequest) Modality() models.Modality { return normalizeType(r.Type) }

// Sample returns the decoded biometric data.
func (r *EnrollRequest) Sample() []byte { return r.sample }

// ValidateRequest is the body of POST /biometrics/validate.
type ValidateRequest struct {
	Type          string             `json:"type"`
	BiometricData string             `json:"biometric_data"`
	DeviceInfo    *DeviceInfoRequest `json:"device_info,omitempty"`
	Location      *LocationRequest   `json:"location,omitempty"`

	sample []byte
}

func (r *ValidateRequest) Validate() error {
	sample, err := decodeSample(r.BiometricData)
	if err != nil {
		return err
	}
	r.sample = sample
	if err := validateDevice(r.DeviceInfo); err != nil {
		return err
	}
	if l := r.Location; l != nil {
		if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
			return dErrors.New(dErrors.CodeValidation, "location is out of range")
		}
		if len(l.Label) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, "location label is too long")
		}
	}
	return nil
}

func (r *ValidateRequest) Modality() models.Modality { return normalizeType(r.Type) }

func (r *ValidateRequest) Sample() []byte { return r.sample }

const maxFieldLength = 128

func normalizeType(t string) models.Modality {
	return models.Modality(strings.ToLower(strings.TrimSpace(t)))
}

// decodeSample accepts padded or unpadded standard base64. An empty field
// decodes to nil.
func decodeSample(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	enc := base64.StdEncoding
	if !strings.HasSuffix(data, "=") && len(data)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	sample, err := enc.DecodeString(data)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "biometric_data must be base64 encoded")
	}
	return sample, nil
}

func validateDevice(d *DeviceInfoRequest) error {
	if d == nil {
		return nil
	}
	d.Type = strings.TrimSpace(d.Type)
	d.Model = strings.TrimSpace(d.Model)
	d.OS = strings.TrimSpace(d.OS)
	if len(d.Type) > maxFieldLength || len(d.Model) > maxFieldLength || len(d.OS) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "device_info fields must be at most 128 characters")
	}
	return nil
}
