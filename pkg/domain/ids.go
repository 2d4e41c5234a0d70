// Package domain holds the typed identifiers shared across modules.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "biovault/pkg/domain-errors"
)

// MaxUserIDLength bounds opaque user identifiers issued by the host platform.
const MaxUserIDLength = 128

// UserID identifies the subject owning biometric templates. It is opaque: the
// host platform's document store issues it, so it is not required to be a UUID.
type UserID string

// TemplateID identifies a stored biometric template.
type TemplateID uuid.UUID

// AuditEventID identifies a single audit entry.
type AuditEventID uuid.UUID

func (u UserID) String() string { return string(u) }

func (u UserID) IsNil() bool { return u == "" }

func (t TemplateID) String() string { return uuid.UUID(t).String() }

func (t TemplateID) IsNil() bool { return uuid.UUID(t) == uuid.Nil }

func (a AuditEventID) String() string { return uuid.UUID(a).String() }

// MarshalText renders the canonical UUID form so JSON carries a string.
func (t TemplateID) MarshalText() ([]byte, error) { return uuid.UUID(t).MarshalText() }

// UnmarshalText parses a template ID, rejecting the nil UUID.
func (t *TemplateID) UnmarshalText(b []byte) error {
	parsed, err := ParseTemplateID(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (a AuditEventID) MarshalText() ([]byte, error) { return uuid.UUID(a).MarshalText() }

// NewTemplateID generates a random template identifier.
func NewTemplateID() TemplateID { return TemplateID(uuid.New()) }

// NewAuditEventID generates a random audit event identifier.
func NewAuditEventID() AuditEventID { return AuditEventID(uuid.New()) }

// ParseUserID validates an opaque user identifier at a trust boundary.
// Rejects empty, oversized, non-UTF8, whitespace, control characters and '/'.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if len(s) > MaxUserIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id must be valid UTF-8")
	}
	if strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' || unicode.Is(unicode.Cf, r)
	}) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id contains invalid characters")
	}
	return UserID(s), nil
}

// ParseTemplateID parses a template identifier, rejecting the nil UUID.
func ParseTemplateID(s string) (TemplateID, error) {
	if s == "" {
		return TemplateID{}, dErrors.New(dErrors.CodeInvalidInput, "template id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return TemplateID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid template id")
	}
	if parsed == uuid.Nil {
		return TemplateID{}, dErrors.New(dErrors.CodeInvalidInput, "template id cannot be nil")
	}
	return TemplateID(parsed), nil
}
