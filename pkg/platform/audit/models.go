package audit

import (
	"context"
	"time"

	id "biovault/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing per category.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// creation and destruction of biometric data. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication decisions that feed SIEM and alerting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity; can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Action names the operation an audit entry records.
type Action string

const (
	ActionEnrollment        Action = "enrollment"
	ActionValidationSuccess Action = "validation_success"
	ActionValidationFailed  Action = "validation_failed"
	ActionDeletion          Action = "deletion"
	ActionDeactivation      Action = "deactivation"
)

var actionCategories = map[Action]EventCategory{
	ActionEnrollment:   CategoryCompliance,
	ActionDeletion:     CategoryCompliance,
	ActionDeactivation: CategoryCompliance,

	ActionValidationSuccess: CategorySecurity,
	ActionValidationFailed:  CategorySecurity,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Detail keys written by the biometric service.
const (
	DetailType       = "type"
	DetailQuality    = "quality"
	DetailConfidence = "confidence"
	DetailReason     = "reason"
	DetailOutcome    = "outcome"
	DetailDevice     = "device"
	DetailLocation   = "location"
	DetailDurationMs = "processing_time_ms"
)

// Event is one append-only audit entry. TemplateID is nil when no template
// could be identified (e.g. a rejected enrollment or a validation with no
// enrolled templates).
type Event struct {
	ID         id.AuditEventID
	Category   EventCategory
	Action     Action
	TemplateID *id.TemplateID
	UserID     id.UserID
	Details    map[string]any
	Timestamp  time.Time
	// RequestID is the correlation ID from the request context.
	RequestID string
	// ActorID tracks who performed the action when different from UserID.
	ActorID string
}

// Store persists audit events. Append-only: no update or delete path.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister reads back events for a user, oldest first.
type Lister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
