package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/sentinel"
)

// ComplianceHandler appends compliance events (enrollment, deletion,
// deactivation) to the durable audit log. Redelivered events are skipped.
type ComplianceHandler struct {
	store  audit.Store
	logger *slog.Logger
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store audit.Store, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{store: store, logger: logger}
}

// Handle stores a compliance event.
func (h *ComplianceHandler) Handle(ctx context.Context, event audit.Event) error {
	if event.Action.Category() != audit.CategoryCompliance {
		h.logger.ErrorContext(ctx, "CRITICAL: non-compliance action on compliance route",
			"event_id", event.ID,
			"action", event.Action,
		)
		return nil
	}
	return appendOnce(ctx, h.store, h.logger, event)
}

// appendOnce stores event, treating an existing entry as success.
func appendOnce(ctx context.Context, store audit.Store, logger *slog.Logger, event audit.Event) error {
	err := store.Append(ctx, event)
	switch {
	case err == nil:
		logger.DebugContext(ctx, "stored audit event",
			"event_id", event.ID,
			"action", event.Action,
			"user_id", event.UserID,
		)
		return nil
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		logger.DebugContext(ctx, "audit event already stored", "event_id", event.ID)
		return nil
	default:
		logger.ErrorContext(ctx, "failed to store audit event",
			"event_id", event.ID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store audit event: %w", err)
	}
}
