package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"biovault/internal/biometric/models"
	id "biovault/pkg/domain"
	dErrors "biovault/pkg/domain-errors"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/sentinel"
)

const notFoundOrForbiddenMsg = "Template not found or access denied"

// DeleteTemplate hard-deletes a template owned by requesterID. Absent and
// foreign templates are indistinguishable to the caller and are not audited.
func (s *Service) DeleteTemplate(ctx context.Context, templateID id.TemplateID, requesterID id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "biometric.DeleteTemplate")
	defer span.End()

	tmpl, err := s.ownedTemplate(ctx, templateID, requesterID)
	if err != nil {
		return recordSpanError(span, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.templates.Delete(ctx, templateID)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return recordSpanError(span, dErrors.New(dErrors.CodeNotFoundOrForbidden, notFoundOrForbiddenMsg))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete biometric template",
			"template_id", templateID,
			"error", err,
		)
		return recordSpanError(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete biometric template"))
	}

	if s.metrics != nil {
		s.metrics.IncTemplateDeleted()
	}
	s.emitLifecycle(ctx, audit.ActionDeletion, tmpl)
	return nil
}

// DeactivateTemplate excludes a template owned by requesterID from matching
// while keeping the record.
func (s *Service) DeactivateTemplate(ctx context.Context, templateID id.TemplateID, requesterID id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "biometric.DeactivateTemplate")
	defer span.End()

	tmpl, err := s.ownedTemplate(ctx, templateID, requesterID)
	if err != nil {
		return recordSpanError(span, err)
	}
	if err := tmpl.Deactivate(); err != nil {
		return recordSpanError(span, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.templates.Deactivate(ctx, templateID)
	})
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrInvalidState):
		return recordSpanError(span, dErrors.New(dErrors.CodeInvalidState, "template is already inactive"))
	case errors.Is(err, sentinel.ErrNotFound):
		return recordSpanError(span, dErrors.New(dErrors.CodeNotFoundOrForbidden, notFoundOrForbiddenMsg))
	default:
		s.logger.ErrorContext(ctx, "failed to deactivate biometric template",
			"template_id", templateID,
			"error", err,
		)
		return recordSpanError(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate biometric template"))
	}

	if s.metrics != nil {
		s.metrics.IncTemplateDeactivated()
	}
	s.emitLifecycle(ctx, audit.ActionDeactivation, tmpl)
	return nil
}

// ListTemplates returns the user's templates in enrollment order, optionally
// filtered by modality.
func (s *Service) ListTemplates(ctx context.Context, userID id.UserID, modality *models.Modality) ([]*models.BiometricTemplate, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if modality != nil && !modality.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnsupportedModality, "unsupported biometric type")
	}
	templates, err := s.templates.ListByUser(ctx, userID, modality)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list biometric templates", "user_id", userID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list biometric templates")
	}
	return templates, nil
}

// HasTemplates reports whether the user has any stored template, active or not.
func (s *Service) HasTemplates(ctx context.Context, userID id.UserID) (bool, error) {
	if userID.IsNil() {
		return false, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	has, err := s.templates.HasAny(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check biometric templates", "user_id", userID, "error", err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check biometric templates")
	}
	return has, nil
}

func (s *Service) ownedTemplate(ctx context.Context, templateID id.TemplateID, requesterID id.UserID) (*models.BiometricTemplate, error) {
	tmpl, err := s.templates.FindByID(ctx, templateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFoundOrForbidden, notFoundOrForbiddenMsg)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load biometric template",
			"template_id", templateID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load biometric template")
	}
	if !tmpl.OwnedBy(requesterID) {
		return nil, dErrors.New(dErrors.CodeNotFoundOrForbidden, notFoundOrForbiddenMsg)
	}
	return tmpl, nil
}

// emitLifecycle audits a completed deletion or deactivation. The change has
// already happened, so a failed write is logged rather than returned.
func (s *Service) emitLifecycle(ctx context.Context, action audit.Action, tmpl *models.BiometricTemplate) {
	templateID := tmpl.ID
	err := s.auditor.Emit(ctx, audit.Event{
		Action:     action,
		TemplateID: &templateID,
		UserID:     tmpl.UserID,
		Details:    map[string]any{audit.DetailType: string(tmpl.Type)},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to audit biometric template change",
			"action", action,
			"template_id", templateID,
			"error", err,
		)
	}
}

func recordSpanError(span trace.Span, err error) error {
	span.SetAttributes(attribute.String("error_code", string(dErrors.CodeOf(err))))
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
	}
	return err
}
