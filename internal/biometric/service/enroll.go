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

// Enrollment outcomes recorded in audit details and metrics.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

const enrollFailedMsg = "failed to enroll biometric template"

var errDuplicateEnrollment = dErrors.New(dErrors.CodeDuplicateEnrollment, "an active template already exists for this biometric type")

// Enroll processes, encrypts and stores a new active template.
//
// Business-rule failures (missing user, unsupported modality, empty sample,
// duplicate active template) are returned with their own codes. Every other
// failure is CodeInternal with the cause logged here.
func (s *Service) Enroll(ctx context.Context, req models.EnrollRequest) (*models.BiometricTemplate, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.Enroll", trace.WithAttributes(
		attribute.String("modality", string(req.Type)),
	))
	defer span.End()

	tmpl, err := s.buildTemplate(ctx, req)
	if err != nil {
		return nil, s.failEnrollment(ctx, span, req, err)
	}

	var inserted bool
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.templates.CreateIfNoActive(ctx, tmpl); err != nil {
			return err
		}
		inserted = true
		return s.auditor.Emit(ctx, enrollmentEvent(req, &tmpl.ID, outcomeSuccess, tmpl.Quality, ""))
	})
	switch {
	case err == nil:
	case inserted:
		// The audit write or commit failed after the insert.
		s.compensateEnrollment(ctx, tmpl.ID)
		return nil, s.failEnrollment(ctx, span, req, dErrors.Wrap(err, dErrors.CodeInternal, enrollFailedMsg))
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return nil, s.failEnrollment(ctx, span, req, errDuplicateEnrollment)
	default:
		return nil, s.failEnrollment(ctx, span, req, dErrors.Wrap(err, dErrors.CodeInternal, enrollFailedMsg))
	}

	span.SetAttributes(attribute.String("outcome", outcomeSuccess))
	s.incEnrollment(req.Type, outcomeSuccess)
	s.logger.InfoContext(ctx, "biometric template enrolled",
		"user_id", req.UserID,
		"template_id", tmpl.ID,
		"modality", req.Type,
		"quality", tmpl.Quality,
	)
	return tmpl, nil
}

func (s *Service) buildTemplate(ctx context.Context, req models.EnrollRequest) (*models.BiometricTemplate, error) {
	if req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if !req.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnsupportedModality, "unsupported biometric type")
	}

	// Early duplicate check; CreateIfNoActive still settles races.
	active, err := s.templates.ListActive(ctx, req.UserID, req.Type)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, enrollFailedMsg)
	}
	if len(active) > 0 {
		return nil, errDuplicateEnrollment
	}

	processed, err := s.processor.Process(ctx, req.BiometricData, req.Type)
	if err != nil {
		if isRejection(err) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, enrollFailedMsg)
	}

	ciphertext, err := s.cipher.Encrypt(processed.Template)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, enrollFailedMsg)
	}

	tmpl, err := models.NewBiometricTemplate(id.NewTemplateID(), req.UserID, req.Type,
		ciphertext, processed.Quality, req.DeviceInfo, s.clock())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, enrollFailedMsg)
	}
	return tmpl, nil
}

// compensateEnrollment removes a template whose audit entry was not
// persisted. Under a SQL runner the insert already rolled back, so the
// template is legitimately absent.
func (s *Service) compensateEnrollment(ctx context.Context, templateID id.TemplateID) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.templates.Delete(ctx, templateID)
	})
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "CRITICAL: failed to remove unaudited biometric template",
			"template_id", templateID,
			"error", err,
		)
	}
}

// failEnrollment audits a failed attempt and returns err. Internal causes are
// logged once, here.
func (s *Service) failEnrollment(ctx context.Context, span trace.Span, req models.EnrollRequest, err error) error {
	outcome := outcomeRejected
	if !isRejection(err) {
		outcome = outcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrollment failed")
		s.logger.ErrorContext(ctx, "biometric enrollment failed",
			"user_id", req.UserID,
			"modality", req.Type,
			"error", err,
		)
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	s.incEnrollment(req.Type, outcome)

	if auditErr := s.auditor.Emit(ctx, enrollmentEvent(req, nil, outcome, 0, string(dErrors.CodeOf(err)))); auditErr != nil {
		s.logger.ErrorContext(ctx, "failed to audit rejected enrollment",
			"user_id", req.UserID,
			"error", auditErr,
		)
	}
	return err
}

func enrollmentEvent(req models.EnrollRequest, templateID *id.TemplateID, outcome string, quality int, reason string) audit.Event {
	details := map[string]any{
		audit.DetailType:    string(req.Type),
		audit.DetailOutcome: outcome,
	}
	if outcome == outcomeSuccess {
		details[audit.DetailQuality] = quality
	}
	if reason != "" {
		details[audit.DetailReason] = reason
	}
	if req.DeviceInfo != nil {
		details[audit.DetailDevice] = *req.DeviceInfo
	}
	return audit.Event{
		Action:     audit.ActionEnrollment,
		TemplateID: templateID,
		UserID:     req.UserID,
		Details:    details,
	}
}

// isRejection reports whether err is an expected business-rule failure
// rather than an infrastructure fault.
func isRejection(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation,
		dErrors.CodeInvalidInput,
		dErrors.CodeUnsupportedModality,
		dErrors.CodeDuplicateEnrollment:
		return true
	}
	return false
}

func (s *Service) incEnrollment(m models.Modality, outcome string) {
	if s.metrics != nil {
		s.metrics.IncEnrollment(string(m), outcome)
	}
}
