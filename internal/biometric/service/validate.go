package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"biovault/internal/biometric/matching"
	"biovault/internal/biometric/modality"
	"biovault/internal/biometric/models"
	id "biovault/pkg/domain"
	dErrors "biovault/pkg/domain-errors"
	audit "biovault/pkg/platform/audit"
)

// match is the best-scoring stored template for a candidate.
type match struct {
	template   *models.BiometricTemplate
	confidence float64
}

// Validate matches a live sample against the user's active templates of the
// same modality. It never returns an error: negative outcomes and faults are
// both reported as IsValid=false with a reason.
func (s *Service) Validate(ctx context.Context, req models.ValidationRequest) models.ValidationResult {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "biometric.Validate", trace.WithAttributes(
		attribute.String("modality", string(req.Type)),
	))
	defer span.End()

	best, reason, err := s.findBestMatch(ctx, req)
	if err != nil {
		return s.failValidation(ctx, span, req, start, 0, models.ReasonInternal, err)
	}
	if reason != "" {
		return s.failValidation(ctx, span, req, start, 0, reason, nil)
	}

	threshold := s.cfg.Threshold(req.Type)
	if best.confidence < threshold {
		return s.failValidation(ctx, span, req, start, best.confidence, models.ReasonNoMatch, nil)
	}

	matchedID := best.template.ID
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.auditor.Emit(ctx, validationEvent(req, audit.ActionValidationSuccess, best.confidence, "", &matchedID))
	})
	if err != nil {
		// An admission without its audit entry is not granted.
		return s.failValidation(ctx, span, req, start, best.confidence, models.ReasonInternal, err)
	}
	// lastUsed only follows audited admissions. The audit entry is the
	// record of the success, so a failed touch does not revoke it.
	if err := s.templates.UpdateLastUsed(ctx, matchedID, s.clock()); err != nil {
		span.RecordError(err)
		s.logger.WarnContext(ctx, "failed to update template last used",
			"template_id", matchedID,
			"error", err,
		)
	}

	span.SetAttributes(
		attribute.String("outcome", outcomeSuccess),
		attribute.Float64("confidence", best.confidence),
	)
	s.observeValidation(req.Type, outcomeSuccess, best.confidence, start)
	return models.ValidationResult{
		IsValid:           true,
		Confidence:        best.confidence,
		MatchedTemplateID: &matchedID,
		ProcessingTime:    time.Since(start).Milliseconds(),
	}
}

// findBestMatch returns a non-empty reason for expected negative outcomes
// and an error only for faults.
func (s *Service) findBestMatch(ctx context.Context, req models.ValidationRequest) (match, string, error) {
	if req.UserID.IsNil() {
		return match{}, models.ReasonMissingUser, nil
	}
	if !req.Type.IsValid() {
		return match{}, models.ReasonUnsupportedType, nil
	}

	stored, err := s.templates.ListActive(ctx, req.UserID, req.Type)
	if err != nil {
		return match{}, "", fmt.Errorf("list active templates: %w", err)
	}
	if len(stored) == 0 {
		return match{}, models.ReasonNoTemplates, nil
	}
	if len(req.BiometricData) == 0 {
		return match{}, models.ReasonMissingBiometric, nil
	}

	candidate, err := s.processor.Process(ctx, req.BiometricData, req.Type)
	if err != nil {
		if isRejection(err) {
			return match{}, rejectionReason(err), nil
		}
		return match{}, "", fmt.Errorf("process candidate sample: %w", err)
	}

	scores, err := s.scoreAll(ctx, candidate.Template, stored, req.Type)
	if err != nil {
		return match{}, "", err
	}

	// Index-ordered fold: the first maximum in enrollment order wins ties.
	best := match{template: stored[0], confidence: scores[0]}
	for i := 1; i < len(scores); i++ {
		if scores[i] > best.confidence {
			best = match{template: stored[i], confidence: scores[i]}
		}
	}
	return best, "", nil
}

// scoreAll decrypts and scores every stored template in parallel. scores[i]
// belongs to stored[i].
func (s *Service) scoreAll(ctx context.Context, candidate string, stored []*models.BiometricTemplate, m models.Modality) ([]float64, error) {
	scores := make([]float64, len(stored))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ScoringConcurrency)
	for i, tmpl := range stored {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plain, err := s.cipher.Decrypt(tmpl.Template)
			if err != nil {
				return fmt.Errorf("decrypt template %s: %w", tmpl.ID, err)
			}
			scores[i] = matching.Clamp(s.matcher.Score(candidate, plain, m))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (s *Service) failValidation(
	ctx context.Context,
	span trace.Span,
	req models.ValidationRequest,
	start time.Time,
	confidence float64,
	reason string,
	cause error,
) models.ValidationResult {
	outcome := outcomeRejected
	if cause != nil {
		outcome = outcomeError
		span.RecordError(cause)
		span.SetStatus(codes.Error, "validation failed")
		s.logger.ErrorContext(ctx, "biometric validation failed",
			"user_id", req.UserID,
			"modality", req.Type,
			"error", cause,
		)
	}
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Float64("confidence", confidence),
	)

	if err := s.auditor.Emit(ctx, validationEvent(req, audit.ActionValidationFailed, confidence, reason, nil)); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit validation attempt",
			"user_id", req.UserID,
			"error", err,
		)
	}
	s.observeValidation(req.Type, outcome, confidence, start)

	return models.ValidationResult{
		IsValid:        false,
		Confidence:     confidence,
		Reason:         reason,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
}

func validationEvent(req models.ValidationRequest, action audit.Action, confidence float64, reason string, templateID *id.TemplateID) audit.Event {
	details := map[string]any{
		audit.DetailType:       string(req.Type),
		audit.DetailConfidence: confidence,
	}
	if reason != "" {
		details[audit.DetailReason] = reason
	}
	if req.DeviceInfo != nil {
		details[audit.DetailDevice] = *req.DeviceInfo
	}
	if req.Location != nil {
		details[audit.DetailLocation] = *req.Location
	}
	return audit.Event{
		Action:     action,
		TemplateID: templateID,
		UserID:     req.UserID,
		Details:    details,
	}
}

// rejectionReason maps a processor rejection to its client-facing reason.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, modality.ErrSampleRequired):
		return models.ReasonMissingBiometric
	case errors.Is(err, modality.ErrSampleTooLarge):
		return models.ReasonOversizedSample
	case dErrors.HasCode(err, dErrors.CodeUnsupportedModality):
		return models.ReasonUnsupportedType
	default:
		return models.ReasonUnreadableSample
	}
}

func (s *Service) observeValidation(m models.Modality, outcome string, confidence float64, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveValidation(string(m), outcome, confidence, start)
	}
}
