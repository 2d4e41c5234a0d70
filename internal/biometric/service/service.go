// Package service orchestrates biometric enrollment, validation and template
// lifecycle.
//
// Enrollment and validation each write exactly one audit entry per call,
// including rejected and failed attempts. Enrollment is fail-closed: a
// template whose audit entry cannot be written is removed again.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"biovault/internal/biometric/matching"
	"biovault/internal/biometric/metrics"
	"biovault/internal/biometric/modality"
	"biovault/internal/biometric/models"
	id "biovault/pkg/domain"
	audit "biovault/pkg/platform/audit"
	txcontext "biovault/pkg/platform/tx"
)

const tracerName = "biovault/biometric"

type TemplateStore interface {
	CreateIfNoActive(ctx context.Context, t *models.BiometricTemplate) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*models.BiometricTemplate, error)
	ListByUser(ctx context.Context, userID id.UserID, modality *models.Modality) ([]*models.BiometricTemplate, error)
	ListActive(ctx context.Context, userID id.UserID, modality models.Modality) ([]*models.BiometricTemplate, error)
	UpdateLastUsed(ctx context.Context, templateID id.TemplateID, usedAt time.Time) error
	Deactivate(ctx context.Context, templateID id.TemplateID) error
	Delete(ctx context.Context, templateID id.TemplateID) error
	HasAny(ctx context.Context, userID id.UserID) (bool, error)
}

type ModalityProcessor interface {
	Process(ctx context.Context, sample []byte, m models.Modality) (modality.Result, error)
}

type TemplateCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config is immutable after New.
type Config struct {
	// MinConfidence is the admission threshold for every modality without
	// an override.
	MinConfidence float64
	// Thresholds overrides MinConfidence per modality.
	Thresholds map[models.Modality]float64
	// ScoringConcurrency bounds parallel decrypt-and-score work per request.
	ScoringConcurrency int
}

const (
	DefaultMinConfidence      = 85
	DefaultScoringConcurrency = 8
)

// DefaultConfig returns the reference threshold of 85 for all modalities.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      DefaultMinConfidence,
		ScoringConcurrency: DefaultScoringConcurrency,
	}
}

// Threshold returns the admission threshold for m.
func (c Config) Threshold(m models.Modality) float64 {
	if t, ok := c.Thresholds[m]; ok {
		return t
	}
	return c.MinConfidence
}

// Service orchestrates template enrollment, validation and lifecycle.
type Service struct {
	templates TemplateStore
	processor ModalityProcessor
	cipher    TemplateCipher
	matcher   matching.Matcher
	auditor   AuditPublisher
	tx        txcontext.Runner
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	clock     func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConfig replaces DefaultConfig. Zero fields fall back to defaults.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.MinConfidence <= 0 {
			cfg.MinConfidence = DefaultMinConfidence
		}
		if cfg.ScoringConcurrency <= 0 {
			cfg.ScoringConcurrency = DefaultScoringConcurrency
		}
		thresholds := make(map[models.Modality]float64, len(cfg.Thresholds))
		for m, t := range cfg.Thresholds {
			thresholds[m] = t
		}
		cfg.Thresholds = thresholds
		s.cfg = cfg
	}
}

// WithTxRunner makes template writes and their audit entries one unit of
// work when both stores share a database.
func WithTxRunner(r txcontext.Runner) Option {
	return func(s *Service) {
		if r != nil {
			s.tx = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides time.Now for enrollment and last-used timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a Service.
func New(
	templates TemplateStore,
	processor ModalityProcessor,
	cipher TemplateCipher,
	matcher matching.Matcher,
	auditor AuditPublisher,
	opts ...Option,
) *Service {
	s := &Service{
		templates: templates,
		processor: processor,
		cipher:    cipher,
		matcher:   matcher,
		auditor:   auditor,
		tx:        txcontext.Noop{},
		cfg:       DefaultConfig(),
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer(tracerName),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}
