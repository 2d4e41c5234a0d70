package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the biometric module.
type Metrics struct {
	Enrollments          *prometheus.CounterVec
	Validations          *prometheus.CounterVec
	Confidence           *prometheus.HistogramVec
	ValidationDuration   *prometheus.HistogramVec
	TemplatesDeleted     prometheus.Counter
	TemplatesDeactivated prometheus.Counter
	AuditPersistFailures *prometheus.CounterVec
	AuditPersistDuration prometheus.Histogram
}

// New registers the biometric metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "biovault_enrollments_total",
			Help: "Enrollment attempts by modality and outcome",
		}, []string{"modality", "outcome"}),
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "biovault_validations_total",
			Help: "Validation attempts by modality and outcome",
		}, []string{"modality", "outcome"}),
		Confidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "biovault_validation_confidence",
			Help:    "Best confidence score per validation attempt",
			Buckets: []float64{10, 25, 50, 70, 80, 85, 90, 95, 99, 100},
		}, []string{"modality"}),
		ValidationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "biovault_validation_duration_seconds",
			Help:    "Duration of Validate operations",
			Buckets: latencyBuckets,
		}, []string{"modality"}),
		TemplatesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "biovault_templates_deleted_total",
			Help: "Templates hard-deleted by their owner",
		}),
		TemplatesDeactivated: f.NewCounter(prometheus.CounterOpts{
			Name: "biovault_templates_deactivated_total",
			Help: "Templates deactivated by their owner",
		}),
		AuditPersistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "biovault_audit_persist_failures_total",
			Help: "Biometric audit events that failed to persist",
		}, []string{"action"}),
		AuditPersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "biovault_audit_persist_duration_seconds",
			Help:    "Duration of synchronous audit writes",
			Buckets: latencyBuckets,
		}),
	}
}

func (m *Metrics) IncEnrollment(modality, outcome string) {
	m.Enrollments.WithLabelValues(modality, outcome).Inc()
}

// ObserveValidation records outcome, confidence and duration of one attempt.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveValidation(modality, outcome string, confidence float64, start time.Time) {
	m.Validations.WithLabelValues(modality, outcome).Inc()
	m.Confidence.WithLabelValues(modality).Observe(confidence)
	m.ValidationDuration.WithLabelValues(modality).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncTemplateDeleted() {
	m.TemplatesDeleted.Inc()
}

func (m *Metrics) IncTemplateDeactivated() {
	m.TemplatesDeactivated.Inc()
}

func (m *Metrics) IncAuditPersistFailures(action string) {
	m.AuditPersistFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveAuditPersist(start time.Time) {
	m.AuditPersistDuration.Observe(time.Since(start).Seconds())
}
