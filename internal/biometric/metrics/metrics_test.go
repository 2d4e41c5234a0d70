package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncEnrollment("face", "success")
	m.IncEnrollment("face", "rejected")
	m.IncEnrollment("face", "success")
	m.ObserveValidation("iris", "success", 100, time.Now())
	m.IncTemplateDeleted()
	m.IncTemplateDeactivated()
	m.IncAuditPersistFailures("enrollment")
	m.ObserveAuditPersist(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Enrollments.WithLabelValues("face", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Enrollments.WithLabelValues("face", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("iris", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TemplatesDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TemplatesDeactivated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditPersistFailures.WithLabelValues("enrollment")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
