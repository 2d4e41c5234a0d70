//go:build integration

package consumer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "biovault/pkg/domain"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/audit/consumer"
	"biovault/pkg/platform/audit/store/kafka"
	auditmemory "biovault/pkg/platform/audit/store/memory"
	"biovault/pkg/testutil/containers"
)

func TestConsumer_ProjectsStreamIntoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)
	const topic = "biometric.audit.consumer-test"

	producer, err := kafka.NewClient(broker.Brokers)
	require.NoError(t, err)
	defer producer.Close()
	stream := kafka.New(producer, kafka.WithTopic(topic))
	require.NoError(t, stream.EnsureTopic(ctx, 1, 1))

	tid := id.NewTemplateID()
	for _, e := range []audit.Event{
		{ID: id.NewAuditEventID(), Action: audit.ActionEnrollment, TemplateID: &tid, UserID: "u1"},
		{ID: id.NewAuditEventID(), Action: audit.ActionValidationFailed, UserID: "u1"},
		{ID: id.NewAuditEventID(), Action: audit.ActionDeletion, TemplateID: &tid, UserID: "u1"},
	} {
		e.Category = e.Action.Category()
		e.Timestamp = time.Now().UTC()
		require.NoError(t, stream.Append(ctx, e))
	}

	client, err := consumer.NewClient(broker.Brokers, "consumer-test", topic)
	require.NoError(t, err)
	defer client.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := auditmemory.NewInMemoryStore()
	router := consumer.NewRouter(logger, nil)
	router.Register(audit.CategoryCompliance, consumer.NewComplianceHandler(sink, logger))
	router.Register(audit.CategorySecurity, consumer.NewSecurityHandler(sink, logger))

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.New(client, router, logger).Run(runCtx) }()

	require.Eventually(t, func() bool { return sink.Len() == 3 }, 60*time.Second, 200*time.Millisecond)
	stop()
	require.NoError(t, <-done)

	events, err := sink.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, audit.ActionEnrollment, events[0].Action)
	assert.Equal(t, tid, *events[0].TemplateID)
}
