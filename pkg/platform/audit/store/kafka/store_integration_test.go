//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "biovault/pkg/domain"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/audit/store/kafka"
	"biovault/pkg/testutil/containers"
)

func TestStore_ProducesAuditEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)

	client, err := kafka.NewClient(broker.Brokers)
	require.NoError(t, err)
	defer client.Close()

	store := kafka.New(client, kafka.WithTopic("biometric.audit.test"))
	require.NoError(t, store.EnsureTopic(ctx, 1, 1))
	require.NoError(t, store.EnsureTopic(ctx, 1, 1), "ensuring an existing topic is a no-op")

	eventID := id.NewAuditEventID()
	require.NoError(t, store.Append(ctx, audit.Event{
		ID:        eventID,
		Category:  audit.CategoryCompliance,
		Action:    audit.ActionEnrollment,
		UserID:    "u1",
		Timestamp: time.Now(),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(store.Topic()),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())

	var records []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) { records = append(records, r) })
	require.Len(t, records, 1)
	assert.Equal(t, "u1", string(records[0].Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &payload))
	assert.Equal(t, eventID.String(), payload["id"])
	assert.Equal(t, "enrollment", payload["action"])
}
