package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	auditkafka "biovault/pkg/platform/audit/store/kafka"
)

// fetcher is the slice of *kgo.Client the consumer uses.
type fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// Consumer reads the audit topic in a consumer group and commits offsets
// only after every record of a poll has been handled.
type Consumer struct {
	client  fetcher
	handler Handler
	logger  *slog.Logger
}

// NewClient builds a group consumer client with manual commits.
func NewClient(brokers []string, group, topic string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return client, nil
}

// New creates a Consumer over a client built by NewClient.
func New(client *kgo.Client, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, handler: handler, logger: logger}
}

// Run polls until ctx is cancelled or the client closes. A handler error
// stops the loop without committing, so the batch is redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		records := fetches.Records()
		for _, rec := range records {
			if err := c.process(ctx, rec); err != nil {
				return err
			}
		}
		if len(records) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, records...); err != nil {
			return fmt.Errorf("commit audit offsets: %w", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, rec *kgo.Record) error {
	event, err := auditkafka.Decode(rec.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "CRITICAL: malformed audit record",
			"topic", rec.Topic,
			"partition", rec.Partition,
			"offset", rec.Offset,
			"error", err,
		)
		// Malformed records must not block the partition.
		return nil
	}
	return c.handler.Handle(ctx, event)
}
