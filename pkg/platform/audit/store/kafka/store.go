// Package kafka streams biometric audit events to a Kafka topic. The topic is
// the system of record for this backend; consumers materialize it elsewhere.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	id "biovault/pkg/domain"
	audit "biovault/pkg/platform/audit"
)

// DefaultTopic receives biometric audit events.
const DefaultTopic = "biometric.audit"

// Store produces audit events synchronously, keyed by user so a user's
// events stay ordered within one partition.
type Store struct {
	client *kgo.Client
	topic  string
}

// Option configures the Store.
type Option func(*Store)

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) Option {
	return func(s *Store) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// New builds a Store over an existing client. The client lifecycle is owned by
// the caller.
func New(client *kgo.Client, opts ...Option) *Store {
	s := &Store{client: client, topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient dials the given brokers with producer settings suitable for audit:
// all in-sync replicas must acknowledge.
func NewClient(brokers []string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates the topic if it does not exist.
func (s *Store) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopic(ctx, partitions, replicationFactor, nil, s.topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic %s: %w", s.topic, err)
	}
	return nil
}

// Topic returns the destination topic.
func (s *Store) Topic() string { return s.topic }

// payload is the JSON document published per event.
type payload struct {
	ID         string         `json:"id"`
	Category   string         `json:"category"`
	Action     string         `json:"action"`
	TemplateID string         `json:"template_id,omitempty"`
	UserID     string         `json:"user_id"`
	Details    map[string]any `json:"details,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

func encode(event audit.Event) ([]byte, error) {
	p := payload{
		ID:        event.ID.String(),
		Category:  string(event.Category),
		Action:    string(event.Action),
		UserID:    event.UserID.String(),
		Details:   event.Details,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if event.TemplateID != nil {
		p.TemplateID = event.TemplateID.String()
	}
	return json.Marshal(p)
}

// Decode parses a record value produced by Append.
func Decode(value []byte) (audit.Event, error) {
	var p payload
	if err := json.Unmarshal(value, &p); err != nil {
		return audit.Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	eventID, err := uuid.Parse(p.ID)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse audit event id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse audit timestamp: %w", err)
	}

	event := audit.Event{
		ID:        id.AuditEventID(eventID),
		Category:  audit.EventCategory(p.Category),
		Action:    audit.Action(p.Action),
		UserID:    id.UserID(p.UserID),
		Details:   p.Details,
		Timestamp: ts,
		RequestID: p.RequestID,
		ActorID:   p.ActorID,
	}
	if event.Action == "" {
		return audit.Event{}, errors.New("audit payload has no action")
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if p.TemplateID != "" {
		tid, err := id.ParseTemplateID(p.TemplateID)
		if err != nil {
			return audit.Event{}, fmt.Errorf("parse audit template id: %w", err)
		}
		event.TemplateID = &tid
	}
	return event, nil
}

// Append produces the event and waits for the broker acknowledgement.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := encode(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
