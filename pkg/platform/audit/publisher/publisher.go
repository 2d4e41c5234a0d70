// Package publisher emits biometric audit events with fail-closed semantics.
//
// Emit writes synchronously and returns the store error; callers decide
// whether the business operation may proceed without its audit entry.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	id "biovault/pkg/domain"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/requestcontext"
)

// Metrics records publisher outcomes. Satisfied by the biometric metrics.
type Metrics interface {
	IncAuditPersistFailures(action string)
	ObserveAuditPersist(start time.Time)
}

// Publisher stamps and persists audit events.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics Metrics
	clock   func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithClock overrides the request-scoped time. Without it, events are
// stamped with requestcontext.Now.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewPublisher creates a synchronous publisher over store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates, stamps and persists event. UserID may be empty: a request
// rejected for lacking a subject is still audited.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	start := time.Now()

	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}

	if event.ID == (id.AuditEventID{}) {
		event.ID = id.NewAuditEventID()
	}
	if event.Timestamp.IsZero() {
		if p.clock != nil {
			event.Timestamp = p.clock()
		} else {
			event.Timestamp = requestcontext.Now(ctx)
		}
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	event.Category = event.Action.Category()

	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncAuditPersistFailures(string(event.Action))
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: biometric audit failed",
				"action", event.Action,
				"user_id", event.UserID,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObserveAuditPersist(start)
	}
	return nil
}
