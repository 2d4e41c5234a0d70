package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "biovault/pkg/domain"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/sentinel"
	txcontext "biovault/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

// Store appends audit events to biometric_audit_logs. There is no update or
// delete path.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the audit table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// Append writes an audit event, joining the caller's transaction when present.
// Re-appending an existing event ID returns sentinel.ErrAlreadyUsed.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var templateID *uuid.UUID
	if event.TemplateID != nil {
		tid := uuid.UUID(*event.TemplateID)
		templateID = &tid
	}

	query := `
		INSERT INTO biometric_audit_logs (
			id, category, action, template_id, user_id,
			details, request_id, actor_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		string(event.Category),
		string(event.Action),
		templateID,
		event.UserID.String(),
		detailsJSON,
		event.RequestID,
		event.ActorID,
		event.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("audit event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns events for a user, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT id, category, action, template_id, user_id,
			   details, request_id, actor_id, created_at
		FROM biometric_audit_logs
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			eventID    uuid.UUID
			category   string
			action     string
			templateID *uuid.UUID
			user       string
			details    []byte
		)
		if err := rows.Scan(
			&eventID,
			&category,
			&action,
			&templateID,
			&user,
			&details,
			&event.RequestID,
			&event.ActorID,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.ID = id.AuditEventID(eventID)
		event.Category = audit.EventCategory(category)
		event.Action = audit.Action(action)
		event.UserID = id.UserID(user)
		if templateID != nil {
			tid := id.TemplateID(*templateID)
			event.TemplateID = &tid
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
