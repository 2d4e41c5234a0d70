package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"biovault/internal/biometric/models"
	id "biovault/pkg/domain"
	"biovault/pkg/platform/sentinel"
	txcontext "biovault/pkg/platform/tx"
)

//go:embed migrations.sql
var Migrations string

const uniqueViolation = "23505"

// PostgresStore persists templates in biometric_templates. Writes join the
// transaction carried in the context, if any.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed template store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the table and index definitions.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Migrations); err != nil {
		return fmt.Errorf("migrate biometric templates: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const templateColumns = `id, user_id, modality, template, quality, enrollment_date, last_used, is_active, device_info`

// CreateIfNoActive relies on the partial unique index over active rows.
func (s *PostgresStore) CreateIfNoActive(ctx context.Context, t *models.BiometricTemplate) error {
	device, err := marshalDevice(t.DeviceInfo)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO biometric_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID),
		t.UserID.String(),
		string(t.Type),
		t.Template,
		t.Quality,
		t.EnrollmentDate,
		t.LastUsed,
		t.IsActive,
		device,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert biometric template: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, templateID id.TemplateID) (*models.BiometricTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM biometric_templates WHERE id = $1`
	t, err := scanTemplate(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(templateID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find biometric template: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, modality *models.Modality) ([]*models.BiometricTemplate, error) {
	if modality == nil {
		query := `SELECT ` + templateColumns + ` FROM biometric_templates WHERE user_id = $1 ORDER BY seq`
		return s.query(ctx, query, userID.String())
	}
	query := `SELECT ` + templateColumns + ` FROM biometric_templates WHERE user_id = $1 AND modality = $2 ORDER BY seq`
	return s.query(ctx, query, userID.String(), string(*modality))
}

func (s *PostgresStore) ListActive(ctx context.Context, userID id.UserID, modality models.Modality) ([]*models.BiometricTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM biometric_templates
		WHERE user_id = $1 AND modality = $2 AND is_active
		ORDER BY seq
	`
	return s.query(ctx, query, userID.String(), string(modality))
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.BiometricTemplate, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query biometric templates: %w", err)
	}
	defer rows.Close()

	var out []*models.BiometricTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan biometric template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate biometric templates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateLastUsed(ctx context.Context, templateID id.TemplateID, usedAt time.Time) error {
	query := `UPDATE biometric_templates SET last_used = $2 WHERE id = $1`
	return s.execAffectingOne(ctx, "update last used", query, uuid.UUID(templateID), usedAt)
}

// Deactivate returns ErrInvalidState when the template exists but is already
// inactive.
func (s *PostgresStore) Deactivate(ctx context.Context, templateID id.TemplateID) error {
	query := `UPDATE biometric_templates SET is_active = FALSE WHERE id = $1 AND is_active`
	err := s.execAffectingOne(ctx, "deactivate biometric template", query, uuid.UUID(templateID))
	if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	if _, findErr := s.FindByID(ctx, templateID); findErr != nil {
		return findErr
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) Delete(ctx context.Context, templateID id.TemplateID) error {
	query := `DELETE FROM biometric_templates WHERE id = $1`
	return s.execAffectingOne(ctx, "delete biometric template", query, uuid.UUID(templateID))
}

func (s *PostgresStore) HasAny(ctx context.Context, userID id.UserID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM biometric_templates WHERE user_id = $1)`
	if err := s.execer(ctx).QueryRowContext(ctx, query, userID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check biometric templates: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) execAffectingOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.BiometricTemplate, error) {
	var (
		t          models.BiometricTemplate
		templateID uuid.UUID
		userID     string
		modality   string
		lastUsed   sql.NullTime
		device     []byte
	)
	if err := row.Scan(
		&templateID,
		&userID,
		&modality,
		&t.Template,
		&t.Quality,
		&t.EnrollmentDate,
		&lastUsed,
		&t.IsActive,
		&device,
	); err != nil {
		return nil, err
	}
	t.ID = id.TemplateID(templateID)
	t.UserID = id.UserID(userID)
	t.Type = models.Modality(modality)
	if lastUsed.Valid {
		used := lastUsed.Time
		t.LastUsed = &used
	}
	if len(device) > 0 {
		t.DeviceInfo = &models.DeviceInfo{}
		if err := json.Unmarshal(device, t.DeviceInfo); err != nil {
			return nil, fmt.Errorf("unmarshal device info: %w", err)
		}
	}
	return &t, nil
}

// marshalDevice returns a JSON string, or an untyped nil for SQL NULL.
func marshalDevice(d *models.DeviceInfo) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal device info: %w", err)
	}
	return string(b), nil
}
