package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"biovault/internal/biometric/models"
	id "biovault/pkg/domain"
	"biovault/pkg/platform/sentinel"
)

const (
	templateKeyPrefix = "biometric:template:"
	userIndexPrefix   = "biometric:user:"
	activeSlotPrefix  = "biometric:active:"
	sequenceKey       = "biometric:seq"

	// maxTxRetries bounds optimistic transaction retries under contention.
	maxTxRetries = 5
)

// RedisStore keeps each template as a CBOR document. A per-user sorted set
// scored by a global sequence preserves enrollment order, and an active-slot
// key per (user, modality) holds the ID of the one active template.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed template store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func templateKey(templateID id.TemplateID) string {
	return templateKeyPrefix + templateID.String()
}

func userIndexKey(userID id.UserID) string {
	return userIndexPrefix + userID.String()
}

func activeSlotKey(userID id.UserID, modality models.Modality) string {
	return activeSlotPrefix + userID.String() + ":" + string(modality)
}

type document struct {
	ID             string             `cbor:"id"`
	UserID         string             `cbor:"user_id"`
	Type           string             `cbor:"type"`
	Template       string             `cbor:"template"`
	Quality        int                `cbor:"quality"`
	EnrollmentDate int64              `cbor:"enrolled_at"`
	LastUsed       *int64             `cbor:"last_used,omitempty"`
	IsActive       bool               `cbor:"is_active"`
	DeviceInfo     *models.DeviceInfo `cbor:"device_info,omitempty"`
}

func toDocument(t *models.BiometricTemplate) document {
	doc := document{
		ID:             t.ID.String(),
		UserID:         t.UserID.String(),
		Type:           string(t.Type),
		Template:       t.Template,
		Quality:        t.Quality,
		EnrollmentDate: t.EnrollmentDate.UnixNano(),
		IsActive:       t.IsActive,
		DeviceInfo:     t.DeviceInfo,
	}
	if t.LastUsed != nil {
		doc.LastUsed = lo.ToPtr(t.LastUsed.UnixNano())
	}
	return doc
}

func (d document) toModel() (*models.BiometricTemplate, error) {
	parsed, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode template id: %w", err)
	}
	t := &models.BiometricTemplate{
		ID:             id.TemplateID(parsed),
		UserID:         id.UserID(d.UserID),
		Type:           models.Modality(d.Type),
		Template:       d.Template,
		Quality:        d.Quality,
		EnrollmentDate: time.Unix(0, d.EnrollmentDate).UTC(),
		IsActive:       d.IsActive,
		DeviceInfo:     d.DeviceInfo,
	}
	if d.LastUsed != nil {
		t.LastUsed = lo.ToPtr(time.Unix(0, *d.LastUsed).UTC())
	}
	return t, nil
}

func decode(raw []byte) (document, error) {
	var doc document
	if err := cbor.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("decode template document: %w", err)
	}
	return doc, nil
}

// CreateIfNoActive claims the active slot and writes the document in one
// optimistic transaction. A slot pointing at a missing or inactive document
// is treated as free.
func (s *RedisStore) CreateIfNoActive(ctx context.Context, t *models.BiometricTemplate) error {
	raw, err := cbor.Marshal(toDocument(t))
	if err != nil {
		return fmt.Errorf("encode template document: %w", err)
	}
	seq, err := s.client.Incr(ctx, sequenceKey).Result()
	if err != nil {
		return fmt.Errorf("allocate template sequence: %w", err)
	}

	slot := activeSlotKey(t.UserID, t.Type)
	key := templateKey(t.ID)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check template id: %w", err)
		}
		if exists > 0 {
			return sentinel.ErrAlreadyUsed
		}
		if t.IsActive {
			taken, err := s.slotTaken(ctx, tx, slot)
			if err != nil {
				return err
			}
			if taken {
				return sentinel.ErrAlreadyUsed
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.ZAdd(ctx, userIndexKey(t.UserID), redis.Z{Score: float64(seq), Member: t.ID.String()})
			if t.IsActive {
				pipe.Set(ctx, slot, t.ID.String(), 0)
			}
			return nil
		})
		return err
	}, slot, key)
}

func (s *RedisStore) slotTaken(ctx context.Context, tx *redis.Tx, slot string) (bool, error) {
	holder, err := tx.Get(ctx, slot).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read active slot: %w", err)
	}
	raw, err := tx.Get(ctx, templateKeyPrefix+holder).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read active template: %w", err)
	}
	doc, err := decode(raw)
	if err != nil {
		return false, err
	}
	return doc.IsActive, nil
}

func (s *RedisStore) FindByID(ctx context.Context, templateID id.TemplateID) (*models.BiometricTemplate, error) {
	doc, err := s.load(ctx, s.client, templateID)
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, templateID id.TemplateID) (document, error) {
	raw, err := c.Get(ctx, templateKey(templateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return document{}, sentinel.ErrNotFound
	}
	if err != nil {
		return document{}, fmt.Errorf("get template document: %w", err)
	}
	return decode(raw)
}

func (s *RedisStore) ListByUser(ctx context.Context, userID id.UserID, modality *models.Modality) ([]*models.BiometricTemplate, error) {
	all, err := s.listUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(t *models.BiometricTemplate, _ int) bool {
		return matchesModality(t, modality)
	}), nil
}

func (s *RedisStore) ListActive(ctx context.Context, userID id.UserID, modality models.Modality) ([]*models.BiometricTemplate, error) {
	all, err := s.listUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(t *models.BiometricTemplate, _ int) bool {
		return t.IsActive && t.Type == modality
	}), nil
}

// listUser returns the user's templates in sequence order. Index members
// whose document has vanished are skipped.
func (s *RedisStore) listUser(ctx context.Context, userID id.UserID) ([]*models.BiometricTemplate, error) {
	members, err := s.client.ZRange(ctx, userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read user template index: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	keys := lo.Map(members, func(m string, _ int) string { return templateKeyPrefix + m })
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read template documents: %w", err)
	}

	out := make([]*models.BiometricTemplate, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		t, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) UpdateLastUsed(ctx context.Context, templateID id.TemplateID, usedAt time.Time) error {
	key := templateKey(templateID)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		doc, err := s.load(ctx, tx, templateID)
		if err != nil {
			return err
		}
		doc.LastUsed = lo.ToPtr(usedAt.UnixNano())
		raw, err := cbor.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode template document: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) Deactivate(ctx context.Context, templateID id.TemplateID) error {
	current, err := s.load(ctx, s.client, templateID)
	if err != nil {
		return err
	}
	key := templateKey(templateID)
	slot := activeSlotKey(id.UserID(current.UserID), models.Modality(current.Type))
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		doc, err := s.load(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if !doc.IsActive {
			return sentinel.ErrInvalidState
		}
		doc.IsActive = false
		raw, err := cbor.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode template document: %w", err)
		}
		holder, err := tx.Get(ctx, slot).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read active slot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			if holder == doc.ID {
				pipe.Del(ctx, slot)
			}
			return nil
		})
		return err
	}, key, slot)
}

func (s *RedisStore) Delete(ctx context.Context, templateID id.TemplateID) error {
	current, err := s.load(ctx, s.client, templateID)
	if err != nil {
		return err
	}
	key := templateKey(templateID)
	slot := activeSlotKey(id.UserID(current.UserID), models.Modality(current.Type))
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		if _, err := s.load(ctx, tx, templateID); err != nil {
			return err
		}
		holder, err := tx.Get(ctx, slot).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read active slot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, userIndexKey(id.UserID(current.UserID)), current.ID)
			if holder == current.ID {
				pipe.Del(ctx, slot)
			}
			return nil
		})
		return err
	}, key, slot)
}

func (s *RedisStore) HasAny(ctx context.Context, userID id.UserID) (bool, error) {
	n, err := s.client.ZCard(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("count user templates: %w", err)
	}
	return n > 0, nil
}

// withRetry runs fn under WATCH on keys, retrying when a watched key changed
// before EXEC.
func (s *RedisStore) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("template transaction contended: %w", sentinel.ErrUnavailable)
}
