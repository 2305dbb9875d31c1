package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CallbackDeliveryStore is a webhooks.DeliveryLedger backed by
// commerce_callback_deliveries. The unique delivery_id index makes Claim
// safe across processes.
type CallbackDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*callbackDeliveryRecord]
	now  func() time.Time
}

func NewCallbackDeliveryStore(db *bun.DB) (*CallbackDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*callbackDeliveryRecord](db, callbackDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid callback delivery repository wiring: %w", err)
		}
	}
	return &CallbackDeliveryStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *CallbackDeliveryStore) Claim(
	ctx context.Context,
	deliveryID string,
	eventType string,
	payload []byte,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: callback delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}

	now := s.now()
	record := &callbackDeliveryRecord{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		EventType:  strings.TrimSpace(eventType),
		Status:     webhooks.DeliveryStatusPending,
		Attempts:   1,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return webhooks.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, deliveryID)
	}
	return callbackDeliveryToDomain(record), true, nil
}

// reclaim moves a retry_ready delivery back to pending. Only the caller whose
// update matched the row owns the new attempt.
func (s *CallbackDeliveryStore) reclaim(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, bool, error) {
	res, err := s.db.NewUpdate().
		Model((*callbackDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusPending).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", webhooks.DeliveryStatusRetryReady).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	existing, err := s.Get(ctx, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return existing, affected == 1, nil
}

func (s *CallbackDeliveryStore) Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: callback delivery store is not configured")
	}
	record := &callbackDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: callback delivery %q not found", deliveryID)
		}
		return webhooks.DeliveryRecord{}, err
	}
	return callbackDeliveryToDomain(record), nil
}

func (s *CallbackDeliveryStore) Complete(ctx context.Context, deliveryID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: callback delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*callbackDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", strings.TrimSpace(deliveryID)).
		Exec(ctx)
	return err
}

func (s *CallbackDeliveryStore) Fail(
	ctx context.Context,
	deliveryID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: callback delivery store is not configured")
	}
	record, err := s.Get(ctx, deliveryID)
	if err != nil {
		return err
	}
	attempts := record.Attempts + 1
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	query := s.db.NewUpdate().
		Model((*callbackDeliveryRecord)(nil)).
		Set("attempts = ?", attempts).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", strings.TrimSpace(deliveryID))
	if maxAttempts > 0 && attempts > maxAttempts {
		query = query.
			Set("status = ?", webhooks.DeliveryStatusDead).
			Set("next_attempt_at = NULL")
	} else {
		query = query.
			Set("status = ?", webhooks.DeliveryStatusRetryReady).
			Set("next_attempt_at = ?", nextAttemptAt.UTC())
	}
	_, err = query.Exec(ctx)
	return err
}

// ListRetryReady returns deliveries whose next attempt is due at or before
// the given time, oldest first.
func (s *CallbackDeliveryStore) ListRetryReady(ctx context.Context, dueAt time.Time, limit int) ([]webhooks.DeliveryRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: callback delivery store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", webhooks.DeliveryStatusRetryReady),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.next_attempt_at IS NOT NULL").
				Where("?TableAlias.next_attempt_at <= ?", dueAt.UTC())
		}),
		repository.OrderBy("next_attempt_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]webhooks.DeliveryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, callbackDeliveryToDomain(record))
	}
	return out, nil
}

func callbackDeliveryToDomain(record *callbackDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	return webhooks.DeliveryRecord{
		ID:            record.ID,
		DeliveryID:    record.DeliveryID,
		EventType:     record.EventType,
		Status:        record.Status,
		Attempts:      record.Attempts,
		LastError:     record.LastError,
		NextAttemptAt: cloneTimePointer(record.NextAttemptAt),
		Payload:       append([]byte(nil), record.Payload...),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
