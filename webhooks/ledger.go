package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

type DeliveryRecord struct {
	ID            string
	DeliveryID    string
	EventType     string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	Payload       []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger records callback deliveries so a redelivered notification is
// handled at most once. Claim returns claimed=false for a delivery that is
// already processed, dead, or still pending.
type DeliveryLedger interface {
	Claim(ctx context.Context, deliveryID string, eventType string, payload []byte) (DeliveryRecord, bool, error)
	Get(ctx context.Context, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, deliveryID string) error
	Fail(ctx context.Context, deliveryID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

// MemoryLedger is a process-local DeliveryLedger.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: map[string]DeliveryRecord{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryLedger) Claim(_ context.Context, deliveryID string, eventType string, payload []byte) (DeliveryRecord, bool, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	record, ok := l.records[deliveryID]
	if !ok {
		record = DeliveryRecord{
			ID:         uuid.NewString(),
			DeliveryID: deliveryID,
			EventType:  strings.TrimSpace(eventType),
			Status:     DeliveryStatusPending,
			Attempts:   1,
			Payload:    append([]byte(nil), payload...),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		l.records[deliveryID] = record
		return record, true, nil
	}
	if record.Status != DeliveryStatusRetryReady {
		return record, false, nil
	}
	record.Status = DeliveryStatusPending
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	l.records[deliveryID] = record
	return record, true, nil
}

func (l *MemoryLedger) Get(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	return record, nil
}

func (l *MemoryLedger) Complete(_ context.Context, deliveryID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	record.Status = DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.LastError = ""
	record.UpdatedAt = l.now()
	l.records[record.DeliveryID] = record
	return nil
}

func (l *MemoryLedger) Fail(_ context.Context, deliveryID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	record.Attempts++
	record.UpdatedAt = l.now()
	if cause != nil {
		record.LastError = cause.Error()
	}
	if maxAttempts > 0 && record.Attempts > maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		next := nextAttemptAt.UTC()
		record.Status = DeliveryStatusRetryReady
		record.NextAttemptAt = &next
	}
	l.records[record.DeliveryID] = record
	return nil
}

var _ DeliveryLedger = (*MemoryLedger)(nil)
