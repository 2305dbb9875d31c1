package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/core"
	"github.com/goliatone/go-commerce/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

type RetryReadyLister interface {
	ListRetryReady(ctx context.Context, dueAt time.Time, limit int) ([]webhooks.DeliveryRecord, error)
}

// CallbackRetrySweeper enqueues one retry job per callback delivery whose
// next attempt is due.
type CallbackRetrySweeper struct {
	lister    RetryReadyLister
	enqueuer  queue.Enqueuer
	BatchSize int
	Now       func() time.Time
}

func NewCallbackRetrySweeper(lister RetryReadyLister, enqueuer queue.Enqueuer) *CallbackRetrySweeper {
	return &CallbackRetrySweeper{
		lister:    lister,
		enqueuer:  enqueuer,
		BatchSize: 100,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *CallbackRetrySweeper) Sweep(ctx context.Context) (int, error) {
	if s == nil || s.lister == nil || s.enqueuer == nil {
		return 0, fmt.Errorf("gojob: sweeper requires a lister and an enqueuer")
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	records, err := s.lister.ListRetryReady(ctx, now, s.BatchSize)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, record := range records {
		if err := s.enqueuer.Enqueue(ctx, CallbackRetryMessage(record)); err != nil {
			return enqueued, fmt.Errorf("gojob: enqueue retry for %s: %w", record.DeliveryID, err)
		}
		enqueued++
	}
	return enqueued, nil
}

// CallbackRetryMessage keys the job by delivery and attempt so a sweep that
// runs twice before the worker drains the queue does not double enqueue.
func CallbackRetryMessage(record webhooks.DeliveryRecord) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:      JobIDCallbackRetry,
		ScriptPath: JobIDCallbackRetry,
		Parameters: map[string]any{
			"delivery_id": record.DeliveryID,
			"event_type":  record.EventType,
			"attempt":     record.Attempts,
		},
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", JobIDCallbackRetry, record.DeliveryID, record.Attempts),
	}
}

type DeliveryReader interface {
	Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error)
}

type Redeliverer interface {
	Redeliver(ctx context.Context, deliveryID string, payload []byte) (webhooks.Result, error)
}

// CallbackRetryHandler replays the stored payload of a retry-ready delivery.
// Deliveries in any other state are skipped.
type CallbackRetryHandler struct {
	deliveries  DeliveryReader
	redeliverer Redeliverer
}

func NewCallbackRetryHandler(deliveries DeliveryReader, redeliverer Redeliverer) *CallbackRetryHandler {
	return &CallbackRetryHandler{deliveries: deliveries, redeliverer: redeliverer}
}

func (h *CallbackRetryHandler) HandleJob(ctx context.Context, msg *job.ExecutionMessage) error {
	if h == nil || h.deliveries == nil || h.redeliverer == nil {
		return &PermanentError{Err: fmt.Errorf("gojob: callback retry handler is not configured")}
	}
	deliveryID := stringParam(msg, "delivery_id")
	if deliveryID == "" {
		return &PermanentError{Err: fmt.Errorf("gojob: delivery_id parameter is required")}
	}
	record, err := h.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return err
	}
	if record.Status != webhooks.DeliveryStatusRetryReady {
		return nil
	}
	_, err = h.redeliverer.Redeliver(ctx, deliveryID, record.Payload)
	return err
}

type TokenRefresher interface {
	Refresh(ctx context.Context) (core.TokenResponse, error)
}

// TokenRefreshHandler refreshes the credential pair from a queued job. A
// rejected refresh token cannot succeed on retry and is dead-lettered.
type TokenRefreshHandler struct {
	tokens TokenRefresher
}

func NewTokenRefreshHandler(tokens TokenRefresher) *TokenRefreshHandler {
	return &TokenRefreshHandler{tokens: tokens}
}

func (h *TokenRefreshHandler) HandleJob(ctx context.Context, _ *job.ExecutionMessage) error {
	if h == nil || h.tokens == nil {
		return &PermanentError{Err: fmt.Errorf("gojob: token refresher is not configured")}
	}
	_, err := h.tokens.Refresh(ctx)
	if err == nil {
		return nil
	}
	if core.RefreshReason(err) == core.RefreshFailureRejected {
		return &PermanentError{Err: err}
	}
	var authErr *core.AuthenticationError
	if errors.As(err, &authErr) {
		return &PermanentError{Err: err}
	}
	return err
}

// TokenRefreshMessage builds a refresh job deduplicated per scheduling slot.
func TokenRefreshMessage(slot time.Time) *job.ExecutionMessage {
	key := strings.TrimSpace(slot.UTC().Format(time.RFC3339))
	return &job.ExecutionMessage{
		JobID:          JobIDTokenRefresh,
		ScriptPath:     JobIDTokenRefresh,
		Parameters:     map[string]any{"attempt": 1},
		IdempotencyKey: JobIDTokenRefresh + ":" + key,
	}
}
