package gojob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDCallbackRetry = "commerce.callback.retry"
	JobIDTokenRefresh  = "commerce.tokens.refresh"
)

// RetryPolicy bounds queue retries so a failing job cannot loop forever.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// JobHandler runs one execution message. A PermanentError is dead-lettered
// instead of retried.
type JobHandler interface {
	HandleJob(ctx context.Context, msg *job.ExecutionMessage) error
}

type JobHandlerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f JobHandlerFunc) HandleJob(ctx context.Context, msg *job.ExecutionMessage) error {
	return f(ctx, msg)
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "gojob: permanent failure"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Router acks or nacks a dequeued delivery according to the outcome of the
// handler registered for its job id.
type Router struct {
	handlers map[string]JobHandler
	policy   RetryPolicy
}

func NewRouter(policy RetryPolicy) *Router {
	return &Router{handlers: map[string]JobHandler{}, policy: policy}
}

func (r *Router) Register(jobID string, handler JobHandler) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("gojob: job id is required")
	}
	if handler == nil {
		return fmt.Errorf("gojob: handler for %q is required", jobID)
	}
	r.handlers[jobID] = handler
	return nil
}

func (r *Router) Handle(ctx context.Context, delivery queue.Delivery) error {
	if r == nil || delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: "missing execution message"})
	}
	handler, ok := r.handlers[strings.TrimSpace(msg.JobID)]
	if !ok {
		return delivery.Nack(ctx, queue.NackOptions{
			DeadLetter: true,
			Reason:     fmt.Sprintf("no handler for job %q", msg.JobID),
		})
	}
	err := handler.HandleJob(ctx, msg)
	if err == nil {
		return delivery.Ack(ctx)
	}
	attempt := AttemptFrom(msg)
	opts := queue.NackOptions{Delay: r.policy.delay(attempt), Requeue: true, Reason: err.Error()}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		opts = queue.NackOptions{DeadLetter: true, Reason: err.Error()}
	}
	return delivery.Nack(ctx, r.policy.NormalizeAttempt(opts, attempt))
}

// AttemptFrom reads the attempt parameter, which may arrive as any numeric
// type after a queue round trip. It defaults to 1.
func AttemptFrom(msg *job.ExecutionMessage) int {
	if msg == nil || msg.Parameters == nil {
		return 1
	}
	switch value := msg.Parameters["attempt"].(type) {
	case int:
		if value > 0 {
			return value
		}
	case int64:
		if value > 0 {
			return int(value)
		}
	case float64:
		if value > 0 {
			return int(value)
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 1
}

func stringParam(msg *job.ExecutionMessage, key string) string {
	if msg == nil || msg.Parameters == nil {
		return ""
	}
	value, _ := msg.Parameters[key].(string)
	return strings.TrimSpace(value)
}

// ObserverHook reports worker lifecycle events through a core.Observer.
type ObserverHook struct {
	observer core.Observer
}

func NewObserverHook(observer core.Observer) *ObserverHook {
	return &ObserverHook{observer: observer}
}

func (h *ObserverHook) OnStart(ctx context.Context, event worker.Event) {
	h.observer.Debug(ctx, "job started", eventFields(event))
}

func (h *ObserverHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.observer.Observe(ctx, event.StartedAt, "job_run", nil, eventFields(event))
}

func (h *ObserverHook) OnFailure(ctx context.Context, event worker.Event) {
	h.observer.Observe(ctx, event.StartedAt, "job_run", event.Err, eventFields(event))
}

func (h *ObserverHook) OnRetry(ctx context.Context, event worker.Event) {
	h.observer.Count(ctx, "job_retry.total", map[string]string{"job_id": eventJobID(event)})
}

func eventFields(event worker.Event) map[string]any {
	return map[string]any{
		"job_id":  eventJobID(event),
		"attempt": event.Attempt,
		"delay":   event.Delay.String(),
	}
}

func eventJobID(event worker.Event) string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message == nil {
		return ""
	}
	return strings.TrimSpace(message.JobID)
}

var (
	_ worker.Hook = (*ObserverHook)(nil)
	_ JobHandler  = (*CallbackRetryHandler)(nil)
	_ JobHandler  = (*TokenRefreshHandler)(nil)
)
