package webhooks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/core"
)

// Event is a decoded callback notification. Body keeps the verified raw bytes.
type Event struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	Resource         string          `json:"resource"`
	ResourcePath     string          `json:"resource_path"`
	DeliveryAttempts int             `json:"delivery_attempts"`
	CreatedAt        *time.Time      `json:"created_at,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
	AdditionalData   json.RawMessage `json:"additional_data,omitempty"`
	Body             []byte          `json:"-"`
}

// ParseEvent decodes a callback body. Payloads that name their type under
// "event" instead of "type" are accepted.
func ParseEvent(body []byte) (Event, error) {
	var decoded struct {
		Event
		LegacyEvent string `json:"event"`
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&decoded); err != nil {
		return Event{}, fmt.Errorf("webhooks: decode callback event: %w", err)
	}
	event := decoded.Event
	if strings.TrimSpace(event.Type) == "" {
		event.Type = strings.TrimSpace(decoded.LegacyEvent)
	}
	event.Body = append([]byte(nil), body...)
	return event, nil
}

type RequestVerifier interface {
	VerifyRequest(ctx context.Context, req core.InboundRequest) error
}

type Handler interface {
	HandleCallback(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) HandleCallback(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type DeliveryIDExtractor func(req core.InboundRequest, event Event) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

type Result struct {
	Accepted   bool
	StatusCode int
	DeliveryID string
	EventType  string
	Deduped    bool
}

type ProcessorOption func(*Processor)

func WithProcessorLogger(logger core.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithProcessorLoggerProvider(provider core.LoggerProvider) ProcessorOption {
	return func(p *Processor) {
		p.loggerProvider = provider
	}
}

func WithProcessorMetricsRecorder(recorder core.MetricsRecorder) ProcessorOption {
	return func(p *Processor) {
		p.metrics = recorder
	}
}

// Processor verifies, de-duplicates and dispatches callback notifications.
type Processor struct {
	Verifier    RequestVerifier
	Ledger      DeliveryLedger
	Handler     Handler
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	MaxAttempts int
	Now         func() time.Time

	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	observer       core.Observer
}

func NewProcessor(verifier RequestVerifier, ledger DeliveryLedger, handler Handler, opts ...ProcessorOption) *Processor {
	p := &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Handler:     handler,
		ExtractID:   DefaultDeliveryIDExtractor,
		RetryPolicy: ExponentialRetryPolicy{},
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.observer = core.NewObserver("commerce", p.loggerProvider, p.logger, p.metrics)
	return p
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (Result, error) {
	if p == nil || p.Handler == nil || p.Ledger == nil {
		return Result{}, fmt.Errorf("webhooks: processor requires handler and ledger")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	result, err := p.process(ctx, req, true)
	p.observe(ctx, startedAt, "callback_process", result, err)
	return result, err
}

// Redeliver replays a stored payload that was verified when it was first
// received. The ledger still decides whether the delivery may run again.
func (p *Processor) Redeliver(ctx context.Context, deliveryID string, payload []byte) (Result, error) {
	if p == nil || p.Handler == nil || p.Ledger == nil {
		return Result{}, fmt.Errorf("webhooks: processor requires handler and ledger")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return Result{StatusCode: http.StatusBadRequest}, fmt.Errorf("webhooks: delivery id is required for redelivery")
	}
	startedAt := time.Now()
	result, err := p.process(ctx, core.InboundRequest{
		Surface:  "redelivery",
		Body:     payload,
		Metadata: map[string]any{"delivery_id": deliveryID},
	}, false)
	p.observe(ctx, startedAt, "callback_redeliver", result, err)
	return result, err
}

func (p *Processor) observe(ctx context.Context, startedAt time.Time, operation string, result Result, err error) {
	p.observer.Observe(ctx, startedAt, operation, err, map[string]any{
		"delivery_id":   result.DeliveryID,
		"callback_type": result.EventType,
		"status_code":   result.StatusCode,
		"deduped":       result.Deduped,
	})
}

func (p *Processor) process(ctx context.Context, req core.InboundRequest, verify bool) (Result, error) {
	if verify && p.Verifier != nil {
		if err := p.Verifier.VerifyRequest(ctx, req); err != nil {
			return Result{StatusCode: http.StatusUnauthorized}, err
		}
	}

	event, err := ParseEvent(req.Body)
	if err != nil {
		return Result{StatusCode: http.StatusBadRequest}, err
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = DefaultDeliveryIDExtractor
	}
	deliveryID, err := extractor(req, event)
	if err != nil {
		return Result{StatusCode: http.StatusBadRequest, EventType: event.Type}, err
	}
	result := Result{DeliveryID: deliveryID, EventType: event.Type}

	delivery, claimed, err := p.Ledger.Claim(ctx, deliveryID, event.Type, req.Body)
	if err != nil {
		result.StatusCode = http.StatusInternalServerError
		return result, err
	}
	if !claimed {
		result.Accepted = true
		result.Deduped = true
		result.StatusCode = http.StatusOK
		return result, nil
	}

	if err := p.Handler.HandleCallback(ctx, event); err != nil {
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		if failErr := p.Ledger.Fail(ctx, deliveryID, err, nextAttemptAt, p.maxAttempts()); failErr != nil {
			p.observer.Warn(ctx, "callback ledger fail update failed", map[string]any{
				"delivery_id": deliveryID,
				"error":       failErr.Error(),
			})
		}
		result.StatusCode = http.StatusInternalServerError
		return result, err
	}

	if err := p.Ledger.Complete(ctx, deliveryID); err != nil {
		result.StatusCode = http.StatusInternalServerError
		return result, err
	}
	result.Accepted = true
	result.StatusCode = http.StatusOK
	return result, nil
}

// ServeHTTP exposes the processor as a callback endpoint.
func (p *Processor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := readCallbackBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	result, err := p.Process(r.Context(), core.InboundRequest{
		Surface: "http",
		Headers: headers,
		Body:    body,
	})
	status := result.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.WriteHeader(status)
}

// DefaultDeliveryIDExtractor prefers a delivery id set in metadata by
// Redeliver, then the notification id, and finally a digest of the body.
// Headers are not signed and never name a delivery.
func DefaultDeliveryIDExtractor(req core.InboundRequest, event Event) (string, error) {
	if req.Metadata != nil {
		if value := strings.TrimSpace(fmt.Sprint(req.Metadata["delivery_id"])); value != "" && value != "<nil>" {
			return value, nil
		}
	}
	if value := strings.TrimSpace(event.ID); value != "" {
		return value, nil
	}
	if len(req.Body) == 0 {
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
	digest := sha256.Sum256(req.Body)
	return "sha256:" + hex.EncodeToString(digest[:]), nil
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

var (
	_ RequestVerifier = (*CallbackVerifier)(nil)
	_ http.Handler    = (*Processor)(nil)
)
