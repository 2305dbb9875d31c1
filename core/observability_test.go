package core

import (
	"context"
	"testing"
	"time"
)

func TestObserver_RecordsSuccessMetricsAndLog(t *testing.T) {
	logger := &capturingLogger{}
	metrics := &capturingMetrics{}
	observer := NewObserver("commerce", nil, logger, metrics)

	observer.Observe(context.Background(), time.Now(), "token_refresh", nil, map[string]any{
		"status_code": 200,
	})

	names := metrics.counterNames()
	if len(names) != 1 || names[0] != "commerce.token_refresh.total" {
		t.Fatalf("unexpected counters %v", names)
	}
	if metrics.counters[0].tags["status"] != "success" || metrics.counters[0].tags["status_code"] != "200" {
		t.Fatalf("unexpected tags %#v", metrics.counters[0].tags)
	}
	if len(metrics.histograms) != 1 || metrics.histograms[0].name != "commerce.token_refresh.duration_ms" {
		t.Fatalf("unexpected histograms %#v", metrics.histograms)
	}
	calls := logger.snapshot()
	if len(calls) != 1 || calls[0].level != "info" || calls[0].msg != "token_refresh succeeded" {
		t.Fatalf("unexpected log calls %#v", calls)
	}
}

func TestObserver_FailureCarriesRefreshReason(t *testing.T) {
	logger := &capturingLogger{}
	metrics := &capturingMetrics{}
	observer := NewObserver("commerce", nil, logger, metrics)

	observer.Observe(context.Background(), time.Now(), "token refresh", &TokenRefreshError{Reason: RefreshFailureRejected}, nil)

	if metrics.counters[0].tags["refresh_reason"] != "rejected" {
		t.Fatalf("expected refresh_reason tag, got %#v", metrics.counters[0].tags)
	}
	calls := logger.snapshot()
	if len(calls) != 1 || calls[0].level != "error" || calls[0].msg != "token_refresh failed" {
		t.Fatalf("unexpected log calls %#v", calls)
	}
	found := false
	for i := 0; i+1 < len(calls[0].args); i += 2 {
		if calls[0].args[i] == "error_text_code" && calls[0].args[i+1] == ErrorTextTokenRejected {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected error_text_code field, got %#v", calls[0].args)
	}
}

func TestObserver_DefaultsAreSafe(t *testing.T) {
	observer := NewObserver("", nil, nil, nil)
	observer.Observe(context.Background(), time.Now(), "", nil, nil)
	observer.Count(context.Background(), "anything", nil)
	if observer.Logger() == nil {
		t.Fatalf("expected a non-nil logger")
	}
}
