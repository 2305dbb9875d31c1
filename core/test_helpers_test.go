package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// countingDoer records every request and answers with the configured
// handler. A nil handler returns a JSON token pair.
type countingDoer struct {
	calls   atomic.Int32
	mu      sync.Mutex
	forms   []url.Values
	handler func(req *http.Request) (*http.Response, error)
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		values, _ := url.ParseQuery(string(raw))
		d.mu.Lock()
		d.forms = append(d.forms, values)
		d.mu.Unlock()
	}
	if d.handler == nil {
		return jsonResponse(http.StatusOK, `{"access_token":"at-new","refresh_token":"rt-new"}`), nil
	}
	return d.handler(req)
}

func (d *countingDoer) lastForm() url.Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.forms) == 0 {
		return url.Values{}
	}
	return d.forms[len(d.forms)-1]
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestTokenManager(doer HTTPDoer, refreshToken string, opts ...TokenManagerOption) (*TokenManager, error) {
	opts = append([]TokenManagerOption{WithInitialTokens("at-old", refreshToken)}, opts...)
	return NewTokenManager(TokenManagerConfig{
		TokenURI:   "https://auth.example.test/oauth/token",
		HTTPClient: doer,
	}, opts...)
}

type memoryCredentialStore struct {
	mu      sync.Mutex
	byKey   map[string]Credentials
	saveErr error
	saves   int
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{byKey: map[string]Credentials{}}
}

func (s *memoryCredentialStore) Save(_ context.Context, key string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.byKey[key] = creds
	return nil
}

func (s *memoryCredentialStore) Load(_ context.Context, key string) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, ok := s.byKey[key]
	if !ok {
		return Credentials{}, fmt.Errorf("missing credentials for %q", key)
	}
	return creds, nil
}

type logCall struct {
	level string
	msg   string
	args  []any
}

type capturingLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *capturingLogger) record(level string, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, msg: msg, args: append([]any(nil), args...)})
}

func (l *capturingLogger) Trace(msg string, args ...any) { l.record("trace", msg, args) }
func (l *capturingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *capturingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *capturingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *capturingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }
func (l *capturingLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args) }

func (l *capturingLogger) WithContext(context.Context) Logger {
	return l
}

func (l *capturingLogger) snapshot() []logCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logCall(nil), l.calls...)
}

type metricCall struct {
	name  string
	value float64
	tags  map[string]string
}

type capturingMetrics struct {
	mu         sync.Mutex
	counters   []metricCall
	histograms []metricCall
}

func (m *capturingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, metricCall{name: name, value: float64(value), tags: tags})
}

func (m *capturingMetrics) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, metricCall{name: name, value: value, tags: tags})
}

func (m *capturingMetrics) counterNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.counters))
	for _, call := range m.counters {
		names = append(names, call.name)
	}
	return names
}

type mapRawLoader struct {
	values map[string]any
	err    error
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l.err != nil {
		return nil, l.err
	}
	return StaticRawConfigLoader{Values: l.values}.LoadRaw(context.Background())
}
