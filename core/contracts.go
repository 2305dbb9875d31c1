package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialStore persists the token pair so a refreshed pair survives a
// process restart. Key identifies the owning client instance.
type CredentialStore interface {
	Save(ctx context.Context, key string, creds Credentials) error
	Load(ctx context.Context, key string) (Credentials, error)
}

// SecretProvider seals credential payloads before they reach storage.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration
	// MaxResponseBodyBytes overrides the adapter limit when positive.
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	Surface  string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

// AccessTokenSource exposes the current bearer token without granting
// mutation rights over the credential pair.
type AccessTokenSource interface {
	AccessToken() string
}
