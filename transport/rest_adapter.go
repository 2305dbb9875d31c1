package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const KindREST = "rest"

const RequestIDHeader = "X-Request-Id"

const (
	defaultRESTClientTimeout               = 30 * time.Second
	defaultRESTResponseBodyLimit     int64 = 10 << 20
	metadataAdapter                        = "adapter"
	metadataRequestID                      = "request_id"
	metadataDurationMS                     = "duration_ms"
	metadataResponseBodyLimitInBytes       = "response_limit_b"
)

// RESTAdapter executes one JSON API request per Do call. Signer, when set,
// authorizes the request right before it is sent so a retried request picks
// up a refreshed token.
type RESTAdapter struct {
	Client               core.HTTPDoer
	Signer               core.Signer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	RequestID            func() string
}

func NewRESTAdapter(client core.HTTPDoer, signer core.Signer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		Signer:               signer,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
		RequestID:            uuid.NewString,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, core.CategoryError(
			nil,
			goerrors.CategoryInternal,
			"transport: rest adapter requires an http client",
			map[string]any{metadataAdapter: KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.newRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	if a.Signer != nil {
		if err := a.Signer.Sign(ctx, httpReq); err != nil {
			return core.TransportResponse{}, err
		}
	}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, core.CategoryError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			map[string]any{metadataAdapter: KindREST, "method": httpReq.Method, "url": httpReq.URL.String()},
		)
	}
	defer httpRes.Body.Close()

	body, err := a.readBody(httpRes, req.MaxResponseBodyBytes)
	if err != nil {
		return core.TransportResponse{}, err
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			metadataAdapter:    KindREST,
			metadataDurationMS: time.Since(startedAt).Milliseconds(),
			metadataRequestID:  httpReq.Header.Get(RequestIDHeader),
		},
	}, nil
}

func (a *RESTAdapter) newRequest(ctx context.Context, req core.TransportRequest) (*http.Request, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, core.CategoryError(
			nil,
			goerrors.CategoryBadInput,
			"transport: request url is required",
			map[string]any{metadataAdapter: KindREST},
		)
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, core.CategoryError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			map[string]any{metadataAdapter: KindREST, "url": rawURL},
		)
	}
	if len(req.Query) > 0 {
		values := target.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				values.Set(key, strings.TrimSpace(value))
			}
		}
		target.RawQuery = values.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, core.CategoryError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			map[string]any{metadataAdapter: KindREST, "method": method},
		)
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	setHeaders(httpReq.Header, req.Headers)
	if httpReq.Header.Get(RequestIDHeader) == "" && a.RequestID != nil {
		httpReq.Header.Set(RequestIDHeader, a.RequestID())
	}
	return httpReq, nil
}

// readBody reads at most one byte past the limit so an oversized body is
// reported instead of silently truncated.
func (a *RESTAdapter) readBody(res *http.Response, requestLimit int64) ([]byte, error) {
	limit := resolveResponseBodyLimit(requestLimit, a.MaxResponseBodyBytes)
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, core.CategoryError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			map[string]any{metadataAdapter: KindREST, "status_code": res.StatusCode},
		)
	}
	if int64(len(body)) > limit {
		return nil, core.CategoryError(
			nil,
			goerrors.CategoryExternal,
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			map[string]any{
				metadataAdapter:                  KindREST,
				"status_code":                    res.StatusCode,
				metadataResponseBodyLimitInBytes: limit,
			},
		)
	}
	return body, nil
}

func setHeaders(dst http.Header, values map[string]string) {
	for key, value := range values {
		if key = strings.TrimSpace(key); key != "" {
			dst.Set(key, strings.TrimSpace(value))
		}
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	switch {
	case requestLimit > 0:
		return requestLimit
	case adapterLimit > 0:
		return adapterLimit
	default:
		return defaultRESTResponseBodyLimit
	}
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
